package pool

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DriverConn 连接池管理的驱动连接
// *pgx.Conn 与 pgxmock.PgxConnIface 都实现了该接口
type DriverConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var _ DriverConn = (*pgx.Conn)(nil)

// Connector 建立新的驱动连接
type Connector interface {
	Connect(ctx context.Context) (DriverConn, error)
}

// ConnectorFunc 函数式 Connector
type ConnectorFunc func(ctx context.Context) (DriverConn, error)

func (f ConnectorFunc) Connect(ctx context.Context) (DriverConn, error) {
	return f(ctx)
}

// PgxConnector 使用 pgx 建立 PostgreSQL 连接
type PgxConnector struct {
	config *pgx.ConnConfig
}

// NewPgxConnector 解析连接串创建 Connector
// 连接串支持 DSN（host=... port=...）与 URL（postgres://...）两种形式
func NewPgxConnector(connString string) (*PgxConnector, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "pool: parse connection string")
	}
	return &PgxConnector{config: cfg}, nil
}

// NewPgxConnectorFromConfig 使用已解析的 pgx 配置创建 Connector
func NewPgxConnectorFromConfig(cfg *pgx.ConnConfig) *PgxConnector {
	return &PgxConnector{config: cfg}
}

// Connect 建立一条新连接
func (c *PgxConnector) Connect(ctx context.Context) (DriverConn, error) {
	conn, err := pgx.ConnectConfig(ctx, c.config.Copy())
	if err != nil {
		return nil, err
	}
	return conn, nil
}
