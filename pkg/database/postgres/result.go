package postgres

import (
	"github.com/jackc/pgx/v5"
)

// Result 语句执行结果
type Result struct {
	Columns      []string
	Rows         [][]any
	CommandTag   string
	RowsAffected int64
}

// Len 结果行数
func (r *Result) Len() int {
	return len(r.Rows)
}

// Value 按列名取值，行或列不存在时返回 false
func (r *Result) Value(row int, column string) (any, bool) {
	if row < 0 || row >= len(r.Rows) {
		return nil, false
	}
	for i, c := range r.Columns {
		if c == column {
			return r.Rows[row][i], true
		}
	}
	return nil, false
}

// collectResult 读取全部行，rows 在返回前关闭
func collectResult(rows pgx.Rows) (*Result, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	res := &Result{
		Columns: make([]string, len(fields)),
		Rows:    make([][]any, 0),
	}
	for i, fd := range fields {
		res.Columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows.Close()
	tag := rows.CommandTag()
	res.CommandTag = tag.String()
	res.RowsAffected = tag.RowsAffected()
	return res, nil
}
