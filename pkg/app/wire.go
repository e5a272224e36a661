package app

import (
	"github.com/google/wire"
)

// Components 由 Wire 收集的后台服务与待清理资源
type Components struct {
	Servers []Server
	Closers []Closer
}

// ProviderSet 导出给 Wire 使用
var ProviderSet = wire.NewSet(
	NewBaseApp,
)

// Assemble 把组件挂到 BaseApp 上
// Closer 按传入顺序注册，关闭时逆序执行，所以数据库应排在依赖它的组件之前
func Assemble(app *BaseApp, comps Components) Application {
	app.AppendServer(comps.Servers...)
	app.AppendCloser(comps.Closers...)
	return app
}

// CloserFunc 函数式 Closer
type CloserFunc func() error

func (f CloserFunc) Close() error {
	return f()
}
