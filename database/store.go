package database

import (
	"context"

	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/fx"

	"github.com/MatrixAI/Polykey-sub016/nodecfg"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// DB 数据库结构体，包含 BadgerDB 实例
type DB struct {
	BadgerDB *badgerhold.Store // BadgerDB数据库实例
	inMemory bool              // 是否为内存数据库
}

// NewDBInput 是用于传递给 NewDB 函数的输入结构体。
type NewDBInput struct {
	fx.In // 这是一个标记结构体，表示这是一个依赖注入的输入

	Ctx context.Context  // 全局上下文
	Opt *nodecfg.Options // 节点配置
}

// NewDBOutput 是 NewDB 函数的输出结构体。
type NewDBOutput struct {
	fx.Out // 这是一个标记结构体，表示这是一个依赖注入的输出

	DB *DB // DB 是 Badgerhold 数据库的实例，供其他组件使用
}

// NewDB 是用于创建和初始化数据库的构造函数。
// 参数:
//   - lc fx.Lifecycle: 应用的生命周期管理器
//   - input NewDBInput: 包含全局上下文和节点配置的输入结构体
//
// 返回值:
//   - out NewDBOutput: 包含初始化后的数据库实例的输出结构体
//   - err error: 如果初始化过程中发生错误，返回错误信息
func NewDB(lc fx.Lifecycle, input NewDBInput) (out NewDBOutput, err error) {
	dir := ""
	if !input.Opt.GetInMemory() {
		dir = input.Opt.GetPaths().BadgerPath()
	}

	badgerDB, err := NewBadgerDB(dir, input.Opt.GetInMemory())
	if err != nil {
		logger.Errorf("初始化 BadgerDB 失败: %v", err)
		return out, err
	}
	db := &DB{BadgerDB: badgerDB, inMemory: input.Opt.GetInMemory()}

	// 注册关闭数据库的钩子
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("关闭数据库")
			return db.Close()
		},
	})

	out.DB = db
	return out, nil
}

// Close 回收值日志并关闭数据库
func (db *DB) Close() error {
	if !db.inMemory {
		if err := ForceValueLogGC(db.BadgerDB, 0.5); err != nil {
			logger.Warnf("关闭前回收值日志失败: %v", err)
		}
	}
	return db.BadgerDB.Close()
}
