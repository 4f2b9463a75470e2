// Package database 提供节点元数据和路由快照的持久化
package database

import (
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/timshannon/badgerhold/v4"

	"github.com/MatrixAI/Polykey-sub016/utils/logger"
	"github.com/MatrixAI/Polykey-sub016/utils/paths"
)

// NewBadgerDB 创建并初始化一个新的BadgerDB实例
//
// 参数:
//   - dir string: 数据库目录,inMemory 为 true 时忽略
//   - inMemory bool: 是否只在内存中保存数据
//
// 返回值:
//   - *badgerhold.Store: BadgerDB存储实例
//   - error: 如果初始化过程中发生错误，返回错误信息
func NewBadgerDB(dir string, inMemory bool) (*badgerhold.Store, error) {
	// 配置 Badgerhold 数据库的选项
	options := badgerhold.DefaultOptions
	options.Logger = nil // badger 自带的日志过于冗长

	if inMemory {
		options.Options = options.Options.WithInMemory(true)
		options.Dir = ""
		options.ValueDir = ""
	} else {
		if dir == "" {
			return nil, errors.New("未指定数据库目录")
		}
		valueDir := filepath.Join(dir, "value")
		options.Dir = valueDir      // 设置数据库文件存储的目录路径
		options.ValueDir = valueDir // 设置 Value 文件存储的目录路径
		options.SyncWrites = true   // 设置为同步写入模式，确保数据安全性

		// 确保数据库目录已经存在，如果不存在则创建
		if err := paths.AddDirectory(valueDir); err != nil {
			logger.Errorf("创建数据库目录失败: %v", err)
			return nil, err
		}
	}

	store, err := badgerhold.Open(options)
	if err != nil {
		logger.Errorf("打开数据库失败: %v", err)
		return nil, errors.Wrap(err, "打开数据库")
	}
	return store, nil
}

// ForceValueLogGC 执行 value log 垃圾回收,直到没有可回收的数据
//
// 参数:
//   - db *badgerhold.Store: 数据库实例
//   - ratio float64: GC触发阈值(0.0-1.0)
//
// 返回值:
//   - error: 如果GC过程中发生错误，返回错误信息
func ForceValueLogGC(db *badgerhold.Store, ratio float64) error {
	for {
		err := db.Badger().RunValueLogGC(ratio)

		// 当没有更多的数据需要清理时
		if errors.Is(err, badger.ErrNoRewrite) {
			logger.Debug("值日志回收完成")
			return nil
		}
		if err != nil {
			logger.Errorf("值日志垃圾回收失败: %v", err)
			return err
		}
	}
}

// ClearDatabase 清空数据库中所有数据
//
// 参数:
//   - db *badgerhold.Store: 数据库实例
//
// 返回值:
//   - error: 如果清空过程中发生错误，返回错误信息
func ClearDatabase(db *badgerhold.Store) error {
	if err := db.Badger().DropAll(); err != nil {
		logger.Errorf("清空数据库失败: %v", err)
		return err
	}
	return nil
}
