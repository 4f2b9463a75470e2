// Package paths 管理节点在磁盘上的目录布局
package paths

import (
	"path/filepath"
)

// PathConfig 存储所有相关路径
type PathConfig struct {
	RootPath     string // 根路径
	DatabasePath string // 数据库路径
	KeysPath     string // 节点私钥路径
}

// Resolve 根据根路径计算所有路径,不创建任何目录
// 参数：
//   - root: 根路径,为空时使用 ObtainRootPath
//
// 返回值：
//   - PathConfig: 路径配置
func Resolve(root string) PathConfig {
	if root == "" {
		root = ObtainRootPath()
	}
	return PathConfig{
		RootPath:     root,
		DatabasePath: filepath.Join(root, "database"),
		KeysPath:     filepath.Join(root, "keys"),
	}
}

// Initialize 创建所有必要的目录
// 返回值：
//   - error: 初始化过程中的错误
func (c PathConfig) Initialize() error {
	for _, dir := range []string{c.RootPath, c.DatabasePath, c.KeysPath} {
		if err := AddDirectory(dir); err != nil {
			return err
		}
	}
	return nil
}

// BadgerPath 返回 badgerhold 数据目录
func (c PathConfig) BadgerPath() string {
	return filepath.Join(c.DatabasePath, "badgerhold")
}

// IdentityKeyFile 返回节点私钥文件路径
func (c PathConfig) IdentityKeyFile() string {
	return filepath.Join(c.KeysPath, "identity.key")
}
