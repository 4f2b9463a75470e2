package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// ObtainRootPath 获取默认的根目录路径
// 返回值：
//   - string: 用户主目录下的节点数据目录,无法获取主目录时使用当前目录
func ObtainRootPath() string {
	// 根据不同操作系统设置资源存储路径
	var resourceStoragePath string
	switch runtime.GOOS {
	case "windows":
		resourceStoragePath = "AppData/Polykey"
	case "darwin":
		resourceStoragePath = "Library/Polykey"
	default:
		resourceStoragePath = ".polykey"
	}

	currentUser, err := user.Current()
	if err != nil || currentUser.HomeDir == "" {
		logger.Warnf("获取用户主目录失败, 使用当前目录: %v", err)
		return resourceStoragePath
	}
	return filepath.Join(currentUser.HomeDir, resourceStoragePath)
}

// AddDirectory 动态添加新目录
// 参数:
//   - dirName: string 要创建的目录路径
//
// 返回值：
//   - error: 如果目录创建失败，返回错误信息
func AddDirectory(dirName string) error {
	if dirName == "" {
		return errors.New("未指定目录")
	}

	// 创建目录，权限设置为0700,节点目录中保存私钥
	if err := os.MkdirAll(dirName, 0700); err != nil {
		logger.Errorf("创建目录失败: %v", err)
		return errors.Wrapf(err, "创建目录 %s", dirName)
	}

	logger.Debugf("目录添加成功: %s", dirName)
	return nil
}
