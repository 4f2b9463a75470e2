// Package logger 提供节点全局使用的 logrus 日志实例
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Log 是全局日志实例
var Log *logrus.Logger

// 日志输出格式
const (
	FormatText = "text" // 文本格式
	FormatJSON = "json" // JSON 格式
)

// init 初始化全局日志实例
func init() {
	Log = logrus.New()
	Log.SetFormatter(textFormatter())
	Log.SetLevel(logrus.InfoLevel)
	Log.SetOutput(os.Stdout)
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

// SetLevel 设置日志级别
// 参数:
//   - level: 日志级别
func SetLevel(level logrus.Level) {
	Log.SetLevel(level)
}

// SetLevelString 按字符串设置日志级别
// 参数:
//   - level: 日志级别名称,例如 "debug"、"info"
//
// 返回值:
//   - error: 级别名称无法解析时返回错误
func SetLevelString(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "无效的日志级别 %q", level)
	}
	Log.SetLevel(lvl)
	return nil
}

// SetFormat 设置日志输出格式
// 参数:
//   - format: FormatText 或 FormatJSON
//
// 返回值:
//   - error: 格式未知时返回错误
func SetFormat(format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		Log.SetFormatter(textFormatter())
	case FormatJSON:
		Log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	default:
		return errors.Errorf("未知的日志格式 %q", format)
	}
	return nil
}

// SetOutput 设置日志输出
// 参数:
//   - output: 输出目标
func SetOutput(output io.Writer) {
	Log.SetOutput(output)
}

// GetLevel 获取当前的日志级别
func GetLevel() logrus.Level {
	return Log.GetLevel()
}

// whereAmI 返回调用者的包名、文件名和行号,格式为 [pkg/file.go:line]
func whereAmI(depth int) string {
	pc, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	// 函数全名形如 github.com/x/y/pkg.(*T).Method
	parts := strings.Split(fn.Name(), "/")
	pkgName := strings.SplitN(parts[len(parts)-1], ".", 2)[0]
	return fmt.Sprintf("[%s/%s:%d]", pkgName, filepath.Base(file), line)
}

// entry 创建带位置信息的日志条目,skip 为相对于导出函数的调用栈深度
func entry(skip int) *logrus.Entry {
	return Log.WithField("location", whereAmI(skip))
}

// Debug 记录调试级别的日志
func Debug(args ...interface{}) {
	entry(2).Debug(args...)
}

// Debugf 记录格式化的调试级别日志
func Debugf(format string, args ...interface{}) {
	entry(2).Debugf(format, args...)
}

// Info 记录信息级别的日志
func Info(args ...interface{}) {
	entry(2).Info(args...)
}

// Infof 记录格式化的信息级别日志
func Infof(format string, args ...interface{}) {
	entry(2).Infof(format, args...)
}

// Warn 记录警告级别的日志
func Warn(args ...interface{}) {
	entry(2).Warn(args...)
}

// Warnf 记录格式化的警告级别日志
func Warnf(format string, args ...interface{}) {
	entry(2).Warnf(format, args...)
}

// Error 记录错误级别的日志
func Error(args ...interface{}) {
	entry(2).Error(args...)
}

// Errorf 记录格式化的错误级别日志
func Errorf(format string, args ...interface{}) {
	entry(2).Errorf(format, args...)
}

// Fatalf 记录格式化的致命级别日志并退出进程
func Fatalf(format string, args ...interface{}) {
	entry(2).Fatalf(format, args...)
}

// WithField 创建一个带有单个字段的日志条目
// 参数:
//   - key: 字段键
//   - value: 字段值
//
// 返回值:
//   - *logrus.Entry: 带有位置与该字段的日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return entry(2).WithField(key, value)
}

// WithFields 创建一个带有多个字段的日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return entry(2).WithFields(fields)
}
