// Package nodecfg 定义节点的配置选项
package nodecfg

import (
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
	"github.com/MatrixAI/Polykey-sub016/utils/paths"
)

// DefaultLookupTimeout 是一次完整网络查找的默认超时,管理接口与命令行共用
const DefaultLookupTimeout = 90 * time.Second

// Option 定义了一个函数类型，用于配置节点
type Option func(*Options) error

// Options 是用于创建节点的参数
type Options struct {
	rootPath       string        // 根路径
	inMemory       bool          // 是否使用内存数据库
	resetStore     bool          // 启动时是否清空已保存的节点元数据和路由表快照
	bucketSize     int           // 路由表桶的大小
	pingCount      int           // 桶满时存活探测的联系人数量
	rpcTimeout     time.Duration // 单次 RPC 超时
	lookupTimeout  time.Duration // 一次完整网络查找的超时
	listenAddrs    []string      // libp2p 监听地址
	bootstrapPeers []string      // 引导节点地址,带 /p2p 组件
	apiAddr        string        // 管理接口监听地址,为空时不启动
	logLevel       string        // 日志级别
	logFormat      string        // 日志格式
}

// DefaultOptions 设置一个推荐选项列表。
func DefaultOptions() *Options {
	return &Options{
		rootPath:      paths.ObtainRootPath(),            // 获取根路径
		bucketSize:    kbucket.DefaultBucketSize,         // 默认桶大小为20
		pingCount:     kbucket.DefaultPingCount,          // 默认探测3个旧联系人
		rpcTimeout:    10 * time.Second,                  // 默认RPC超时为10秒
		lookupTimeout: DefaultLookupTimeout,              // 默认查找超时为90秒
		listenAddrs:   []string{"/ip4/0.0.0.0/tcp/4001"}, // 默认监听所有网卡的4001端口
		apiAddr:       "127.0.0.1:7080",                  // 默认只在本机开放管理接口
		logLevel:      "info",
		logFormat:     logger.FormatText,
	}
}

// ApplyOptions 应用给定的选项到 Options 对象
// 参数:
//   - opts: 可变参数,包含多个选项函数
//
// 返回值:
//   - error: 应用选项过程中的错误信息
func (opt *Options) ApplyOptions(opts ...Option) error {
	for _, o := range opts {
		if err := o(opt); err != nil {
			return err
		}
	}
	return nil
}

// ApplyLogging 根据选项设置全局日志级别和格式
func (opt *Options) ApplyLogging() error {
	if err := logger.SetLevelString(opt.GetLogLevel()); err != nil {
		return err
	}
	return logger.SetFormat(opt.GetLogFormat())
}

// GetRootPath 获取根路径
// 返回值:
//   - string: 节点数据根路径
func (opt *Options) GetRootPath() string {
	return opt.rootPath
}

// GetPaths 获取根路径下的目录布局
func (opt *Options) GetPaths() paths.PathConfig {
	return paths.Resolve(opt.rootPath)
}

// GetInMemory 获取是否使用内存数据库
func (opt *Options) GetInMemory() bool {
	return opt.inMemory
}

// GetBucketSize 获取路由表桶的大小
// 返回值:
//   - int: 桶的大小,未设置时为默认值
func (opt *Options) GetBucketSize() int {
	if opt.bucketSize <= 0 {
		return kbucket.DefaultBucketSize
	}
	return opt.bucketSize
}

// GetPingCount 获取桶满时存活探测的联系人数量
func (opt *Options) GetPingCount() int {
	if opt.pingCount <= 0 {
		return kbucket.DefaultPingCount
	}
	return opt.pingCount
}

// GetRPCTimeout 获取单次 RPC 超时
func (opt *Options) GetRPCTimeout() time.Duration {
	return opt.rpcTimeout
}

// GetLookupTimeout 获取一次完整网络查找的超时
func (opt *Options) GetLookupTimeout() time.Duration {
	if opt.lookupTimeout <= 0 {
		return DefaultLookupTimeout
	}
	return opt.lookupTimeout
}

// GetResetStore 获取启动时是否清空已保存的数据
func (opt *Options) GetResetStore() bool {
	return opt.resetStore
}

// GetListenAddrs 获取 libp2p 监听地址
func (opt *Options) GetListenAddrs() []string {
	return opt.listenAddrs
}

// GetBootstrapPeers 获取引导节点地址
func (opt *Options) GetBootstrapPeers() []string {
	return opt.bootstrapPeers
}

// GetAPIAddr 获取管理接口监听地址
func (opt *Options) GetAPIAddr() string {
	return opt.apiAddr
}

// GetLogLevel 获取日志级别
func (opt *Options) GetLogLevel() string {
	if opt.logLevel == "" {
		return "info"
	}
	return opt.logLevel
}

// GetLogFormat 获取日志格式
func (opt *Options) GetLogFormat() string {
	if opt.logFormat == "" {
		return logger.FormatText
	}
	return opt.logFormat
}

// WithRootPath 设置根路径
// 参数:
//   - path string: 节点数据根路径
//
// 返回值:
//   - Option: 返回一个配置函数,用于设置根路径
func WithRootPath(path string) Option {
	return func(opt *Options) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("根路径不能为空")
		}
		opt.rootPath = path
		return nil
	}
}

// WithInMemory 设置是否使用内存数据库,测试和临时节点使用
func WithInMemory(inMemory bool) Option {
	return func(opt *Options) error {
		opt.inMemory = inMemory
		return nil
	}
}

// WithBucketSize 设置路由表桶的大小
// 参数:
//   - size int: 每个桶的容量
//
// 返回值:
//   - Option: 返回一个配置函数,用于设置桶的大小
func WithBucketSize(size int) Option {
	return func(opt *Options) error {
		if size <= 0 {
			return errors.Errorf("桶大小必须为正数: %d", size)
		}
		opt.bucketSize = size
		return nil
	}
}

// WithPingCount 设置桶满时存活探测的联系人数量
func WithPingCount(n int) Option {
	return func(opt *Options) error {
		if n <= 0 {
			return errors.Errorf("探测数量必须为正数: %d", n)
		}
		opt.pingCount = n
		return nil
	}
}

// WithRPCTimeout 设置单次 RPC 超时
func WithRPCTimeout(d time.Duration) Option {
	return func(opt *Options) error {
		if d <= 0 {
			return errors.Errorf("RPC 超时必须为正数: %s", d)
		}
		opt.rpcTimeout = d
		return nil
	}
}

// WithLookupTimeout 设置一次完整网络查找的超时
func WithLookupTimeout(d time.Duration) Option {
	return func(opt *Options) error {
		if d <= 0 {
			return errors.Errorf("查找超时必须为正数: %s", d)
		}
		opt.lookupTimeout = d
		return nil
	}
}

// WithResetStore 设置启动时清空已保存的节点元数据和路由表快照
func WithResetStore(reset bool) Option {
	return func(opt *Options) error {
		opt.resetStore = reset
		return nil
	}
}

// WithListenAddrs 设置 libp2p 监听地址
// 参数:
//   - addrs ...string: multiaddr 格式的监听地址
//
// 返回值:
//   - Option: 返回一个配置函数,地址无法解析时返回错误
func WithListenAddrs(addrs ...string) Option {
	return func(opt *Options) error {
		for _, a := range addrs {
			if _, err := ma.NewMultiaddr(a); err != nil {
				return errors.Wrapf(err, "无效的监听地址 %q", a)
			}
		}
		opt.listenAddrs = append([]string(nil), addrs...)
		return nil
	}
}

// WithBootstrapPeers 设置引导节点地址
// 参数:
//   - addrs ...string: 带有 /p2p 组件的 multiaddr
//
// 返回值:
//   - Option: 返回一个配置函数,地址无法解析时返回错误
func WithBootstrapPeers(addrs ...string) Option {
	return func(opt *Options) error {
		for _, a := range addrs {
			if _, err := peer.AddrInfoFromString(a); err != nil {
				return errors.Wrapf(err, "无效的引导节点地址 %q", a)
			}
		}
		opt.bootstrapPeers = append([]string(nil), addrs...)
		return nil
	}
}

// WithAPIAddr 设置管理接口监听地址,空字符串表示不启动管理接口
func WithAPIAddr(addr string) Option {
	return func(opt *Options) error {
		opt.apiAddr = addr
		return nil
	}
}

// WithLogLevel 设置日志级别
func WithLogLevel(level string) Option {
	return func(opt *Options) error {
		if _, err := logrus.ParseLevel(level); err != nil {
			return errors.Wrapf(err, "无效的日志级别 %q", level)
		}
		opt.logLevel = level
		return nil
	}
}

// WithLogFormat 设置日志格式: text 或 json
func WithLogFormat(format string) Option {
	return func(opt *Options) error {
		switch strings.ToLower(format) {
		case logger.FormatText, logger.FormatJSON:
			opt.logFormat = strings.ToLower(format)
			return nil
		default:
			return errors.Errorf("未知的日志格式 %q", format)
		}
	}
}
