package nodecfg

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileConfig 是 YAML 配置文件的结构,未出现的字段保持默认值
type FileConfig struct {
	RootPath       string   `yaml:"root_path"`
	InMemory       *bool    `yaml:"in_memory"`
	BucketSize     int      `yaml:"bucket_size"`
	PingCount      int      `yaml:"ping_count"`
	RPCTimeout     string   `yaml:"rpc_timeout"`
	LookupTimeout  string   `yaml:"lookup_timeout"`
	ListenAddrs    []string `yaml:"listen_addrs"`
	BootstrapPeers []string `yaml:"bootstrap_peers"`
	APIAddr        *string  `yaml:"api_addr"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`
}

// LoadFile 读取 YAML 配置文件并转换为选项列表
// 参数:
//   - path: 配置文件路径
//
// 返回值:
//   - []Option: 文件中出现的配置项对应的选项
//   - error: 读取或解析失败时返回错误
func LoadFile(path string) ([]Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "读取配置文件 %s", path)
	}
	return Parse(data)
}

// Parse 解析 YAML 格式的配置内容
func Parse(data []byte) ([]Option, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.Wrap(err, "解析配置文件")
	}
	return fc.Options()
}

// Options 将文件配置转换为选项列表
func (fc *FileConfig) Options() ([]Option, error) {
	var opts []Option

	if fc.RootPath != "" {
		opts = append(opts, WithRootPath(fc.RootPath))
	}
	if fc.InMemory != nil {
		opts = append(opts, WithInMemory(*fc.InMemory))
	}
	if fc.BucketSize != 0 {
		opts = append(opts, WithBucketSize(fc.BucketSize))
	}
	if fc.PingCount != 0 {
		opts = append(opts, WithPingCount(fc.PingCount))
	}
	if fc.RPCTimeout != "" {
		d, err := time.ParseDuration(fc.RPCTimeout)
		if err != nil {
			return nil, errors.Wrapf(err, "无效的 rpc_timeout %q", fc.RPCTimeout)
		}
		opts = append(opts, WithRPCTimeout(d))
	}
	if fc.LookupTimeout != "" {
		d, err := time.ParseDuration(fc.LookupTimeout)
		if err != nil {
			return nil, errors.Wrapf(err, "无效的 lookup_timeout %q", fc.LookupTimeout)
		}
		opts = append(opts, WithLookupTimeout(d))
	}
	if len(fc.ListenAddrs) > 0 {
		opts = append(opts, WithListenAddrs(fc.ListenAddrs...))
	}
	if len(fc.BootstrapPeers) > 0 {
		opts = append(opts, WithBootstrapPeers(fc.BootstrapPeers...))
	}
	if fc.APIAddr != nil {
		opts = append(opts, WithAPIAddr(*fc.APIAddr))
	}
	if fc.LogLevel != "" {
		opts = append(opts, WithLogLevel(fc.LogLevel))
	}
	if fc.LogFormat != "" {
		opts = append(opts, WithLogFormat(fc.LogFormat))
	}
	return opts, nil
}
