// Package cmd 实现 polykey-node 命令行
package cmd

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/MatrixAI/Polykey-sub016/config"
)

// apiAddr 是 nodes/find 命令访问的管理接口地址
var apiAddr string

var rootCmd = &cobra.Command{
	Use:     "polykey-node",
	Short:   "Polykey 节点",
	Version: config.Version,
	Long: `Polykey 节点维护一个 Kademlia 风格的路由表,并通过 libp2p 应答其他节点的查找请求。
	启动节点:
	$ polykey-node start --bootstrap /ip4/1.2.3.4/tcp/4001/p2p/<id>`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "127.0.0.1:7080", "管理接口地址")
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
