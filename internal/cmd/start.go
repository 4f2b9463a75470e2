package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/libp2p/go-libp2p"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	polykey "github.com/MatrixAI/Polykey-sub016"
	"github.com/MatrixAI/Polykey-sub016/api"
	"github.com/MatrixAI/Polykey-sub016/nodecfg"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

var (
	rootPath   string
	configFile string
	listen     []string
	bootstrap  []string
	logLevel   string
	inMemory   bool
	reset      bool
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "启动节点",
	Args:  cobra.NoArgs,
	RunE:  startNode,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&rootPath, "root", "", "节点数据根路径")
	startCmd.Flags().StringVar(&configFile, "config", "", "YAML 配置文件")
	startCmd.Flags().StringSliceVar(&listen, "listen", nil, "libp2p 监听地址")
	startCmd.Flags().StringSliceVar(&bootstrap, "bootstrap", nil, "引导节点地址 (带 /p2p 组件)")
	startCmd.Flags().StringVar(&logLevel, "log-level", "", "日志级别")
	startCmd.Flags().BoolVar(&inMemory, "in-memory", false, "使用内存数据库")
	startCmd.Flags().BoolVar(&reset, "reset", false, "启动前清空已保存的节点元数据和路由表快照")
}

// startOptions 合并配置文件与命令行参数,命令行参数优先
func startOptions(cmd *cobra.Command) ([]nodecfg.Option, error) {
	var opts []nodecfg.Option
	if configFile != "" {
		fileOpts, err := nodecfg.LoadFile(configFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fileOpts...)
	}

	flags := cmd.Flags()
	if flags.Changed("root") {
		opts = append(opts, nodecfg.WithRootPath(rootPath))
	}
	if flags.Changed("listen") {
		opts = append(opts, nodecfg.WithListenAddrs(listen...))
	}
	if flags.Changed("bootstrap") {
		opts = append(opts, nodecfg.WithBootstrapPeers(bootstrap...))
	}
	if flags.Changed("api") {
		opts = append(opts, nodecfg.WithAPIAddr(apiAddr))
	}
	if flags.Changed("log-level") {
		opts = append(opts, nodecfg.WithLogLevel(logLevel))
	}
	if flags.Changed("in-memory") {
		opts = append(opts, nodecfg.WithInMemory(inMemory))
	}
	if flags.Changed("reset") {
		opts = append(opts, nodecfg.WithResetStore(reset))
	}
	return opts, nil
}

func startNode(cmd *cobra.Command, _ []string) error {
	opts, err := startOptions(cmd)
	if err != nil {
		return err
	}

	// 先解析一次配置以确定私钥位置和监听地址
	opt := nodecfg.DefaultOptions()
	if err := opt.ApplyOptions(opts...); err != nil {
		return err
	}

	priv, err := loadIdentity(opt.GetPaths().IdentityKeyFile())
	if err != nil {
		return err
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(opt.GetListenAddrs()...),
	)
	if err != nil {
		return err
	}
	defer h.Close()

	node, err := polykey.Open(h, opts...)
	if err != nil {
		return err
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.DefaultSection.Println("Polykey 节点")
	rows := pterm.TableData{{"节点 ID", h.ID().String()}}
	for _, addr := range h.Addrs() {
		rows = append(rows, []string{"监听地址", addr.String()})
	}
	if a := opt.GetAPIAddr(); a != "" {
		rows = append(rows, []string{"管理接口", "http://" + a})
	}
	if err := pterm.DefaultTable.WithData(rows).Render(); err != nil {
		logger.Warnf("输出节点信息失败: %v", err)
	}

	if len(opt.GetBootstrapPeers()) > 0 {
		if err := node.Bootstrap(ctx); err != nil {
			pterm.Warning.Printfln("引导失败: %v", err)
		} else {
			pterm.Success.Printfln("引导完成, 路由表中有 %d 个联系人", node.DHT().RoutingTable().Count())
		}
	}

	if a := opt.GetAPIAddr(); a != "" {
		return api.Runapi(ctx, node, a)
	}
	<-ctx.Done()
	return nil
}
