// Package polykey 组装节点:数据库、节点元数据存储、libp2p 传输和 NodeDHT
package polykey

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/MatrixAI/Polykey-sub016/database"
	"github.com/MatrixAI/Polykey-sub016/dht"
	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/net"
	"github.com/MatrixAI/Polykey-sub016/nodecfg"
	"github.com/MatrixAI/Polykey-sub016/pb"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// Node 是一个完整的节点实例
type Node struct {
	ctx       context.Context        // 全局上下文
	opt       *nodecfg.Options       // 节点配置
	db        *database.DB           // 持久化存储
	host      host.Host              // libp2p网络主机实例
	peers     *database.PeerStore    // 节点元数据存储
	routing   *database.RoutingStore // 路由表快照存储
	transport *net.Transport         // 节点协议的客户端传输
	dht       *dht.NodeDHT           // 路由表与查找
	app       *fx.App                // fx 应用
}

// Open 创建并启动一个新的节点
// 参数:
//   - h: libp2p网络主机实例
//   - options: 可选的配置选项列表
//
// 返回值:
//   - *Node: 新创建的节点
//   - error: 如果创建过程中发生错误则返回错误信息
//
// 示例:
//
//	node, err := polykey.Open(h,
//		nodecfg.WithRootPath("/var/lib/polykey"),
//		nodecfg.WithBucketSize(20),
//	)
func Open(h host.Host, options ...nodecfg.Option) (*Node, error) {
	if h == nil {
		return nil, errors.New("未提供网络主机")
	}

	// 创建默认配置选项并应用所有提供的配置选项
	opt := nodecfg.DefaultOptions()
	if err := opt.ApplyOptions(options...); err != nil {
		logger.Errorf("应用选项失败: %v", err)
		return nil, err
	}
	if err := opt.ApplyLogging(); err != nil {
		logger.Errorf("设置日志失败: %v", err)
		return nil, err
	}

	// 初始化所有必要的路径
	if !opt.GetInMemory() {
		if err := opt.GetPaths().Initialize(); err != nil {
			logger.Errorf("初始化路径失败: %v", err)
			return nil, err
		}
	}

	node := &Node{
		ctx:  context.Background(),
		opt:  opt,
		host: h,
	}

	// 配置fx依赖注入选项
	opts := []fx.Option{
		fx.NopLogger,
		globalInit(node), // 全局初始化，提供基本依赖
		fx.Provide(
			database.NewDB,  // 创建数据库实例
			newPeerStore,    // 创建节点元数据存储
			newRoutingStore, // 创建路由表快照存储
			newTransport,    // 创建节点协议传输
			newNodeDHT,      // 创建 NodeDHT
		),
		fx.Invoke(
			resetStore,            // 按配置清空已保存的数据
			restoreRoutingTable,   // 恢复路由表快照
			storeLocalDescriptor,  // 保存本地节点描述
			registerNodesProtocol, // 注册节点协议的处理函数
		),
		fx.Populate(
			&node.db,
			&node.peers,
			&node.routing,
			&node.transport,
			&node.dht,
		),
	}

	// 创建并启动fx应用
	node.app = fx.New(opts...)
	if err := node.app.Err(); err != nil {
		logger.Errorf("构建节点失败: %v", err)
		return nil, err
	}
	if err := node.app.Start(node.ctx); err != nil {
		logger.Errorf("启动节点失败: %v", err)
		return nil, err
	}

	logger.Infof("节点已启动: %s", h.ID())
	return node, nil
}

// globalInit 执行全局初始化配置
func globalInit(node *Node) fx.Option {
	return fx.Provide(
		// 提供上下文
		func() context.Context {
			return node.ctx
		},
		// 提供配置选项
		func() *nodecfg.Options {
			return node.opt
		},
		// 提供网络主机
		func() host.Host {
			return node.host
		},
	)
}

func newPeerStore(db *database.DB) *database.PeerStore {
	return database.NewPeerStore(db.BadgerDB)
}

func newRoutingStore(db *database.DB) *database.RoutingStore {
	return database.NewRoutingStore(db.BadgerDB)
}

func newTransport(h host.Host, peers *database.PeerStore, opt *nodecfg.Options) *net.Transport {
	return net.NewTransport(h, peers, opt.GetRPCTimeout())
}

// newNodeDHT 创建 NodeDHT,并在应用停止时关闭
func newNodeDHT(ctx context.Context, lc fx.Lifecycle, tr *net.Transport, peers *database.PeerStore, opt *nodecfg.Options) (*dht.NodeDHT, error) {
	d, err := dht.New(ctx, tr, tr, peers,
		dht.WithBucketSize(opt.GetBucketSize()),
		dht.WithPingCount(opt.GetPingCount()),
	)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return d.Close()
		},
	})
	return d, nil
}

// resetStore 在配置要求时清空数据库,必须先于恢复路由表执行
func resetStore(db *database.DB, opt *nodecfg.Options) error {
	if !opt.GetResetStore() {
		return nil
	}
	if err := database.ClearDatabase(db.BadgerDB); err != nil {
		return err
	}
	logger.Warn("已清空保存的节点元数据和路由表快照")
	return nil
}

// restoreRoutingTable 启动时恢复路由表快照,停止时保存
func restoreRoutingTable(lc fx.Lifecycle, d *dht.NodeDHT, routing *database.RoutingStore) error {
	ids, err := routing.LoadContacts(d.LocalID())
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := d.AddNode(id); err != nil {
			logger.Warnf("恢复联系人 %s 失败: %v", id, err)
		}
	}
	if len(ids) > 0 {
		logger.Infof("从快照恢复了 %d 个联系人", len(ids))
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return routing.SaveContacts(d.LocalID(), d.RoutingTable().ToSlice())
		},
	})
	return nil
}

// storeLocalDescriptor 将本地节点描述写入元数据存储
func storeLocalDescriptor(h host.Host, peers *database.PeerStore) error {
	return peers.UpdatePeerStore(net.LocalDescriptor(h))
}

// registerNodesProtocol 注册节点协议,停止时移除
func registerNodesProtocol(lc fx.Lifecycle, h host.Host, d *dht.NodeDHT, peers *database.PeerStore) {
	net.RegisterNodesProtocol(h, d, peers)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			net.UnregisterNodesProtocol(h)
			return nil
		},
	})
}

// Bootstrap 连接配置中的引导节点,并查找本地节点 ID 以填充路由表
// 参数:
//   - ctx: 上下文
//
// 返回值:
//   - error: 没有可用的引导节点或查找被取消时返回错误
func (n *Node) Bootstrap(ctx context.Context) error {
	added := 0
	for _, addr := range n.opt.GetBootstrapPeers() {
		desc, err := net.ParseBootstrap(addr)
		if err != nil {
			logger.Warnf("解析引导节点地址 %s 失败: %v", addr, err)
			continue
		}
		if err := n.AddPeer(desc); err != nil {
			logger.Warnf("添加引导节点 %s 失败: %v", addr, err)
			continue
		}
		added++
	}
	logger.Infof("已添加 %d 个引导节点", added)

	_, _, err := n.dht.FindNode(ctx, n.LocalID())
	if err != nil {
		logger.Errorf("引导失败: %v", err)
		return err
	}
	logger.Infof("引导完成, 路由表中有 %d 个联系人", n.dht.RoutingTable().Count())
	return nil
}

// AddPeer 保存节点描述并将其加入路由表
// 参数:
//   - desc: 节点描述
//
// 返回值:
//   - error: 描述无效或保存失败时返回错误
func (n *Node) AddPeer(desc *pb.PeerDescriptor) error {
	if desc == nil || len(desc.GetNodeId()) == 0 {
		return kbucket.ErrInvalidID
	}
	if err := n.peers.UpdatePeerStore(desc); err != nil {
		return err
	}
	return n.dht.AddNode(desc.GetNodeId())
}

// Peers 返回路由表中的所有联系人及其描述,没有元数据的联系人只含 ID
func (n *Node) Peers() ([]*pb.PeerDescriptor, error) {
	ids := n.dht.RoutingTable().ToSlice()
	out := make([]*pb.PeerDescriptor, 0, len(ids))
	for _, id := range ids {
		desc, ok, err := n.peers.GetPeerInfo(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			desc = &pb.PeerDescriptor{NodeId: id}
		}
		out = append(out, desc)
	}
	return out, nil
}

// RemovePeer 从路由表中删除联系人,并删除其元数据。本地节点不会被删除。
// 参数:
//   - id: 节点 ID
//
// 返回值:
//   - bool: 联系人或其元数据存在并被删除时返回 true
//   - error: 删除元数据失败时返回错误
func (n *Node) RemovePeer(id kbucket.ID) (bool, error) {
	if len(id) == 0 || id.Equal(n.LocalID()) {
		return false, nil
	}

	removed := n.dht.DeleteNode(id)
	err := n.peers.DeletePeer(id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrPeerNotFound):
		return removed, nil
	default:
		return removed, err
	}
}

// KnownPeers 返回元数据存储中的所有节点描述,包括已不在路由表中的节点
// 参数:
//   - since: 只返回在该时间之后更新过的描述,零值表示全部
func (n *Node) KnownPeers(since time.Time) ([]*pb.PeerDescriptor, error) {
	if since.IsZero() {
		return n.peers.ListPeers()
	}
	return n.peers.ListPeersSince(since)
}

// Close 停止节点:保存路由表快照,关闭 NodeDHT 和数据库
func (n *Node) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := n.app.Stop(ctx); err != nil {
		logger.Errorf("停止节点失败: %v", err)
		return err
	}
	logger.Info("节点已停止")
	return nil
}

// LocalID 返回本地节点 ID
func (n *Node) LocalID() kbucket.ID {
	return n.dht.LocalID()
}

// Ctx 获取全局上下文
func (n *Node) Ctx() context.Context {
	return n.ctx
}

// Opt 获取配置选项
func (n *Node) Opt() *nodecfg.Options {
	return n.opt
}

// DB 获取数据库实例
func (n *Node) DB() *database.DB {
	return n.db
}

// Host 获取网络主机实例
func (n *Node) Host() host.Host {
	return n.host
}

// PeerStore 获取节点元数据存储
func (n *Node) PeerStore() *database.PeerStore {
	return n.peers
}

// DHT 获取 NodeDHT
func (n *Node) DHT() *dht.NodeDHT {
	return n.dht
}

// Transport 获取节点协议传输
func (n *Node) Transport() *net.Transport {
	return n.transport
}
