// Package dht 实现节点路由的编排层:维护 KBucket 路由表、在桶满时进行存活探测淘汰、
// 应答 FIND_NODE 请求并驱动向网络发起的顺序查找。
package dht

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
	"github.com/pkg/errors"
)

// Option 定义了一个函数类型，用于配置 NodeDHT
type Option func(*options) error

type options struct {
	bucketSize int
	pingCount  int
	arbiter    kbucket.ArbiterFunc
}

// WithBucketSize 设置路由表的桶容量
func WithBucketSize(size int) Option {
	return func(o *options) error {
		if size <= 0 {
			return errors.Errorf("桶容量必须为正数: %d", size)
		}
		o.bucketSize = size
		return nil
	}
}

// WithPingCount 设置桶满时探测的旧联系人数量
func WithPingCount(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return errors.Errorf("探测数量必须为正数: %d", n)
		}
		o.pingCount = n
		return nil
	}
}

// WithArbiter 设置同一联系人重复加入时的仲裁策略
func WithArbiter(arbiter kbucket.ArbiterFunc) Option {
	return func(o *options) error {
		o.arbiter = arbiter
		return nil
	}
}

// Status 是 NodeDHT 的进行中状态快照,只用于观测,不提供互斥
type Status struct {
	AddingPeer   bool `json:"adding_peer"`
	FindingPeer  bool `json:"finding_peer"`
	DeletingPeer bool `json:"deleting_peer"`
}

// NodeDHT 包装一个 KBucket 路由表并负责插入淘汰策略和网络查找
type NodeDHT struct {
	ctx    context.Context    // NodeDHT 的上下文,关闭时取消
	cancel context.CancelFunc // 取消上下文的函数
	wg     sync.WaitGroup     // 跟踪后台存活探测
	lk     sync.Mutex         // 保护 closed 与 wg.Add
	closed bool

	local ID
	table *kbucket.KBucket
	conns ConnectionProvider
	peers PeerStore

	addingPeer   atomic.Bool
	findingPeer  atomic.Bool
	deletingPeer atomic.Bool
}

// ID 是 kbucket.ID 的别名,便于调用方只引入 dht 包
type ID = kbucket.ID

// New 创建一个新的 NodeDHT,并把存活探测回调注入到其路由表中。
//
// 参数:
//   - ctx: 父上下文,取消后后台探测随之停止
//   - identity: 本地节点身份
//   - conns: 连接提供者
//   - peers: 节点元数据存储
//   - opts: 可选配置
//
// 返回值:
//   - *NodeDHT: 新创建的 NodeDHT
//   - error: 参数无效时返回错误
func New(ctx context.Context, identity Identity, conns ConnectionProvider, peers PeerStore, opts ...Option) (*NodeDHT, error) {
	if identity == nil || conns == nil || peers == nil {
		logger.Error("创建 NodeDHT 失败: 缺少协作者")
		return nil, ErrNilCollaborator
	}

	o := &options{
		bucketSize: kbucket.DefaultBucketSize,
		pingCount:  kbucket.DefaultPingCount,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			logger.Errorf("应用 NodeDHT 选项失败: %v", err)
			return nil, err
		}
	}

	local := identity.LocalID()
	table, err := kbucket.New(kbucket.Options{
		LocalID:    local,
		BucketSize: o.bucketSize,
		PingCount:  o.pingCount,
		Arbiter:    o.arbiter,
	})
	if err != nil {
		logger.Errorf("创建路由表失败: %v", err)
		return nil, err
	}

	d := &NodeDHT{
		local: local,
		table: table,
		conns: conns,
		peers: peers,
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	table.SetLivenessChecker(d.onBucketFull)

	logger.Infof("NodeDHT 已创建, 本地 ID: %s", local)
	return d, nil
}

// Close 取消 NodeDHT 的上下文并等待后台存活探测结束
func (d *NodeDHT) Close() error {
	d.lk.Lock()
	if d.closed {
		d.lk.Unlock()
		return ErrClosed
	}
	d.closed = true
	d.lk.Unlock()

	d.cancel()
	d.wg.Wait()
	logger.Info("NodeDHT 已关闭")
	return nil
}

// LocalID 返回本地节点 ID
func (d *NodeDHT) LocalID() ID {
	return d.local
}

// RoutingTable 返回底层路由表
func (d *NodeDHT) RoutingTable() *kbucket.KBucket {
	return d.table
}

// Status 返回当前的进行中状态
func (d *NodeDHT) Status() Status {
	return Status{
		AddingPeer:   d.addingPeer.Load(),
		FindingPeer:  d.findingPeer.Load(),
		DeletingPeer: d.deletingPeer.Load(),
	}
}

// AddNode 将节点加入路由表,本地节点 ID 被忽略。
//
// 参数:
//   - id: 要加入的节点 ID
//
// 返回值:
//   - error: 路由表拒绝该 ID 时返回错误
func (d *NodeDHT) AddNode(id ID) error {
	d.addingPeer.Store(true)
	defer d.addingPeer.Store(false)

	return d.addNode(id)
}

func (d *NodeDHT) addNode(id ID) error {
	if id.Equal(d.local) {
		return nil
	}
	if err := d.table.Add(id); err != nil {
		logger.Errorf("加入节点 %s 失败: %v", id, err)
		return errors.Wrapf(err, "加入节点 %s", id)
	}
	return nil
}

// AddNodes 依次将多个节点加入路由表,遇到第一个错误即返回。
func (d *NodeDHT) AddNodes(ids []ID) error {
	d.addingPeer.Store(true)
	defer d.addingPeer.Store(false)

	for _, id := range ids {
		if err := d.addNode(id); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNode 从路由表中删除节点
//
// 返回值:
//   - bool: 节点存在并被删除时返回 true
func (d *NodeDHT) DeleteNode(id ID) bool {
	d.deletingPeer.Store(true)
	defer d.deletingPeer.Store(false)

	removed := d.table.Remove(id)
	if removed {
		logger.Debugf("已从路由表删除节点 %s", id)
	}
	return removed
}

// ClosestPeer 返回路由表中距离 id 最近的节点
func (d *NodeDHT) ClosestPeer(id ID) (ID, bool) {
	closest := d.table.Closest(id, 1)
	if len(closest) == 0 {
		return nil, false
	}
	return closest[0], true
}

// ClosestPeers 返回路由表中距离 id 最近的 count 个节点,count <= 0 表示全部
func (d *NodeDHT) ClosestPeers(id ID, count int) []ID {
	return d.table.Closest(id, count)
}
