package dht

import (
	"context"
	"sync"
	"testing"

	"github.com/MatrixAI/Polykey-sub016/pb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var errUnreachable = errors.New("节点不可达")

// staticIdentity 是固定 ID 的本地身份
type staticIdentity ID

func (s staticIdentity) LocalID() ID { return ID(s) }

// memPeerStore 是内存中的节点元数据存储
type memPeerStore struct {
	mu    sync.Mutex
	peers map[string]*pb.PeerDescriptor
}

func newMemPeerStore() *memPeerStore {
	return &memPeerStore{peers: make(map[string]*pb.PeerDescriptor)}
}

func (s *memPeerStore) GetPeerInfo(id ID) (*pb.PeerDescriptor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	desc, ok := s.peers[string(id)]
	return desc, ok, nil
}

func (s *memPeerStore) UpdatePeerStore(desc *pb.PeerDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[string(desc.NodeId)] = desc
	return nil
}

// simNetwork 是内存中模拟的节点网络,记录所有网络调用
type simNetwork struct {
	mu        sync.Mutex
	nodes     map[string]*NodeDHT
	dead      map[string]bool // 连接成功但不响应 ping
	down      map[string]bool // 无法连接
	connects  int
	findNodes []string // 被发送 FIND_NODE 的节点
	pings     []string // 被 ping 的节点
	onFind    func(to ID)
	onPing    func(to ID)
}

func newSimNetwork() *simNetwork {
	return &simNetwork{
		nodes: make(map[string]*NodeDHT),
		dead:  make(map[string]bool),
		down:  make(map[string]bool),
	}
}

// simProvider 是某个节点视角下的连接提供者
type simProvider struct {
	net *simNetwork
}

func (p *simProvider) ConnectToPeer(ctx context.Context, id ID) (Connection, error) {
	p.net.mu.Lock()
	defer p.net.mu.Unlock()
	p.net.connects++
	if p.net.down[string(id)] {
		return nil, errUnreachable
	}
	return &simConn{net: p.net, to: id}, nil
}

type simConn struct {
	net *simNetwork
	to  ID
}

func (c *simConn) PingNode(ctx context.Context) bool {
	c.net.mu.Lock()
	c.net.pings = append(c.net.pings, string(c.to))
	dead := c.net.dead[string(c.to)]
	onPing := c.net.onPing
	c.net.mu.Unlock()

	if onPing != nil {
		onPing(c.to)
	}
	return !dead
}

func (c *simConn) Client() NodeClient { return c }

func (c *simConn) FindNode(ctx context.Context, target ID) ([]*pb.PeerDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.net.mu.Lock()
	c.net.findNodes = append(c.net.findNodes, string(c.to))
	remote, ok := c.net.nodes[string(c.to)]
	dead := c.net.dead[string(c.to)]
	onFind := c.net.onFind
	c.net.mu.Unlock()

	if onFind != nil {
		onFind(c.to)
	}
	if !ok || dead {
		return nil, errUnreachable
	}
	return remote.HandleFindNodeMessage(target)
}

// simNode 是模拟网络中的一个节点
type simNode struct {
	id    ID
	dht   *NodeDHT
	store *memPeerStore
}

// desc 返回该节点的描述
func (n *simNode) desc() *pb.PeerDescriptor {
	return &pb.PeerDescriptor{
		NodeId: n.id,
		Addrs:  []string{"sim://" + n.id.String()},
	}
}

// join 创建一个加入模拟网络的节点
func (s *simNetwork) join(t *testing.T, id ID, opts ...Option) *simNode {
	t.Helper()

	store := newMemPeerStore()
	d, err := New(context.Background(), staticIdentity(id), &simProvider{net: s}, store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	s.mu.Lock()
	s.nodes[string(id)] = d
	s.mu.Unlock()

	return &simNode{id: id, dht: d, store: store}
}

// knows 让 n 在路由表和元数据存储中登记 other
func (n *simNode) knows(t *testing.T, others ...*simNode) {
	t.Helper()
	for _, o := range others {
		require.NoError(t, n.store.UpdatePeerStore(o.desc()))
		require.NoError(t, n.dht.AddNode(o.id))
	}
}

func (s *simNetwork) findNodeCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.findNodes...)
}

func (s *simNetwork) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}
