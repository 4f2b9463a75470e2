package polykey

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MatrixAI/Polykey-sub016/dht"
	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/net"
	"github.com/MatrixAI/Polykey-sub016/nodecfg"
	"github.com/MatrixAI/Polykey-sub016/pb"
)

func newHost(t *testing.T) host.Host {
	t.Helper()
	h, err := libp2p.New(
		libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"),
		libp2p.DisableRelay(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func openNode(t *testing.T, h host.Host, opts ...nodecfg.Option) *Node {
	t.Helper()
	opts = append([]nodecfg.Option{
		nodecfg.WithInMemory(true),
		nodecfg.WithRootPath(t.TempDir()),
		nodecfg.WithRPCTimeout(5 * time.Second),
	}, opts...)
	n, err := Open(h, opts...)
	require.NoError(t, err)
	return n
}

func bootstrapAddr(h host.Host) string {
	return h.Addrs()[0].String() + "/p2p/" + h.ID().String()
}

func TestOpenRejectsInvalidOptions(t *testing.T) {
	_, err := Open(nil)
	require.Error(t, err)

	_, err = Open(newHost(t), nodecfg.WithBucketSize(0))
	require.Error(t, err)
}

// TestBootstrap 测试 B 通过引导节点 A 找到 C
func TestBootstrap(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ha, hb, hc := newHost(t), newHost(t), newHost(t)
	a := openNode(t, ha)
	defer a.Close()
	c := openNode(t, hc, nodecfg.WithBootstrapPeers(bootstrapAddr(ha)))
	defer c.Close()
	require.NoError(t, c.Bootstrap(ctx))

	// A 在应答时登记了 C
	require.Eventually(t, func() bool {
		return a.DHT().RoutingTable().Has(c.LocalID())
	}, 5*time.Second, 20*time.Millisecond)

	b := openNode(t, hb, nodecfg.WithBootstrapPeers(bootstrapAddr(ha)))
	defer b.Close()
	require.NoError(t, b.Bootstrap(ctx))
	require.True(t, b.DHT().RoutingTable().Has(a.LocalID()))
	require.True(t, b.DHT().RoutingTable().Has(c.LocalID()))

	desc, ok, err := b.DHT().FindLocalPeer(c.LocalID())
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, desc.Addrs)

	peers, err := b.Peers()
	require.NoError(t, err)
	require.Len(t, peers, 2)
}

// TestBootstrapWithoutPeers 测试没有引导节点时返回 ErrNoClosePeersFound
func TestBootstrapWithoutPeers(t *testing.T) {
	n := openNode(t, newHost(t))
	defer n.Close()

	err := n.Bootstrap(context.Background())
	require.ErrorIs(t, err, dht.ErrNoClosePeersFound)
}

func TestAddPeer(t *testing.T) {
	n := openNode(t, newHost(t))
	defer n.Close()

	require.ErrorIs(t, n.AddPeer(nil), kbucket.ErrInvalidID)

	id := kbucket.ID{0x01, 0x02, 0x03}
	require.NoError(t, n.AddPeer(&pb.PeerDescriptor{NodeId: id, Addrs: []string{"/ip4/127.0.0.1/tcp/1"}}))
	require.True(t, n.DHT().RoutingTable().Has(id))

	desc, ok, err := n.PeerStore().GetPeerInfo(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"/ip4/127.0.0.1/tcp/1"}, desc.Addrs)

	// 本地节点描述在启动时写入
	local, ok, err := n.PeerStore().GetPeerInfo(n.LocalID())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, net.LocalDescriptor(n.Host()).NodeId, local.NodeId)
}

// TestRoutingSnapshot 测试路由表在重启后从快照恢复
func TestRoutingSnapshot(t *testing.T) {
	h := newHost(t)
	root := t.TempDir()

	n, err := Open(h, nodecfg.WithRootPath(root))
	require.NoError(t, err)
	ids := []kbucket.ID{{0x10}, {0x20}, {0x30, 0x01}}
	for _, id := range ids {
		require.NoError(t, n.AddPeer(&pb.PeerDescriptor{NodeId: id}))
	}
	require.NoError(t, n.Close())

	n, err = Open(h, nodecfg.WithRootPath(root))
	require.NoError(t, err)
	defer n.Close()

	require.Equal(t, len(ids), n.DHT().RoutingTable().Count())
	for _, id := range ids {
		require.True(t, n.DHT().RoutingTable().Has(id))
	}
}

func TestRemovePeer(t *testing.T) {
	n := openNode(t, newHost(t))
	defer n.Close()

	id := kbucket.ID{0x05, 0x06}
	require.NoError(t, n.AddPeer(&pb.PeerDescriptor{NodeId: id, Addrs: []string{"/ip4/127.0.0.1/tcp/5"}}))

	ok, err := n.RemovePeer(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, n.DHT().RoutingTable().Has(id))
	_, found, err := n.PeerStore().GetPeerInfo(id)
	require.NoError(t, err)
	assert.False(t, found)

	ok, err = n.RemovePeer(id)
	require.NoError(t, err)
	assert.False(t, ok)

	// 本地节点的描述保留
	ok, err = n.RemovePeer(n.LocalID())
	require.NoError(t, err)
	assert.False(t, ok)
	_, found, err = n.PeerStore().GetPeerInfo(n.LocalID())
	require.NoError(t, err)
	assert.True(t, found)
}

func TestKnownPeers(t *testing.T) {
	n := openNode(t, newHost(t))
	defer n.Close()

	require.NoError(t, n.AddPeer(&pb.PeerDescriptor{NodeId: kbucket.ID{0x07}}))

	// 本地节点和新加入的节点
	all, err := n.KnownPeers(time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	recent, err := n.KnownPeers(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	future, err := n.KnownPeers(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, future)
}

// TestResetStore 测试启动时清空快照和元数据
func TestResetStore(t *testing.T) {
	h := newHost(t)
	root := t.TempDir()

	n, err := Open(h, nodecfg.WithRootPath(root))
	require.NoError(t, err)
	require.NoError(t, n.AddPeer(&pb.PeerDescriptor{NodeId: kbucket.ID{0x11}}))
	require.NoError(t, n.Close())

	n, err = Open(h, nodecfg.WithRootPath(root), nodecfg.WithResetStore(true))
	require.NoError(t, err)
	defer n.Close()

	assert.Zero(t, n.DHT().RoutingTable().Count())
	_, found, err := n.PeerStore().GetPeerInfo(kbucket.ID{0x11})
	require.NoError(t, err)
	assert.False(t, found)

	// 本地描述在清空后重新写入
	_, found, err = n.PeerStore().GetPeerInfo(n.LocalID())
	require.NoError(t, err)
	assert.True(t, found)
}
