package dht

import (
	"context"
	"testing"

	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// randomID 生成一个随机节点 ID
func randomID(t *testing.T) ID {
	t.Helper()
	id, err := kbucket.GenerateID()
	require.NoError(t, err)
	return id
}

// TestNewRequiresCollaborators 测试缺少协作者时创建失败
func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	id := staticIdentity(randomID(t))
	_, err := New(context.Background(), nil, &simProvider{net: newSimNetwork()}, newMemPeerStore())
	require.ErrorIs(t, err, ErrNilCollaborator)
	_, err = New(context.Background(), id, nil, newMemPeerStore())
	require.ErrorIs(t, err, ErrNilCollaborator)
	_, err = New(context.Background(), id, &simProvider{net: newSimNetwork()}, nil)
	require.ErrorIs(t, err, ErrNilCollaborator)
}

// TestNewInvalidOptions 测试无效选项
func TestNewInvalidOptions(t *testing.T) {
	t.Parallel()

	id := staticIdentity(randomID(t))
	_, err := New(context.Background(), id, &simProvider{net: newSimNetwork()}, newMemPeerStore(), WithBucketSize(0))
	require.Error(t, err)
	_, err = New(context.Background(), id, &simProvider{net: newSimNetwork()}, newMemPeerStore(), WithPingCount(-1))
	require.Error(t, err)
}

// TestAddNodeSkipsLocal 测试本地节点 ID 不会被加入路由表
func TestAddNodeSkipsLocal(t *testing.T) {
	t.Parallel()

	net := newSimNetwork()
	a := net.join(t, randomID(t))

	require.NoError(t, a.dht.AddNode(a.id))
	require.Zero(t, a.dht.RoutingTable().Count())

	ids := []ID{randomID(t), a.id, randomID(t)}
	require.NoError(t, a.dht.AddNodes(ids))
	require.Equal(t, 2, a.dht.RoutingTable().Count())
	require.False(t, a.dht.Status().AddingPeer)
}

// TestAddNodeError 测试路由表错误会传递给调用方并且状态被清除
func TestAddNodeError(t *testing.T) {
	t.Parallel()

	net := newSimNetwork()
	a := net.join(t, randomID(t))

	err := a.dht.AddNode(nil)
	require.ErrorIs(t, err, kbucket.ErrInvalidID)
	require.False(t, a.dht.Status().AddingPeer)

	err = a.dht.AddNodes([]ID{randomID(t), {}})
	require.True(t, errors.Is(err, kbucket.ErrInvalidID))
	require.Equal(t, 1, a.dht.RoutingTable().Count())
}

// TestDeleteNode 测试删除节点
func TestDeleteNode(t *testing.T) {
	t.Parallel()

	net := newSimNetwork()
	a := net.join(t, randomID(t))
	b := randomID(t)

	require.NoError(t, a.dht.AddNode(b))
	require.True(t, a.dht.DeleteNode(b))
	require.False(t, a.dht.DeleteNode(b))
	require.Zero(t, a.dht.RoutingTable().Count())
	require.False(t, a.dht.Status().DeletingPeer)
}

// TestClosestPeers 测试最近节点查询
func TestClosestPeers(t *testing.T) {
	t.Parallel()

	net := newSimNetwork()
	a := net.join(t, randomID(t))

	_, ok := a.dht.ClosestPeer(randomID(t))
	require.False(t, ok)

	ids := make([]ID, 0, 10)
	for i := 0; i < 10; i++ {
		ids = append(ids, randomID(t))
	}
	require.NoError(t, a.dht.AddNodes(ids))

	target := ids[3]
	closest, ok := a.dht.ClosestPeer(target)
	require.True(t, ok)
	require.True(t, closest.Equal(target))

	require.Len(t, a.dht.ClosestPeers(target, 4), 4)
	require.Len(t, a.dht.ClosestPeers(target, 0), 10)
}

// TestHandleFindNodeMessage 测试 FIND_NODE 应答
func TestHandleFindNodeMessage(t *testing.T) {
	t.Parallel()

	net := newSimNetwork()
	a := net.join(t, randomID(t))
	b := net.join(t, randomID(t))
	a.knows(t, b)

	// 没有元数据的节点
	bare := randomID(t)
	require.NoError(t, a.dht.AddNode(bare))

	got, err := a.dht.HandleFindNodeMessage(b.id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, []byte(b.id), got[0].NodeId)
	require.Equal(t, b.desc().Addrs, got[0].Addrs)
	require.Equal(t, []byte(bare), got[1].NodeId)
	require.Empty(t, got[1].Addrs)
}

// TestHandleFindNodeMessageLimit 测试应答最多包含 k 个节点
func TestHandleFindNodeMessageLimit(t *testing.T) {
	t.Parallel()

	net := newSimNetwork()
	a := net.join(t, randomID(t), WithBucketSize(4))
	for i := 0; i < 40; i++ {
		require.NoError(t, a.dht.AddNode(randomID(t)))
	}

	got, err := a.dht.HandleFindNodeMessage(randomID(t))
	require.NoError(t, err)
	require.Len(t, got, 4)
}

// TestCloseTwice 测试重复关闭
func TestCloseTwice(t *testing.T) {
	t.Parallel()

	d, err := New(context.Background(), staticIdentity(randomID(t)), &simProvider{net: newSimNetwork()}, newMemPeerStore())
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.ErrorIs(t, d.Close(), ErrClosed)
}

var _ PeerStore = (*memPeerStore)(nil)
var _ NodeClient = (*simConn)(nil)
