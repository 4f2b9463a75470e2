package api

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	polykey "github.com/MatrixAI/Polykey-sub016"
	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/net"
	"github.com/MatrixAI/Polykey-sub016/pb"
)

// descriptorOf 返回节点的本地描述
func descriptorOf(n *polykey.Node) *pb.PeerDescriptor {
	return net.LocalDescriptor(n.Host())
}

// newHostID 生成一个不属于任何节点的 ID
func newHostID(t *testing.T) kbucket.ID {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	require.NoError(t, err)
	pid, err := peer.IDFromPrivateKey(priv)
	require.NoError(t, err)
	return net.NodeID(pid)
}
