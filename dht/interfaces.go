package dht

import (
	"context"

	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/pb"
)

// Identity 提供本地节点的身份
type Identity interface {
	// LocalID 返回本地节点 ID
	LocalID() kbucket.ID
}

// ConnectionProvider 打开 (或复用) 到对等节点的逻辑连接。
// 超时由实现方负责,NodeDHT 只传递 ctx。
type ConnectionProvider interface {
	ConnectToPeer(ctx context.Context, id kbucket.ID) (Connection, error)
}

// Connection 是到某个对等节点的逻辑连接
type Connection interface {
	// PingNode 探测对端是否存活
	PingNode(ctx context.Context) bool
	// Client 返回对端的 RPC 客户端
	Client() NodeClient
}

// NodeClient 是节点协议的 RPC 客户端
type NodeClient interface {
	// FindNode 请求对端返回其已知的距离 target 最近的节点
	FindNode(ctx context.Context, target kbucket.ID) ([]*pb.PeerDescriptor, error)
}

// PeerStore 保存节点 ID 到完整描述 (地址、公钥) 的映射
type PeerStore interface {
	// GetPeerInfo 获取节点描述,不存在时返回 (nil, false, nil)
	GetPeerInfo(id kbucket.ID) (*pb.PeerDescriptor, bool, error)
	// UpdatePeerStore 写入或更新节点描述
	UpdatePeerStore(desc *pb.PeerDescriptor) error
}
