package net

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/pkg/errors"

	"github.com/MatrixAI/Polykey-sub016/config"
	"github.com/MatrixAI/Polykey-sub016/dht"
	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/pb"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// DefaultTimeout 是单次 RPC 往返的默认超时时间
const DefaultTimeout = 10 * time.Second

// Transport 基于 libp2p 主机实现 dht.ConnectionProvider。
// 连接前从节点元数据存储中读取对端地址并写入主机的地址簿。
type Transport struct {
	host    host.Host     // libp2p 主机
	peers   dht.PeerStore // 节点元数据存储
	timeout time.Duration // 单次 RPC 超时
}

// NewTransport 创建一个新的传输
//
// 参数:
//   - h: libp2p 主机
//   - peers: 节点元数据存储,用于查找对端地址
//   - timeout: 单次 RPC 超时,<= 0 时使用 DefaultTimeout
//
// 返回值:
//   - *Transport: 新创建的传输
func NewTransport(h host.Host, peers dht.PeerStore, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Transport{host: h, peers: peers, timeout: timeout}
}

// LocalID 返回本地主机对应的节点 ID,实现 dht.Identity
func (t *Transport) LocalID() kbucket.ID {
	return NodeID(t.host.ID())
}

// ConnectToPeer 建立到对端的连接。
//
// 参数:
//   - ctx: 上下文
//   - id: 对端节点 ID
//
// 返回值:
//   - dht.Connection: 到对端的逻辑连接
//   - error: 节点 ID 无效或连接失败时返回错误
func (t *Transport) ConnectToPeer(ctx context.Context, id kbucket.ID) (dht.Connection, error) {
	pid, err := PeerID(id)
	if err != nil {
		return nil, err
	}

	if t.host.Network().Connectedness(pid) != network.Connected {
		desc, ok, err := t.peers.GetPeerInfo(id)
		if err != nil {
			return nil, errors.Wrapf(err, "读取节点 %s 的元数据", pid)
		}
		if ok {
			ai, err := AddrInfoFromDescriptor(desc)
			if err == nil && len(ai.Addrs) > 0 {
				t.host.Peerstore().AddAddrs(pid, ai.Addrs, peerstore.TempAddrTTL)
			}
		}

		cctx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		if err := t.host.Connect(cctx, peer.AddrInfo{ID: pid}); err != nil {
			logger.Debugf("连接节点 %s 失败: %v", pid, err)
			return nil, errors.Wrapf(err, "连接节点 %s", pid)
		}
	}

	return &connection{t: t, pid: pid}, nil
}

// connection 是到某个对端的逻辑连接,每次 RPC 使用一个新的流
type connection struct {
	t   *Transport
	pid peer.ID
}

// PingNode 发送 PING 并等待 PONG
func (c *connection) PingNode(ctx context.Context) bool {
	resp, err := c.roundTrip(ctx, &pb.Message{Type: pb.Message_PING})
	if err != nil {
		logger.Debugf("ping 节点 %s 失败: %v", c.pid, err)
		return false
	}
	return resp.GetType() == pb.Message_PONG
}

// Client 返回对端的 RPC 客户端
func (c *connection) Client() dht.NodeClient {
	return c
}

// FindNode 向对端发送 FIND_NODE 请求
func (c *connection) FindNode(ctx context.Context, target kbucket.ID) ([]*pb.PeerDescriptor, error) {
	resp, err := c.roundTrip(ctx, &pb.Message{Type: pb.Message_FIND_NODE, Key: target})
	if err != nil {
		return nil, err
	}
	if resp.GetType() != pb.Message_FIND_NODE {
		return nil, errors.Wrapf(ErrUnexpectedMessage, "期望 FIND_NODE, 收到 %s", resp.GetType())
	}
	return resp.GetCloserPeers(), nil
}

// roundTrip 打开一个流,发送请求并读取一条应答
func (c *connection) roundTrip(ctx context.Context, req *pb.Message) (*pb.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.t.timeout)
	defer cancel()

	s, err := c.t.host.NewStream(ctx, c.pid, protocol.ID(config.NodesProtocol))
	if err != nil {
		return nil, errors.Wrapf(err, "打开到节点 %s 的流", c.pid)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}

	if err := WriteMessage(s, req); err != nil {
		_ = s.Reset()
		return nil, err
	}
	if err := s.CloseWrite(); err != nil {
		_ = s.Reset()
		return nil, errors.Wrap(err, "关闭写端")
	}

	resp := new(pb.Message)
	if err := ReadMessage(s, resp); err != nil {
		_ = s.Reset()
		return nil, err
	}
	_ = s.Close()
	return resp, nil
}
