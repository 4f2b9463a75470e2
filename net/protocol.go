package net

import (
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/MatrixAI/Polykey-sub016/config"
	"github.com/MatrixAI/Polykey-sub016/dht"
	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/pb"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// Handler 是节点协议服务端需要的路由功能
type Handler interface {
	HandleFindNodeMessage(target kbucket.ID) ([]*pb.PeerDescriptor, error)
	AddNode(id kbucket.ID) error
}

// RegisterNodesProtocol 注册节点协议的处理函数。
// 每个流只承载一个请求和一个应答;发起请求的节点会被登记到元数据存储和路由表中。
//
// 参数:
//   - h: libp2p 主机实例,用于注册协议处理器
//   - handler: 路由功能,通常为 *dht.NodeDHT
//   - peers: 节点元数据存储
func RegisterNodesProtocol(h host.Host, handler Handler, peers dht.PeerStore) {
	h.SetStreamHandler(protocol.ID(config.NodesProtocol), func(s network.Stream) {
		remote := s.Conn().RemotePeer()

		// 1. 读取请求
		req := new(pb.Message)
		if err := ReadMessage(s, req); err != nil {
			logger.Errorf("读取来自节点 %s 的请求失败: %v", remote, err)
			_ = s.Reset()
			return
		}

		// 2. 构造应答
		resp, err := handleRequest(handler, req)
		if err != nil {
			logger.Errorf("处理来自节点 %s 的 %s 请求失败: %v", remote, req.GetType(), err)
			_ = s.Reset()
			return
		}

		// 3. 发送应答
		if err := WriteMessage(s, resp); err != nil {
			logger.Errorf("发送应答失败: %v", err)
			_ = s.Reset()
			return
		}
		_ = s.Close()

		// 4. 登记请求方
		remember(h, s, handler, peers)
		logger.Debugf("完成来自节点 %s 的 %s 请求", remote, req.GetType())
	})
}

// UnregisterNodesProtocol 移除节点协议的处理函数
func UnregisterNodesProtocol(h host.Host) {
	h.RemoveStreamHandler(protocol.ID(config.NodesProtocol))
}

// handleRequest 根据请求类型生成应答
func handleRequest(handler Handler, req *pb.Message) (*pb.Message, error) {
	switch req.GetType() {
	case pb.Message_PING:
		return &pb.Message{Type: pb.Message_PONG}, nil

	case pb.Message_FIND_NODE:
		closer, err := handler.HandleFindNodeMessage(req.GetKey())
		if err != nil {
			return nil, err
		}
		return &pb.Message{
			Type:        pb.Message_FIND_NODE,
			Key:         req.GetKey(),
			CloserPeers: closer,
		}, nil

	default:
		return nil, ErrUnexpectedMessage
	}
}

// remember 将流的对端写入元数据存储和路由表,失败只记录日志
func remember(h host.Host, s network.Stream, handler Handler, peers dht.PeerStore) {
	remote := s.Conn().RemotePeer()

	desc := &pb.PeerDescriptor{NodeId: []byte(remote)}
	// identify 得到的监听地址优先于连接地址
	for _, addr := range h.Peerstore().Addrs(remote) {
		desc.Addrs = append(desc.Addrs, addr.String())
	}
	if len(desc.Addrs) == 0 && s.Conn().RemoteMultiaddr() != nil {
		desc.Addrs = []string{s.Conn().RemoteMultiaddr().String()}
	}
	if pub := s.Conn().RemotePublicKey(); pub != nil {
		if raw, err := crypto.MarshalPublicKey(pub); err == nil {
			desc.PublicKey = raw
		}
	}

	// 只有在没有任何实时地址时才沿用已保存的地址
	if len(desc.Addrs) == 0 {
		if old, ok, err := peers.GetPeerInfo(NodeID(remote)); err == nil && ok {
			desc.Addrs = old.Addrs
		}
	}

	if err := peers.UpdatePeerStore(desc); err != nil {
		logger.Warnf("保存节点 %s 的元数据失败: %v", remote, err)
	}
	if err := handler.AddNode(NodeID(remote)); err != nil {
		logger.Warnf("将节点 %s 加入路由表失败: %v", remote, err)
	}
}
