package net

import (
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"

	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/pb"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// NodeID 将 libp2p 节点 ID 转换为路由表中的节点 ID
func NodeID(id peer.ID) kbucket.ID {
	return kbucket.ID(id)
}

// PeerID 将路由表中的节点 ID 转换为 libp2p 节点 ID
//
// 返回值:
//   - peer.ID: libp2p 节点 ID
//   - error: 字节串不是合法的 multihash 时返回错误
func PeerID(id kbucket.ID) (peer.ID, error) {
	pid, err := peer.IDFromBytes(id)
	if err != nil {
		return "", errors.Wrapf(err, "无效的节点 ID %s", id)
	}
	return pid, nil
}

// LocalDescriptor 返回本地主机的节点描述
//
// 参数:
//   - h: libp2p 主机
//
// 返回值:
//   - *pb.PeerDescriptor: 包含节点 ID、监听地址与公钥的描述
func LocalDescriptor(h host.Host) *pb.PeerDescriptor {
	desc := DescriptorFromAddrInfo(peer.AddrInfo{ID: h.ID(), Addrs: h.Addrs()})

	if pub := h.Peerstore().PubKey(h.ID()); pub != nil {
		raw, err := crypto.MarshalPublicKey(pub)
		if err != nil {
			logger.Warnf("序列化本地公钥失败: %v", err)
		} else {
			desc.PublicKey = raw
		}
	}
	return desc
}

// DescriptorFromAddrInfo 将 libp2p 地址信息转换为节点描述
func DescriptorFromAddrInfo(ai peer.AddrInfo) *pb.PeerDescriptor {
	addrs := make([]string, 0, len(ai.Addrs))
	for _, a := range ai.Addrs {
		addrs = append(addrs, a.String())
	}
	return &pb.PeerDescriptor{
		NodeId: []byte(ai.ID),
		Addrs:  addrs,
	}
}

// AddrInfoFromDescriptor 将节点描述转换为 libp2p 地址信息,无法解析的地址被跳过
//
// 参数:
//   - desc: 节点描述
//
// 返回值:
//   - peer.AddrInfo: 地址信息
//   - error: 节点 ID 无效时返回错误
func AddrInfoFromDescriptor(desc *pb.PeerDescriptor) (peer.AddrInfo, error) {
	pid, err := PeerID(desc.GetNodeId())
	if err != nil {
		return peer.AddrInfo{}, err
	}

	ai := peer.AddrInfo{ID: pid}
	for _, s := range desc.GetAddrs() {
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			logger.Warnf("跳过节点 %s 的无效地址 %q: %v", pid, s, err)
			continue
		}
		ai.Addrs = append(ai.Addrs, a)
	}
	return ai, nil
}

// ParseBootstrap 解析形如 /ip4/1.2.3.4/tcp/4001/p2p/<peer-id> 的引导节点地址
//
// 参数:
//   - addr: 带有 /p2p 组件的 multiaddr 字符串
//
// 返回值:
//   - *pb.PeerDescriptor: 引导节点的描述
//   - error: 地址无法解析时返回错误
func ParseBootstrap(addr string) (*pb.PeerDescriptor, error) {
	ai, err := peer.AddrInfoFromString(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "无效的引导节点地址 %q", addr)
	}
	return DescriptorFromAddrInfo(*ai), nil
}
