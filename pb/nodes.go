// Package pb 定义节点协议的线上消息,结构与 nodes.proto 保持一致。
package pb

import (
	"github.com/gogo/protobuf/proto"
)

// Message_MessageType 是节点协议的消息类型
type Message_MessageType int32

const (
	Message_PING      Message_MessageType = 0
	Message_PONG      Message_MessageType = 1
	Message_FIND_NODE Message_MessageType = 2
)

var Message_MessageType_name = map[int32]string{
	0: "PING",
	1: "PONG",
	2: "FIND_NODE",
}

var Message_MessageType_value = map[string]int32{
	"PING":      0,
	"PONG":      1,
	"FIND_NODE": 2,
}

func (x Message_MessageType) String() string {
	return proto.EnumName(Message_MessageType_name, int32(x))
}

// PeerDescriptor 描述一个对等节点:节点 ID、网络地址与公钥
type PeerDescriptor struct {
	NodeId    []byte   `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	Addrs     []string `protobuf:"bytes,2,rep,name=addrs,proto3" json:"addrs,omitempty"`
	PublicKey []byte   `protobuf:"bytes,3,opt,name=public_key,json=publicKey,proto3" json:"public_key,omitempty"`
}

func (m *PeerDescriptor) Reset()         { *m = PeerDescriptor{} }
func (m *PeerDescriptor) String() string { return proto.CompactTextString(m) }
func (*PeerDescriptor) ProtoMessage()    {}

func (m *PeerDescriptor) GetNodeId() []byte {
	if m != nil {
		return m.NodeId
	}
	return nil
}

func (m *PeerDescriptor) GetAddrs() []string {
	if m != nil {
		return m.Addrs
	}
	return nil
}

func (m *PeerDescriptor) GetPublicKey() []byte {
	if m != nil {
		return m.PublicKey
	}
	return nil
}

// Message 是节点协议上传输的唯一消息类型
type Message struct {
	Type        Message_MessageType `protobuf:"varint,1,opt,name=type,proto3,enum=polykey.nodes.Message_MessageType" json:"type,omitempty"`
	Key         []byte              `protobuf:"bytes,2,opt,name=key,proto3" json:"key,omitempty"`
	CloserPeers []*PeerDescriptor   `protobuf:"bytes,3,rep,name=closer_peers,json=closerPeers,proto3" json:"closer_peers,omitempty"`
}

func (m *Message) Reset()         { *m = Message{} }
func (m *Message) String() string { return proto.CompactTextString(m) }
func (*Message) ProtoMessage()    {}

func (m *Message) GetType() Message_MessageType {
	if m != nil {
		return m.Type
	}
	return Message_PING
}

func (m *Message) GetKey() []byte {
	if m != nil {
		return m.Key
	}
	return nil
}

func (m *Message) GetCloserPeers() []*PeerDescriptor {
	if m != nil {
		return m.CloserPeers
	}
	return nil
}

func init() {
	proto.RegisterEnum("polykey.nodes.Message_MessageType", Message_MessageType_name, Message_MessageType_value)
	proto.RegisterType((*PeerDescriptor)(nil), "polykey.nodes.PeerDescriptor")
	proto.RegisterType((*Message)(nil), "polykey.nodes.Message")
}
