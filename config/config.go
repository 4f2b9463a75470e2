package config

// 版本信息
const (
	// Version 是节点软件的版本号
	Version = "0.1.0"
	// ProtocolVersion 是节点协议的版本号
	ProtocolVersion = "1.0.0"
)

// 流协议
const (
	// NodesProtocol 是节点路由协议: PING/PONG 与 FIND_NODE
	NodesProtocol = "/polykey/nodes/" + ProtocolVersion
)

// 数据库键前缀
const (
	// PeerKeyPrefix 是节点元数据记录的键前缀
	PeerKeyPrefix = "polykey@peer:"
	// RoutingKeyPrefix 是路由表快照记录的键前缀
	RoutingKeyPrefix = "polykey@routing:"
)
