package dht

import "github.com/pkg/errors"

var (
	// ErrNoClosePeersFound 表示路由表中没有任何可以查询的候选节点
	ErrNoClosePeersFound = errors.New("没有找到距离目标较近的节点")
	// ErrNilCollaborator 表示创建 NodeDHT 时缺少必需的协作者
	ErrNilCollaborator = errors.New("缺少必需的协作者")
	// ErrClosed 表示 NodeDHT 已经关闭
	ErrClosed = errors.New("NodeDHT 已关闭")
)
