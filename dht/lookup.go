package dht

import (
	"bytes"
	"context"

	"github.com/MatrixAI/Polykey-sub016/pb"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
	"github.com/pkg/errors"
)

// FindNodeResult 是一次成功查找的结果
type FindNodeResult struct {
	AdjacentPeer *pb.PeerDescriptor // 返回目标信息的应答节点
	TargetPeer   *pb.PeerDescriptor // 找到的目标节点
}

// FindLocalPeer 只在本地检查目标节点,不发起任何网络请求。
// 只有当路由表中距离 target 最近的节点恰好是 target 时,才从元数据存储返回其描述。
//
// 参数:
//   - target: 目标节点 ID
//
// 返回值:
//   - *pb.PeerDescriptor: 目标节点的描述
//   - bool: 是否找到
//   - error: 读取元数据存储失败时返回错误
func (d *NodeDHT) FindLocalPeer(target ID) (*pb.PeerDescriptor, bool, error) {
	closest, ok := d.ClosestPeer(target)
	if !ok || !closest.Equal(target) {
		return nil, false, nil
	}

	desc, ok, err := d.peers.GetPeerInfo(target)
	if err != nil {
		logger.Errorf("读取节点 %s 的元数据失败: %v", target, err)
		return nil, false, err
	}
	if !ok {
		// 路由表中有该节点但没有元数据,仍返回只包含 ID 的描述
		return &pb.PeerDescriptor{NodeId: target}, true, nil
	}
	return desc, true, nil
}

// FindNode 在网络中查找目标节点。
// 按距离升序依次询问路由表中最近的 k 个候选节点 (不含目标和本地节点);
// 每个应答中的节点都会被加入路由表和元数据存储。
// 单个候选节点失败不会中止查找。
//
// 参数:
//   - ctx: 上下文,在候选节点之间检查并传递给每次 RPC
//   - target: 目标节点 ID
//
// 返回值:
//   - *FindNodeResult: 查找结果
//   - bool: 是否找到目标
//   - error: 路由表中没有任何候选节点时返回 ErrNoClosePeersFound,ctx 结束时返回 ctx 的错误
func (d *NodeDHT) FindNode(ctx context.Context, target ID) (*FindNodeResult, bool, error) {
	d.findingPeer.Store(true)
	defer d.findingPeer.Store(false)

	candidates := d.candidates(target)
	if len(candidates) == 0 {
		logger.Warnf("查找节点 %s 失败: 路由表中没有候选节点", target)
		return nil, false, ErrNoClosePeersFound
	}

	logger.Debugf("开始查找节点 %s, 候选节点数量: %d", target, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			logger.Warnf("查找节点 %s 被取消: %v", target, err)
			return nil, false, err
		}

		found, err := d.queryCandidate(ctx, candidate, target)
		if err != nil {
			logger.Debugf("候选节点 %s 查询失败, 跳过: %v", candidate, err)
			continue
		}
		if found == nil {
			continue
		}

		adjacent, ok, err := d.peers.GetPeerInfo(candidate)
		if err != nil || !ok {
			adjacent = &pb.PeerDescriptor{NodeId: candidate}
		}
		logger.Infof("通过节点 %s 找到目标节点 %s", candidate, target)
		return &FindNodeResult{AdjacentPeer: adjacent, TargetPeer: found}, true, nil
	}

	logger.Infof("查找节点 %s 结束: 所有候选节点均未返回目标", target)
	return nil, false, nil
}

// candidates 返回距离 target 最近的 k 个节点,排除 target 与本地节点
func (d *NodeDHT) candidates(target ID) []ID {
	closest := d.table.Closest(target, 0)
	k := d.table.BucketSize()

	out := make([]ID, 0, k)
	for _, id := range closest {
		if id.Equal(target) || id.Equal(d.local) {
			continue
		}
		out = append(out, id)
		if len(out) == k {
			break
		}
	}
	return out
}

// queryCandidate 向一个候选节点发送 FIND_NODE,并把返回的节点登记到本地。
// 返回值中的描述不为 nil 表示应答中包含目标节点。
func (d *NodeDHT) queryCandidate(ctx context.Context, candidate, target ID) (*pb.PeerDescriptor, error) {
	conn, err := d.conns.ConnectToPeer(ctx, candidate)
	if err != nil {
		return nil, errors.Wrapf(err, "连接节点 %s", candidate)
	}

	peers, err := conn.Client().FindNode(ctx, target)
	if err != nil {
		return nil, errors.Wrapf(err, "向节点 %s 发送 FIND_NODE", candidate)
	}

	var found *pb.PeerDescriptor
	for _, desc := range peers {
		if desc == nil || len(desc.NodeId) == 0 {
			continue
		}
		id := ID(desc.NodeId)
		if id.Equal(d.local) {
			continue
		}

		d.registerPeer(desc)

		if found == nil && bytes.Equal(desc.NodeId, target) {
			found = desc
		}
	}
	return found, nil
}

// registerPeer 将应答中的节点写入元数据存储和路由表,失败只记录日志
func (d *NodeDHT) registerPeer(desc *pb.PeerDescriptor) {
	id := ID(desc.NodeId)
	if d.shouldStore(desc) {
		if err := d.peers.UpdatePeerStore(desc); err != nil {
			logger.Warnf("保存节点 %s 的元数据失败: %v", id, err)
		}
	}
	if err := d.AddNode(id); err != nil {
		logger.Warnf("将节点 %s 加入路由表失败: %v", id, err)
	}
}

// shouldStore 判断描述是否需要写入元数据存储,只含 ID 的描述不覆盖已有记录
func (d *NodeDHT) shouldStore(desc *pb.PeerDescriptor) bool {
	if len(desc.Addrs) > 0 {
		return true
	}
	_, ok, err := d.peers.GetPeerInfo(ID(desc.NodeId))
	return err != nil || !ok
}

// HandleFindNodeMessage 应答其他节点的 FIND_NODE 请求:返回本地已知距离 target 最近的 k 个节点。
// 没有元数据的节点以只含 ID 的描述返回。
//
// 参数:
//   - target: 请求中的目标节点 ID
//
// 返回值:
//   - []*pb.PeerDescriptor: 按距离升序排列的节点描述
//   - error: 读取元数据存储失败时返回错误
func (d *NodeDHT) HandleFindNodeMessage(target ID) ([]*pb.PeerDescriptor, error) {
	closest := d.table.Closest(target, d.table.BucketSize())

	out := make([]*pb.PeerDescriptor, 0, len(closest))
	for _, id := range closest {
		desc, ok, err := d.peers.GetPeerInfo(id)
		if err != nil {
			logger.Errorf("读取节点 %s 的元数据失败: %v", id, err)
			return nil, err
		}
		if !ok {
			desc = &pb.PeerDescriptor{NodeId: id}
		}
		out = append(out, desc)
	}
	return out, nil
}
