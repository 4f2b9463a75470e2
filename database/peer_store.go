package database

import (
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/timshannon/badgerhold/v4"

	"github.com/MatrixAI/Polykey-sub016/config"
	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/pb"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// ErrPeerNotFound 表示节点元数据不存在
var ErrPeerNotFound = errors.New("节点元数据不存在")

// PeerRecord 是节点描述在数据库中的存储形式
type PeerRecord struct {
	NodeId    []byte   // 节点 ID
	Addrs     []string // multiaddr 格式的地址
	PublicKey []byte   // 序列化的公钥
	UpdatedAt int64    // 最后更新时间 (unix 秒)
}

// descriptor 将记录转换为节点描述
func (r *PeerRecord) descriptor() *pb.PeerDescriptor {
	return &pb.PeerDescriptor{
		NodeId:    r.NodeId,
		Addrs:     r.Addrs,
		PublicKey: r.PublicKey,
	}
}

// peerKey 返回节点记录的键
func peerKey(id kbucket.ID) string {
	return config.PeerKeyPrefix + hex.EncodeToString(id)
}

// PeerStore 处理节点元数据的数据库操作
type PeerStore struct {
	db *badgerhold.Store // 数据库连接实例
}

// NewPeerStore 创建一个新的 PeerStore 实例
// 参数:
//   - db: *badgerhold.Store 数据库连接实例
//
// 返回值:
//   - *PeerStore: 新创建的 PeerStore 实例
func NewPeerStore(db *badgerhold.Store) *PeerStore {
	return &PeerStore{db: db}
}

// GetPeerInfo 根据节点ID获取节点描述
// 参数:
//   - id: kbucket.ID 节点 ID
//
// 返回值:
//   - *pb.PeerDescriptor: 获取到的节点描述
//   - bool: 记录是否存在
//   - error: 如果发生系统错误返回错误信息，记录不存在则返回nil
func (s *PeerStore) GetPeerInfo(id kbucket.ID) (*pb.PeerDescriptor, bool, error) {
	if len(id) == 0 {
		return nil, false, kbucket.ErrInvalidID
	}

	var record PeerRecord
	err := s.db.Get(peerKey(id), &record)
	if err == badgerhold.ErrNotFound {
		return nil, false, nil // 记录不存在，返回 (nil, false, nil)
	}
	if err != nil {
		logger.Errorf("获取节点元数据失败: %v", err)
		return nil, false, err // 系统错误，返回 (nil, false, err)
	}
	return record.descriptor(), true, nil
}

// UpdatePeerStore 写入或更新节点描述
// 参数:
//   - desc: *pb.PeerDescriptor 要保存的节点描述
//
// 返回值:
//   - error: 如果保存成功返回nil，否则返回错误信息
func (s *PeerStore) UpdatePeerStore(desc *pb.PeerDescriptor) error {
	if desc == nil || len(desc.GetNodeId()) == 0 {
		return kbucket.ErrInvalidID
	}

	record := &PeerRecord{
		NodeId:    desc.GetNodeId(),
		Addrs:     desc.GetAddrs(),
		PublicKey: desc.GetPublicKey(),
		UpdatedAt: time.Now().Unix(),
	}
	if err := s.db.Upsert(peerKey(record.NodeId), record); err != nil {
		logger.Errorf("保存节点元数据失败: %v", err)
		return err
	}
	logger.Debugf("保存节点元数据: %s", kbucket.ID(record.NodeId))
	return nil
}

// DeletePeer 删除节点描述
// 参数:
//   - id: kbucket.ID 节点 ID
//
// 返回值:
//   - error: 记录不存在时返回 ErrPeerNotFound
func (s *PeerStore) DeletePeer(id kbucket.ID) error {
	err := s.db.Delete(peerKey(id), &PeerRecord{})
	if err == badgerhold.ErrNotFound {
		return ErrPeerNotFound
	}
	if err != nil {
		logger.Errorf("删除节点元数据失败: %v", err)
		return err
	}
	logger.Debugf("删除节点元数据: %s", id)
	return nil
}

// ListPeers 列出所有节点描述
// 返回值:
//   - []*pb.PeerDescriptor: 所有节点描述
//   - error: 如果查询成功返回nil，否则返回错误信息
func (s *PeerStore) ListPeers() ([]*pb.PeerDescriptor, error) {
	var records []PeerRecord
	if err := s.db.Find(&records, nil); err != nil {
		logger.Errorf("列出节点元数据失败: %v", err)
		return nil, err
	}

	descs := make([]*pb.PeerDescriptor, 0, len(records))
	for i := range records {
		descs = append(descs, records[i].descriptor())
	}
	return descs, nil
}

// ListPeersSince 列出在给定时间之后更新过的节点描述
func (s *PeerStore) ListPeersSince(since time.Time) ([]*pb.PeerDescriptor, error) {
	var records []PeerRecord
	if err := s.db.Find(&records, badgerhold.Where("UpdatedAt").Ge(since.Unix())); err != nil {
		logger.Errorf("查询节点元数据失败: %v", err)
		return nil, err
	}

	descs := make([]*pb.PeerDescriptor, 0, len(records))
	for i := range records {
		descs = append(descs, records[i].descriptor())
	}
	return descs, nil
}
