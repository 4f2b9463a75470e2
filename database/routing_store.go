package database

import (
	"encoding/hex"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/MatrixAI/Polykey-sub016/config"
	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// RoutingSnapshot 是路由表内容的快照,按本地节点 ID 区分
type RoutingSnapshot struct {
	LocalID  []byte   // 本地节点 ID
	Contacts [][]byte // 路由表中的联系人
	SavedAt  int64    // 保存时间 (unix 秒)
}

// RoutingStore 保存和恢复路由表快照
type RoutingStore struct {
	db *badgerhold.Store // 数据库连接实例
}

// NewRoutingStore 创建一个新的 RoutingStore 实例
func NewRoutingStore(db *badgerhold.Store) *RoutingStore {
	return &RoutingStore{db: db}
}

func routingKey(local kbucket.ID) string {
	return config.RoutingKeyPrefix + hex.EncodeToString(local)
}

// SaveContacts 保存路由表快照,覆盖之前的快照
// 参数:
//   - local: kbucket.ID 本地节点 ID
//   - ids: []kbucket.ID 路由表中的联系人
//
// 返回值:
//   - error: 如果保存失败，返回错误信息
func (s *RoutingStore) SaveContacts(local kbucket.ID, ids []kbucket.ID) error {
	snapshot := &RoutingSnapshot{
		LocalID:  local,
		Contacts: make([][]byte, 0, len(ids)),
		SavedAt:  time.Now().Unix(),
	}
	for _, id := range ids {
		snapshot.Contacts = append(snapshot.Contacts, id)
	}

	if err := s.db.Upsert(routingKey(local), snapshot); err != nil {
		logger.Errorf("保存路由表快照失败: %v", err)
		return err
	}
	logger.Infof("保存路由表快照: %d 个联系人", len(ids))
	return nil
}

// LoadContacts 读取路由表快照
// 参数:
//   - local: kbucket.ID 本地节点 ID
//
// 返回值:
//   - []kbucket.ID: 快照中的联系人,没有快照时为空
//   - error: 如果读取失败，返回错误信息
func (s *RoutingStore) LoadContacts(local kbucket.ID) ([]kbucket.ID, error) {
	var snapshot RoutingSnapshot
	err := s.db.Get(routingKey(local), &snapshot)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		logger.Errorf("读取路由表快照失败: %v", err)
		return nil, err
	}

	ids := make([]kbucket.ID, 0, len(snapshot.Contacts))
	for _, c := range snapshot.Contacts {
		ids = append(ids, kbucket.ID(c))
	}
	return ids, nil
}
