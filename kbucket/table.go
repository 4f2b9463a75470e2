// Package kbucket implements a kademlia 'k-bucket' routing table as a binary trie.
package kbucket

import (
	"sync"

	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

const (
	// DefaultBucketSize 是每个叶子桶的默认容量 k
	DefaultBucketSize = 20
	// DefaultPingCount 是桶满时需要探测存活的最旧联系人数量
	DefaultPingCount = 3
)

// ArbiterFunc 在同一 ID 再次加入时决定保留哪一个联系人。
// 参数 incumbent 为已存在的联系人,candidate 为新加入的联系人。
type ArbiterFunc func(incumbent, candidate ID) ID

// LivenessChecker 在 dontSplit 桶已满时被调用。
// old 为桶中最旧的若干联系人 (从旧到新),candidate 为等待加入的联系人。
// 回调在路由表锁释放后执行,可以自由地回调 Remove/Add。
type LivenessChecker func(old []ID, candidate ID)

// LastWriteWins 是默认的仲裁策略:总是选择新加入的联系人
func LastWriteWins(_, candidate ID) ID {
	return candidate
}

// Options 是创建 KBucket 的参数
type Options struct {
	LocalID    ID              // 本地节点 ID,永远不会被插入路由表
	BucketSize int             // 每个叶子桶的容量,<= 0 时使用 DefaultBucketSize
	PingCount  int             // 存活探测数量,<= 0 时使用 DefaultPingCount
	Arbiter    ArbiterFunc     // 仲裁策略,为 nil 时使用 LastWriteWins
	Ping       LivenessChecker // 存活探测回调,为 nil 时新联系人在满桶处被直接丢弃
}

// KBucket 定义了基于二叉前缀树的路由表。
type KBucket struct {
	lk        sync.RWMutex // 保护整棵树的读写
	root      *node        // 树根,初始为空叶子
	local     ID           // 本地节点 ID
	size      int          // 桶容量 k
	pingCount int          // 桶满时探测的联系人数量
	arbiter   ArbiterFunc  // 仲裁策略
	ping      LivenessChecker

	// 通知函数,在锁释放后调用
	PeerAdded   func(ID)          // 联系人被添加时的通知函数
	PeerRemoved func(ID)          // 联系人被移除时的通知函数
	PeerUpdated func(old, cur ID) // 已存在的联系人再次加入时的通知函数,cur 为仲裁选中的联系人
}

// New 创建一个新的路由表。
//
// 参数:
//   - opts: 路由表参数,LocalID 不能为空
//
// 返回值:
//   - *KBucket: 新创建的路由表
//   - error: 本地 ID 为空时返回 ErrInvalidID
func New(opts Options) (*KBucket, error) {
	if len(opts.LocalID) == 0 {
		logger.Error("创建路由表失败: 本地节点 ID 为空")
		return nil, ErrInvalidID
	}

	kb := &KBucket{
		root:      newNode(),
		local:     append(ID(nil), opts.LocalID...),
		size:      opts.BucketSize,
		pingCount: opts.PingCount,
		arbiter:   opts.Arbiter,
		ping:      opts.Ping,

		PeerAdded:   func(ID) {},
		PeerRemoved: func(ID) {},
		PeerUpdated: func(ID, ID) {},
	}
	if kb.size <= 0 {
		kb.size = DefaultBucketSize
	}
	if kb.pingCount <= 0 {
		kb.pingCount = DefaultPingCount
	}
	if kb.arbiter == nil {
		kb.arbiter = LastWriteWins
	}

	logger.Debugf("路由表创建成功, 本地 ID: %s, 桶大小: %d", kb.local, kb.size)
	return kb, nil
}

// SetLivenessChecker 设置存活探测回调。
// 编排层通常需要先拿到路由表再构造回调,因此允许在创建后注入。
func (kb *KBucket) SetLivenessChecker(ping LivenessChecker) {
	kb.lk.Lock()
	defer kb.lk.Unlock()
	kb.ping = ping
}

// LocalID 返回本地节点 ID
func (kb *KBucket) LocalID() ID {
	return kb.local
}

// BucketSize 返回桶容量 k
func (kb *KBucket) BucketSize() int {
	return kb.size
}

// addResult 描述一次 add 的结果,用于在锁外触发回调
type addResult int

const (
	addIgnored addResult = iota // 本地 ID 或满桶且没有探测回调
	addAppended
	addUpdated
	addPinging
)

// Add 将联系人加入路由表。
// 已存在时按仲裁策略更新;叶子有空位时追加;叶子已满且为 dontSplit 或无法再拆分时触发存活探测回调,
// 路由表本身不会同步修改;否则拆分叶子后重试。
//
// 参数:
//   - id: 要加入的联系人 ID
//
// 返回值:
//   - error: ID 为空时返回 ErrInvalidID
func (kb *KBucket) Add(id ID) error {
	if len(id) == 0 {
		logger.Error("添加联系人失败: ID 为空")
		return ErrInvalidID
	}
	if id.Equal(kb.local) {
		logger.Debug("忽略本地节点 ID")
		return nil
	}
	id = append(ID(nil), id...)

	kb.lk.Lock()
	res, incumbent, selection, old, ping := kb.add(id)
	kb.lk.Unlock()

	switch res {
	case addAppended:
		kb.PeerAdded(id)
	case addUpdated:
		kb.PeerUpdated(incumbent, selection)
	case addPinging:
		logger.Debugf("桶已满, 探测 %d 个旧联系人, 候选: %s", len(old), id)
		ping(old, id)
	}
	return nil
}

// add 在持有写锁时执行插入,返回结果以及需要在锁外使用的数据
func (kb *KBucket) add(id ID) (addResult, ID, ID, []ID, LivenessChecker) {
	for {
		leaf, bitIndex := kb.root.walk(id)

		// 已存在:仲裁后移到尾部
		if i := leaf.indexOf(id); i >= 0 {
			incumbent := leaf.contacts[i]
			selection := kb.arbiter(incumbent, id)
			leaf.removeAt(i)
			leaf.contacts = append(leaf.contacts, selection)
			return addUpdated, incumbent, selection, nil, nil
		}

		if len(leaf.contacts) < kb.size {
			leaf.contacts = append(leaf.contacts, id)
			return addAppended, nil, nil, nil, nil
		}

		// 所有 ID 都已无法在该位上区分时按满桶处理,但不标记叶子,
		// 之后更长的 ID 仍可能在更深的位上拆分
		full := leaf.dontSplit
		if !full && !kb.splittable(leaf, id, bitIndex) {
			logger.Debugf("位 %d 超出所有联系人 ID 的长度, 本次不拆分", bitIndex)
			full = true
		}

		if full {
			if kb.ping == nil {
				return addIgnored, nil, nil, nil, nil
			}
			n := kb.pingCount
			if n > len(leaf.contacts) {
				n = len(leaf.contacts)
			}
			old := make([]ID, n)
			copy(old, leaf.contacts[:n])
			return addPinging, nil, nil, old, kb.ping
		}

		leaf.split(bitIndex, kb.local)
	}
}

// splittable 判断在 bitIndex 位上拆分叶子是否还能区分任何 ID
func (kb *KBucket) splittable(leaf *node, id ID, bitIndex int) bool {
	longest := len(id)
	if len(kb.local) > longest {
		longest = len(kb.local)
	}
	for _, c := range leaf.contacts {
		if len(c) > longest {
			longest = len(c)
		}
	}
	return bitIndex < longest*8
}

// Remove 从路由表中删除联系人。叶子不会被合并。
//
// 参数:
//   - id: 要删除的联系人 ID
//
// 返回值:
//   - bool: 联系人存在并被删除时返回 true
func (kb *KBucket) Remove(id ID) bool {
	if len(id) == 0 {
		return false
	}

	kb.lk.Lock()
	leaf, _ := kb.root.walk(id)
	i := leaf.indexOf(id)
	var removed ID
	if i >= 0 {
		removed = leaf.removeAt(i)
	}
	kb.lk.Unlock()

	if removed == nil {
		return false
	}
	kb.PeerRemoved(removed)
	return true
}

// Get 精确查找联系人。
//
// 返回值:
//   - ID: 存储的联系人
//   - bool: 是否找到
func (kb *KBucket) Get(id ID) (ID, bool) {
	if len(id) == 0 {
		return nil, false
	}

	kb.lk.RLock()
	defer kb.lk.RUnlock()

	leaf, _ := kb.root.walk(id)
	if i := leaf.indexOf(id); i >= 0 {
		return leaf.contacts[i], true
	}
	return nil, false
}

// Has 判断联系人是否在路由表中
func (kb *KBucket) Has(id ID) bool {
	_, ok := kb.Get(id)
	return ok
}

// Closest 返回与 id 距离最近的 count 个联系人,按距离升序排列。
//
// 参数:
//   - id: 目标 ID
//   - count: 返回的最大数量,<= 0 表示返回全部联系人
//
// 返回值:
//   - []ID: 按距离升序排列的联系人
func (kb *KBucket) Closest(id ID, count int) []ID {
	kb.lk.RLock()
	contacts := kb.root.collect(make([]ID, 0, kb.root.count()))
	kb.lk.RUnlock()

	sorted := SortClosestIDs(contacts, id)
	if count > 0 && len(sorted) > count {
		sorted = sorted[:count]
	}
	return sorted
}

// Count 返回所有叶子中的联系人总数
func (kb *KBucket) Count() int {
	kb.lk.RLock()
	defer kb.lk.RUnlock()
	return kb.root.count()
}

// ToSlice 返回路由表中的所有联系人,顺序不定
func (kb *KBucket) ToSlice() []ID {
	kb.lk.RLock()
	defer kb.lk.RUnlock()
	return kb.root.collect(nil)
}
