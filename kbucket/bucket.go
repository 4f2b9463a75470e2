package kbucket

// node 是路由表二叉树中的一个节点。
// 叶子节点持有 contacts (可能为空切片但不为 nil),内部节点的 contacts 为 nil 且拥有 left/right 两个子节点。
// 所有对 node 的访问都在 KBucket 的锁保护下进行,因此 node 本身不需要任何锁。
type node struct {
	contacts  []ID  // 叶子节点中的联系人,按最近一次出现的时间从旧到新排列
	dontSplit bool  // 为 true 时该桶不再拆分,桶满后改为存活探测淘汰
	left      *node // 对应位为 0 的子树
	right     *node // 对应位为 1 的子树
}

// newNode 创建一个空的叶子节点
func newNode() *node {
	return &node{contacts: []ID{}}
}

// isLeaf 判断节点是否为叶子节点
func (n *node) isLeaf() bool {
	return n.contacts != nil
}

// indexOf 返回叶子节点中给定 ID 的下标,不存在时返回 -1
func (n *node) indexOf(id ID) int {
	for i, c := range n.contacts {
		if c.Equal(id) {
			return i
		}
	}
	return -1
}

// removeAt 删除叶子节点中下标为 i 的联系人
func (n *node) removeAt(i int) ID {
	c := n.contacts[i]
	n.contacts = append(n.contacts[:i:i], n.contacts[i+1:]...)
	return c
}

// determine 根据 id 在 bitIndex 位上的取值决定走向哪个子节点。
// 位为 0 返回 left,位为 1 返回 right。
// 长度不足以包含 bitIndex 的 id 一律放入低位分支 (left)。
//
// 参数:
//   - id: 要定位的节点 ID
//   - bitIndex: 当前考察的位下标,从最高位开始计数
//
// 返回值:
//   - *node: 对应的子节点
func (n *node) determine(id ID, bitIndex int) *node {
	// bitIndex>>3 是该位所在的字节下标,bitIndex%8 是字节内的偏移
	byteIndex := bitIndex >> 3
	bitInByte := bitIndex % 8

	// id 的字节数不足以描述 bitIndex 且存在非整字节的余位时,id 过短,放入低位桶。
	// 字节对齐但同样越界的情况也按低位处理,避免读越界。
	if len(id) <= byteIndex {
		return n.left
	}

	// 构造只有目标位为 1 的掩码,例如 bitInByte 为 3 时掩码为 00010000
	if id[byteIndex]&(1<<(7-bitInByte)) != 0 {
		return n.right
	}
	return n.left
}

// split 拆分叶子节点:按 bitIndex 位把已有联系人分配到两个新的子节点,
// 并把当前节点转换为内部节点 (contacts = nil)。
// 不包含本地节点 ID 的那一侧 ("远端") 被标记为 dontSplit。
//
// 参数:
//   - bitIndex: 用于分配联系人的位下标
//   - local: 本地节点 ID
func (n *node) split(bitIndex int, local ID) {
	n.left = newNode()
	n.right = newNode()

	for _, c := range n.contacts {
		child := n.determine(c, bitIndex)
		child.contacts = append(child.contacts, c)
	}

	n.contacts = nil

	// 本地节点落在哪一侧,另一侧就是远端
	if n.determine(local, bitIndex) == n.left {
		n.right.dontSplit = true
	} else {
		n.left.dontSplit = true
	}
}

// walk 从 n 开始定位 id 所在的叶子节点,返回叶子及其所在深度 (即下一个要考察的位下标)
func (n *node) walk(id ID) (*node, int) {
	bitIndex := 0
	cur := n
	for !cur.isLeaf() {
		cur = cur.determine(id, bitIndex)
		bitIndex++
	}
	return cur, bitIndex
}

// collect 把 n 下所有叶子中的联系人追加到 out
func (n *node) collect(out []ID) []ID {
	stack := []*node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.isLeaf() {
			out = append(out, cur.contacts...)
			continue
		}
		stack = append(stack, cur.right, cur.left)
	}
	return out
}

// count 统计 n 下所有叶子中的联系人数量
func (n *node) count() int {
	if n.isLeaf() {
		return len(n.contacts)
	}
	return n.left.count() + n.right.count()
}
