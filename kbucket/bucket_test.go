package kbucket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newInternal 创建一个带有两个空叶子的内部节点
func newInternal() *node {
	return &node{left: newNode(), right: newNode()}
}

// TestDetermine 测试按位选择子节点
func TestDetermine(t *testing.T) {
	t.Parallel()

	n := newInternal()

	tests := []struct {
		name     string
		id       ID
		bitIndex int
		right    bool
	}{
		{"最高位为1", ID{0x80}, 0, true},
		{"最高位为0", ID{0x7f}, 0, false},
		{"字节内偏移", ID{0x10}, 3, true},
		{"最低位", ID{0x01}, 7, true},
		{"第二个字节", ID{0x00, 0x40}, 9, true},
		{"第二个字节为0", ID{0xff, 0xbf}, 9, false},
		{"ID过短走左侧", ID{0xff}, 9, false},
		{"字节对齐越界走左侧", ID{0xff}, 8, false},
		{"空ID走左侧", ID{}, 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := n.determine(tt.id, tt.bitIndex)
			if tt.right {
				require.Same(t, n.right, got)
			} else {
				require.Same(t, n.left, got)
			}
		})
	}
}

// TestSplit 测试拆分后联系人不丢失,并且远端被标记为 dontSplit
func TestSplit(t *testing.T) {
	t.Parallel()

	leaf := newNode()
	for i := 0; i < 21; i++ {
		leaf.contacts = append(leaf.contacts, ID{byte(i * 12)})
	}
	before := leaf.count()

	leaf.split(0, ID{0x00})

	require.False(t, leaf.isLeaf())
	require.Nil(t, leaf.contacts)
	require.Equal(t, before, leaf.count())
	require.Equal(t, before, leaf.left.count()+leaf.right.count())

	// 本地 ID 最高位为 0,所以右侧为远端
	require.False(t, leaf.left.dontSplit)
	require.True(t, leaf.right.dontSplit)

	for _, c := range leaf.left.contacts {
		require.Zero(t, c[0]&0x80)
	}
	for _, c := range leaf.right.contacts {
		require.NotZero(t, c[0]&0x80)
	}
}

// TestSplitLocalOnRight 测试本地 ID 位于右侧时左侧成为远端
func TestSplitLocalOnRight(t *testing.T) {
	t.Parallel()

	leaf := newNode()
	leaf.contacts = append(leaf.contacts, ID{0x01}, ID{0x03}, ID{0x00})

	leaf.split(6, ID{0x02})

	require.True(t, leaf.left.dontSplit)
	require.False(t, leaf.right.dontSplit)
	require.Len(t, leaf.right.contacts, 1)
	require.Len(t, leaf.left.contacts, 2)
}

// TestRemoveAt 测试从叶子中删除联系人后仍是叶子
func TestRemoveAt(t *testing.T) {
	t.Parallel()

	leaf := newNode()
	leaf.contacts = append(leaf.contacts, ID{0x01}, ID{0x02}, ID{0x03})

	require.Equal(t, ID{0x02}, leaf.removeAt(1))
	require.Equal(t, []ID{{0x01}, {0x03}}, leaf.contacts)

	leaf.removeAt(0)
	leaf.removeAt(0)
	require.True(t, leaf.isLeaf())
	require.Equal(t, -1, leaf.indexOf(ID{0x01}))
}

// TestWalkAndCollect 测试定位叶子和收集联系人
func TestWalkAndCollect(t *testing.T) {
	t.Parallel()

	root := newNode()
	root.contacts = append(root.contacts, ID{0x80}, ID{0x40}, ID{0x00})
	root.split(0, ID{0x00})
	root.left.split(1, ID{0x00})

	leaf, depth := root.walk(ID{0x40})
	require.Equal(t, 2, depth)
	require.Equal(t, 0, leaf.indexOf(ID{0x40}))

	leaf, depth = root.walk(ID{0xc0})
	require.Equal(t, 1, depth)
	require.Same(t, root.right, leaf)

	require.ElementsMatch(t, []ID{{0x80}, {0x40}, {0x00}}, root.collect(nil))
	require.Equal(t, 3, root.count())
}
