package kbucket

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDistance 测试距离度量的基本性质
func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b ID
		want int64
	}{
		{"相同ID", ID{0x01, 0x02}, ID{0x01, 0x02}, 0},
		{"单字节", ID{0x0f}, ID{0xf0}, 0xff},
		{"多字节", ID{0x01, 0x00}, ID{0x00, 0x01}, 256 + 1},
		{"缺失字节按255计", ID{0x01}, ID{0x01, 0x00}, 255},
		{"缺失两个字节", ID{0x00}, ID{0x00, 0x00, 0x00}, 255*256 + 255},
		{"空ID", ID{}, ID{0x00}, 255},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, 0, Distance(tt.a, tt.b).Cmp(big.NewInt(tt.want)))
			// 距离是对称的
			require.Equal(t, 0, Distance(tt.b, tt.a).Cmp(big.NewInt(tt.want)))
		})
	}
}

// TestDistanceSelfIsZero 测试任意 ID 与自身距离为 0
func TestDistanceSelfIsZero(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		id, err := GenerateID()
		require.NoError(t, err)
		require.Zero(t, Distance(id, id).Sign())
	}
}

// TestDistanceUnequalLength 测试较短 ID 缺失的字节按最大差异计入
func TestDistanceUnequalLength(t *testing.T) {
	t.Parallel()

	a := ID{0x12, 0x34, 0x56}
	prefix := ID{0x12, 0x34}

	// 共同前缀完全相同,距离只来自缺失的最后一个字节
	require.Equal(t, 0, Distance(a, prefix).Cmp(big.NewInt(255)))

	// 缺失的字节在高位时距离按 255 放大
	short := ID{0x12}
	require.Equal(t, 0, Distance(a, short).Cmp(big.NewInt(255*256+255)))
}

// TestGenerateID 测试随机 ID 的长度和唯一性
func TestGenerateID(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := GenerateID()
		require.NoError(t, err)
		require.Len(t, id, 32)
		_, dup := seen[id.String()]
		require.False(t, dup)
		seen[id.String()] = struct{}{}
	}
}

// TestSortClosestIDs 测试排序结果与 Distance 的比较结果一致
func TestSortClosestIDs(t *testing.T) {
	t.Parallel()

	target, err := GenerateID()
	require.NoError(t, err)

	ids := make([]ID, 0, 64)
	for i := 0; i < 60; i++ {
		id, err := GenerateID()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	// 混入长度不同的 ID
	ids = append(ids, ID{0x01}, ID{}, append(ID(nil), target[:16]...))

	sorted := SortClosestIDs(ids, target)
	require.Len(t, sorted, len(ids))
	for i := 1; i < len(sorted); i++ {
		prev := Distance(sorted[i-1], target)
		cur := Distance(sorted[i], target)
		require.True(t, prev.Cmp(cur) <= 0, "位置 %d 的距离小于前一个", i)
	}
}
