package kbucket

import (
	"bytes"
	"sort"
)

// idDistance 是一个辅助结构，用于按照与目标 ID 的距离对联系人进行排序。
type idDistance struct {
	id       ID     // 联系人 ID
	distance []byte // 联系人与目标之间的距离,大端序
}

// idDistanceSorter 实现 sort.Interface 接口，用于按照异或距离对联系人进行排序。
type idDistanceSorter struct {
	ids    []idDistance // 待排序的联系人列表
	target ID           // 排序的目标 ID，与目标距离最近的联系人将排在前面
}

// Len 返回 idDistanceSorter 中的联系人数量。
func (s *idDistanceSorter) Len() int { return len(s.ids) }

// Swap 交换 idDistanceSorter 中两个位置的联系人。
func (s *idDistanceSorter) Swap(a, b int) {
	s.ids[a], s.ids[b] = s.ids[b], s.ids[a]
}

// Less 比较两个位置的联系人与目标的距离大小。
//
// 参数:
//   - a: 第一个联系人的索引
//   - b: 第二个联系人的索引
//
// 返回值:
//   - bool: 如果第一个联系人距离更小，则返回 true
func (s *idDistanceSorter) Less(a, b int) bool {
	return lessDistance(s.ids[a].distance, s.ids[b].distance)
}

// appendID 将联系人添加到排序器的切片中，可能会导致切片不再有序。
func (s *idDistanceSorter) appendID(id ID) {
	s.ids = append(s.ids, idDistance{
		id:       id,
		distance: distanceBytes(s.target, id),
	})
}

// sort 按照与目标的距离升序排序,距离相同的联系人保持原有顺序。
func (s *idDistanceSorter) sort() {
	sort.Stable(s)
}

// lessDistance 比较两个大端序距离。
// 距离字节串的长度可能不同,较长的一方首先去掉前导零再比较,与 big.Int 的比较结果一致。
func lessDistance(a, b []byte) bool {
	a = bytes.TrimLeft(a, "\x00")
	b = bytes.TrimLeft(b, "\x00")
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return bytes.Compare(a, b) < 0
}

// SortClosestIDs 按照与目标的距离对给定的 ID 列表进行排序。
//
// 参数:
//   - ids: 待排序的 ID 列表
//   - target: 目标 ID
//
// 返回值:
//   - []ID: 排序后的 ID 列表(新切片)
func SortClosestIDs(ids []ID, target ID) []ID {
	sorter := idDistanceSorter{
		ids:    make([]idDistance, 0, len(ids)),
		target: target,
	}
	for _, id := range ids {
		sorter.appendID(id)
	}
	sorter.sort()

	out := make([]ID, 0, len(sorter.ids))
	for _, d := range sorter.ids {
		out = append(out, d.id)
	}
	return out
}
