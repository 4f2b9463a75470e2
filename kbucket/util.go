package kbucket

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"math/big"

	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
)

// ErrInvalidID 表示节点 ID 为空或无法放入路由表
var ErrInvalidID = errors.New("无效的节点 ID")

// ID 是路由表中存储的节点标识符。
// 路由表只关心 ID 本身,地址与公钥等元数据由外部的对等节点存储维护。
type ID []byte

// String 返回 ID 的十六进制表示
func (id ID) String() string {
	return hex.EncodeToString(id)
}

// Equal 判断两个 ID 是否逐字节相等
func (id ID) Equal(other ID) bool {
	return bytes.Equal(id, other)
}

// Distance 计算两个 ID 之间的 XOR 距离。
// 距离按字节累加: distance = distance*256 + (a[i] ^ b[i]);
// 较短 ID 缺失的字节按最大差异 255 计入,因此长度不同的 ID 永远不会"接近"。
//
// 参数:
//   - a: 第一个 ID
//   - b: 第二个 ID
//
// 返回值:
//   - *big.Int: 两个 ID 之间的距离
func Distance(a, b ID) *big.Int {
	return new(big.Int).SetBytes(distanceBytes(a, b))
}

// distanceBytes 返回大端序的距离字节串,长度为较长 ID 的长度
func distanceBytes(a, b ID) []byte {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}

	d := make([]byte, len(long))
	for i := range short {
		d[i] = a[i] ^ b[i]
	}
	for i := len(short); i < len(long); i++ {
		d[i] = 0xff
	}
	return d
}

// GenerateID 生成一个随机的 256 位节点 ID (随机字节的 SHA-256)。
//
// 返回值:
//   - ID: 新生成的 ID
//   - error: 系统随机数生成器失败时返回错误,调用方不应继续
func GenerateID() (ID, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, "生成随机字节失败")
	}
	sum := sha256.Sum256(buf)
	return sum[:], nil
}
