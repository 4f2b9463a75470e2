// Package net 实现节点协议的 libp2p 传输:消息编解码、连接提供者与协议处理器
package net

import (
	"io"

	"github.com/gogo/protobuf/proto"
	pool "github.com/libp2p/go-buffer-pool"
	"github.com/libp2p/go-msgio"
	"github.com/pkg/errors"

	"github.com/MatrixAI/Polykey-sub016/pb"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// MaxMessageSize 是单条消息的最大长度 (4MB)
const MaxMessageSize = 4 << 20

var (
	// ErrUnexpectedMessage 表示收到了与请求不匹配的消息类型
	ErrUnexpectedMessage = errors.New("收到意外的消息类型")
	// ErrMessageTooLarge 表示消息超出长度限制
	ErrMessageTooLarge = errors.New("消息长度超出限制")
)

// WriteMessage 将消息编码为一个 varint 长度前缀的帧写入 w
//
// 参数:
//   - w: 输出流
//   - msg: 要发送的消息
//
// 返回值:
//   - error: 序列化或写入失败时返回错误
func WriteMessage(w io.Writer, msg *pb.Message) error {
	size := proto.Size(msg)
	if size > MaxMessageSize {
		logger.Errorf("消息长度超出限制: %d > %d", size, MaxMessageSize)
		return ErrMessageTooLarge
	}

	buf := pool.Get(size)
	defer pool.Put(buf)

	b := proto.NewBuffer(buf[:0])
	if err := b.Marshal(msg); err != nil {
		logger.Errorf("序列化消息失败: %v", err)
		return errors.Wrap(err, "序列化消息")
	}

	if err := msgio.NewVarintWriter(w).WriteMsg(b.Bytes()); err != nil {
		logger.Errorf("写入消息失败: %v", err)
		return errors.Wrap(err, "写入消息")
	}
	return nil
}

// ReadMessage 从 r 读取一个帧并解码到 msg
//
// 参数:
//   - r: 输入流
//   - msg: 解码目标
//
// 返回值:
//   - error: 读取、长度检查或反序列化失败时返回错误
func ReadMessage(r io.Reader, msg *pb.Message) error {
	reader := msgio.NewVarintReaderSize(r, MaxMessageSize)

	data, err := reader.ReadMsg()
	if err != nil {
		if errors.Is(err, msgio.ErrMsgTooLarge) {
			logger.Errorf("消息长度超出限制: %d", MaxMessageSize)
			return ErrMessageTooLarge
		}
		return errors.Wrap(err, "读取消息")
	}
	defer reader.ReleaseMsg(data)

	msg.Reset()
	if err := proto.Unmarshal(data, msg); err != nil {
		logger.Errorf("反序列化消息失败: %v", err)
		return errors.Wrap(err, "反序列化消息")
	}
	return nil
}
