package net

import (
	"bytes"
	"testing"

	"github.com/libp2p/go-msgio"
	"github.com/stretchr/testify/require"

	"github.com/MatrixAI/Polykey-sub016/pb"
)

// TestCodecRoundTrip 测试多条消息依次写入同一个缓冲区后按顺序读出
func TestCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	req := &pb.Message{Type: pb.Message_FIND_NODE, Key: []byte{0x01, 0x02, 0x03}}
	resp := &pb.Message{
		Type: pb.Message_FIND_NODE,
		Key:  []byte{0x01, 0x02, 0x03},
		CloserPeers: []*pb.PeerDescriptor{
			{NodeId: []byte("peer-1"), Addrs: []string{"/ip4/127.0.0.1/tcp/4001"}},
		},
	}
	require.NoError(t, WriteMessage(&buf, req))
	require.NoError(t, WriteMessage(&buf, resp))

	got := new(pb.Message)
	require.NoError(t, ReadMessage(&buf, got))
	require.Equal(t, pb.Message_FIND_NODE, got.Type)
	require.Equal(t, req.Key, got.Key)
	require.Empty(t, got.CloserPeers)

	require.NoError(t, ReadMessage(&buf, got))
	require.Len(t, got.CloserPeers, 1)
	require.Equal(t, []byte("peer-1"), got.CloserPeers[0].NodeId)
}

// TestCodecEmptyMessage 测试空消息 (PING) 的编解码
func TestCodecEmptyMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, &pb.Message{Type: pb.Message_PING}))

	got := &pb.Message{Type: pb.Message_PONG, Key: []byte("stale")}
	require.NoError(t, ReadMessage(&buf, got))
	require.Equal(t, pb.Message_PING, got.Type)
	require.Nil(t, got.Key)
}

// TestCodecRejectsLargeFrame 测试超出长度限制的帧被拒绝
func TestCodecRejectsLargeFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, msgio.NewVarintWriter(&buf).WriteMsg(make([]byte, MaxMessageSize+1)))

	err := ReadMessage(&buf, new(pb.Message))
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

// TestCodecRejectsLargeMessage 测试写入超长消息时直接失败
func TestCodecRejectsLargeMessage(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMessage(&buf, &pb.Message{Key: make([]byte, MaxMessageSize)})
	require.ErrorIs(t, err, ErrMessageTooLarge)
	require.Zero(t, buf.Len())
}

// TestCodecTruncated 测试截断的帧返回错误
func TestCodecTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, &pb.Message{Key: []byte("truncated")}))
	data := buf.Bytes()

	err := ReadMessage(bytes.NewReader(data[:len(data)-2]), new(pb.Message))
	require.Error(t, err)
}
