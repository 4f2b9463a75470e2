package dht

import (
	"context"

	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// onBucketFull 是注入到路由表的存活探测回调。
// 探测在后台协程中进行,路由表的 Add 调用不会等待网络往返。
func (d *NodeDHT) onBucketFull(old []kbucket.ID, candidate kbucket.ID) {
	d.lk.Lock()
	if d.closed {
		d.lk.Unlock()
		return
	}
	d.wg.Add(1)
	d.lk.Unlock()

	go func() {
		defer d.wg.Done()
		if err := d.PingNodeUpdate(d.ctx, old, candidate); err != nil {
			logger.Debugf("节点 %s 的存活探测中止: %v", candidate, err)
		}
	}()
}

// PingNodeUpdate 从旧到新依次探测 old 中的联系人:
// 第一个无响应的联系人被移除并由 candidate 取代,随后停止;全部存活时丢弃 candidate。
//
// 参数:
//   - ctx: 上下文,在探测之间检查并传递给每次 ping
//   - old: 需要探测的旧联系人,从旧到新
//   - candidate: 等待加入的新联系人
//
// 返回值:
//   - error: ctx 结束时返回 ctx 的错误,或加入 candidate 失败时返回错误
func (d *NodeDHT) PingNodeUpdate(ctx context.Context, old []ID, candidate ID) error {
	for _, id := range old {
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.alive(ctx, id) {
			continue
		}

		logger.Infof("节点 %s 无响应, 由节点 %s 取代", id, candidate)
		d.DeleteNode(id)
		return d.AddNode(candidate)
	}

	logger.Debugf("被探测的节点全部存活, 丢弃候选节点 %s", candidate)
	return nil
}

// alive 通过连接提供者 ping 一个联系人,连接失败视为不存活
func (d *NodeDHT) alive(ctx context.Context, id ID) bool {
	conn, err := d.conns.ConnectToPeer(ctx, id)
	if err != nil {
		logger.Debugf("连接节点 %s 失败: %v", id, err)
		return false
	}
	return conn.PingNode(ctx)
}
