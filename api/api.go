// Package api 提供节点的 HTTP 管理接口
package api

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"

	polykey "github.com/MatrixAI/Polykey-sub016"
	"github.com/MatrixAI/Polykey-sub016/api/pkg/gins/middleware"
	"github.com/MatrixAI/Polykey-sub016/api/pkg/routers"
	"github.com/MatrixAI/Polykey-sub016/dht"
	"github.com/MatrixAI/Polykey-sub016/kbucket"
	"github.com/MatrixAI/Polykey-sub016/net"
	"github.com/MatrixAI/Polykey-sub016/pb"
	"github.com/MatrixAI/Polykey-sub016/utils/logger"
)

// Version 是接口的路由前缀
const Version = "v1"

// NodeView 是节点描述在接口中的表示
type NodeView struct {
	ID        string   `json:"id"`                   // 节点 ID
	Addrs     []string `json:"addrs"`                // multiaddr 格式的地址
	PublicKey string   `json:"public_key,omitempty"` // base64 编码的公钥
}

// LookupView 是查找结果在接口中的表示
type LookupView struct {
	Target NodeView  `json:"target"`        // 目标节点
	Via    *NodeView `json:"via,omitempty"` // 返回目标的应答节点,本地命中时为空
	Local  bool      `json:"local"`         // 是否在本地路由表中命中
}

// StatusView 是节点状态在接口中的表示
type StatusView struct {
	ID       string     `json:"id"`       // 本地节点 ID
	Contacts int        `json:"contacts"` // 路由表中的联系人数量
	Status   dht.Status `json:"status"`   // 进行中的操作
}

// AddNodeRequest 是添加节点的请求体,addr 与 id 二选一
type AddNodeRequest struct {
	Addr  string   `json:"addr"`  // 带 /p2p 组件的 multiaddr
	ID    string   `json:"id"`    // 节点 ID
	Addrs []string `json:"addrs"` // 节点地址
}

// FormatNodeID 将节点 ID 格式化为字符串:能解析为 peer.ID 时使用 base58,否则使用十六进制
func FormatNodeID(id kbucket.ID) string {
	if pid, err := peer.IDFromBytes(id); err == nil {
		return pid.String()
	}
	return hex.EncodeToString(id)
}

// ParseNodeID 解析 FormatNodeID 生成的字符串
func ParseNodeID(s string) (kbucket.ID, error) {
	if pid, err := peer.Decode(s); err == nil {
		return net.NodeID(pid), nil
	}
	id, err := hex.DecodeString(s)
	if err != nil || len(id) == 0 {
		return nil, errors.Wrapf(kbucket.ErrInvalidID, "无法解析节点 ID %q", s)
	}
	return id, nil
}

// newNodeView 将节点描述转换为接口表示
func newNodeView(desc *pb.PeerDescriptor) NodeView {
	v := NodeView{
		ID:    FormatNodeID(desc.GetNodeId()),
		Addrs: desc.GetAddrs(),
	}
	if v.Addrs == nil {
		v.Addrs = []string{}
	}
	if len(desc.GetPublicKey()) > 0 {
		v.PublicKey = base64.StdEncoding.EncodeToString(desc.GetPublicKey())
	}
	return v
}

func recover400(c *gin.Context) {
	c.JSON(http.StatusNotFound, HandleResult(0, fmt.Errorf("接口地址不存在,请确认后再重试").Error()))
}

func recover500(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %v\n%s", r, debug.Stack())
			c.AbortWithStatusJSON(http.StatusInternalServerError, HandleResult(0, fmt.Errorf("接口异常,请确认后再重试").Error()))
		}
	}()
	c.Next()
}

// TimeoutParam 是查找接口中用于缩短查找超时的查询参数
const TimeoutParam = "timeout"

// handler 持有接口使用的节点
type handler struct {
	node    *polykey.Node
	timeout time.Duration // 查找超时上限
}

// NewRouter 创建管理接口的路由
// 参数:
//   - node: 已启动的节点
//
// 返回值:
//   - *gin.Engine: 注册了所有接口的路由
func NewRouter(node *polykey.Node) *gin.Engine {
	r := gin.New()

	// 解决跨域问题
	r.Use(routers.Cors())

	// log中间件
	r.Use(middleware.Logger())

	// 500错误
	r.Use(recover500)

	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	//处理404 请求
	r.NoRoute(recover400)

	h := &handler{node: node, timeout: node.Opt().GetLookupTimeout()}

	v1 := r.Group(Version)
	{
		v1.GET("/status", h.status)
		v1.GET("/nodes", h.listNodes)
		v1.POST("/nodes", h.addNode)
		v1.GET("/nodes/:id", h.findNode)
		v1.GET("/nodes/:id/closest", h.closestNodes)
		v1.DELETE("/nodes/:id", h.deleteNode)
		v1.GET("/peers", h.listPeers)
	}
	return r
}

// Runapi 运行api服务,直到 ctx 结束
// 参数:
//   - ctx: 上下文,结束时优雅关闭服务
//   - node: 已启动的节点
//   - addr: 监听地址
//
// 返回值:
//   - error: 监听失败时返回错误
func Runapi(ctx context.Context, node *polykey.Node, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(node),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("api 服务监听 %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Errorf("api 服务异常退出: %v", err)
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("关闭 api 服务")
		return srv.Shutdown(shutdownCtx)
	}
}

// nodeID 解析路径中的节点 ID,失败时写入 400 响应
func nodeID(c *gin.Context) (kbucket.ID, bool) {
	id, err := ParseNodeID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, HandleResult(0, err.Error()))
		return nil, false
	}
	return id, true
}

// describe 返回节点的描述,没有元数据时只含 ID
func (h *handler) describe(id kbucket.ID) (*pb.PeerDescriptor, error) {
	desc, ok, err := h.node.PeerStore().GetPeerInfo(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		desc = &pb.PeerDescriptor{NodeId: id}
	}
	return desc, nil
}

func (h *handler) status(c *gin.Context) {
	d := h.node.DHT()
	c.JSON(http.StatusOK, HandleResult(1, StatusView{
		ID:       FormatNodeID(h.node.LocalID()),
		Contacts: d.RoutingTable().Count(),
		Status:   d.Status(),
	}))
}

func (h *handler) listNodes(c *gin.Context) {
	peers, err := h.node.Peers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, HandleResult(0, err.Error()))
		return
	}

	views := make([]NodeView, 0, len(peers))
	for _, desc := range peers {
		views = append(views, newNodeView(desc))
	}
	c.JSON(http.StatusOK, HandleResult(1, views))
}

func (h *handler) addNode(c *gin.Context) {
	var req AddNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, HandleResult(0, "参数解析错误"))
		return
	}

	var desc *pb.PeerDescriptor
	switch {
	case req.Addr != "":
		d, err := net.ParseBootstrap(req.Addr)
		if err != nil {
			c.JSON(http.StatusBadRequest, HandleResult(0, err.Error()))
			return
		}
		desc = d
	case req.ID != "":
		id, err := ParseNodeID(req.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, HandleResult(0, err.Error()))
			return
		}
		desc = &pb.PeerDescriptor{NodeId: id, Addrs: req.Addrs}
	default:
		c.JSON(http.StatusBadRequest, HandleResult(0, "缺少 addr 或 id"))
		return
	}

	if err := h.node.AddPeer(desc); err != nil {
		c.JSON(http.StatusInternalServerError, HandleResult(0, err.Error()))
		return
	}
	c.JSON(http.StatusOK, HandleResult(1, newNodeView(desc)))
}

func (h *handler) findNode(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	timeout := h.timeout
	if s := c.Query(TimeoutParam); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, HandleResult(0, "timeout 必须为正的时长"))
			return
		}
		if d < timeout {
			timeout = d
		}
	}

	d := h.node.DHT()

	desc, found, err := d.FindLocalPeer(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, HandleResult(0, err.Error()))
		return
	}
	if found {
		c.JSON(http.StatusOK, HandleResult(1, LookupView{Target: newNodeView(desc), Local: true}))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()
	res, found, err := d.FindNode(ctx, id)
	switch {
	case errors.Is(err, dht.ErrNoClosePeersFound):
		c.JSON(http.StatusBadGateway, HandleResult(0, err.Error()))
	case err != nil:
		c.JSON(http.StatusGatewayTimeout, HandleResult(0, err.Error()))
	case !found:
		c.JSON(http.StatusNotFound, HandleResult(0, "未找到节点"))
	default:
		target := res.TargetPeer
		if len(target.GetAddrs()) == 0 {
			if stored, err := h.describe(id); err == nil {
				target = stored
			}
		}
		via := newNodeView(res.AdjacentPeer)
		c.JSON(http.StatusOK, HandleResult(1, LookupView{Target: newNodeView(target), Via: &via}))
	}
}

func (h *handler) closestNodes(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}

	count := h.node.Opt().GetBucketSize()
	if s := c.Query("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, HandleResult(0, "count 必须为整数"))
			return
		}
		count = n
	}

	ids := h.node.DHT().ClosestPeers(id, count)
	views := make([]NodeView, 0, len(ids))
	for _, cid := range ids {
		desc, err := h.describe(cid)
		if err != nil {
			c.JSON(http.StatusInternalServerError, HandleResult(0, err.Error()))
			return
		}
		views = append(views, newNodeView(desc))
	}
	c.JSON(http.StatusOK, HandleResult(1, views))
}

func (h *handler) deleteNode(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	removed, err := h.node.RemovePeer(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, HandleResult(0, err.Error()))
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, HandleResult(0, "没有该节点"))
		return
	}
	c.JSON(http.StatusOK, HandleResult(1, FormatNodeID(id)))
}

// listPeers 列出元数据存储中的节点,可用 since (RFC3339) 只列出之后更新过的节点
func (h *handler) listPeers(c *gin.Context) {
	var since time.Time
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, HandleResult(0, "since 必须为 RFC3339 时间"))
			return
		}
		since = t
	}

	peers, err := h.node.KnownPeers(since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, HandleResult(0, err.Error()))
		return
	}
	views := make([]NodeView, 0, len(peers))
	for _, desc := range peers {
		views = append(views, newNodeView(desc))
	}
	c.JSON(http.StatusOK, HandleResult(1, views))
}
