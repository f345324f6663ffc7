package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

// GatewayConfig 网关配置
type GatewayConfig struct {
	ReadLimit    int64         // 单帧最大字节数
	SendBuffer   int           // 每个客户端的发送队列长度
	WriteTimeout time.Duration // 单帧写超时
	PongWait     time.Duration // 等待客户端心跳响应的最长时间
	PingInterval time.Duration // 心跳间隔，需小于 PongWait
}

// DefaultGatewayConfig 默认网关配置
func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		ReadLimit:    64 * 1024,
		SendBuffer:   64,
		WriteTimeout: 10 * time.Second,
		PongWait:     60 * time.Second,
		PingInterval: 50 * time.Second,
	}
}

// Gateway WebSocket 中继网关
// 只按 recipientId 转发帧并写入发送者ID，不接触明文
type Gateway struct {
	config   GatewayConfig
	upgrader websocket.Upgrader
	clients  map[string]*gatewayClient
	mu       sync.RWMutex
	logger   Logger
	observer GatewayObserver
	metrics  http.Handler

	started time.Time
	relayed atomic.Int64
	dropCnt atomic.Int64
}

// gatewayClient 网关上的一个连接
type gatewayClient struct {
	gateway   *Gateway
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	done      chan struct{}
	closeOnce sync.Once
}

// NewGateway 创建网关，metrics 为空时不暴露 /metrics
func NewGateway(config *GatewayConfig, logger Logger, observer GatewayObserver, metrics http.Handler) *Gateway {
	if config == nil {
		config = DefaultGatewayConfig()
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Gateway{
		config: *config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*gatewayClient),
		logger:   logger,
		observer: observer,
		metrics:  metrics,
		started:  time.Now(),
	}
}

// Router 返回网关的 HTTP 路由
func (g *Gateway) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", g.handleHealth)
	r.Get("/ws", g.handleWS)
	if g.metrics != nil {
		r.Handle("/metrics", g.metrics)
	}
	return r
}

// ListenAndServe 启动网关，ctx 取消后优雅关闭
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           g.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Infof("网关监听 %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		g.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// ClientCount 当前在线用户数
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// IsOnline 检查用户是否在线
func (g *Gateway) IsOnline(userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.clients[userID]
	return ok
}

// GetStats 网关运行统计
func (g *Gateway) GetStats() map[string]interface{} {
	relayed := g.relayed.Load()
	dropped := g.dropCnt.Load()
	dropRate := 0.0
	if total := relayed + dropped; total > 0 {
		dropRate = float64(dropped) / float64(total)
	}
	return map[string]interface{}{
		"clients":        g.ClientCount(),
		"frames_relayed": relayed,
		"frames_dropped": dropped,
		"drop_rate":      dropRate,
		"uptime_seconds": time.Since(g.started).Seconds(),
	}
}

// Close 断开所有客户端
func (g *Gateway) Close() {
	g.mu.RLock()
	clients := make([]*gatewayClient, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	stats := g.GetStats()
	stats["status"] = "ok"
	_ = json.NewEncoder(w).Encode(stats)
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warnf("WebSocket 升级失败: %v", err)
		return
	}

	c := &gatewayClient{
		gateway: g,
		conn:    conn,
		send:    make(chan []byte, g.config.SendBuffer),
		done:    make(chan struct{}),
	}
	go c.writePump()
	c.readPump(r.URL.Query().Get("userId"))
}

// register 登记用户连接，同一用户的旧连接被替换
func (g *Gateway) register(c *gatewayClient, userID string) {
	g.mu.Lock()
	old := g.clients[userID]
	c.userID = userID
	g.clients[userID] = c
	g.mu.Unlock()

	if old != nil && old != c {
		g.logger.Infof("用户 %s 重新连接，关闭旧连接", userID)
		old.close()
		if g.observer != nil {
			g.observer.ClientDisconnected()
		}
	}
	if g.observer != nil && old != c {
		g.observer.ClientConnected()
	}
	g.logger.Infof("用户 %s 加入聊天", userID)
}

func (g *Gateway) unregister(c *gatewayClient) {
	if c.userID == "" {
		return
	}
	g.mu.Lock()
	current := g.clients[c.userID] == c
	if current {
		delete(g.clients, c.userID)
	}
	g.mu.Unlock()

	if current {
		if g.observer != nil {
			g.observer.ClientDisconnected()
		}
		g.logger.Infof("用户 %s 离开聊天", c.userID)
	}
}

// route 处理客户端发来的帧
func (g *Gateway) route(c *gatewayClient, frame *Frame, queryUser string) {
	if frame.Event == EventJoinChat {
		var p JoinPayload
		if err := DecodePayload(frame.Data, &p); err != nil || (p.UserID == "" && queryUser == "") {
			c.sendError(ErrCodeInvalidMessage, frame.Event, "缺少 userId")
			return
		}
		userID := p.UserID
		if userID == "" {
			userID = queryUser
		}
		if queryUser != "" && userID != queryUser {
			c.sendError(ErrCodeInvalidMessage, frame.Event, "userId 与连接参数不一致")
			return
		}
		if c.userID != "" && c.userID != userID {
			c.sendError(ErrCodeInvalidMessage, frame.Event, "连接已绑定其他用户")
			return
		}
		g.register(c, userID)
		c.sendFrame(EventJoinChat, JoinPayload{UserID: userID})
		return
	}

	if c.userID == "" {
		c.sendError(ErrCodeNotJoined, frame.Event, "请先发送 join_chat")
		g.dropped(frame.Event, "not_joined")
		return
	}

	switch frame.Event {
	case EventPublicKey:
		var p PublicKeyPayload
		if g.decode(c, frame, &p) {
			p.SenderID = c.userID
			g.relay(c, p.RecipientID, frame.Event, EventPublicKey, p)
		}
	case EventSendMessage:
		var p MessagePayload
		if g.decode(c, frame, &p) {
			p.SenderID = c.userID
			g.relay(c, p.RecipientID, frame.Event, EventReceiveMessage, p)
		}
	case EventTyping:
		var p TypingPayload
		if g.decode(c, frame, &p) {
			p.SenderID = c.userID
			g.relay(c, p.RecipientID, frame.Event, EventUserTyping, p)
		}
	case EventEncryptionStatus:
		var p StatusPayload
		if g.decode(c, frame, &p) {
			p.SenderID = c.userID
			g.relay(c, p.RecipientID, frame.Event, EventEncryptionUpdate, p)
		}
	default:
		c.sendError(ErrCodeHandlerNotFound, frame.Event, "未知事件")
		g.dropped(frame.Event, "unknown_event")
	}
}

func (g *Gateway) decode(c *gatewayClient, frame *Frame, out interface{}) bool {
	if err := DecodePayload(frame.Data, out); err != nil {
		c.sendError(ErrCodeInvalidMessage, frame.Event, err.Error())
		g.dropped(frame.Event, "invalid")
		return false
	}
	return true
}

// relay 将帧转发给接收者
func (g *Gateway) relay(from *gatewayClient, recipientID, inEvent, outEvent string, payload interface{}) {
	if recipientID == "" {
		from.sendError(ErrCodeInvalidMessage, inEvent, "缺少 recipientId")
		g.dropped(inEvent, "invalid")
		return
	}

	g.mu.RLock()
	target := g.clients[recipientID]
	g.mu.RUnlock()
	if target == nil {
		from.sendError(ErrCodeRecipientOffline, inEvent, "对端不在线: "+recipientID)
		g.dropped(inEvent, "offline")
		return
	}

	if !target.sendFrame(outEvent, payload) {
		g.logger.Warnf("发往 %s 的 %s 被丢弃：发送队列已满", recipientID, outEvent)
		g.dropped(inEvent, "backpressure")
		return
	}
	g.relayed.Inc()
	if g.observer != nil {
		g.observer.FrameRelayed(outEvent)
	}
}

func (g *Gateway) dropped(event, reason string) {
	g.dropCnt.Inc()
	if g.observer != nil {
		g.observer.FrameDropped(event, reason)
	}
}

func (c *gatewayClient) readPump(queryUser string) {
	defer func() {
		c.gateway.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(c.gateway.config.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.gateway.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.gateway.config.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.gateway.logger.Debugf("连接 %s 异常关闭: %v", c.userID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.gateway.config.PongWait))

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError(ErrCodeInvalidMessage, "", "无法解析帧")
			continue
		}
		c.gateway.route(c, &frame, queryUser)
	}
}

func (c *gatewayClient) writePump() {
	ticker := time.NewTicker(c.gateway.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.gateway.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.gateway.config.WriteTimeout)); err != nil {
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
	}
}

// sendFrame 将帧放入发送队列，队列满或连接已关闭时返回 false
func (c *gatewayClient) sendFrame(event string, payload interface{}) bool {
	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		c.gateway.logger.Errorf("序列化 %s 失败: %v", event, err)
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *gatewayClient) sendError(code int, event, message string) {
	c.sendFrame(EventError, ErrorPayload{Code: code, Event: event, Message: message})
}

func (c *gatewayClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
