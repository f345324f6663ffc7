package network

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"e2echat/internal/chat"
)

// WSTransportConfig WebSocket 传输配置
type WSTransportConfig struct {
	URL          string        // 网关地址，如 ws://127.0.0.1:8080/ws
	UserID       string        // 本地用户ID
	DialTimeout  time.Duration // 连接和加入超时
	WriteTimeout time.Duration // 单帧写超时
	PingInterval time.Duration // 心跳间隔，0 表示不发送
	PongWait     time.Duration // 等待对端响应的最长时间
}

// DefaultWSTransportConfig 默认传输配置
func DefaultWSTransportConfig() *WSTransportConfig {
	return &WSTransportConfig{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
	}
}

// WSTransport 基于 WebSocket 网关的聊天传输
type WSTransport struct {
	config     WSTransportConfig
	conn       *websocket.Conn
	writeMu    sync.Mutex
	dispatcher *MessageDispatcher
	logger     Logger

	keys      listenerSet[chat.KeyOffer]
	envelopes listenerSet[chat.InboundEnvelope]
	typing    listenerSet[chat.TypingSignal]
	statuses  listenerSet[chat.StatusSignal]
	gwErrors  listenerSet[ErrorPayload]

	done      chan struct{}
	closeOnce sync.Once
}

// 确保 WSTransport 实现了 ChatTransport 接口
var _ chat.ChatTransport = (*WSTransport)(nil)

// DialWSTransport 连接网关并加入聊天
func DialWSTransport(ctx context.Context, config *WSTransportConfig, logger Logger) (*WSTransport, error) {
	if config == nil || config.URL == "" || config.UserID == "" {
		return nil, fmt.Errorf("网关地址和用户ID不能为空")
	}
	if logger == nil {
		logger = nopLogger{}
	}
	cfg := *config
	defaults := DefaultWSTransportConfig()
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("解析网关地址失败: %w", err)
	}
	q := u.Query()
	q.Set("userId", cfg.UserID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, &NetworkError{Code: ErrCodeConnectionFailed, Message: "连接网关失败", Cause: err}
	}

	t := newWSTransport(conn, cfg, logger)
	if err := t.join(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	go t.readLoop()
	if cfg.PingInterval > 0 {
		go t.pingLoop()
	}
	logger.Infof("已连接网关 %s，用户 %s", cfg.URL, cfg.UserID)
	return t, nil
}

func newWSTransport(conn *websocket.Conn, config WSTransportConfig, logger Logger) *WSTransport {
	t := &WSTransport{
		config:     config,
		conn:       conn,
		dispatcher: NewMessageDispatcher(logger),
		logger:     logger,
		done:       make(chan struct{}),
	}

	handlers := []HandlerFunc{
		{Event: EventPublicKey, Fn: t.handlePublicKey},
		{Event: EventReceiveMessage, Fn: t.handleReceiveMessage},
		{Event: EventUserTyping, Fn: t.handleUserTyping},
		{Event: EventEncryptionUpdate, Fn: t.handleEncryptionUpdate},
		{Event: EventError, Fn: t.handleError},
	}
	for _, h := range handlers {
		_ = t.dispatcher.RegisterHandler(h)
	}
	t.dispatcher.SetDefaultHandler(HandlerFunc{Event: "*", Fn: func(frame *Frame) error {
		logger.Debugf("忽略未知事件: %s", frame.Event)
		return nil
	}})
	return t
}

// join 发送 join_chat 并等待网关确认
func (t *WSTransport) join(ctx context.Context) error {
	if err := t.writeFrame(ctx, EventJoinChat, JoinPayload{UserID: t.config.UserID}); err != nil {
		return err
	}

	deadline := time.Now().Add(t.config.DialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetReadDeadline(deadline)
	defer t.conn.SetReadDeadline(time.Time{})

	var frame Frame
	if err := t.conn.ReadJSON(&frame); err != nil {
		return &NetworkError{Code: ErrCodeTimeout, Message: "等待加入确认失败", Cause: err}
	}
	switch frame.Event {
	case EventJoinChat:
		return nil
	case EventError:
		var p ErrorPayload
		_ = DecodePayload(frame.Data, &p)
		return &NetworkError{Code: p.Code, Message: "加入聊天被拒绝: " + p.Message}
	default:
		return &NetworkError{Code: ErrCodeInvalidMessage, Message: "意外的加入响应: " + frame.Event}
	}
}

// UserID 本地用户ID
func (t *WSTransport) UserID() string {
	return t.config.UserID
}

// Done 连接关闭时关闭的通道
func (t *WSTransport) Done() <-chan struct{} {
	return t.done
}

// Close 关闭连接
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = t.conn.Close()
		close(t.done)
	})
	return err
}

// SendPublicKey 发送公钥
func (t *WSTransport) SendPublicKey(ctx context.Context, peerID string, publicKey []byte, wantReply bool) error {
	return t.writeFrame(ctx, EventPublicKey, PublicKeyPayload{
		RecipientID: peerID,
		PublicKey:   chat.EncodePublicKey(publicKey),
		WantReply:   wantReply,
	})
}

// SendEnvelope 发送加密消息
func (t *WSTransport) SendEnvelope(ctx context.Context, peerID string, msg *chat.OutboundEnvelope) error {
	if msg == nil || msg.Envelope == nil {
		return fmt.Errorf("消息不能为空")
	}
	return t.writeFrame(ctx, EventSendMessage, MessagePayload{
		RecipientID: peerID,
		Message:     EnvelopeToWire(msg.ID, msg.Envelope, msg.Timestamp),
	})
}

// SendTyping 发送输入状态
func (t *WSTransport) SendTyping(ctx context.Context, peerID string, isTyping bool) error {
	return t.writeFrame(ctx, EventTyping, TypingPayload{RecipientID: peerID, IsTyping: isTyping})
}

// SendStatus 发送加密状态
func (t *WSTransport) SendStatus(ctx context.Context, peerID string, status chat.ConnectionStatus) error {
	return t.writeFrame(ctx, EventEncryptionStatus, StatusPayload{RecipientID: peerID, Status: string(status)})
}

// OnPublicKeyReceived 订阅公钥
func (t *WSTransport) OnPublicKeyReceived(fn func(chat.KeyOffer)) func() {
	return t.keys.add(fn)
}

// OnEnvelopeReceived 订阅加密消息
func (t *WSTransport) OnEnvelopeReceived(fn func(chat.InboundEnvelope)) func() {
	return t.envelopes.add(fn)
}

// OnTyping 订阅输入状态
func (t *WSTransport) OnTyping(fn func(chat.TypingSignal)) func() {
	return t.typing.add(fn)
}

// OnStatus 订阅对端加密状态
func (t *WSTransport) OnStatus(fn func(chat.StatusSignal)) func() {
	return t.statuses.add(fn)
}

// OnGatewayError 订阅网关错误通知
func (t *WSTransport) OnGatewayError(fn func(ErrorPayload)) func() {
	return t.gwErrors.add(fn)
}

func (t *WSTransport) writeFrame(ctx context.Context, event string, payload interface{}) error {
	select {
	case <-t.done:
		return &NetworkError{Code: ErrCodeConnectionFailed, Message: "连接已关闭"}
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(t.config.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteJSON(Frame{Event: event, Data: payload}); err != nil {
		return &NetworkError{Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("发送 %s 失败", event), Cause: err}
	}
	return nil
}

func (t *WSTransport) readLoop() {
	defer t.Close()

	_ = t.conn.SetReadDeadline(time.Now().Add(t.config.PongWait))
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(t.config.PongWait))
	})
	t.conn.SetPingHandler(func(data string) error {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.config.PongWait))
		err := t.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(t.config.WriteTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		var frame Frame
		if err := t.conn.ReadJSON(&frame); err != nil {
			select {
			case <-t.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					t.logger.Warnf("读取网关数据失败: %v", err)
				}
			}
			return
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(t.config.PongWait))

		if err := t.dispatcher.DispatchMessage(&frame); err != nil {
			t.logger.Warnf("处理事件 %s 失败: %v", frame.Event, err)
		}
	}
}

func (t *WSTransport) pingLoop() {
	ticker := time.NewTicker(t.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.config.WriteTimeout)); err != nil {
				t.logger.Debugf("发送心跳失败: %v", err)
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *WSTransport) handlePublicKey(frame *Frame) error {
	var p PublicKeyPayload
	if err := DecodePayload(frame.Data, &p); err != nil {
		return err
	}
	key, err := base64.StdEncoding.DecodeString(p.PublicKey)
	if err != nil {
		t.logger.Warnf("来自 %s 的公钥无法解码: %v", p.SenderID, err)
		key = nil
	}
	t.keys.emit(chat.KeyOffer{From: p.SenderID, To: p.RecipientID, PublicKey: key, WantReply: p.WantReply})
	return nil
}

func (t *WSTransport) handleReceiveMessage(frame *Frame) error {
	var p MessagePayload
	if err := DecodePayload(frame.Data, &p); err != nil {
		return err
	}
	env, err := p.Message.Envelope()
	t.envelopes.emit(chat.InboundEnvelope{
		ID:        p.Message.ID,
		From:      p.SenderID,
		To:        p.RecipientID,
		Envelope:  env,
		Timestamp: p.Message.Timestamp,
		Err:       err,
	})
	return nil
}

func (t *WSTransport) handleUserTyping(frame *Frame) error {
	var p TypingPayload
	if err := DecodePayload(frame.Data, &p); err != nil {
		return err
	}
	t.typing.emit(chat.TypingSignal{From: p.SenderID, To: p.RecipientID, IsTyping: p.IsTyping})
	return nil
}

func (t *WSTransport) handleEncryptionUpdate(frame *Frame) error {
	var p StatusPayload
	if err := DecodePayload(frame.Data, &p); err != nil {
		return err
	}
	t.statuses.emit(chat.StatusSignal{From: p.SenderID, To: p.RecipientID, Status: chat.ConnectionStatus(p.Status)})
	return nil
}

func (t *WSTransport) handleError(frame *Frame) error {
	var p ErrorPayload
	if err := DecodePayload(frame.Data, &p); err != nil {
		return err
	}
	t.logger.Warnf("网关错误 %d (%s): %s", p.Code, p.Event, p.Message)
	t.gwErrors.emit(p)
	return nil
}
