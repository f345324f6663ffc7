package chat

import (
	"context"
	"time"
)

// KeyOffer 公钥通告
// WantReply 为 true 时，接收方应回复自己的公钥
type KeyOffer struct {
	From      string
	To        string
	PublicKey []byte
	WantReply bool
}

// InboundEnvelope 收到的加密消息
type InboundEnvelope struct {
	ID        string
	From      string
	To        string
	Envelope  *EncryptedEnvelope
	Timestamp int64
	Err       error // 传输层解码失败时非空
}

// OutboundEnvelope 待发送的加密消息
type OutboundEnvelope struct {
	ID        string
	Envelope  *EncryptedEnvelope
	Timestamp int64
}

// TypingSignal 输入状态信令（明文）
type TypingSignal struct {
	From     string
	To       string
	IsTyping bool
}

// StatusSignal 对端加密状态信令（明文）
type StatusSignal struct {
	From   string
	To     string
	Status ConnectionStatus
}

// ChatTransport 聊天传输层接口
// 传输层负责投递，不保证重试和顺序；On* 方法返回取消订阅函数
type ChatTransport interface {
	// SendPublicKey 发送本地公钥
	SendPublicKey(ctx context.Context, peerID string, publicKey []byte, wantReply bool) error

	// OnPublicKeyReceived 订阅公钥通告
	OnPublicKeyReceived(fn func(KeyOffer)) func()

	// SendEnvelope 发送加密信封
	SendEnvelope(ctx context.Context, peerID string, msg *OutboundEnvelope) error

	// OnEnvelopeReceived 订阅加密信封
	OnEnvelopeReceived(fn func(InboundEnvelope)) func()

	// SendTyping 发送输入状态
	SendTyping(ctx context.Context, peerID string, isTyping bool) error

	// OnTyping 订阅输入状态
	OnTyping(fn func(TypingSignal)) func()

	// SendStatus 发送加密状态
	SendStatus(ctx context.Context, peerID string, status ConnectionStatus) error

	// OnStatus 订阅对端加密状态
	OnStatus(fn func(StatusSignal)) func()
}

// MessageStoreInterface 消息存储接口，仅保存密文
type MessageStoreInterface interface {
	// AddMessage 添加消息
	AddMessage(msg *Message) error

	// GetMessages 获取两个用户之间的消息
	GetMessages(a, b string) []*Message

	// MarkSent 标记消息为已发送
	MarkSent(messageID string) error

	// MarkFailed 标记消息为失败
	MarkFailed(messageID string) error
}

// Logger 日志接口，*zap.SugaredLogger 满足该接口
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// SessionObserver 会话观察者（指标采集）
type SessionObserver interface {
	ObserveStatus(change StatusChange)
	ObserveHandshake(elapsed time.Duration, err error)
}

// MessageIDGenerator 消息ID生成器接口
type MessageIDGenerator interface {
	// Generate 生成唯一的消息ID
	Generate() string
}
