package network

import (
	"encoding/base64"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"e2echat/internal/chat"
)

// 帧事件名称，客户端发往网关的事件和网关转发给对端的事件分开命名
const (
	EventJoinChat         = "join_chat"
	EventPublicKey        = "public_key"
	EventSendMessage      = "send_message"
	EventReceiveMessage   = "receive_message"
	EventTyping           = "typing"
	EventUserTyping       = "user_typing"
	EventEncryptionStatus = "encryption_status"
	EventEncryptionUpdate = "encryption_update"
	EventError            = "error"
)

// Frame WebSocket 帧
// 发送时 Data 为具体负载结构体，接收时为 map[string]interface{}
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// JoinPayload 加入聊天
type JoinPayload struct {
	UserID string `json:"userId"`
}

// PublicKeyPayload 公钥通告，PublicKey 为 base64 编码的 SPKI
type PublicKeyPayload struct {
	RecipientID string `json:"recipientId"`
	SenderID    string `json:"senderId,omitempty"`
	PublicKey   string `json:"publicKey"`
	WantReply   bool   `json:"wantReply"`
}

// WireMessage 线上传输的加密消息
type WireMessage struct {
	ID               string `json:"id"`
	EncryptedContent string `json:"encryptedContent"`
	IV               string `json:"iv"`
	Salt             string `json:"salt"`
	Timestamp        int64  `json:"timestamp"`
}

// MessagePayload 加密消息负载
type MessagePayload struct {
	RecipientID string      `json:"recipientId"`
	SenderID    string      `json:"senderId,omitempty"`
	Message     WireMessage `json:"message"`
}

// TypingPayload 输入状态负载
type TypingPayload struct {
	RecipientID string `json:"recipientId"`
	SenderID    string `json:"senderId,omitempty"`
	IsTyping    bool   `json:"isTyping"`
}

// StatusPayload 加密状态负载
type StatusPayload struct {
	RecipientID string `json:"recipientId"`
	SenderID    string `json:"senderId,omitempty"`
	Status      string `json:"status"`
}

// ErrorPayload 网关错误通知
type ErrorPayload struct {
	Code    int    `json:"code"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// DecodePayload 将帧数据解码到负载结构体
func DecodePayload(data interface{}, out interface{}) error {
	if data == nil {
		return &NetworkError{Code: ErrCodeInvalidMessage, Message: "帧数据为空"}
	}
	config := &mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "json",
	}
	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return fmt.Errorf("创建解码器失败: %w", err)
	}
	if err := decoder.Decode(data); err != nil {
		return &NetworkError{Code: ErrCodeInvalidMessage, Message: "解码帧数据失败", Cause: err}
	}
	return nil
}

// EnvelopeToWire 将加密信封编码为线上格式
func EnvelopeToWire(id string, env *chat.EncryptedEnvelope, timestamp int64) WireMessage {
	return WireMessage{
		ID:               id,
		EncryptedContent: base64.StdEncoding.EncodeToString(env.Ciphertext),
		IV:               base64.StdEncoding.EncodeToString(env.IV),
		Salt:             base64.StdEncoding.EncodeToString(env.Salt),
		Timestamp:        timestamp,
	}
}

// Envelope 解码线上格式为加密信封
func (m WireMessage) Envelope() (*chat.EncryptedEnvelope, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(m.EncryptedContent)
	if err != nil {
		return nil, fmt.Errorf("解码密文失败: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(m.IV)
	if err != nil {
		return nil, fmt.Errorf("解码IV失败: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(m.Salt)
	if err != nil {
		return nil, fmt.Errorf("解码盐失败: %w", err)
	}
	return &chat.EncryptedEnvelope{Ciphertext: ciphertext, IV: iv, Salt: salt}, nil
}
