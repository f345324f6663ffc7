package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 消息状态常量
const (
	MessageStatusPending   = "pending"   // 待发送
	MessageStatusSent      = "sent"      // 已发送
	MessageStatusDelivered = "delivered" // 已送达
	MessageStatusFailed    = "failed"    // 发送失败
)

// Message 聊天消息
// Plaintext 只在本地内存中存在，不参与序列化
type Message struct {
	ID          string             `json:"id"`
	SenderID    string             `json:"senderId"`
	RecipientID string             `json:"recipientId"`
	Plaintext   string             `json:"-"`
	Envelope    *EncryptedEnvelope `json:"envelope"`
	Timestamp   time.Time          `json:"timestamp"`
	Status      string             `json:"status"`
}

// stored 返回去除明文的副本
func (m *Message) stored() *Message {
	cp := *m
	cp.Plaintext = ""
	cp.Envelope = m.Envelope.Clone()
	return &cp
}

// UUIDGenerator 基于 UUID 的消息ID生成器
type UUIDGenerator struct{}

// Generate 生成消息ID
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}

// MessageStore 消息存储实现
// 按会话保存密文信封，可选持久化到 JSON 文件
type MessageStore struct {
	messages map[string][]*Message // 按会话ID分组
	mutex    sync.RWMutex
	filePath string
}

// 确保 MessageStore 实现了 MessageStoreInterface 接口
var _ MessageStoreInterface = (*MessageStore)(nil)

// NewMessageStore 创建内存消息存储
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string][]*Message),
	}
}

// NewFileMessageStore 创建持久化到文件的消息存储
func NewFileMessageStore(filePath string) (*MessageStore, error) {
	ms := NewMessageStore()
	ms.filePath = filePath

	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, fmt.Errorf("创建消息目录失败: %w", err)
	}
	if err := ms.loadMessages(); err != nil {
		return nil, fmt.Errorf("加载消息失败: %w", err)
	}
	return ms, nil
}

// AddMessage 添加消息
func (ms *MessageStore) AddMessage(msg *Message) error {
	if msg == nil || msg.Envelope == nil {
		return fmt.Errorf("消息或信封为空")
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	sessionID := getSessionID(msg.SenderID, msg.RecipientID)
	for _, existing := range ms.messages[sessionID] {
		if existing.ID == msg.ID {
			return nil
		}
	}
	ms.messages[sessionID] = append(ms.messages[sessionID], msg.stored())

	return ms.saveMessages()
}

// GetMessages 获取会话消息
func (ms *MessageStore) GetMessages(a, b string) []*Message {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	msgs := ms.messages[getSessionID(a, b)]
	out := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.stored())
	}
	return out
}

// MarkFailed 标记消息为失败
func (ms *MessageStore) MarkFailed(messageID string) error {
	return ms.setStatus(messageID, MessageStatusFailed)
}

// MarkSent 标记消息为已发送
func (ms *MessageStore) MarkSent(messageID string) error {
	return ms.setStatus(messageID, MessageStatusSent)
}

func (ms *MessageStore) setStatus(messageID, status string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	for _, messages := range ms.messages {
		for _, msg := range messages {
			if msg.ID == messageID {
				msg.Status = status
				return ms.saveMessages()
			}
		}
	}

	return fmt.Errorf("消息不存在 %s", messageID)
}

// getSessionID 获取会话ID（按字母顺序排序保证一致）
func getSessionID(a, b string) string {
	if a < b {
		return fmt.Sprintf("%s_%s", a, b)
	}
	return fmt.Sprintf("%s_%s", b, a)
}

// loadMessages 加载消息
func (ms *MessageStore) loadMessages() error {
	data, err := os.ReadFile(ms.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var messages map[string][]*Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return err
	}
	if messages != nil {
		ms.messages = messages
	}
	return nil
}

// saveMessages 保存消息（调用方持有锁）
func (ms *MessageStore) saveMessages() error {
	if ms.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(ms.messages, "", "  ")
	if err != nil {
		return err
	}
	tmp := ms.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, ms.filePath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
