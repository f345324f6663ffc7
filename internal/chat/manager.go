package chat

import (
	"context"
	"fmt"
	"sync"
)

// ChatManager 聊天管理器
// 负责协调本地身份、消息存储、加密会话和传输层
type ChatManager struct {
	identity Identity
	store    MessageStoreInterface
	cipher   *CipherSession
	session  *ChatSession
	mutex    sync.RWMutex
	closed   bool
	config   *ChatConfig
}

// ChatConfig 聊天配置
type ChatConfig struct {
	MessageStorePath string            `json:"message_store_path"`
	EncryptionConfig *EncryptionConfig `json:"encryption_config"`
	SessionConfig    *SessionConfig    `json:"session_config"`
}

// ManagerDeps 聊天管理器依赖
type ManagerDeps struct {
	Transport       ChatTransport
	KeyExchange     KeyExchanger
	Logger          Logger
	CryptoObserver  CryptoObserver
	SessionObserver SessionObserver
}

// NewChatManager 创建新的聊天管理器
func NewChatManager(config *ChatConfig, identity Identity, deps ManagerDeps) (*ChatManager, error) {
	if config == nil {
		config = &ChatConfig{}
	}
	if config.EncryptionConfig == nil {
		config.EncryptionConfig = DefaultEncryptionConfig()
	}

	// 创建消息存储
	var store MessageStoreInterface = NewMessageStore()
	if config.MessageStorePath != "" {
		fs, err := NewFileMessageStore(config.MessageStorePath)
		if err != nil {
			return nil, fmt.Errorf("创建消息存储失败: %w", err)
		}
		store = fs
	}

	cipher, err := NewCipherSession(config.EncryptionConfig)
	if err != nil {
		return nil, fmt.Errorf("创建加密会话失败: %w", err)
	}
	if deps.CryptoObserver != nil {
		cipher.SetObserver(deps.CryptoObserver)
	}

	session, err := NewChatSession(SessionDeps{
		Identity:    identity,
		Transport:   deps.Transport,
		Cipher:      cipher,
		KeyExchange: deps.KeyExchange,
		Store:       store,
		Logger:      deps.Logger,
		Observer:    deps.SessionObserver,
		Config:      config.SessionConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("创建聊天会话失败: %w", err)
	}

	return &ChatManager{
		identity: identity,
		store:    store,
		cipher:   cipher,
		session:  session,
		config:   config,
	}, nil
}

// Session 获取聊天会话
func (cm *ChatManager) Session() *ChatSession {
	return cm.session
}

// GetMessageStore 获取消息存储
func (cm *ChatManager) GetMessageStore() MessageStoreInterface {
	return cm.store
}

// OpenChat 切换到指定对端
func (cm *ChatManager) OpenChat(ctx context.Context, peerID string) error {
	if err := cm.checkOpen(); err != nil {
		return err
	}
	return cm.session.OpenChat(ctx, peerID)
}

// Send 向当前对端发送消息
func (cm *ChatManager) Send(ctx context.Context, plaintext string) (*Message, error) {
	if err := cm.checkOpen(); err != nil {
		return nil, err
	}
	return cm.session.SendMessage(ctx, plaintext)
}

// Subscribe 订阅会话事件
func (cm *ChatManager) Subscribe(fn func(Event)) func() {
	return cm.session.Subscribe(fn)
}

// GetChatStats 获取聊天统计信息
func (cm *ChatManager) GetChatStats() map[string]interface{} {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	stats := map[string]interface{}{
		"user_id":          cm.identity.UserID,
		"peer_id":          cm.session.PeerID(),
		"status":           string(cm.session.Status()),
		"encryption_stats": cm.cipher.GetStats(),
		"closed":           cm.closed,
	}
	if cm.identity.KeyPair != nil && cm.identity.KeyPair.PublicKey != nil {
		stats["fingerprint"] = Fingerprint(cm.identity.KeyPair.PublicKey)
	}
	return stats
}

// Close 关闭会话并清零身份私钥
func (cm *ChatManager) Close() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.closed {
		return nil
	}
	cm.closed = true

	err := cm.session.Close()
	cm.identity.KeyPair.Wipe()
	return err
}

func (cm *ChatManager) checkOpen() error {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	if cm.closed {
		return ErrSessionClosed
	}
	return nil
}
