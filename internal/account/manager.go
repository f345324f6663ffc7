// Package account 提供本地身份管理
//
// 每个账户持有一对长期 P-256 密钥，私钥使用口令经 PBKDF2 派生的
// AES-256-GCM 密钥加密后落盘。解锁后得到可直接交给聊天会话的身份。
package account

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"e2echat/internal/chat"
)

// MinPasswordLength 口令最短长度
const MinPasswordLength = 6

// Manager 账户管理器
type Manager struct {
	storage     StorageService
	keyExchange chat.KeyExchanger
	iterations  int
	mutex       sync.Mutex
}

// NewManager 创建账户管理器
//
// 参数：
//   storage - 账户持久化实现
//   keyExchange - 为空时使用 P-256 ECDH
//   iterations - 私钥加密使用的 PBKDF2 迭代次数，不得低于 chat.MinKDFIterations
func NewManager(storage StorageService, keyExchange chat.KeyExchanger, iterations int) (*Manager, error) {
	if storage == nil {
		return nil, errors.New("存储服务不能为空")
	}
	if iterations < chat.MinKDFIterations {
		return nil, fmt.Errorf("PBKDF2 迭代次数不能低于 %d", chat.MinKDFIterations)
	}
	if keyExchange == nil {
		keyExchange = chat.NewKeyExchange()
	}
	return &Manager{storage: storage, keyExchange: keyExchange, iterations: iterations}, nil
}

// CreateAccount 生成密钥对并保存新账户
func (m *Manager) CreateAccount(username, password string) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("口令长度不能少于%d位", MinPasswordLength)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.storage.AccountExists(username) {
		return nil, fmt.Errorf("账户已存在: %s", username)
	}

	kp, err := m.keyExchange.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("密钥对生成失败: %w", err)
	}
	defer kp.Wipe()

	enc, err := EncryptPrivateKey(kp.PrivateKey, password, m.iterations)
	if err != nil {
		return nil, fmt.Errorf("私钥加密失败: %w", err)
	}

	acc := &Account{
		Username:      username,
		PublicKey:     chat.EncodePublicKey(kp.PublicKey),
		PrivateKeyEnc: base64.StdEncoding.EncodeToString(enc),
		KDFIterations: m.iterations,
		CreatedAt:     time.Now(),
	}
	if err := m.storage.SaveAccount(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// GetAccount 读取账户（不解锁私钥）
func (m *Manager) GetAccount(username string) (*Account, error) {
	return m.storage.LoadAccount(username)
}

// ListAccounts 列出所有账户
func (m *Manager) ListAccounts() ([]*Account, error) {
	names, err := m.storage.ListAccounts()
	if err != nil {
		return nil, err
	}
	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		acc, err := m.storage.LoadAccount(name)
		if err != nil {
			continue
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// DeleteAccount 删除账户，必须提供正确口令
func (m *Manager) DeleteAccount(username, password string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	identity, err := m.unlock(username, password)
	if err != nil {
		return err
	}
	identity.KeyPair.Wipe()
	return m.storage.DeleteAccount(username)
}

// Unlock 使用口令解锁账户，返回聊天身份
// 调用方负责在不再需要时调用 KeyPair.Wipe
func (m *Manager) Unlock(username, password string) (chat.Identity, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.unlock(username, password)
}

func (m *Manager) unlock(username, password string) (chat.Identity, error) {
	acc, err := m.storage.LoadAccount(username)
	if err != nil {
		return chat.Identity{}, err
	}
	pub, err := acc.PublicKeyDER()
	if err != nil {
		return chat.Identity{}, err
	}
	enc, err := base64.StdEncoding.DecodeString(acc.PrivateKeyEnc)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("私钥数据解码失败: %w", err)
	}
	priv, err := DecryptPrivateKey(enc, password, acc.KDFIterations)
	if err != nil {
		return chat.Identity{}, err
	}

	// 用自身公钥做一次 ECDH，确认私钥与公钥匹配
	probe, err := m.keyExchange.DeriveSharedSecret(priv, pub)
	if err != nil {
		chat.Zero(priv)
		return chat.Identity{}, fmt.Errorf("账户密钥不匹配: %w", err)
	}
	probe.Wipe()

	return chat.Identity{
		UserID:  acc.Username,
		KeyPair: &chat.KeyPair{PublicKey: pub, PrivateKey: priv},
	}, nil
}
