package chat

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/crypto/pbkdf2"
)

// CipherSession 负责从共享密钥派生对称密钥并完成 AES-GCM 加解密
// 每条消息使用独立的随机盐和 IV
type CipherSession struct {
	iterations int
	saltSize   int
	rand       io.Reader
	observer   CryptoObserver

	encrypted     atomic.Int64
	decrypted     atomic.Int64
	encryptFailed atomic.Int64
	decryptFailed atomic.Int64
	lastActivity  atomic.Int64
}

// NewCipherSession 创建加密会话
func NewCipherSession(config *EncryptionConfig) (*CipherSession, error) {
	if config == nil {
		config = DefaultEncryptionConfig()
	}
	if config.Iterations < MinKDFIterations {
		return nil, fmt.Errorf("PBKDF2 迭代次数过低: %d < %d", config.Iterations, MinKDFIterations)
	}
	saltSize := config.SaltSize
	if saltSize <= 0 {
		saltSize = SaltSize
	}
	return &CipherSession{
		iterations: config.Iterations,
		saltSize:   saltSize,
		rand:       rand.Reader,
	}, nil
}

// SetObserver 设置加密事件观察者
func (cs *CipherSession) SetObserver(observer CryptoObserver) {
	cs.observer = observer
}

// DeriveKey 使用 PBKDF2-SHA256 将共享密钥拉伸为 AES-256 密钥
func (cs *CipherSession) DeriveKey(secret SharedSecret, salt []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("共享密钥为空")
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("盐为空")
	}
	return pbkdf2.Key(secret, salt, cs.iterations, SymmetricKeySize, sha256.New), nil
}

// Encrypt 加密消息
func (cs *CipherSession) Encrypt(plaintext []byte, secret SharedSecret) (*EncryptedEnvelope, error) {
	env, err := cs.encrypt(plaintext, secret)
	cs.record(true, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return env, nil
}

// Decrypt 解密消息，认证标签校验失败时返回 ErrDecryptionFailed
func (cs *CipherSession) Decrypt(env *EncryptedEnvelope, secret SharedSecret) ([]byte, error) {
	plaintext, err := cs.decrypt(env, secret)
	cs.record(false, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// GetStats 获取加密统计信息
func (cs *CipherSession) GetStats() *EncryptionStats {
	stats := &EncryptionStats{
		EncryptedMessages:  cs.encrypted.Load(),
		DecryptedMessages:  cs.decrypted.Load(),
		EncryptionFailures: cs.encryptFailed.Load(),
		DecryptionFailures: cs.decryptFailed.Load(),
	}
	if ts := cs.lastActivity.Load(); ts > 0 {
		stats.LastActivity = time.Unix(0, ts)
	}
	return stats
}

func (cs *CipherSession) encrypt(plaintext []byte, secret SharedSecret) (*EncryptedEnvelope, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(cs.rand, iv); err != nil {
		return nil, fmt.Errorf("生成随机数失败: %w", err)
	}
	salt := make([]byte, cs.saltSize)
	if _, err := io.ReadFull(cs.rand, salt); err != nil {
		return nil, fmt.Errorf("生成盐失败: %w", err)
	}

	key, err := cs.DeriveKey(secret, salt)
	if err != nil {
		return nil, fmt.Errorf("派生密钥失败: %w", err)
	}
	defer Zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	return &EncryptedEnvelope{
		Ciphertext: gcm.Seal(nil, iv, plaintext, nil),
		IV:         iv,
		Salt:       salt,
	}, nil
}

func (cs *CipherSession) decrypt(env *EncryptedEnvelope, secret SharedSecret) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("信封为空")
	}
	if len(env.IV) != IVSize {
		return nil, fmt.Errorf("IV 长度错误: %d", len(env.IV))
	}

	key, err := cs.DeriveKey(secret, env.Salt)
	if err != nil {
		return nil, fmt.Errorf("派生密钥失败: %w", err)
	}
	defer Zero(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, env.IV, env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("认证失败: %w", err)
	}
	return plaintext, nil
}

func (cs *CipherSession) record(encrypt bool, err error) {
	switch {
	case encrypt && err == nil:
		cs.encrypted.Inc()
	case encrypt:
		cs.encryptFailed.Inc()
	case err == nil:
		cs.decrypted.Inc()
	default:
		cs.decryptFailed.Inc()
	}
	cs.lastActivity.Store(time.Now().UnixNano())

	if cs.observer == nil {
		return
	}
	if encrypt {
		cs.observer.ObserveEncrypt(err)
	} else {
		cs.observer.ObserveDecrypt(err)
	}
}

// newGCM 创建 AES-GCM
func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("创建AES cipher失败: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("创建GCM失败: %w", err)
	}
	return gcm, nil
}

// Zero 清零敏感缓冲区
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}
