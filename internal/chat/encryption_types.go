package chat

import (
	"errors"
	"time"
)

// 加密相关错误
// 调用方通过 errors.Is 判断错误类别
var (
	ErrCryptoUnavailable  = errors.New("安全消息不可用: 缺少加密原语")
	ErrInvalidKeyMaterial = errors.New("无效的密钥材料")
	ErrEncryptionFailed   = errors.New("消息加密失败")
	ErrDecryptionFailed   = errors.New("无法解密消息")
	ErrChannelNotReady    = errors.New("加密通道尚未就绪")
	ErrInvalidTransition  = errors.New("非法的连接状态转换")
	ErrSessionSuperseded  = errors.New("密钥交换已被新的会话取代")
	ErrSessionClosed      = errors.New("聊天会话已关闭")
)

const (
	// MinKDFIterations PBKDF2 最小迭代次数
	MinKDFIterations = 100000
	// SymmetricKeySize AES-256 密钥长度
	SymmetricKeySize = 32
	// IVSize AES-GCM 随机数长度
	IVSize = 12
	// SaltSize 每条消息的盐长度
	SaltSize = 16
	// SharedSecretSize P-256 ECDH 输出长度
	SharedSecretSize = 32
)

// EncryptionConfig 加密配置
type EncryptionConfig struct {
	Iterations int `json:"iterations" yaml:"iterations"` // PBKDF2 迭代次数
	SaltSize   int `json:"salt_size" yaml:"salt_size"`   // 盐长度（字节）
}

// DefaultEncryptionConfig 返回默认加密配置
func DefaultEncryptionConfig() *EncryptionConfig {
	return &EncryptionConfig{
		Iterations: MinKDFIterations,
		SaltSize:   SaltSize,
	}
}

// KeyPair 本地身份的密钥对
// PublicKey 为 SPKI(PKIX) DER，PrivateKey 为 PKCS#8 DER
type KeyPair struct {
	PublicKey  []byte
	PrivateKey []byte
}

// Wipe 清零私钥
func (kp *KeyPair) Wipe() {
	if kp == nil {
		return
	}
	Zero(kp.PrivateKey)
	kp.PrivateKey = nil
}

// SharedSecret ECDH 协商得到的原始共享比特，不能直接用作对称密钥
type SharedSecret []byte

// Wipe 清零共享密钥
func (s SharedSecret) Wipe() {
	Zero(s)
}

// EncryptedEnvelope 加密信封
// 字段在 JSON 中以 base64 编码传输
type EncryptedEnvelope struct {
	Ciphertext []byte `json:"encryptedContent"`
	IV         []byte `json:"iv"`
	Salt       []byte `json:"salt,omitempty"`
}

// Clone 复制信封
func (e *EncryptedEnvelope) Clone() *EncryptedEnvelope {
	if e == nil {
		return nil
	}
	return &EncryptedEnvelope{
		Ciphertext: append([]byte(nil), e.Ciphertext...),
		IV:         append([]byte(nil), e.IV...),
		Salt:       append([]byte(nil), e.Salt...),
	}
}

// EncryptionStats 加密统计信息
type EncryptionStats struct {
	EncryptedMessages  int64     `json:"encrypted_messages"`
	DecryptedMessages  int64     `json:"decrypted_messages"`
	EncryptionFailures int64     `json:"encryption_failures"`
	DecryptionFailures int64     `json:"decryption_failures"`
	LastActivity       time.Time `json:"last_activity"`
}

// CryptoObserver 加密事件观察者，用于接入指标系统
type CryptoObserver interface {
	ObserveEncrypt(err error)
	ObserveDecrypt(err error)
}
