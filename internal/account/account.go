package account

import (
	"fmt"
	"regexp"
	"time"

	"e2echat/internal/chat"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Account 本地账户
// 私钥以口令加密后持久化，公钥明文保存用于显示指纹
type Account struct {
	Username      string    `json:"username"`
	PublicKey     string    `json:"public_key"`      // base64 SPKI
	PrivateKeyEnc string    `json:"private_key_enc"` // base64 salt|nonce|ciphertext
	KDFIterations int       `json:"kdf_iterations"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidateUsername 检查用户名是否可作为聊天ID和目录名
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("用户名无效: 仅允许 1-64 位字母、数字和 _ . -")
	}
	return nil
}

// IsValid 检查账户数据完整性
func (a *Account) IsValid() bool {
	return a != nil &&
		ValidateUsername(a.Username) == nil &&
		a.PublicKey != "" &&
		a.PrivateKeyEnc != "" &&
		a.KDFIterations >= chat.MinKDFIterations
}

// PublicKeyDER 解码并校验公钥
func (a *Account) PublicKeyDER() ([]byte, error) {
	return chat.DecodePublicKey(a.PublicKey)
}

// Fingerprint 公钥指纹
func (a *Account) Fingerprint() string {
	der, err := a.PublicKeyDER()
	if err != nil {
		return ""
	}
	return chat.Fingerprint(der)
}
