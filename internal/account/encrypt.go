package account

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"e2echat/internal/chat"
)

const (
	keySaltSize  = 16
	keyNonceSize = 12
)

// ErrWrongPassword 口令错误或密文被篡改
var ErrWrongPassword = errors.New("口令错误或私钥数据已损坏")

// EncryptPrivateKey 使用口令加密私钥
// 输出格式: salt|nonce|ciphertext
func EncryptPrivateKey(privateKey []byte, password string, iterations int) ([]byte, error) {
	if iterations < chat.MinKDFIterations {
		return nil, fmt.Errorf("PBKDF2 迭代次数不能低于 %d", chat.MinKDFIterations)
	}
	salt := make([]byte, keySaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("生成盐失败: %w", err)
	}

	gcm, key, err := passwordGCM(password, salt, iterations)
	if err != nil {
		return nil, err
	}
	defer chat.Zero(key)

	nonce := make([]byte, keyNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("生成随机数失败: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, privateKey, []byte("e2echat-identity"))

	buf := bytes.Buffer{}
	buf.Write(salt)
	buf.Write(nonce)
	buf.Write(ciphertext)
	return buf.Bytes(), nil
}

// DecryptPrivateKey 使用口令解密私钥
func DecryptPrivateKey(enc []byte, password string, iterations int) ([]byte, error) {
	if len(enc) < keySaltSize+keyNonceSize+16 {
		return nil, errors.New("密文数据过短")
	}
	salt := enc[:keySaltSize]
	nonce := enc[keySaltSize : keySaltSize+keyNonceSize]
	ciphertext := enc[keySaltSize+keyNonceSize:]

	gcm, key, err := passwordGCM(password, salt, iterations)
	if err != nil {
		return nil, err
	}
	defer chat.Zero(key)

	plain, err := gcm.Open(nil, nonce, ciphertext, []byte("e2echat-identity"))
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plain, nil
}

func passwordGCM(password string, salt []byte, iterations int) (cipher.AEAD, []byte, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		chat.Zero(key)
		return nil, nil, fmt.Errorf("创建 AES 失败: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		chat.Zero(key)
		return nil, nil, fmt.Errorf("创建 GCM 失败: %w", err)
	}
	return gcm, key, nil
}
