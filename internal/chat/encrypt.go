package chat

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// KeyExchanger 密钥交换接口
type KeyExchanger interface {
	// GenerateKeyPair 生成新的 P-256 密钥对
	GenerateKeyPair() (*KeyPair, error)

	// DeriveSharedSecret 使用本地私钥和对端公钥计算共享密钥
	DeriveSharedSecret(localPrivateKey, remotePublicKey []byte) (SharedSecret, error)
}

// ECDHKeyExchange 基于 P-256 的 ECDH 密钥交换
type ECDHKeyExchange struct {
	rand io.Reader
}

// 确保 ECDHKeyExchange 实现了 KeyExchanger 接口
var _ KeyExchanger = (*ECDHKeyExchange)(nil)

// NewKeyExchange 创建使用 crypto/rand 的密钥交换器
func NewKeyExchange() *ECDHKeyExchange {
	return &ECDHKeyExchange{rand: rand.Reader}
}

// NewKeyExchangeWithRand 使用指定熵源创建密钥交换器
func NewKeyExchangeWithRand(r io.Reader) *ECDHKeyExchange {
	return &ECDHKeyExchange{rand: r}
}

// GenerateKeyPair 生成密钥对
func (kx *ECDHKeyExchange) GenerateKeyPair() (*KeyPair, error) {
	if kx.rand == nil {
		return nil, fmt.Errorf("%w: 未配置随机源", ErrCryptoUnavailable)
	}

	privateKey, err := ecdh.P256().GenerateKey(kx.rand)
	if err != nil {
		return nil, fmt.Errorf("%w: 生成密钥对失败: %v", ErrCryptoUnavailable, err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(privateKey.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("%w: 序列化公钥失败: %v", ErrCryptoUnavailable, err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: 序列化私钥失败: %v", ErrCryptoUnavailable, err)
	}

	return &KeyPair{PublicKey: pubDER, PrivateKey: privDER}, nil
}

// DeriveSharedSecret 计算 ECDH 共享密钥
// 输出为 256 位原始比特，需要经过 KDF 才能作为对称密钥使用
func (kx *ECDHKeyExchange) DeriveSharedSecret(localPrivateKey, remotePublicKey []byte) (SharedSecret, error) {
	priv, err := parsePrivateKey(localPrivateKey)
	if err != nil {
		return nil, err
	}
	pub, err := parsePublicKey(remotePublicKey)
	if err != nil {
		return nil, err
	}

	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("%w: ECDH 计算失败: %v", ErrInvalidKeyMaterial, err)
	}
	return SharedSecret(secret), nil
}

// ValidatePublicKey 检查公钥是否为合法的 P-256 SPKI
func ValidatePublicKey(der []byte) error {
	_, err := parsePublicKey(der)
	return err
}

// EncodePublicKey 将公钥编码为 base64 字符串（传输格式）
func EncodePublicKey(der []byte) string {
	return base64.StdEncoding.EncodeToString(der)
}

// DecodePublicKey 解码 base64 公钥并校验曲线
func DecodePublicKey(s string) ([]byte, error) {
	der, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: 公钥 base64 解码失败: %v", ErrInvalidKeyMaterial, err)
	}
	if err := ValidatePublicKey(der); err != nil {
		return nil, err
	}
	return der, nil
}

// Fingerprint 返回公钥的短指纹，用于显示和日志
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// parsePublicKey 解析 SPKI 公钥，仅接受 P-256
func parsePublicKey(der []byte) (*ecdh.PublicKey, error) {
	if len(der) == 0 {
		return nil, fmt.Errorf("%w: 公钥为空", ErrInvalidKeyMaterial)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: 解析公钥失败: %v", ErrInvalidKeyMaterial, err)
	}

	var pub *ecdh.PublicKey
	switch k := key.(type) {
	case *ecdsa.PublicKey:
		pub, err = k.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: 公钥曲线不受支持: %v", ErrInvalidKeyMaterial, err)
		}
	case *ecdh.PublicKey:
		pub = k
	default:
		return nil, fmt.Errorf("%w: 不是椭圆曲线公钥 (%T)", ErrInvalidKeyMaterial, key)
	}
	if pub.Curve() != ecdh.P256() {
		return nil, fmt.Errorf("%w: 公钥不是 P-256 曲线", ErrInvalidKeyMaterial)
	}
	return pub, nil
}

// parsePrivateKey 解析 PKCS#8 私钥，仅接受 P-256
func parsePrivateKey(der []byte) (*ecdh.PrivateKey, error) {
	if len(der) == 0 {
		return nil, fmt.Errorf("%w: 私钥为空", ErrInvalidKeyMaterial)
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: 解析私钥失败: %v", ErrInvalidKeyMaterial, err)
	}

	var priv *ecdh.PrivateKey
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		priv, err = k.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: 私钥曲线不受支持: %v", ErrInvalidKeyMaterial, err)
		}
	case *ecdh.PrivateKey:
		priv = k
	default:
		return nil, fmt.Errorf("%w: 不是椭圆曲线私钥 (%T)", ErrInvalidKeyMaterial, key)
	}
	if priv.Curve() != ecdh.P256() {
		return nil, fmt.Errorf("%w: 私钥不是 P-256 曲线", ErrInvalidKeyMaterial)
	}
	return priv, nil
}
