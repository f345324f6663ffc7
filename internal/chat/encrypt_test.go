package chat

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("熵源不可用")
}

func TestKeyExchangeSymmetry(t *testing.T) {
	kx := NewKeyExchange()

	alice, err := kx.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := kx.GenerateKeyPair()
	require.NoError(t, err)

	ab, err := kx.DeriveSharedSecret(alice.PrivateKey, bob.PublicKey)
	require.NoError(t, err)
	ba, err := kx.DeriveSharedSecret(bob.PrivateKey, alice.PublicKey)
	require.NoError(t, err)

	assert.Len(t, ab, SharedSecretSize)
	assert.Equal(t, ab, ba)
	assert.NotEqual(t, alice.PublicKey, bob.PublicKey)
}

func TestKeyExchangeDistinctPeers(t *testing.T) {
	kx := NewKeyExchange()
	alice, err := kx.GenerateKeyPair()
	require.NoError(t, err)
	bob, err := kx.GenerateKeyPair()
	require.NoError(t, err)
	carol, err := kx.GenerateKeyPair()
	require.NoError(t, err)

	withBob, err := kx.DeriveSharedSecret(alice.PrivateKey, bob.PublicKey)
	require.NoError(t, err)
	withCarol, err := kx.DeriveSharedSecret(alice.PrivateKey, carol.PublicKey)
	require.NoError(t, err)
	assert.NotEqual(t, withBob, withCarol)
}

func TestKeyExchangeCryptoUnavailable(t *testing.T) {
	_, err := NewKeyExchangeWithRand(nil).GenerateKeyPair()
	assert.ErrorIs(t, err, ErrCryptoUnavailable)

	_, err = NewKeyExchangeWithRand(failingReader{}).GenerateKeyPair()
	assert.ErrorIs(t, err, ErrCryptoUnavailable)
}

func TestKeyExchangeInvalidKeyMaterial(t *testing.T) {
	kx := NewKeyExchange()
	local, err := kx.GenerateKeyPair()
	require.NoError(t, err)

	p384, err := ecdh.P384().GenerateKey(rand.Reader)
	require.NoError(t, err)
	p384DER, err := x509.MarshalPKIXPublicKey(p384.PublicKey())
	require.NoError(t, err)

	edPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	edDER, err := x509.MarshalPKIXPublicKey(edPub)
	require.NoError(t, err)

	x25519, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)
	xDER, err := x509.MarshalPKIXPublicKey(x25519.PublicKey())
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not a key")},
		{"truncated", local.PublicKey[:len(local.PublicKey)-5]},
		{"p384", p384DER},
		{"ed25519", edDER},
		{"x25519", xDER},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := kx.DeriveSharedSecret(local.PrivateKey, tt.remote)
			assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
		})
	}

	_, err = kx.DeriveSharedSecret([]byte("bad private"), local.PublicKey)
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestPublicKeyEncoding(t *testing.T) {
	kp, err := NewKeyExchange().GenerateKeyPair()
	require.NoError(t, err)

	decoded, err := DecodePublicKey(EncodePublicKey(kp.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, decoded)

	_, err = DecodePublicKey("%%%")
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)

	assert.Len(t, Fingerprint(kp.PublicKey), 20)
	assert.Equal(t, Fingerprint(kp.PublicKey), Fingerprint(decoded))
}

func TestKeyPairWipe(t *testing.T) {
	kp, err := NewKeyExchange().GenerateKeyPair()
	require.NoError(t, err)

	priv := kp.PrivateKey
	kp.Wipe()
	assert.Nil(t, kp.PrivateKey)
	assert.Equal(t, make([]byte, len(priv)), priv)
	assert.NotEmpty(t, kp.PublicKey)
}
