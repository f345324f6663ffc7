package account

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2echat/internal/chat"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	storage, err := NewFileStorageService(dir)
	require.NoError(t, err)
	m, err := NewManager(storage, nil, chat.MinKDFIterations)
	require.NoError(t, err)
	return m, dir
}

func TestCreateAndUnlock(t *testing.T) {
	m, dir := newTestManager(t)

	acc, err := m.CreateAccount("alice", "correct horse")
	require.NoError(t, err)
	assert.True(t, acc.IsValid())
	assert.NotEmpty(t, acc.Fingerprint())

	info, err := os.Stat(filepath.Join(dir, "alice", "account.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	identity, err := m.Unlock("alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.UserID)
	require.NotNil(t, identity.KeyPair)
	assert.Equal(t, acc.Fingerprint(), chat.Fingerprint(identity.KeyPair.PublicKey))

	// 解锁后的密钥可以参与 ECDH
	peer, err := chat.NewKeyExchange().GenerateKeyPair()
	require.NoError(t, err)
	s1, err := chat.NewKeyExchange().DeriveSharedSecret(identity.KeyPair.PrivateKey, peer.PublicKey)
	require.NoError(t, err)
	s2, err := chat.NewKeyExchange().DeriveSharedSecret(peer.PrivateKey, identity.KeyPair.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	identity.KeyPair.Wipe()
	assert.Nil(t, identity.KeyPair.PrivateKey)
}

func TestUnlockWrongPassword(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.CreateAccount("bob", "secret-pass")
	require.NoError(t, err)

	_, err = m.Unlock("bob", "wrong-pass")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = m.Unlock("nobody", "secret-pass")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCreateAccountValidation(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.CreateAccount("", "secret-pass")
	assert.Error(t, err)
	_, err = m.CreateAccount("../etc", "secret-pass")
	assert.Error(t, err)
	_, err = m.CreateAccount("carol", "123")
	assert.Error(t, err)

	_, err = m.CreateAccount("carol", "secret-pass")
	require.NoError(t, err)
	_, err = m.CreateAccount("carol", "secret-pass")
	assert.Error(t, err)
}

func TestListAndDeleteAccounts(t *testing.T) {
	m, _ := newTestManager(t)
	for _, name := range []string{"zed", "amy"} {
		_, err := m.CreateAccount(name, "secret-pass")
		require.NoError(t, err)
	}

	accounts, err := m.ListAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "amy", accounts[0].Username)

	assert.ErrorIs(t, m.DeleteAccount("amy", "bad-pass"), ErrWrongPassword)
	require.NoError(t, m.DeleteAccount("amy", "secret-pass"))

	accounts, err = m.ListAccounts()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestManagerRejectsWeakKDF(t *testing.T) {
	storage, err := NewFileStorageService(t.TempDir())
	require.NoError(t, err)
	_, err = NewManager(storage, nil, 1000)
	assert.Error(t, err)

	_, err = EncryptPrivateKey([]byte("k"), "pw", 4096)
	assert.Error(t, err)
}

func TestDecryptPrivateKeyTampered(t *testing.T) {
	enc, err := EncryptPrivateKey([]byte("private key bytes"), "pw-123456", chat.MinKDFIterations)
	require.NoError(t, err)

	plain, err := DecryptPrivateKey(enc, "pw-123456", chat.MinKDFIterations)
	require.NoError(t, err)
	assert.Equal(t, []byte("private key bytes"), plain)

	enc[len(enc)-1] ^= 0xff
	_, err = DecryptPrivateKey(enc, "pw-123456", chat.MinKDFIterations)
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = DecryptPrivateKey(enc[:10], "pw-123456", chat.MinKDFIterations)
	assert.Error(t, err)
}
