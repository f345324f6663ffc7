package chat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChatManagerLifecycle(t *testing.T) {
	hub := newFakeHub()
	bob := newTestPeer(t, hub, "bob", peerOptions{})

	kp, err := NewKeyExchange().GenerateKeyPair()
	require.NoError(t, err)
	priv := kp.PrivateKey

	manager, err := NewChatManager(&ChatConfig{
		MessageStorePath: filepath.Join(t.TempDir(), "messages.json"),
	}, Identity{UserID: "alice", KeyPair: kp}, ManagerDeps{
		Transport: hub.join("alice"),
		Logger:    zap.NewNop().Sugar(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, manager.OpenChat(ctx, "bob"))
	require.NoError(t, bob.session.OpenChat(ctx, "alice"))

	_, err = manager.Send(ctx, "via manager")
	require.NoError(t, err)
	got := bob.waitEvent(t, incomingMessage)
	assert.Equal(t, "via manager", got.Message.Plaintext)

	stats := manager.GetChatStats()
	assert.Equal(t, "alice", stats["user_id"])
	assert.Equal(t, "bob", stats["peer_id"])
	assert.Equal(t, string(StatusSecured), stats["status"])
	assert.Equal(t, Fingerprint(kp.PublicKey), stats["fingerprint"])
	assert.Len(t, manager.GetMessageStore().GetMessages("alice", "bob"), 1)

	require.NoError(t, manager.Close())
	assert.Equal(t, make([]byte, len(priv)), priv)

	_, err = manager.Send(ctx, "closed")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, manager.OpenChat(ctx, "bob"), ErrSessionClosed)
	require.NoError(t, manager.Close())
}

func TestChatManagerRejectsWeakKDF(t *testing.T) {
	hub := newFakeHub()
	_, err := NewChatManager(&ChatConfig{
		EncryptionConfig: &EncryptionConfig{Iterations: 1000},
	}, Identity{UserID: "alice"}, ManagerDeps{Transport: hub.join("alice")})
	assert.Error(t, err)
}
