package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2echat/internal/chat"
)

func TestCryptoAndStatusMetrics(t *testing.T) {
	m := New("e2echat")

	m.ObserveEncrypt(nil)
	m.ObserveEncrypt(nil)
	m.ObserveDecrypt(errors.New("tag mismatch"))
	m.ObserveStatus(chat.StatusChange{From: chat.StatusConnected, To: chat.StatusSecured})
	m.ObserveHandshake(120*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cryptoOps.WithLabelValues("encrypt", resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cryptoOps.WithLabelValues("decrypt", resultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusTransitions.WithLabelValues("secured")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.handshakeLatency))
}

func TestCipherSessionReportsToMetrics(t *testing.T) {
	m := New("e2echat")
	cs, err := chat.NewCipherSession(nil)
	require.NoError(t, err)
	cs.SetObserver(m)

	secret := chat.SharedSecret(make([]byte, chat.SharedSecretSize))
	secret[0] = 1
	env, err := cs.Encrypt([]byte("metered"), secret)
	require.NoError(t, err)
	_, err = cs.Decrypt(env, secret)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cryptoOps.WithLabelValues("encrypt", resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cryptoOps.WithLabelValues("decrypt", resultOK)))
}

func TestGatewayMetrics(t *testing.T) {
	m := New("e2echat")
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()
	m.FrameRelayed("receive_message")
	m.FrameDropped("send_message", "offline")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.gatewayClients))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesRelayed.WithLabelValues("receive_message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesDropped.WithLabelValues("send_message", "offline")))
}

func TestMetricsHandler(t *testing.T) {
	m := New("e2echat")
	m.FrameRelayed("public_key")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `e2echat_gateway_frames_relayed_total{event="public_key"} 1`)
}
