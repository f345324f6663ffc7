package network

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"e2echat/internal/chat"
)

func TestDispatcherRoutesByEvent(t *testing.T) {
	md := NewMessageDispatcher(nil)
	var got []string
	require.NoError(t, md.RegisterHandler(HandlerFunc{Event: EventPublicKey, Fn: func(f *Frame) error {
		got = append(got, "key:"+f.Event)
		return nil
	}}))
	require.NoError(t, md.RegisterHandler(HandlerFunc{Event: EventReceiveMessage, Fn: func(f *Frame) error {
		got = append(got, "msg:"+f.Event)
		return nil
	}}))
	assert.Equal(t, 2, md.GetHandlerCount())

	require.NoError(t, md.DispatchMessage(&Frame{Event: EventReceiveMessage}))
	require.NoError(t, md.DispatchMessage(&Frame{Event: EventPublicKey}))
	assert.Equal(t, []string{"msg:receive_message", "key:public_key"}, got)
}

func TestDispatcherRegistrationErrors(t *testing.T) {
	md := NewMessageDispatcher(nil)
	noop := func(*Frame) error { return nil }

	assert.Error(t, md.RegisterHandler(nil))
	assert.Error(t, md.RegisterHandler(HandlerFunc{Fn: noop}))
	require.NoError(t, md.RegisterHandler(HandlerFunc{Event: EventTyping, Fn: noop}))
	assert.Error(t, md.RegisterHandler(HandlerFunc{Event: EventTyping, Fn: noop}))

	require.NoError(t, md.UnregisterHandler(EventTyping))
	assert.Error(t, md.UnregisterHandler(EventTyping))
}

func TestDispatcherDefaultAndMissingHandler(t *testing.T) {
	md := NewMessageDispatcher(nil)

	err := md.DispatchMessage(&Frame{Event: "unknown"})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, ErrCodeHandlerNotFound, netErr.Code)

	var fallback string
	md.SetDefaultHandler(HandlerFunc{Event: "*", Fn: func(f *Frame) error {
		fallback = f.Event
		return nil
	}})
	require.NoError(t, md.DispatchMessage(&Frame{Event: "unknown"}))
	assert.Equal(t, "unknown", fallback)

	assert.Error(t, md.DispatchMessage(nil))
}

func TestDispatcherRecoversPanics(t *testing.T) {
	md := NewMessageDispatcher(nil)
	require.NoError(t, md.RegisterHandler(HandlerFunc{Event: EventError, Fn: func(*Frame) error {
		panic("boom")
	}}))
	assert.Error(t, md.DispatchMessage(&Frame{Event: EventError}))

	sentinel := errors.New("handler failed")
	require.NoError(t, md.RegisterHandler(HandlerFunc{Event: EventTyping, Fn: func(*Frame) error { return sentinel }}))
	assert.ErrorIs(t, md.DispatchMessage(&Frame{Event: EventTyping}), sentinel)
}

func TestDecodePayloadFromJSON(t *testing.T) {
	raw := `{"event":"receive_message","data":{"recipientId":"bob","senderId":"alice",
		"message":{"id":"m1","encryptedContent":"AQID","iv":"AAAAAAAAAAAAAAAA","salt":"AAAAAAAAAAAAAAAAAAAAAA==","timestamp":1700000000000}}}`

	var frame Frame
	require.NoError(t, json.Unmarshal([]byte(raw), &frame))
	assert.Equal(t, EventReceiveMessage, frame.Event)

	var p MessagePayload
	require.NoError(t, DecodePayload(frame.Data, &p))
	assert.Equal(t, "alice", p.SenderID)
	assert.Equal(t, "m1", p.Message.ID)
	assert.EqualValues(t, 1700000000000, p.Message.Timestamp)

	env, err := p.Message.Envelope()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, env.Ciphertext)
	assert.Len(t, env.IV, chat.IVSize)
	assert.Len(t, env.Salt, chat.SaltSize)

	assert.Error(t, DecodePayload(nil, &p))
	assert.Error(t, DecodePayload("not a map", &p))
}

func TestWireMessageRoundTrip(t *testing.T) {
	env := &chat.EncryptedEnvelope{Ciphertext: []byte("cipher"), IV: make([]byte, chat.IVSize), Salt: []byte("0123456789abcdef")}
	wire := EnvelopeToWire("id-1", env, 42)
	assert.Equal(t, "id-1", wire.ID)
	assert.EqualValues(t, 42, wire.Timestamp)

	back, err := wire.Envelope()
	require.NoError(t, err)
	assert.Equal(t, env, back)

	wire.IV = "!!!"
	_, err = wire.Envelope()
	assert.Error(t, err)
}
