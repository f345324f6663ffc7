package chat

import (
	"context"
	"errors"
	"sync"
)

var errPeerOffline = errors.New("对端不在线")

// fakeHub 内存中的中继，按用户ID同步投递
type fakeHub struct {
	mu    sync.Mutex
	users map[string]*fakeTransport
}

func newFakeHub() *fakeHub {
	return &fakeHub{users: make(map[string]*fakeTransport)}
}

func (h *fakeHub) join(userID string) *fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := &fakeTransport{
		hub:      h,
		userID:   userID,
		keys:     make(map[int]func(KeyOffer)),
		messages: make(map[int]func(InboundEnvelope)),
		typing:   make(map[int]func(TypingSignal)),
		statuses: make(map[int]func(StatusSignal)),
	}
	h.users[userID] = t
	return t
}

func (h *fakeHub) lookup(userID string) *fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.users[userID]
}

// fakeTransport ChatTransport 的内存实现，记录所有发送
type fakeTransport struct {
	hub    *fakeHub
	userID string

	mu        sync.Mutex
	nextID    int
	keys      map[int]func(KeyOffer)
	messages  map[int]func(InboundEnvelope)
	typing    map[int]func(TypingSignal)
	statuses  map[int]func(StatusSignal)
	sentKeys  []KeyOffer
	sentEnv   []*OutboundEnvelope
	sentTyped []bool
	sendErr   error
}

var _ ChatTransport = (*fakeTransport)(nil)

func (t *fakeTransport) SendPublicKey(_ context.Context, peerID string, publicKey []byte, wantReply bool) error {
	offer := KeyOffer{From: t.userID, To: peerID, PublicKey: append([]byte(nil), publicKey...), WantReply: wantReply}
	t.mu.Lock()
	t.sentKeys = append(t.sentKeys, offer)
	t.mu.Unlock()

	peer := t.hub.lookup(peerID)
	if peer == nil {
		return errPeerOffline
	}
	for _, fn := range peer.keyListeners() {
		fn(offer)
	}
	return nil
}

func (t *fakeTransport) SendEnvelope(_ context.Context, peerID string, msg *OutboundEnvelope) error {
	t.mu.Lock()
	if t.sendErr != nil {
		err := t.sendErr
		t.mu.Unlock()
		return err
	}
	t.sentEnv = append(t.sentEnv, msg)
	t.mu.Unlock()

	return t.deliverEnvelope(peerID, InboundEnvelope{
		ID:        msg.ID,
		From:      t.userID,
		To:        peerID,
		Envelope:  msg.Envelope.Clone(),
		Timestamp: msg.Timestamp,
	})
}

// deliverEnvelope 直接投递任意信封，用于构造损坏的消息
func (t *fakeTransport) deliverEnvelope(peerID string, in InboundEnvelope) error {
	peer := t.hub.lookup(peerID)
	if peer == nil {
		return errPeerOffline
	}
	peer.mu.Lock()
	var fns []func(InboundEnvelope)
	for _, fn := range peer.messages {
		fns = append(fns, fn)
	}
	peer.mu.Unlock()
	for _, fn := range fns {
		fn(in)
	}
	return nil
}

func (t *fakeTransport) SendTyping(_ context.Context, peerID string, isTyping bool) error {
	t.mu.Lock()
	t.sentTyped = append(t.sentTyped, isTyping)
	t.mu.Unlock()

	peer := t.hub.lookup(peerID)
	if peer == nil {
		return errPeerOffline
	}
	peer.mu.Lock()
	var fns []func(TypingSignal)
	for _, fn := range peer.typing {
		fns = append(fns, fn)
	}
	peer.mu.Unlock()
	for _, fn := range fns {
		fn(TypingSignal{From: t.userID, To: peerID, IsTyping: isTyping})
	}
	return nil
}

func (t *fakeTransport) SendStatus(_ context.Context, peerID string, status ConnectionStatus) error {
	peer := t.hub.lookup(peerID)
	if peer == nil {
		return errPeerOffline
	}
	peer.mu.Lock()
	var fns []func(StatusSignal)
	for _, fn := range peer.statuses {
		fns = append(fns, fn)
	}
	peer.mu.Unlock()
	for _, fn := range fns {
		fn(StatusSignal{From: t.userID, To: peerID, Status: status})
	}
	return nil
}

func (t *fakeTransport) OnPublicKeyReceived(fn func(KeyOffer)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.keys[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.keys, id)
		t.mu.Unlock()
	}
}

func (t *fakeTransport) OnEnvelopeReceived(fn func(InboundEnvelope)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.messages[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.messages, id)
		t.mu.Unlock()
	}
}

func (t *fakeTransport) OnTyping(fn func(TypingSignal)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.typing[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.typing, id)
		t.mu.Unlock()
	}
}

func (t *fakeTransport) OnStatus(fn func(StatusSignal)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.statuses[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.statuses, id)
		t.mu.Unlock()
	}
}

func (t *fakeTransport) keyListeners() []func(KeyOffer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var fns []func(KeyOffer)
	for _, fn := range t.keys {
		fns = append(fns, fn)
	}
	return fns
}

func (t *fakeTransport) listenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.keys) + len(t.messages) + len(t.typing) + len(t.statuses)
}

func (t *fakeTransport) envelopesSent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sentEnv)
}

func (t *fakeTransport) keysSent() []KeyOffer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]KeyOffer(nil), t.sentKeys...)
}

func (t *fakeTransport) typingSent() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]bool(nil), t.sentTyped...)
}
