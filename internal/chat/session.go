package chat

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Arceliar/phony"
	"go.uber.org/atomic"
)

// SessionConfig 会话参数
type SessionConfig struct {
	HandshakeTimeout time.Duration // 等待对端公钥的超时，0 表示只受 ctx 控制
	TypingTimeout    time.Duration // 停止输入后多久发送 typing=false
	SignalTimeout    time.Duration // 单个信令的发送超时
	MaxPending       int           // 通道就绪前最多缓存的收到消息数
}

// DefaultSessionConfig 默认会话参数
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		HandshakeTimeout: 15 * time.Second,
		TypingTimeout:    time.Second,
		SignalTimeout:    5 * time.Second,
		MaxPending:       256,
	}
}

// Identity 本地身份
// KeyPair 为空时会话在首次使用时生成并在 Close 时清除
type Identity struct {
	UserID  string
	KeyPair *KeyPair
}

// SessionDeps 会话依赖
type SessionDeps struct {
	Identity    Identity
	Transport   ChatTransport
	Cipher      *CipherSession
	KeyExchange KeyExchanger
	Store       MessageStoreInterface
	IDs         MessageIDGenerator
	Logger      Logger
	Observer    SessionObserver
	Config      *SessionConfig
}

// HistoryItem 历史消息及其解密结果
type HistoryItem struct {
	Message *Message
	Err     error
}

// ChatSession 端到端加密聊天会话
// 同一时间只有一个活动对端；状态由 actor 串行维护，加解密在 actor 之外执行
type ChatSession struct {
	phony.Inbox

	userID    string
	transport ChatTransport
	cipher    *CipherSession
	keys      KeyExchanger
	store     MessageStoreInterface
	ids       MessageIDGenerator
	logger    Logger
	observer  SessionObserver
	config    SessionConfig
	rand      io.Reader

	epoch     atomic.Uint64 // 每次开启通道或重新协商时递增
	status    *StatusMachine
	events    *eventBus
	signals   phony.Inbox // 顺序发送明文信令
	decryptor phony.Inbox // 顺序解密收到的消息

	_keyPair     *KeyPair
	_ownsKeyPair bool
	_peer        string
	_secret      SharedSecret
	_remoteKey   []byte            // 当前共享密钥对应的对端公钥
	_remoteKeys  map[string][]byte // 最近收到的各对端公钥
	_waiter      *keyWaiter
	_pending     []*Message
	_typing      bool
	_typingTimer *time.Timer
	_closed      bool
	_unsubscribe []func()
}

// NewChatSession 创建聊天会话并订阅传输层事件
func NewChatSession(deps SessionDeps) (*ChatSession, error) {
	if deps.Identity.UserID == "" {
		return nil, fmt.Errorf("用户ID不能为空")
	}
	if deps.Transport == nil {
		return nil, fmt.Errorf("传输层不能为空")
	}
	if deps.Cipher == nil {
		return nil, fmt.Errorf("加密会话不能为空")
	}

	config := DefaultSessionConfig()
	if deps.Config != nil {
		config = deps.Config
	}
	if config.MaxPending <= 0 {
		config.MaxPending = DefaultSessionConfig().MaxPending
	}
	if config.TypingTimeout <= 0 {
		config.TypingTimeout = DefaultSessionConfig().TypingTimeout
	}
	if config.SignalTimeout <= 0 {
		config.SignalTimeout = DefaultSessionConfig().SignalTimeout
	}

	s := &ChatSession{
		userID:       deps.Identity.UserID,
		transport:    deps.Transport,
		cipher:       deps.Cipher,
		keys:         deps.KeyExchange,
		store:        deps.Store,
		ids:          deps.IDs,
		logger:       deps.Logger,
		observer:     deps.Observer,
		config:       *config,
		rand:         rand.Reader,
		status:       NewStatusMachine(""),
		events:       newEventBus(),
		_keyPair:     deps.Identity.KeyPair,
		_ownsKeyPair: deps.Identity.KeyPair == nil,
		_remoteKeys:  make(map[string][]byte),
	}
	if s.keys == nil {
		s.keys = NewKeyExchange()
	}
	if s.store == nil {
		s.store = NewMessageStore()
	}
	if s.ids == nil {
		s.ids = UUIDGenerator{}
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}

	s._unsubscribe = []func(){
		s.status.Subscribe(s.onStatusChange),
		s.transport.OnPublicKeyReceived(func(offer KeyOffer) {
			s.Act(nil, func() { s._handleKeyOffer(offer) })
		}),
		s.transport.OnEnvelopeReceived(func(in InboundEnvelope) {
			s.Act(nil, func() { s._handleEnvelope(in) })
		}),
		s.transport.OnTyping(func(sig TypingSignal) {
			s.Act(nil, func() {
				if sig.From == s._peer {
					s.events.emit(Event{Type: EventTyping, PeerID: sig.From, IsTyping: sig.IsTyping})
				}
			})
		}),
		s.transport.OnStatus(func(sig StatusSignal) {
			s.Act(nil, func() {
				if sig.From == s._peer && sig.Status.IsValid() {
					s.events.emit(Event{Type: EventPeerStatus, PeerID: sig.From, Status: sig.Status})
				}
			})
		}),
	}

	return s, nil
}

// UserID 本地用户ID
func (s *ChatSession) UserID() string {
	return s.userID
}

// Status 当前连接状态
func (s *ChatSession) Status() ConnectionStatus {
	return s.status.Status()
}

// PeerID 当前活动对端
func (s *ChatSession) PeerID() string {
	return s.status.PeerID()
}

// PublicKey 本地公钥（SPKI DER）
func (s *ChatSession) PublicKey() ([]byte, error) {
	var (
		pub []byte
		err error
	)
	phony.Block(s, func() {
		if s._closed {
			err = ErrSessionClosed
			return
		}
		var kp *KeyPair
		if kp, err = s._ensureKeyPair(); err == nil {
			pub = append([]byte(nil), kp.PublicKey...)
		}
	})
	return pub, err
}

// Subscribe 订阅会话事件，回调在独立的 goroutine 中按顺序执行
// 取消函数返回后不会再有回调
func (s *ChatSession) Subscribe(fn func(Event)) func() {
	return s.events.subscribe(fn)
}

// OpenChat 切换到指定对端并完成密钥协商
// 旧通道的共享密钥被清零；过期的协商结果返回 ErrSessionSuperseded 且不会生效
func (s *ChatSession) OpenChat(ctx context.Context, peerID string) error {
	if peerID == "" {
		return fmt.Errorf("对端ID不能为空")
	}
	if peerID == s.userID {
		return fmt.Errorf("不能与自己建立会话")
	}
	if s.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.HandshakeTimeout)
		defer cancel()
	}

	started := time.Now()
	var (
		epoch   uint64
		waiter  *keyWaiter
		keyPair *KeyPair
		err     error
	)
	phony.Block(s, func() {
		if s._closed {
			err = ErrSessionClosed
			return
		}
		s._closeChannel()
		epoch = s.epoch.Inc()
		s._peer = peerID
		s.status.Reset(peerID)
		_ = s.status.Transition(StatusConnecting)

		var kp *KeyPair
		if kp, err = s._ensureKeyPair(); err != nil {
			s.status.Fail(err)
			return
		}
		keyPair = cloneKeyPair(kp)

		waiter = newKeyWaiter()
		if key, ok := s._remoteKeys[peerID]; ok {
			waiter.deliver(key)
		} else {
			s._waiter = waiter
		}
	})
	if err != nil {
		s.observeHandshake(started, err)
		return err
	}
	defer keyPair.Wipe()

	s.logger.Infof("开始与 %s 进行密钥交换", peerID)

	if err := s.transport.SendPublicKey(ctx, peerID, keyPair.PublicKey, true); err != nil {
		err = s.failSetup(epoch, peerID, fmt.Errorf("发送公钥失败: %w", err))
		s.observeHandshake(started, err)
		return err
	}

	remoteKey, err := waiter.wait(ctx)
	if err != nil {
		err = s.failSetup(epoch, peerID, fmt.Errorf("等待对端公钥失败: %w", err))
		s.observeHandshake(started, err)
		return err
	}

	err = s.establish(epoch, peerID, keyPair, remoteKey)
	s.observeHandshake(started, err)
	return err
}

// establish 由对端公钥派生共享密钥并进入 secured
func (s *ChatSession) establish(epoch uint64, peerID string, keyPair *KeyPair, remoteKey []byte) error {
	stale := false
	phony.Block(s, func() {
		if !s._current(epoch, peerID) {
			stale = true
			return
		}
		_ = s.status.Transition(StatusConnected)
	})
	if stale {
		return ErrSessionSuperseded
	}

	for {
		secret, err := s.deriveChannelSecret(keyPair, remoteKey)
		if err != nil {
			return s.failSetup(epoch, peerID, err)
		}

		var (
			newer     []byte
			commitErr error
		)
		phony.Block(s, func() {
			if !s._current(epoch, peerID) {
				stale = true
				return
			}
			// 派生期间对端换了公钥，不能提交旧密钥
			if latest, ok := s._remoteKeys[peerID]; ok && !bytes.Equal(latest, remoteKey) {
				newer = append([]byte(nil), latest...)
				return
			}
			s._secret.Wipe()
			s._secret = secret
			s._remoteKey = append([]byte(nil), remoteKey...)
			if commitErr = s.status.Transition(StatusSecured); commitErr != nil {
				return
			}
			for _, msg := range s._pending {
				s._decrypt(msg)
			}
			s._pending = nil
		})
		if stale {
			secret.Wipe()
			s.logger.Debugf("丢弃过期的密钥协商结果: %s", peerID)
			return ErrSessionSuperseded
		}
		if newer != nil {
			secret.Wipe()
			s.logger.Infof("%s 的公钥在协商期间变更，使用新公钥重新派生", peerID)
			remoteKey = newer
			continue
		}
		if commitErr != nil {
			return commitErr
		}

		s.logger.Infof("与 %s 的加密通道已建立，指纹 %s", peerID, Fingerprint(remoteKey))
		return nil
	}
}

// deriveChannelSecret 派生共享密钥并确认其可用于派生消息密钥
func (s *ChatSession) deriveChannelSecret(keyPair *KeyPair, remoteKey []byte) (SharedSecret, error) {
	secret, err := s.keys.DeriveSharedSecret(keyPair.PrivateKey, remoteKey)
	if err != nil {
		return nil, err
	}
	probe := make([]byte, SaltSize)
	if _, err := io.ReadFull(s.rand, probe); err != nil {
		secret.Wipe()
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	key, err := s.cipher.DeriveKey(secret, probe)
	if err != nil {
		secret.Wipe()
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	Zero(key)
	return secret, nil
}

// failSetup 协商失败时进入 error；过期的失败只返回 ErrSessionSuperseded
func (s *ChatSession) failSetup(epoch uint64, peerID string, cause error) error {
	stale := false
	phony.Block(s, func() {
		if !s._current(epoch, peerID) {
			stale = true
			return
		}
		s._waiter = nil
		s.status.Fail(cause)
	})
	if stale || errors.Is(cause, ErrSessionSuperseded) {
		return fmt.Errorf("%w: %v", ErrSessionSuperseded, cause)
	}
	s.logger.Warnf("与 %s 的密钥交换失败: %v", peerID, cause)
	return cause
}

// SendMessage 加密并发送消息
// 通道未就绪时返回 ErrChannelNotReady，不会调用传输层
func (s *ChatSession) SendMessage(ctx context.Context, plaintext string) (*Message, error) {
	var (
		epoch  uint64
		peerID string
		secret SharedSecret
		err    error
	)
	phony.Block(s, func() {
		if s._closed {
			err = ErrSessionClosed
			return
		}
		if st := s.status.Status(); st != StatusSecured {
			err = fmt.Errorf("%w: 当前状态 %s", ErrChannelNotReady, st)
			return
		}
		epoch = s.epoch.Load()
		peerID = s._peer
		secret = append(SharedSecret(nil), s._secret...)
	})
	if err != nil {
		return nil, err
	}
	defer secret.Wipe()

	env, err := s.cipher.Encrypt([]byte(plaintext), secret)
	if err != nil {
		s.logger.Errorf("加密发往 %s 的消息失败: %v", peerID, err)
		return nil, err
	}

	phony.Block(s, func() {
		if !s._current(epoch, peerID) {
			err = fmt.Errorf("%w: 会话已切换", ErrChannelNotReady)
		}
	})
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:          s.ids.Generate(),
		SenderID:    s.userID,
		RecipientID: peerID,
		Plaintext:   plaintext,
		Envelope:    env,
		Timestamp:   time.Now(),
		Status:      MessageStatusPending,
	}
	if err := s.store.AddMessage(msg); err != nil {
		s.logger.Warnf("保存消息失败: %v", err)
	}
	s.events.emit(Event{Type: EventMessage, PeerID: peerID, Message: copyMessage(msg), Outgoing: true})

	out := &OutboundEnvelope{ID: msg.ID, Envelope: env, Timestamp: msg.Timestamp.UnixMilli()}
	if err := s.transport.SendEnvelope(ctx, peerID, out); err != nil {
		msg.Status = MessageStatusFailed
		if serr := s.store.MarkFailed(msg.ID); serr != nil {
			s.logger.Warnf("更新消息状态失败: %v", serr)
		}
		s.events.emit(Event{Type: EventMessageStatus, PeerID: peerID, Message: copyMessage(msg), Outgoing: true, Err: err})
		return msg, fmt.Errorf("发送消息失败: %w", err)
	}

	msg.Status = MessageStatusSent
	if err := s.store.MarkSent(msg.ID); err != nil {
		s.logger.Warnf("更新消息状态失败: %v", err)
	}
	s.events.emit(Event{Type: EventMessageStatus, PeerID: peerID, Message: copyMessage(msg), Outgoing: true})
	return msg, nil
}

// NotifyTyping 通知对端正在输入，空闲 TypingTimeout 后自动发送停止输入
func (s *ChatSession) NotifyTyping() error {
	var err error
	phony.Block(s, func() {
		if s._closed {
			err = ErrSessionClosed
			return
		}
		if s._peer == "" {
			err = fmt.Errorf("%w: 未选择对端", ErrChannelNotReady)
			return
		}
		peerID := s._peer
		if !s._typing {
			s._typing = true
			s.sendTyping(peerID, true)
		}
		if s._typingTimer != nil {
			s._typingTimer.Stop()
		}
		s._typingTimer = time.AfterFunc(s.config.TypingTimeout, func() {
			s.Act(nil, func() {
				if s._peer == peerID {
					s._stopTyping()
				}
			})
		})
	})
	return err
}

// StopTyping 立即发送停止输入
func (s *ChatSession) StopTyping() {
	phony.Block(s, s._stopTyping)
}

// History 解密与当前对端的历史消息，单条失败不影响其他消息
func (s *ChatSession) History(peerID string) ([]HistoryItem, error) {
	var (
		secret SharedSecret
		err    error
	)
	phony.Block(s, func() {
		if s._closed {
			err = ErrSessionClosed
			return
		}
		if peerID != s._peer {
			err = fmt.Errorf("%w: %s 不是当前对端", ErrChannelNotReady, peerID)
			return
		}
		if st := s.status.Status(); st != StatusSecured {
			err = fmt.Errorf("%w: 当前状态 %s", ErrChannelNotReady, st)
			return
		}
		secret = append(SharedSecret(nil), s._secret...)
	})
	if err != nil {
		return nil, err
	}
	defer secret.Wipe()

	stored := s.store.GetMessages(s.userID, peerID)
	items := make([]HistoryItem, 0, len(stored))
	for _, msg := range stored {
		plaintext, derr := s.cipher.Decrypt(msg.Envelope, secret)
		if derr == nil {
			msg.Plaintext = string(plaintext)
		}
		items = append(items, HistoryItem{Message: msg, Err: derr})
	}
	return items, nil
}

// Close 关闭会话：清零共享密钥、取消订阅
func (s *ChatSession) Close() error {
	phony.Block(s, func() {
		if s._closed {
			return
		}
		s._closeChannel()
		s._closed = true
		s.epoch.Inc()
		s.status.Reset("")
		for _, unsubscribe := range s._unsubscribe {
			unsubscribe()
		}
		s._unsubscribe = nil
		for peerID := range s._remoteKeys {
			delete(s._remoteKeys, peerID)
		}
		if s._ownsKeyPair && s._keyPair != nil {
			s._keyPair.Wipe()
			s._keyPair = nil
		}
		s._peer = ""
	})
	return nil
}

// _handleKeyOffer 处理对端公钥（actor 内调用）
func (s *ChatSession) _handleKeyOffer(offer KeyOffer) {
	if s._closed || offer.From == "" || offer.From == s.userID {
		return
	}
	if err := ValidatePublicKey(offer.PublicKey); err != nil {
		s.logger.Warnf("收到 %s 的无效公钥: %v", offer.From, err)
		if offer.From == s._peer && s._waiter != nil {
			s._waiter.fail(err)
			s._waiter = nil
		}
		return
	}

	key := append([]byte(nil), offer.PublicKey...)
	s._remoteKeys[offer.From] = key

	if offer.WantReply {
		if kp, err := s._ensureKeyPair(); err != nil {
			s.logger.Errorf("无法回复公钥: %v", err)
		} else {
			s.sendPublicKey(offer.From, kp.PublicKey)
		}
	}

	if offer.From != s._peer {
		return
	}
	if s._waiter != nil {
		s._waiter.deliver(key)
		s._waiter = nil
		return
	}

	// 对端更换了密钥：重新协商
	if s.status.Status() == StatusSecured && !bytes.Equal(s._remoteKey, key) {
		s.logger.Infof("%s 的公钥已变更，重新协商", offer.From)
		epoch := s.epoch.Inc()
		peerID := s._peer
		keyPair := cloneKeyPair(s._keyPair)
		s._secret.Wipe()
		s._secret = nil
		s._remoteKey = nil
		_ = s.status.Transition(StatusConnecting)
		go func() {
			defer keyPair.Wipe()
			started := time.Now()
			err := s.establish(epoch, peerID, keyPair, key)
			s.observeHandshake(started, err)
		}()
	}
}

// _handleEnvelope 处理收到的加密消息（actor 内调用）
func (s *ChatSession) _handleEnvelope(in InboundEnvelope) {
	if s._closed {
		return
	}

	msg := &Message{
		ID:          in.ID,
		SenderID:    in.From,
		RecipientID: s.userID,
		Envelope:    in.Envelope,
		Timestamp:   time.Now(),
		Status:      MessageStatusDelivered,
	}
	if msg.ID == "" {
		msg.ID = s.ids.Generate()
	}
	if in.Timestamp > 0 {
		msg.Timestamp = time.UnixMilli(in.Timestamp)
	}

	if in.Err != nil || in.Envelope == nil {
		cause := in.Err
		if cause == nil {
			cause = fmt.Errorf("信封为空")
		}
		s.logger.Warnf("收到 %s 的畸形消息: %v", in.From, cause)
		s.events.emit(Event{Type: EventMessageError, PeerID: in.From, Message: msg, Err: fmt.Errorf("%w: %v", ErrDecryptionFailed, cause)})
		return
	}

	if err := s.store.AddMessage(msg); err != nil {
		s.logger.Warnf("保存消息失败: %v", err)
	}

	if in.From != s._peer {
		s.events.emit(Event{Type: EventUnread, PeerID: in.From, Message: copyMessage(msg)})
		return
	}

	if s.status.Status() != StatusSecured {
		if len(s._pending) >= s.config.MaxPending {
			s.logger.Warnf("待解密队列已满，丢弃最早的消息")
			s._pending = s._pending[1:]
		}
		s._pending = append(s._pending, msg)
		return
	}
	s._decrypt(msg)
}

// _decrypt 在 decryptor 中解密并发出事件（actor 内调用）
func (s *ChatSession) _decrypt(msg *Message) {
	secret := append(SharedSecret(nil), s._secret...)
	s.decryptor.Act(nil, func() {
		defer secret.Wipe()
		plaintext, err := s.cipher.Decrypt(msg.Envelope, secret)
		if err != nil {
			s.logger.Warnf("解密 %s 的消息 %s 失败: %v", msg.SenderID, msg.ID, err)
			s.events.emit(Event{Type: EventMessageError, PeerID: msg.SenderID, Message: msg, Err: err})
			return
		}
		msg.Plaintext = string(plaintext)
		s.events.emit(Event{Type: EventMessage, PeerID: msg.SenderID, Message: msg})
	})
}

// _closeChannel 关闭当前通道（actor 内调用）
func (s *ChatSession) _closeChannel() {
	if s._waiter != nil {
		s._waiter.fail(ErrSessionSuperseded)
		s._waiter = nil
	}
	s._stopTyping()
	if s._typingTimer != nil {
		s._typingTimer.Stop()
		s._typingTimer = nil
	}
	s._secret.Wipe()
	s._secret = nil
	s._remoteKey = nil
	s._pending = nil
}

func (s *ChatSession) _stopTyping() {
	if !s._typing {
		return
	}
	s._typing = false
	if s._peer != "" {
		s.sendTyping(s._peer, false)
	}
}

func (s *ChatSession) _ensureKeyPair() (*KeyPair, error) {
	if s._keyPair != nil {
		return s._keyPair, nil
	}
	kp, err := s.keys.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	s._keyPair = kp
	s._ownsKeyPair = true
	return kp, nil
}

func cloneKeyPair(kp *KeyPair) *KeyPair {
	return &KeyPair{
		PublicKey:  append([]byte(nil), kp.PublicKey...),
		PrivateKey: append([]byte(nil), kp.PrivateKey...),
	}
}

func (s *ChatSession) _current(epoch uint64, peerID string) bool {
	return !s._closed && s.epoch.Load() == epoch && s._peer == peerID
}

// onStatusChange 状态机监听器：转发事件、信令和指标
func (s *ChatSession) onStatusChange(change StatusChange) {
	s.events.emit(Event{Type: EventStatus, PeerID: change.PeerID, Status: change.To, Err: change.Err})
	if s.observer != nil {
		s.observer.ObserveStatus(change)
	}
	if change.PeerID != "" && change.To != StatusIdle {
		s.sendStatus(change.PeerID, change.To)
	}
	s.logger.Debugf("连接状态 %s: %s -> %s", change.PeerID, change.From, change.To)
}

func (s *ChatSession) observeHandshake(started time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveHandshake(time.Since(started), err)
	}
}

// 以下信令通过 signals inbox 顺序发送，失败只记录日志

func (s *ChatSession) sendStatus(peerID string, status ConnectionStatus) {
	s.signals.Act(nil, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.SignalTimeout)
		defer cancel()
		if err := s.transport.SendStatus(ctx, peerID, status); err != nil {
			s.logger.Debugf("发送加密状态失败: %v", err)
		}
	})
}

func (s *ChatSession) sendTyping(peerID string, isTyping bool) {
	s.signals.Act(nil, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.SignalTimeout)
		defer cancel()
		if err := s.transport.SendTyping(ctx, peerID, isTyping); err != nil {
			s.logger.Debugf("发送输入状态失败: %v", err)
		}
	})
}

func (s *ChatSession) sendPublicKey(peerID string, publicKey []byte) {
	pub := append([]byte(nil), publicKey...)
	s.signals.Act(nil, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.SignalTimeout)
		defer cancel()
		if err := s.transport.SendPublicKey(ctx, peerID, pub, false); err != nil {
			s.logger.Warnf("回复公钥给 %s 失败: %v", peerID, err)
		}
	})
}

// keyWaiter 等待单个对端公钥
type keyWaiter struct {
	ch chan keyResult
}

type keyResult struct {
	key []byte
	err error
}

func newKeyWaiter() *keyWaiter {
	return &keyWaiter{ch: make(chan keyResult, 1)}
}

func (w *keyWaiter) deliver(key []byte) {
	select {
	case w.ch <- keyResult{key: append([]byte(nil), key...)}:
	default:
	}
}

func (w *keyWaiter) fail(err error) {
	select {
	case w.ch <- keyResult{err: err}:
	default:
	}
}

func (w *keyWaiter) wait(ctx context.Context) ([]byte, error) {
	select {
	case r := <-w.ch:
		return r.key, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
