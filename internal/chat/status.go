package chat

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ConnectionStatus 加密通道状态，字符串值同时用于状态信令
type ConnectionStatus string

const (
	StatusIdle       ConnectionStatus = "idle"
	StatusConnecting ConnectionStatus = "connecting"
	StatusConnected  ConnectionStatus = "connected"
	StatusSecured    ConnectionStatus = "secured"
	StatusError      ConnectionStatus = "error"
)

// IsValid 检查状态值是否合法
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case StatusIdle, StatusConnecting, StatusConnected, StatusSecured, StatusError:
		return true
	}
	return false
}

// StatusChange 状态变更通知
type StatusChange struct {
	PeerID string
	From   ConnectionStatus
	To     ConnectionStatus
	Err    error
	At     time.Time
}

// allowedTransitions 合法状态转换表（error 对任意状态单独放行）
var allowedTransitions = map[ConnectionStatus][]ConnectionStatus{
	StatusIdle:       {StatusConnecting},
	StatusConnecting: {StatusConnected},
	StatusConnected:  {StatusSecured},
	StatusSecured:    {StatusConnecting},
	StatusError:      {StatusConnecting},
}

// StatusMachine 单个 (本地用户, 对端) 的连接状态机
type StatusMachine struct {
	mu        sync.Mutex
	peerID    string
	status    ConnectionStatus
	listeners map[int]func(StatusChange)
	nextID    int
}

// NewStatusMachine 创建状态机，初始为 idle
func NewStatusMachine(peerID string) *StatusMachine {
	return &StatusMachine{
		peerID:    peerID,
		status:    StatusIdle,
		listeners: make(map[int]func(StatusChange)),
	}
}

// Status 当前状态
func (m *StatusMachine) Status() ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// PeerID 当前对端
func (m *StatusMachine) PeerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peerID
}

// CanTransition 判断是否允许转换到目标状态
func CanTransition(from, to ConnectionStatus) bool {
	if to == StatusError {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition 执行状态转换，非法转换返回 ErrInvalidTransition 且状态不变
func (m *StatusMachine) Transition(to ConnectionStatus) error {
	return m.transition(to, nil)
}

// Fail 转换到 error 状态并附带原因
func (m *StatusMachine) Fail(cause error) {
	_ = m.transition(StatusError, cause)
}

// Reset 切换对端：回到 idle
func (m *StatusMachine) Reset(peerID string) {
	m.mu.Lock()
	from := m.status
	m.peerID = peerID
	m.status = StatusIdle
	change := StatusChange{PeerID: peerID, From: from, To: StatusIdle, At: time.Now()}
	listeners := m.snapshotLocked()
	m.mu.Unlock()

	notify(listeners, change)
}

// Subscribe 订阅状态变更，返回取消订阅函数
func (m *StatusMachine) Subscribe(fn func(StatusChange)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

func (m *StatusMachine) transition(to ConnectionStatus, cause error) error {
	m.mu.Lock()
	from := m.status
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.status = to
	change := StatusChange{PeerID: m.peerID, From: from, To: to, Err: cause, At: time.Now()}
	listeners := m.snapshotLocked()
	m.mu.Unlock()

	notify(listeners, change)
	return nil
}

// snapshotLocked 按订阅顺序复制监听器
func (m *StatusMachine) snapshotLocked() []func(StatusChange) {
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(StatusChange), 0, len(ids))
	for _, id := range ids {
		out = append(out, m.listeners[id])
	}
	return out
}

func notify(listeners []func(StatusChange), change StatusChange) {
	for _, fn := range listeners {
		fn(change)
	}
}
