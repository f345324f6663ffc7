package chat

import (
	"sort"
	"sync"

	"github.com/Arceliar/phony"
)

// EventType 会话事件类型
type EventType string

const (
	EventStatus        EventType = "status"         // 本地连接状态变化
	EventMessage       EventType = "message"        // 新消息（发出的乐观消息或解密成功的收到消息）
	EventMessageStatus EventType = "message_status" // 发出消息的状态变化
	EventMessageError  EventType = "message_error"  // 单条消息解密失败
	EventUnread        EventType = "unread"         // 非当前对端发来的消息（未解密）
	EventTyping        EventType = "typing"         // 对端输入状态
	EventPeerStatus    EventType = "peer_status"    // 对端加密状态
)

// Event 会话事件
type Event struct {
	Type     EventType
	PeerID   string
	Status   ConnectionStatus
	Message  *Message
	Outgoing bool
	IsTyping bool
	Err      error
}

// eventBus 事件分发器
// 在独立的 inbox 中按顺序回调监听器，不阻塞会话
type eventBus struct {
	phony.Inbox
	_listeners map[int]func(Event)
	_nextID    int
}

func newEventBus() *eventBus {
	return &eventBus{_listeners: make(map[int]func(Event))}
}

// subscribe 注册监听器
// 取消函数返回后监听器不会再被调用；不能在监听器内部调用取消函数
func (b *eventBus) subscribe(fn func(Event)) func() {
	var id int
	phony.Block(b, func() {
		id = b._nextID
		b._nextID++
		b._listeners[id] = fn
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			phony.Block(b, func() {
				delete(b._listeners, id)
			})
		})
	}
}

func (b *eventBus) emit(e Event) {
	b.Act(nil, func() {
		ids := make([]int, 0, len(b._listeners))
		for id := range b._listeners {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			b._listeners[id](e)
		}
	})
}

// copyMessage 复制消息，避免事件接收方与会话共享可变状态
func copyMessage(m *Message) *Message {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Envelope = m.Envelope.Clone()
	return &cp
}
