package network

import (
	"fmt"
	"sync"
)

// MessageDispatcher 帧分发器
// 按事件名将收到的帧路由到处理器
type MessageDispatcher struct {
	handlers       map[string]FrameHandlerInterface
	defaultHandler FrameHandlerInterface
	mu             sync.RWMutex
	logger         Logger
}

// 确保 MessageDispatcher 实现了 MessageDispatcherInterface 接口
var _ MessageDispatcherInterface = (*MessageDispatcher)(nil)

// NewMessageDispatcher 创建帧分发器
func NewMessageDispatcher(logger Logger) *MessageDispatcher {
	return &MessageDispatcher{
		handlers: make(map[string]FrameHandlerInterface),
		logger:   logger,
	}
}

// HandlerFunc 函数形式的帧处理器
type HandlerFunc struct {
	Event string
	Fn    func(frame *Frame) error
}

// HandleFrame 处理帧
func (h HandlerFunc) HandleFrame(frame *Frame) error {
	return h.Fn(frame)
}

// GetEventType 处理的事件名
func (h HandlerFunc) GetEventType() string {
	return h.Event
}

// RegisterHandler 注册帧处理器
func (md *MessageDispatcher) RegisterHandler(handler FrameHandlerInterface) error {
	if handler == nil {
		return fmt.Errorf("处理器不能为空")
	}

	eventType := handler.GetEventType()
	if eventType == "" {
		return fmt.Errorf("处理器事件类型不能为空")
	}

	md.mu.Lock()
	defer md.mu.Unlock()

	if _, exists := md.handlers[eventType]; exists {
		return fmt.Errorf("事件 %s 的处理器已存在", eventType)
	}
	md.handlers[eventType] = handler
	return nil
}

// UnregisterHandler 注销帧处理器
func (md *MessageDispatcher) UnregisterHandler(eventType string) error {
	md.mu.Lock()
	defer md.mu.Unlock()

	if _, exists := md.handlers[eventType]; !exists {
		return fmt.Errorf("事件 %s 的处理器不存在", eventType)
	}
	delete(md.handlers, eventType)
	return nil
}

// DispatchMessage 分发帧
func (md *MessageDispatcher) DispatchMessage(frame *Frame) error {
	if frame == nil {
		return fmt.Errorf("帧不能为空")
	}

	md.mu.RLock()
	handler, exists := md.handlers[frame.Event]
	defaultHandler := md.defaultHandler
	md.mu.RUnlock()

	if exists {
		return md.invoke(handler, frame)
	}
	if defaultHandler != nil {
		return md.invoke(defaultHandler, frame)
	}

	if md.logger != nil {
		md.logger.Warnf("[MessageDispatcher] 未找到事件 %s 的处理器", frame.Event)
	}
	return &NetworkError{
		Code:    ErrCodeHandlerNotFound,
		Message: fmt.Sprintf("未找到事件 %s 的处理器", frame.Event),
	}
}

// invoke 调用处理器，处理器 panic 时转换为错误
func (md *MessageDispatcher) invoke(handler FrameHandlerInterface, frame *Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("处理事件 %s 时发生 panic: %v", frame.Event, r)
			if md.logger != nil {
				md.logger.Errorf("[MessageDispatcher] %v", err)
			}
		}
	}()
	return handler.HandleFrame(frame)
}

// SetDefaultHandler 设置默认处理器
func (md *MessageDispatcher) SetDefaultHandler(handler FrameHandlerInterface) {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.defaultHandler = handler
}

// GetHandlerCount 获取处理器数量
func (md *MessageDispatcher) GetHandlerCount() int {
	md.mu.RLock()
	defer md.mu.RUnlock()
	return len(md.handlers)
}
