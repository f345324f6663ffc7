package network

// FrameHandlerInterface 帧处理器接口
type FrameHandlerInterface interface {
	HandleFrame(frame *Frame) error
	GetEventType() string
}

// MessageDispatcherInterface 帧分发器接口
type MessageDispatcherInterface interface {
	RegisterHandler(handler FrameHandlerInterface) error
	UnregisterHandler(eventType string) error
	DispatchMessage(frame *Frame) error
	SetDefaultHandler(handler FrameHandlerInterface)
	GetHandlerCount() int
}

// GatewayObserver 网关事件观察者（指标采集）
type GatewayObserver interface {
	ClientConnected()
	ClientDisconnected()
	FrameRelayed(event string)
	FrameDropped(event, reason string)
}

// Logger 日志接口
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// 网络错误类型
type NetworkError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"cause,omitempty"`
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// 常见网络错误代码
const (
	ErrCodeConnectionFailed = 1001
	ErrCodeTimeout          = 1002
	ErrCodeInvalidMessage   = 1003
	ErrCodeHandlerNotFound  = 1004
	ErrCodeRecipientOffline = 1005
	ErrCodeNotJoined        = 1006
)
