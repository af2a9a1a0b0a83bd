package pushsub

import (
	"time"

	"github.com/taoyao-code/amr-console/internal/protocol/amr"
)

// State 订阅通道状态
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind 事件类型
type EventKind int

const (
	EventFrame      EventKind = iota + 1 // 一帧推送数据
	EventFrameError                      // 单帧正文非法，流继续
	EventError                           // 终止：连接错误或帧头损坏
	EventEnd                             // 终止：对端关闭
)

func (k EventKind) String() string {
	switch k {
	case EventFrame:
		return "frame"
	case EventFrameError:
		return "frame_error"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Terminal 是否为终止事件
func (k EventKind) Terminal() bool { return k == EventError || k == EventEnd }

// Event 推送事件，同一订阅内按线序投递
type Event struct {
	Kind           EventKind
	SubscriptionID string
	Frame          amr.Frame // EventFrame / EventFrameError
	Err            error     // EventFrameError / EventError
	At             time.Time
}

// Handler 事件回调，在读协程中同步调用。
// 回调内不得同步调用 Subscribe/Unsubscribe，需要时另起协程。
type Handler func(Event)
