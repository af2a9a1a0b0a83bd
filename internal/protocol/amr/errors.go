package amr

import (
	"errors"
	"fmt"
)

// ErrorKind 协议/传输错误分类
type ErrorKind int

const (
	KindConnection      ErrorKind = iota + 1 // 套接字层失败（拒绝、重置、DNS）
	KindPrematureClose                       // 完整帧到达前对端关闭
	KindMalformedBody                        // 帧头可信但正文不是合法 JSON
	KindPayloadTooLarge                      // 正文超出32位长度字段
	KindTimeout                              // 调用方期限到达
	KindCorruptHeader                        // 帧头不可信，后续帧边界无法确定
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindPrematureClose:
		return "premature_close"
	case KindMalformedBody:
		return "malformed_body"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindTimeout:
		return "timeout"
	case KindCorruptHeader:
		return "corrupt_header"
	default:
		return "unknown"
	}
}

// 分类哨兵，配合 errors.Is 使用
var (
	ErrConnection      = errors.New("amr: connection error")
	ErrPrematureClose  = errors.New("amr: connection closed before a full frame")
	ErrMalformedBody   = errors.New("amr: malformed frame body")
	ErrPayloadTooLarge = errors.New("amr: payload too large")
	ErrTimeout         = errors.New("amr: timeout")
	ErrCorruptHeader   = errors.New("amr: corrupt frame header")

	// ErrNeedMoreData 缓冲区尚不足以解出帧头或完整帧（不是失败）
	ErrNeedMoreData = errors.New("amr: need more data")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindPrematureClose:
		return ErrPrematureClose
	case KindMalformedBody:
		return ErrMalformedBody
	case KindPayloadTooLarge:
		return ErrPayloadTooLarge
	case KindTimeout:
		return ErrTimeout
	case KindCorruptHeader:
		return ErrCorruptHeader
	default:
		return nil
	}
}

// Error 单次连接尝试内产生的分类错误
type Error struct {
	Kind  ErrorKind
	Op    string // encode | dial | write | read | decode
	Addr  string
	APIID uint16
	Err   error
}

func (e *Error) Error() string {
	msg := "amr " + e.Kind.String()
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Addr != "" {
		msg += " (" + e.Addr + ")"
	}
	if e.APIID != 0 {
		msg += fmt.Sprintf(" api=0x%04X", e.APIID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap 返回底层原因
func (e *Error) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrTimeout) 等按分类匹配
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf 提取错误分类，非 *Error 返回 0
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsFatalForStream 判断该错误是否意味着流式连接必须关闭
func IsFatalForStream(err error) bool {
	switch KindOf(err) {
	case KindMalformedBody:
		return false
	case 0:
		return err != nil && !errors.Is(err, ErrNeedMoreData)
	default:
		return true
	}
}
