package robot

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrHostNotSet 尚未设置 AMR 地址
	ErrHostNotSet = errors.New("amr host is not set")
	// ErrInvalidHost 地址格式不合法
	ErrInvalidHost = errors.New("invalid amr host")
	// ErrJogThrottled 点动请求过于频繁
	ErrJogThrottled = errors.New("jog command throttled")
	// ErrNoSnapshot 尚未收到推送数据
	ErrNoSnapshot = errors.New("no telemetry snapshot")
)

// RemoteError 设备以非零 ret_code 拒绝了命令
type RemoteError struct {
	API     string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("amr %s rejected: ret_code=%d", e.API, e.Code)
	}
	return fmt.Sprintf("amr %s rejected: ret_code=%d: %s", e.API, e.Code, e.Message)
}

type retStatus struct {
	RetCode *int   `json:"ret_code"`
	ErrMsg  string `json:"err_msg"`
}

// checkRetCode 响应为 JSON 对象且 ret_code 存在且非零时返回 *RemoteError
func checkRetCode(api string, body json.RawMessage) error {
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	var st retStatus
	if json.Unmarshal(body, &st) != nil || st.RetCode == nil || *st.RetCode == 0 {
		return nil
	}
	return &RemoteError{API: api, Code: *st.RetCode, Message: st.ErrMsg}
}
