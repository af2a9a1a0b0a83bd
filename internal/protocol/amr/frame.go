package amr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"
)

// MaxBodyLength 32位长度字段可表示的最大正文长度
const MaxBodyLength = math.MaxUint32

// Header 解析后的帧头
type Header struct {
	Marker     [2]byte // 0..1 字节原样保留，由调用方按画像校验
	APIID      uint16
	BodyLength uint32
	Sequence   uint32
}

// FrameSize 帧总长度 = 16 + bodyLength
func (h Header) FrameSize() uint64 { return HeaderSize + uint64(h.BodyLength) }

// Frame 一个完整的帧（帧头 + JSON 正文）
type Frame struct {
	Header
	Body json.RawMessage // 长度为0的正文为 nil
}

// Decode 将正文反序列化到 v；空正文不修改 v
func (f *Frame) Decode(v any) error {
	if len(f.Body) == 0 {
		return nil
	}
	return json.Unmarshal(f.Body, v)
}

// MarshalBody 将正文对象序列化为紧凑 UTF-8 JSON。
// nil 与空 RawMessage 得到零长度正文；不转义 HTML 字符，与设备端 JSON 序列化保持一致。
func MarshalBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return compactRaw(v)
	case *json.RawMessage:
		if v == nil {
			return nil, nil
		}
		return compactRaw(*v)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func compactRaw(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode 按画像编码一帧。输出长度恒为 16 + len(body JSON)。
func Encode(p Profile, apiID uint16, seq uint32, body any) ([]byte, error) {
	payload, err := MarshalBody(body)
	if err != nil {
		return nil, &Error{Kind: KindMalformedBody, Op: "encode", APIID: apiID, Err: err}
	}
	if err := checkBodyLength(uint64(len(payload))); err != nil {
		return nil, &Error{Kind: KindPayloadTooLarge, Op: "encode", APIID: apiID, Err: err}
	}

	buf := make([]byte, HeaderSize+len(payload))
	p.PutHeader(buf[:HeaderSize], apiID, seq, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

func checkBodyLength(n uint64) error {
	if n > MaxBodyLength {
		return fmt.Errorf("body is %d bytes, limit %d", n, uint64(MaxBodyLength))
	}
	return nil
}

// TryDecodeHeader 不足16字节返回 ErrNeedMoreData；不校验标记字节
func TryDecodeHeader(p Profile, buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrNeedMoreData
	}
	return p.ParseHeader(buf[:HeaderSize]), nil
}

// TryDecodeFrame 从 buf 头部解出一帧，返回消耗的字节数。
// 帧不完整时返回 ErrNeedMoreData 且消耗为0；正文非法 JSON 时仍返回帧与消耗字节数，
// 错误为 KindMalformedBody，调用方可跳过该帧继续解析。
func TryDecodeFrame(p Profile, buf []byte) (Frame, int, error) {
	h, err := TryDecodeHeader(p, buf)
	if err != nil {
		return Frame{}, 0, err
	}
	total := h.FrameSize()
	if uint64(len(buf)) < total {
		return Frame{}, 0, ErrNeedMoreData
	}

	n := int(total)
	f := Frame{Header: h}
	if h.BodyLength > 0 {
		f.Body = make(json.RawMessage, h.BodyLength)
		copy(f.Body, buf[HeaderSize:n])
		if !utf8.Valid(f.Body) || !json.Valid(f.Body) {
			return f, n, &Error{Kind: KindMalformedBody, Op: "decode", APIID: h.APIID,
				Err: fmt.Errorf("%d byte body is not valid JSON", h.BodyLength)}
		}
	}
	return f, n, nil
}
