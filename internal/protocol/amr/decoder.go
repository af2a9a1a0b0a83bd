package amr

import (
	"errors"
	"fmt"
)

// Decoder 连接级累积缓冲：跨多次读取拼接字节流并逐帧切分。
// 一次读取可能包含0、1或多帧，也可能只有半帧；未消费的字节留到下一次 Feed。
type Decoder struct {
	profile     Profile
	maxBody     uint32 // 0 表示不限制
	checkMarker bool
	buf         []byte
}

// DecoderOption 解码器选项
type DecoderOption func(*Decoder)

// WithMaxBodyLength 超过上限的 bodyLength 视为帧头损坏
func WithMaxBodyLength(n uint32) DecoderOption {
	return func(d *Decoder) { d.maxBody = n }
}

// WithMarkerCheck 是否按画像校验标记字节
func WithMarkerCheck(on bool) DecoderOption {
	return func(d *Decoder) { d.checkMarker = on }
}

// NewDecoder 创建解码器，默认校验标记字节
func NewDecoder(p Profile, opts ...DecoderOption) *Decoder {
	d := &Decoder{profile: p, checkMarker: true}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Feed 追加新读到的字节
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Buffered 当前缓冲中尚未消费的字节数
func (d *Decoder) Buffered() int { return len(d.buf) }

// Reset 丢弃缓冲
func (d *Decoder) Reset() { d.buf = d.buf[:0] }

// Next 解出下一帧。
//   - ErrNeedMoreData：数据不足，缓冲不变
//   - KindMalformedBody：帧已消费，返回的 Frame 携带原始正文
//   - KindCorruptHeader：帧边界不可信，缓冲不变，调用方应关闭连接
func (d *Decoder) Next() (Frame, error) {
	if len(d.buf) < HeaderSize {
		return Frame{}, ErrNeedMoreData
	}
	h := d.buf[:HeaderSize]
	if d.checkMarker && !d.profile.CheckMarker(h) {
		return Frame{}, &Error{Kind: KindCorruptHeader, Op: "decode",
			Err: fmt.Errorf("marker % X does not match %s profile", h[:2], d.profile.Name())}
	}
	hdr := d.profile.ParseHeader(h)
	if d.maxBody > 0 && hdr.BodyLength > d.maxBody {
		return Frame{}, &Error{Kind: KindCorruptHeader, Op: "decode", APIID: hdr.APIID,
			Err: fmt.Errorf("body length %d exceeds limit %d", hdr.BodyLength, d.maxBody)}
	}

	f, n, err := TryDecodeFrame(d.profile, d.buf)
	if errors.Is(err, ErrNeedMoreData) {
		return Frame{}, err
	}
	d.buf = d.buf[:copy(d.buf, d.buf[n:])]
	return f, err
}

// Drain 依次取出缓冲中的全部完整帧交给 fn（err 为 nil 或正文错误）。
// 数据不足时返回 nil；帧头损坏时返回该错误。
func (d *Decoder) Drain(fn func(Frame, error)) error {
	for {
		f, err := d.Next()
		switch {
		case err == nil:
			fn(f, nil)
		case errors.Is(err, ErrNeedMoreData):
			return nil
		case KindOf(err) == KindMalformedBody:
			fn(f, err)
		default:
			return err
		}
	}
}
