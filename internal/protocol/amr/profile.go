package amr

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// 帧头固定常量
const (
	HeaderSize = 16 // 帧头长度，与正文长度无关

	MagicWord   = 0x55AA // 画像A：2字节魔数
	SyncByte    = 0x5A   // 画像B：同步字节
	VersionByte = 0x01   // 画像B：协议版本
)

// 画像名称（配置/目录中使用）
const (
	ProfileNameMagic = "magic"
	ProfileNameSync  = "sync"
)

// Profile 帧头布局策略。
// 两种布局都把正文长度放在 4..7 字节（BE32），差异只在标记字节、apiId 与序号的位置。
type Profile interface {
	// Name 返回画像名称
	Name() string
	// PutHeader 向 h[:HeaderSize] 写入帧头，h 必须已清零
	PutHeader(h []byte, apiID uint16, seq uint32, bodyLen uint32)
	// ParseHeader 按画像读取帧头字段，不校验标记字节
	ParseHeader(h []byte) Header
	// CheckMarker 校验标记字节是否属于本画像
	CheckMarker(h []byte) bool
}

type magicProfile struct{}

// ProfileMagic 画像A：0x55AA | apiId BE16 | len BE32 | seq BE32 | 4字节保留
var ProfileMagic Profile = magicProfile{}

func (magicProfile) Name() string { return ProfileNameMagic }

func (magicProfile) PutHeader(h []byte, apiID uint16, seq uint32, bodyLen uint32) {
	binary.BigEndian.PutUint16(h[0:2], MagicWord)
	binary.BigEndian.PutUint16(h[2:4], apiID)
	binary.BigEndian.PutUint32(h[4:8], bodyLen)
	binary.BigEndian.PutUint32(h[8:12], seq)
}

func (magicProfile) ParseHeader(h []byte) Header {
	return Header{
		Marker:     [2]byte{h[0], h[1]},
		APIID:      binary.BigEndian.Uint16(h[2:4]),
		BodyLength: binary.BigEndian.Uint32(h[4:8]),
		Sequence:   binary.BigEndian.Uint32(h[8:12]),
	}
}

func (magicProfile) CheckMarker(h []byte) bool {
	return binary.BigEndian.Uint16(h[0:2]) == MagicWord
}

type syncProfile struct{}

// ProfileSync 画像B：0x5A 0x01 | serial BE16 | len BE32 | apiId BE16 | 6字节保留
var ProfileSync Profile = syncProfile{}

func (syncProfile) Name() string { return ProfileNameSync }

func (syncProfile) PutHeader(h []byte, apiID uint16, seq uint32, bodyLen uint32) {
	h[0] = SyncByte
	h[1] = VersionByte
	// serial 只有16位，取序号低16位
	binary.BigEndian.PutUint16(h[2:4], uint16(seq))
	binary.BigEndian.PutUint32(h[4:8], bodyLen)
	binary.BigEndian.PutUint16(h[8:10], apiID)
}

func (syncProfile) ParseHeader(h []byte) Header {
	return Header{
		Marker:     [2]byte{h[0], h[1]},
		APIID:      binary.BigEndian.Uint16(h[8:10]),
		BodyLength: binary.BigEndian.Uint32(h[4:8]),
		Sequence:   uint32(binary.BigEndian.Uint16(h[2:4])),
	}
}

func (syncProfile) CheckMarker(h []byte) bool {
	return h[0] == SyncByte && h[1] == VersionByte
}

// ProfileByName 根据名称返回画像（大小写不敏感，兼容 A/B 写法）
func ProfileByName(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProfileNameMagic, "a", "55aa":
		return ProfileMagic, nil
	case ProfileNameSync, "b", "5a01":
		return ProfileSync, nil
	default:
		return nil, fmt.Errorf("unknown header profile: %q", name)
	}
}
