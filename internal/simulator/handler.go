package simulator

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/protocol/amr"
	"github.com/taoyao-code/amr-console/internal/tcpserver"
)

// retInvalidJSON 请求正文非法时的 ret_code
const retInvalidJSON = 40000

// ackBody 通用应答
type ackBody struct {
	RetCode  int             `json:"ret_code"`
	APIID    uint16          `json:"api_id"`
	Received json.RawMessage `json:"received"`
}

type errorBody struct {
	RetCode int    `json:"ret_code"`
	ErrMsg  string `json:"err_msg"`
}

type mapListBody struct {
	RetCode int      `json:"ret_code"`
	Maps    []string `json:"maps"`
}

// mapStore 模拟设备上的地图
type mapStore struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

func newMapStore() *mapStore {
	return &mapStore{docs: map[string]json.RawMessage{
		"default": json.RawMessage(`{"header":{"mapType":"2D-Map","mapName":"default","minPos":{"x":-5,"y":-5},"maxPos":{"x":2,"y":2},"resolution":0.02},"normalPosList":[],"advancedPointList":[{"className":"LandMark","instanceName":"LM1","pos":{"x":0,"y":0}},{"className":"LandMark","instanceName":"LM3","pos":{"x":1.5,"y":-2}}]}`),
	}}
}

func (m *mapStore) names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for n := range m.docs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (m *mapStore) get(name string) (json.RawMessage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[name]
	return d, ok
}

// put 以 header.mapName 为名保存，缺省名为 "uploaded"
func (m *mapStore) put(doc json.RawMessage) string {
	var h struct {
		Header struct {
			MapName string `json:"mapName"`
		} `json:"header"`
	}
	_ = json.Unmarshal(doc, &h)
	name := h.Header.MapName
	if name == "" {
		name = "uploaded"
	}
	m.mu.Lock()
	m.docs[name] = append(json.RawMessage(nil), doc...)
	m.mu.Unlock()
	return name
}

// profileOf 按标记字节识别帧头画像；同一端口上两种画像都可能出现
func profileOf(buf []byte) (amr.Profile, bool) {
	switch {
	case amr.ProfileMagic.CheckMarker(buf):
		return amr.ProfileMagic, true
	case amr.ProfileSync.CheckMarker(buf):
		return amr.ProfileSync, true
	}
	return nil, false
}

// serveRequests 请求/响应连接：每收到一帧回一帧，apiId 与序号原样带回
func (r *Robot) serveRequests(cc *tcpserver.ConnContext) {
	var buf []byte
	cc.SetOnRead(func(b []byte) {
		buf = append(buf, b...)
		for len(buf) >= amr.HeaderSize {
			p, ok := profileOf(buf)
			if !ok {
				r.logger.Warn("unknown frame marker, closing", zap.Binary("marker", buf[:2]), zap.Uint64("conn", cc.ID()))
				_ = cc.Close()
				return
			}
			f, n, err := amr.TryDecodeFrame(p, buf)
			if errors.Is(err, amr.ErrNeedMoreData) {
				return
			}
			buf = buf[n:]

			var reply any
			if err != nil {
				reply = errorBody{RetCode: retInvalidJSON, ErrMsg: "invalid json body"}
			} else {
				reply = r.respond(f)
			}
			out, eerr := amr.Encode(p, f.APIID, f.Sequence, reply)
			if eerr != nil {
				r.logger.Error("encode reply failed", zap.Error(eerr))
				continue
			}
			if werr := cc.Write(out); werr != nil {
				return
			}
			r.logger.Debug("request served",
				zap.Uint16("api_id", f.APIID),
				zap.String("profile", p.Name()),
				zap.Uint64("conn", cc.ID()))
		}
	})
}

// respond 按 apiId 构造应答
func (r *Robot) respond(f amr.Frame) any {
	switch f.APIID {
	case r.ids.mapList:
		return mapListBody{Maps: r.maps.names()}
	case r.ids.mapDownload:
		var req struct {
			MapName string `json:"map_name"`
		}
		_ = f.Decode(&req)
		if doc, ok := r.maps.get(req.MapName); ok {
			return doc
		}
		return errorBody{RetCode: 40404, ErrMsg: "map not found: " + req.MapName}
	case r.ids.mapUpload:
		name := r.maps.put(f.Body)
		return ackBody{APIID: f.APIID, Received: mustRaw(name)}
	}
	received := f.Body
	if len(received) == 0 {
		received = json.RawMessage("null")
	}
	return ackBody{APIID: f.APIID, Received: received}
}

func mustRaw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
