package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/pushsub"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage 推送给浏览器的事件
type wsMessage struct {
	Type           string          `json:"type"` // frame | frame_error | error | end
	SubscriptionID string          `json:"subscription_id"`
	APIID          uint16          `json:"api_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Error          string          `json:"error,omitempty"`
	At             time.Time       `json:"at"`
}

func toWSMessage(ev pushsub.Event) wsMessage {
	m := wsMessage{Type: ev.Kind.String(), SubscriptionID: ev.SubscriptionID, At: ev.At}
	if ev.Err != nil {
		m.Error = ev.Err.Error()
	}
	if ev.Kind == pushsub.EventFrame || ev.Kind == pushsub.EventFrameError {
		m.APIID = ev.Frame.APIID
		if ev.Kind == pushsub.EventFrame {
			m.Data = ev.Frame.Body
		}
	}
	return m
}

// PushStream 将推送事件转发到 websocket，不自动建立订阅
func (h *RobotHandler) PushStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	id, events, cancel := h.mgr.Hub().Subscribe()
	defer cancel()
	h.logger.Info("push websocket connected", zap.String("client", id), zap.String("remote_addr", c.ClientIP()))

	// 读协程只处理 pong/close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(toWSMessage(ev)); err != nil {
				h.logger.Debug("push websocket write failed", zap.String("client", id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			h.logger.Info("push websocket disconnected", zap.String("client", id))
			return
		}
	}
}
