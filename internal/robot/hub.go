package robot

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/taoyao-code/amr-console/internal/pushsub"
)

// Hub 将推送事件扇出给多个订阅者（websocket 客户端）。
// 订阅者处理过慢时丢弃事件，不阻塞推送读协程。
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]chan pushsub.Event
	buffer  int
	dropped atomic.Uint64
}

// NewHub 创建扇出器
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[string]chan pushsub.Event), buffer: buffer}
}

// Subscribe 注册订阅者，cancel 后通道被关闭
func (h *Hub) Subscribe() (string, <-chan pushsub.Event, func()) {
	id := uuid.NewString()
	ch := make(chan pushsub.Event, h.buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return id, ch, cancel
}

// Publish 投递给所有订阅者
func (h *Hub) Publish(ev pushsub.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Count 当前订阅者数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped 累计丢弃事件数
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
