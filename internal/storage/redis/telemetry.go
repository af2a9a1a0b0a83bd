package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	telemetryKeyFmt  = "amr:telemetry:%s" // 每台 AMR 最近一帧推送（String，带 TTL）
	TelemetryChannel = "amr:telemetry"    // 推送帧广播频道
)

// ErrNoSnapshot 缓存中没有该 AMR 的推送数据
var ErrNoSnapshot = errors.New("no telemetry snapshot")

// Snapshot 最近一帧推送数据
type Snapshot struct {
	Host       string          `json:"host"`
	APIID      uint16          `json:"api_id"`
	Body       json.RawMessage `json:"body"`
	ReceivedAt time.Time       `json:"received_at"`
}

// TelemetryCache 推送数据缓存与广播
type TelemetryCache struct {
	client *Client
	ttl    time.Duration
}

// NewTelemetryCache 创建缓存；ttl<=0 时不过期
func NewTelemetryCache(client *Client, ttl time.Duration) *TelemetryCache {
	return &TelemetryCache{client: client, ttl: ttl}
}

// TelemetryKey 某台 AMR 的缓存键
func TelemetryKey(host string) string { return fmt.Sprintf(telemetryKeyFmt, host) }

// Put 覆盖最近快照并广播
func (c *TelemetryCache) Put(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, TelemetryKey(s.Host), data, c.ttl)
	pipe.Publish(ctx, TelemetryChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache telemetry: %w", err)
	}
	return nil
}

// Latest 读取最近快照
func (c *TelemetryCache) Latest(ctx context.Context, host string) (Snapshot, error) {
	data, err := c.client.Get(ctx, TelemetryKey(host)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Subscribe 订阅广播频道，ctx 结束时关闭返回的通道
func (c *TelemetryCache) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	sub := c.client.Subscribe(ctx, TelemetryChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan Snapshot, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var s Snapshot
				if json.Unmarshal([]byte(m.Payload), &s) != nil {
					continue
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
