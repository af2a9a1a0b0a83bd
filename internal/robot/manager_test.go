package robot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taoyao-code/amr-console/internal/amrclient"
	"github.com/taoyao-code/amr-console/internal/command"
	"github.com/taoyao-code/amr-console/internal/protocol/amr"
	"github.com/taoyao-code/amr-console/internal/pushsub"
	"github.com/taoyao-code/amr-console/internal/storage"
	"github.com/taoyao-code/amr-console/internal/storage/models"
	redisstorage "github.com/taoyao-code/amr-console/internal/storage/redis"
)

// stubCaller 记录请求并按 apiId 返回预设正文
type stubCaller struct {
	mu     sync.Mutex
	reqs   []amrclient.Request
	bodies map[uint16]string
	err    error
}

func (s *stubCaller) Call(_ context.Context, req amrclient.Request) (*amrclient.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	body := `{"ret_code":0}`
	if b, ok := s.bodies[req.APIID]; ok {
		body = b
	}
	return &amrclient.Response{Frame: amr.Frame{
		Header: amr.Header{APIID: req.APIID},
		Body:   json.RawMessage(body),
	}}, nil
}

func (s *stubCaller) last(t *testing.T) amrclient.Request {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.reqs)
	return s.reqs[len(s.reqs)-1]
}

func (s *stubCaller) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func newTestManager(t *testing.T, caller Caller, deps Deps) (*Manager, *storage.MemoryRepo) {
	t.Helper()
	repo := storage.NewMemoryRepo(10)
	deps.Logger = zaptest.NewLogger(t)
	deps.Client = caller
	deps.Repo = repo
	m := NewManager(deps, Options{CallTimeout: time.Second, DialTimeout: time.Second})
	t.Cleanup(m.Close)
	return m, repo
}

func TestManager_HostLifecycle(t *testing.T) {
	ctx := context.Background()
	m, repo := newTestManager(t, &stubCaller{}, Deps{})

	_, err := m.MoveToStation(ctx, "LM3")
	assert.ErrorIs(t, err, ErrHostNotSet)

	for _, bad := range []string{"", "   ", "10.0.0.5:19204", "-robot", "a b", "http://x"} {
		assert.ErrorIs(t, m.SetHost(ctx, bad), ErrInvalidHost, bad)
	}

	require.NoError(t, m.SetHost(ctx, " 192.168.1.50 "))
	assert.Equal(t, "192.168.1.50", m.Host())
	v, err := repo.GetSetting(ctx, storage.KeyAMRHost)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.50", v)

	require.NoError(t, m.SetHost(ctx, "amr-01.local"))
	assert.Equal(t, "amr-01.local", m.Host())
}

func TestManager_LoadHost(t *testing.T) {
	ctx := context.Background()

	t.Run("持久化优先", func(t *testing.T) {
		m, repo := newTestManager(t, &stubCaller{}, Deps{})
		require.NoError(t, repo.PutSetting(ctx, storage.KeyAMRHost, "10.0.0.9"))
		require.NoError(t, m.LoadHost(ctx, "10.0.0.1"))
		assert.Equal(t, "10.0.0.9", m.Host())
	})

	t.Run("回退到配置", func(t *testing.T) {
		m, _ := newTestManager(t, &stubCaller{}, Deps{})
		require.NoError(t, m.LoadHost(ctx, "10.0.0.1"))
		assert.Equal(t, "10.0.0.1", m.Host())
	})

	t.Run("都没有", func(t *testing.T) {
		m, _ := newTestManager(t, &stubCaller{}, Deps{})
		require.NoError(t, m.LoadHost(ctx, ""))
		assert.Empty(t, m.Host())
	})
}

func TestManager_CommandsRouteToCatalogEndpoints(t *testing.T) {
	ctx := context.Background()
	caller := &stubCaller{}
	m, _ := newTestManager(t, caller, Deps{})
	require.NoError(t, m.SetHost(ctx, "10.0.0.5"))

	tests := []struct {
		name    string
		run     func() error
		apiID   uint16
		port    int
		profile amr.Profile
	}{
		{"move", func() error { _, err := m.MoveToStation(ctx, "LM3"); return err }, 3051, 19206, amr.ProfileSync},
		{"jog", func() error { _, err := m.Jog(ctx, command.DirUp); return err }, 2010, 19205, amr.ProfileSync},
		{"lift", func() error { _, err := m.Lift(ctx, command.LiftUp); return err }, 6070, 19204, amr.ProfileMagic},
		{"relocate", func() error { _, err := m.Relocate(ctx, RelocateRequest{Auto: true}); return err }, 2002, 19205, amr.ProfileSync},
		{"laser", func() error { _, err := m.LaserScan(ctx); return err }, 1009, 19204, amr.ProfileSync},
		{"slam start", func() error { _, err := m.StartSlam(ctx, command.DefaultSlamOptions()); return err }, 6100, 19210, amr.ProfileSync},
		{"slam stop", func() error { _, err := m.StopSlam(ctx); return err }, 6101, 19210, amr.ProfileSync},
		{"upload", func() error { _, err := m.UploadMap(ctx, json.RawMessage(`{"header":{}}`)); return err }, 4012, 19205, amr.ProfileSync},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.run())
			req := caller.last(t)
			assert.Equal(t, "10.0.0.5", req.Host)
			assert.Equal(t, tt.apiID, req.APIID)
			assert.Equal(t, tt.port, req.Port)
			assert.Equal(t, tt.profile, req.Profile)
			assert.Equal(t, time.Second, req.Timeout)
		})
	}
}

func TestManager_InvalidArgumentsDoNotCall(t *testing.T) {
	ctx := context.Background()
	caller := &stubCaller{}
	m, _ := newTestManager(t, caller, Deps{})
	require.NoError(t, m.SetHost(ctx, "10.0.0.5"))

	_, err := m.MoveToStation(ctx, "")
	assert.ErrorIs(t, err, command.ErrInvalidArgument)
	_, err = m.DownloadMap(ctx, "")
	assert.ErrorIs(t, err, command.ErrInvalidArgument)
	_, err = m.UploadMap(ctx, json.RawMessage(`{`))
	assert.ErrorIs(t, err, command.ErrInvalidArgument)
	assert.Zero(t, caller.count())
}

func TestManager_RemoteErrorAndAudit(t *testing.T) {
	ctx := context.Background()
	caller := &stubCaller{bodies: map[uint16]string{3051: `{"ret_code":40020,"err_msg":"station not found"}`}}
	m, _ := newTestManager(t, caller, Deps{})
	require.NoError(t, m.SetHost(ctx, "10.0.0.5"))

	_, err := m.MoveToStation(ctx, "LM404")
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 40020, re.Code)
	assert.Equal(t, "station not found", re.Message)

	res, err := m.LaserScan(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, uint16(1009), res.APIID)

	logs, err := m.RecentCommands(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, amr.APILaserScan, logs[0].Name)
	assert.Equal(t, models.ResultOK, logs[0].Result)
	assert.Equal(t, res.ID, logs[0].ID)
	assert.Equal(t, amr.APIMoveToStation, logs[1].Name)
	assert.Equal(t, models.ResultRemote, logs[1].Result)
	require.NotNil(t, logs[1].RetCode)
	assert.Equal(t, int32(40020), *logs[1].RetCode)
}

func TestManager_TransportErrorIsAudited(t *testing.T) {
	ctx := context.Background()
	caller := &stubCaller{err: &amr.Error{Kind: amr.KindTimeout, Op: "read", Err: context.DeadlineExceeded}}
	m, _ := newTestManager(t, caller, Deps{})
	require.NoError(t, m.SetHost(ctx, "10.0.0.5"))

	_, err := m.Lift(ctx, command.LiftStop)
	assert.ErrorIs(t, err, amr.ErrTimeout)

	logs, err := m.RecentCommands(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "timeout", logs[0].Result)
	assert.Nil(t, logs[0].RetCode)
	assert.NotEmpty(t, logs[0].Error)
}

func TestManager_ListAndDownloadMaps(t *testing.T) {
	ctx := context.Background()
	caller := &stubCaller{bodies: map[uint16]string{
		1300: `{"ret_code":0,"maps":["floor1","floor2"]}`,
		4011: `{"header":{"mapName":"floor1"},"normalPosList":[]}`,
	}}
	m, _ := newTestManager(t, caller, Deps{})
	require.NoError(t, m.SetHost(ctx, "10.0.0.5"))

	maps, err := m.ListMaps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"floor1", "floor2"}, maps)

	doc, err := m.DownloadMap(ctx, "floor1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"header":{"mapName":"floor1"},"normalPosList":[]}`, string(doc))
	assert.JSONEq(t, `{"map_name":"floor1"}`, mustJSON(t, caller.last(t).Body))

	caller.bodies[1300] = `{"ret_code":0}`
	maps, err = m.ListMaps(ctx)
	require.NoError(t, err)
	assert.Empty(t, maps)
	assert.NotNil(t, maps)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := amr.MarshalBody(v)
	require.NoError(t, err)
	return string(b)
}

func TestManager_JogThrottle(t *testing.T) {
	ctx := context.Background()
	caller := &stubCaller{}
	var throttled int
	m, _ := newTestManager(t, caller, Deps{Jog: NewJogThrottle(0.001, 1)})
	m.SetMetricsCallbacks(func() { throttled++ })
	require.NoError(t, m.SetHost(ctx, "10.0.0.5"))

	_, err := m.Jog(ctx, command.DirLeft)
	require.NoError(t, err)
	_, err = m.Jog(ctx, command.DirLeft)
	assert.ErrorIs(t, err, ErrJogThrottled)
	assert.Equal(t, 1, throttled)

	// 停止不受限流
	_, err = m.Jog(ctx, command.DirStop)
	require.NoError(t, err)
	assert.Equal(t, 2, caller.count())

	st := m.JogStats()
	assert.Equal(t, int64(1), st.AllowedTotal)
	assert.Equal(t, int64(1), st.RejectedTotal)
}

func TestManager_PushFeedsTelemetryAndHub(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	release := make(chan struct{})
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		frame, _ := amr.Encode(amr.ProfileMagic, 19301, 0, map[string]float64{"x": 1.5, "y": -2, "angle": 0.1, "battery_level": 0.87})
		_, _ = c.Write(frame)
		<-release
	}()
	t.Cleanup(func() { close(release) })

	cat := amr.DefaultCatalog()
	cat.Push.Port = ln.Addr().(*net.TCPAddr).Port
	hub := NewHub(8)
	m, _ := newTestManager(t, &stubCaller{}, Deps{Builder: command.NewBuilder(cat), Hub: hub})

	ctx := context.Background()
	_, err = m.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrHostNotSet)
	_, err = m.LatestTelemetry(ctx)
	assert.ErrorIs(t, err, ErrHostNotSet)

	require.NoError(t, m.SetHost(ctx, "127.0.0.1"))
	_, events, cancel := hub.Subscribe()
	defer cancel()

	id, err := m.Subscribe(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case ev := <-events:
		require.Equal(t, pushsub.EventFrame, ev.Kind)
		assert.Equal(t, id, ev.SubscriptionID)
	case <-time.After(3 * time.Second):
		t.Fatal("no push event")
	}

	var snap redisstorage.Snapshot
	require.Eventually(t, func() bool {
		snap, err = m.LatestTelemetry(ctx)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "127.0.0.1", snap.Host)
	assert.JSONEq(t, `{"x":1.5,"y":-2,"angle":0.1,"battery_level":0.87}`, string(snap.Body))
	assert.Equal(t, pushsub.StateStreaming, m.PushState())

	// 切换地址拆除订阅
	require.NoError(t, m.SetHost(ctx, "127.0.0.2"))
	assert.Equal(t, pushsub.StateClosed, m.PushState())
	_, err = m.LatestTelemetry(ctx)
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestManager_HostSwitchRacingSubscribe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var open atomic.Int32
	var wg sync.WaitGroup
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer c.Close()
				open.Add(1)
				defer open.Add(-1)
				_, _ = io.Copy(io.Discard, c)
			}()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
	})

	cat := amr.DefaultCatalog()
	cat.Push.Port = ln.Addr().(*net.TCPAddr).Port
	m, _ := newTestManager(t, &stubCaller{}, Deps{Builder: command.NewBuilder(cat)})
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		require.NoError(t, m.SetHost(ctx, "127.0.0.1"))

		var race sync.WaitGroup
		race.Add(2)
		go func() {
			defer race.Done()
			_, _ = m.Subscribe(ctx)
		}()
		go func() {
			defer race.Done()
			assert.NoError(t, m.SetHost(ctx, "127.0.0.2"))
		}()
		race.Wait()

		// 地址已切走，不应残留指向旧地址的连接
		require.Eventually(t, func() bool { return open.Load() == 0 }, 3*time.Second, 5*time.Millisecond,
			"round %d: subscription to the previous host still open", round)
		if st, ok := m.PushStats(); ok && m.PushState() == pushsub.StateStreaming {
			assert.Contains(t, st.Addr, "127.0.0.2", "round %d", round)
		}
	}
}

// blockingTelemetry Put 阻塞直到 release 关闭
type blockingTelemetry struct {
	*MemoryTelemetry
	release chan struct{}
}

func (b blockingTelemetry) Put(ctx context.Context, s redisstorage.Snapshot) error {
	<-b.release
	return b.MemoryTelemetry.Put(ctx, s)
}

func TestManager_SlowTelemetryDoesNotStallPush(t *testing.T) {
	const frames = 5
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	hold := make(chan struct{})
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		var buf []byte
		for i := 0; i < frames; i++ {
			f, _ := amr.Encode(amr.ProfileMagic, 19301, 0, map[string]int{"seq": i})
			buf = append(buf, f...)
		}
		_, _ = c.Write(buf)
		<-hold
	}()

	cat := amr.DefaultCatalog()
	cat.Push.Port = ln.Addr().(*net.TCPAddr).Port
	store := blockingTelemetry{MemoryTelemetry: NewMemoryTelemetry(), release: make(chan struct{})}
	hub := NewHub(16)
	m := NewManager(Deps{
		Logger:    zaptest.NewLogger(t),
		Builder:   command.NewBuilder(cat),
		Client:    &stubCaller{},
		Repo:      storage.NewMemoryRepo(10),
		Telemetry: store,
		Hub:       hub,
	}, Options{CallTimeout: time.Second, DialTimeout: time.Second, TelemetryBuffer: 1})
	t.Cleanup(m.Close)
	// 以下清理先于 m.Close 执行
	t.Cleanup(func() { close(hold) })
	var releaseOnce sync.Once
	t.Cleanup(func() { releaseOnce.Do(func() { close(store.release) }) })

	ctx := context.Background()
	require.NoError(t, m.SetHost(ctx, "127.0.0.1"))
	_, events, cancel := hub.Subscribe()
	defer cancel()
	_, err = m.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < frames; i++ {
		select {
		case ev := <-events:
			require.Equal(t, pushsub.EventFrame, ev.Kind)
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d not delivered while the store is blocked", i)
		}
	}
	// 写协程最多持有1个、队列最多1个
	assert.GreaterOrEqual(t, m.TelemetryDropped(), uint64(frames-2))

	releaseOnce.Do(func() { close(store.release) })
	require.Eventually(t, func() bool {
		_, err := m.LatestTelemetry(ctx)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
