package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AMR_CONFIG", "")
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "amr-console", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Second, cfg.Robot.DialTimeout)
	assert.Equal(t, 10*time.Second, cfg.Robot.CallTimeout)
	assert.Equal(t, uint32(64<<20), cfg.Robot.MaxFrameBytes)
	assert.Zero(t, cfg.Robot.Breaker.Threshold)
	assert.Equal(t, 10.0, cfg.Jog.RatePerSec)
	assert.Equal(t, 5, cfg.Jog.Burst)
	assert.False(t, cfg.Database.Enable)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 19301, cfg.Simulator.PushPort)
	assert.Equal(t, 100*time.Millisecond, cfg.Simulator.PushInterval)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
robot:
  host: 192.168.0.20
  callTimeout: 2s
  breaker:
    threshold: 3
jog:
  ratePerSec: 4
api:
  auth:
    enabled: true
    apiKeys: ["k1", "k2"]
`), 0o600))

	t.Setenv("AMR_ROBOT_HOST", "10.0.0.9")
	t.Setenv("AMR_REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "10.0.0.9", cfg.Robot.Host)
	assert.Equal(t, 2*time.Second, cfg.Robot.CallTimeout)
	assert.Equal(t, 3, cfg.Robot.Breaker.Threshold)
	assert.Equal(t, 4.0, cfg.Jog.RatePerSec)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"k1", "k2"}, cfg.API.Auth.APIKeys)
}

func TestValidate(t *testing.T) {
	t.Setenv("AMR_CONFIG", "")
	t.Chdir(t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"调用超时", func(c *Config) { c.Robot.CallTimeout = 0 }, "robot.callTimeout"},
		{"建连超时", func(c *Config) { c.Robot.DialTimeout = -time.Second }, "robot.dialTimeout"},
		{"数据库缺少DSN", func(c *Config) { c.Database.Enable = true; c.Database.DSN = "" }, "database.dsn"},
		{"认证缺少密钥", func(c *Config) { c.API.Auth.Enabled = true }, "apiKeys"},
		{"点动限流为负", func(c *Config) { c.Jog.Burst = -1 }, "jog"},
		{"模拟器推送周期", func(c *Config) { c.Simulator.PushInterval = 0 }, "pushInterval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := *base
			tc.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tc.want)
		})
	}
}

func TestSimulatorListener(t *testing.T) {
	s := SimulatorConfig{Host: "127.0.0.1", ReadTimeout: time.Second, MaxConnections: 8}
	l := s.Listener(19204)
	assert.Equal(t, "127.0.0.1:19204", l.Addr)
	assert.Equal(t, time.Second, l.ReadTimeout)
	assert.Equal(t, 8, l.MaxConnections)
}
