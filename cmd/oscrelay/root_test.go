package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"osc-relay/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var endpoints = []string{"127.0.0.1:9000", "127.0.0.1:9001", "127.0.0.1:9002", "127.0.0.1:9003"}

// execute runs the command and returns the configuration it would start with.
func execute(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()

	var got config.Config
	cmd := newRootCmd(func(_ context.Context, cfg config.Config) error {
		got = cfg
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))

	err := cmd.Execute()
	return got, err
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDefaults(t *testing.T) {
	t.Setenv("OSCRELAY_LOG_LEVEL", "")

	cfg, err := execute(t, endpoints...)
	require.NoError(t, err)

	assert.Equal(t, config.Endpoints{
		HostSend:      "127.0.0.1:9000",
		HostReceive:   "127.0.0.1:9001",
		DeviceSend:    "127.0.0.1:9002",
		DeviceReceive: "127.0.0.1:9003",
	}, cfg.Endpoints)
	assert.Equal(t, uint(config.DefaultQueueCapacity), cfg.QueueCapacity)
	assert.Equal(t, uint(config.DefaultBufferSize), cfg.BufferSize)
	assert.False(t, cfg.StrictFraming)
}

func TestFlags(t *testing.T) {
	cfg, err := execute(t, append([]string{
		"--queue-capacity", "8",
		"--buffer-size", "512",
		"--strict-framing",
		"--stats-interval", "10s",
		"--metrics-addr", ":9100",
		"--log-level", "debug",
	}, endpoints...)...)
	require.NoError(t, err)

	assert.Equal(t, uint(8), cfg.QueueCapacity)
	assert.Equal(t, uint(512), cfg.BufferSize)
	assert.True(t, cfg.StrictFraming)
	assert.Equal(t, 10*time.Second, cfg.StatsInterval)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
queue_capacity = 16
buffer_size = 256

[endpoints]
host_send = "10.0.0.1:1"
host_receive = "10.0.0.1:2"
device_send = "10.0.0.1:3"
device_receive = "10.0.0.1:4"

[log]
level = "warn"
`), 0o600))
	t.Setenv("OSCRELAY_LOG_LEVEL", "error")

	cfg, err := execute(t, append([]string{"--config", path, "--queue-capacity", "4"}, endpoints...)...)
	require.NoError(t, err)

	assert.Equal(t, uint(4), cfg.QueueCapacity)               // flag over file.
	assert.Equal(t, uint(256), cfg.BufferSize)                // file over default.
	assert.Equal(t, "error", cfg.Log.Level)                   // env over file.
	assert.Equal(t, "127.0.0.1:9000", cfg.Endpoints.HostSend) // arguments over file.
}

func TestArgumentCount(t *testing.T) {
	_, err := execute(t, endpoints[:3]...)
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, "127.0.0.1:9000", "127.0.0.1:9001", "127.0.0.1", "127.0.0.1:9003")
	assert.ErrorIs(t, err, config.ErrInvalidEndpoint)

	_, err = execute(t, append([]string{"--queue-capacity", "0"}, endpoints...)...)
	assert.ErrorIs(t, err, config.ErrInvalidValue)

	_, err = execute(t, append([]string{"--config", "relay.json"}, endpoints...)...)
	assert.ErrorIs(t, err, config.ErrUnsupportedFormat)
}

func TestMetricsAddrInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Default()
	cfg.Endpoints = config.Endpoints{
		HostSend:      "127.0.0.1:9000",
		HostReceive:   "127.0.0.1:0",
		DeviceSend:    "127.0.0.1:9002",
		DeviceReceive: "127.0.0.1:0",
	}
	cfg.Log.Level = "disabled"
	cfg.MetricsAddr = ln.Addr().String()

	done := make(chan error, 1)
	go func() { done <- run(context.Background(), cfg) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "binding metrics")
	case <-time.After(time.Second):
		t.Fatal("relay started without its metrics endpoint")
	}
}

func TestServeMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := serveMetrics(ln, prometheus.NewRegistry(), zerolog.Nop())
	defer srv.Close()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
