package main

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-decision/internal/config"
)

func testConfig(port string) config.Config {
	return config.Config{
		Port:            port,
		AllowedOrigins:  []string{config.DefaultDevOrigin},
		StatsDisabled:   true,
		LogLevel:        "info",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}
}

func TestRunReturnsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	done := make(chan error, 1)
	go func() { done <- run(testConfig(port)) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listen on :"+port)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return for an occupied port")
	}
}

func TestRunReturnsRouterError(t *testing.T) {
	cfg := testConfig("0")
	cfg.AllowedOrigins = []string{"localhost:5173"}

	err := run(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configure router")
}
