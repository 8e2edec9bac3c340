package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialStream(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/decisions/stream"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) DecisionEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event DecisionEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestDecisionStreamReplaysAndBroadcasts(t *testing.T) {
	server, router := newTestServer(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/predict", "application/json", strings.NewReader(mediumRiskPayload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn, _, err := dialStream(t, srv, devOrigin)
	require.NoError(t, err)
	defer conn.Close()

	replay := readEvent(t, conn)
	assert.Equal(t, "decision", replay.Type)
	assert.Equal(t, 55, replay.RiskScore)
	assert.Equal(t, "MEDIUM", replay.RiskLevel)
	assert.Equal(t, "Approve with conditions", replay.Decision)
	assert.NotEmpty(t, replay.RequestID)
	assert.False(t, replay.Timestamp.IsZero())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/predict", strings.NewReader(highRiskPayload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "stream-test")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	live := readEvent(t, conn)
	assert.Equal(t, "stream-test", live.RequestID)
	assert.Equal(t, 5, live.RiskScore)
	assert.Equal(t, "HIGH", live.RiskLevel)
	assert.Equal(t, "Review / Reject", live.Decision)

	last := server.notifier.LastEvent()
	require.NotNil(t, last)
	assert.Equal(t, "stream-test", last.RequestID)
}

func TestDecisionStreamSkipsRejectedInput(t *testing.T) {
	server, router := newTestServer(t, nil)

	w := postPredict(t, router, `{"age": 17}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Nil(t, server.notifier.LastEvent())
}

func TestDecisionStreamRejectsForeignOrigin(t *testing.T) {
	_, router := newTestServer(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, resp, err := dialStream(t, srv, "https://elsewhere.example.com")
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDecisionNotifierDropsClosedClients(t *testing.T) {
	server, router := newTestServer(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := dialStream(t, srv, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return server.notifier.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return server.notifier.Subscribers() == 0 }, 5*time.Second, 10*time.Millisecond)
}

// stalledConn accepts writes only once release is closed, like a peer that stopped reading.
type stalledConn struct {
	release chan struct{}
	closed  chan struct{}
	once    sync.Once

	mu     sync.Mutex
	events []DecisionEvent
}

func newStalledConn() *stalledConn {
	return &stalledConn{release: make(chan struct{}), closed: make(chan struct{})}
}

func (c *stalledConn) WriteJSON(v any) error {
	select {
	case <-c.release:
	case <-c.closed:
		return errors.New("connection closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, v.(DecisionEvent))
	return nil
}

func (c *stalledConn) SetWriteDeadline(time.Time) error { return nil }

func (c *stalledConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *stalledConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *stalledConn) received() []DecisionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DecisionEvent(nil), c.events...)
}

func TestDecisionNotifierDoesNotWaitForStalledSubscriber(t *testing.T) {
	notifier := NewDecisionNotifier()
	conn := newStalledConn()
	notifier.Register(conn)
	require.Equal(t, 1, notifier.Subscribers())

	start := time.Now()
	for i := 0; i < 10*streamQueueSize; i++ {
		notifier.Broadcast(DecisionEvent{Type: "decision", RequestID: fmt.Sprint(i)})
	}
	assert.Less(t, time.Since(start), time.Second)

	assert.Zero(t, notifier.Subscribers())
	assert.True(t, conn.isClosed())
	require.NotNil(t, notifier.LastEvent())
	assert.Equal(t, fmt.Sprint(10*streamQueueSize-1), notifier.LastEvent().RequestID)
}

func TestDecisionNotifierReplaysBeforeNewEvents(t *testing.T) {
	notifier := NewDecisionNotifier()
	notifier.Broadcast(DecisionEvent{Type: "decision", RequestID: "earlier"})

	conn := newStalledConn()
	sub := notifier.Register(conn)
	notifier.Broadcast(DecisionEvent{Type: "decision", RequestID: "later"})
	close(conn.release)

	require.Eventually(t, func() bool { return len(conn.received()) == 2 }, 5*time.Second, 10*time.Millisecond)
	got := conn.received()
	assert.Equal(t, "earlier", got[0].RequestID)
	assert.Equal(t, "later", got[1].RequestID)

	notifier.Unregister(sub)
	assert.Zero(t, notifier.Subscribers())
	assert.True(t, conn.isClosed())
}

func TestPredictUnaffectedByIdleStreamClient(t *testing.T) {
	server, router := newTestServer(t, func(cfg *Config) { cfg.DisableStats = true })
	srv := httptest.NewServer(router)
	defer srv.Close()

	conn, _, err := dialStream(t, srv, "")
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return server.notifier.Subscribers() == 1 }, 5*time.Second, 10*time.Millisecond)

	var worst time.Duration
	for i := 0; i < 500; i++ {
		start := time.Now()
		w := postPredict(t, router, mediumRiskPayload)
		require.Equal(t, http.StatusOK, w.Code)
		if elapsed := time.Since(start); elapsed > worst {
			worst = elapsed
		}
	}
	assert.Less(t, worst, time.Second)
}
