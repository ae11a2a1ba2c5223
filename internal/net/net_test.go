package net

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LocalInk/internal/geom"
	"LocalInk/internal/worker"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := zap.NewNop()
	metrics := worker.NewMetrics("test")
	srv := NewServer(ServerOptions{
		Path:    "/worker",
		Pool:    worker.PoolConfig{Workers: 2, QueueSize: 4},
		Handler: worker.NewHandler(worker.HandlerOptions{Defaults: worker.DefaultDefaults, Metrics: metrics, Logger: logger}),
		Metrics: metrics,
		Logger:  logger,
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		srv.Sessions().CloseAll()
		ts.Close()
	})
	return srv, ts
}

func hostOf(ts *httptest.Server) string {
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestClient_RoundTrip(t *testing.T) {
	srv, ts := newTestServer(t)
	ctx := context.Background()

	c, err := Dial(ctx, hostOf(ts), "/worker", zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	d := worker.NewDispatcher(c, 5*time.Second, zap.NewNop())
	require.NoError(t, d.Ping(ctx))
	assert.Equal(t, 1, srv.Sessions().Count())

	pts := []geom.Point{geom.Pt(0, 0), geom.Pt(5, 0.1), geom.Pt(10, 0)}
	out, err := d.Simplify(ctx, pts, 1)
	require.NoError(t, err)
	assert.Equal(t, []geom.Point{geom.Pt(0, 0), geom.Pt(10, 0)}, out)

	a, err := d.Analyze(ctx, []geom.Point{geom.Pt(0, 0), geom.Pt(3, 4)})
	require.NoError(t, err)
	assert.Equal(t, 5.0, a.Length)

	_, err = d.Call(ctx, "rotate", nil)
	assert.True(t, worker.IsKind(err, worker.KindUnsupportedOperation))
}

func TestClient_ConcurrentCalls(t *testing.T) {
	_, ts := newTestServer(t)
	ctx := context.Background()

	c, err := Dial(ctx, hostOf(ts), "/worker", zap.NewNop())
	require.NoError(t, err)
	defer c.Close()
	d := worker.NewDispatcher(c, 5*time.Second, zap.NewNop())

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			a, err := d.Analyze(ctx, []geom.Point{geom.Pt(0, 0), geom.Pt(float64(i), 0)})
			if err == nil && a.Length != float64(i) {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	for i := 0; i < 10; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestServer_MalformedRequest(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws://" + hostOf(ts) + "/worker"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"operation":`)))

	var res worker.Result
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&res))
	require.NotNil(t, res.Error)
	assert.Equal(t, worker.KindInvalidArgument, res.Error.Kind)

	// the session survives and still answers
	require.NoError(t, conn.WriteJSON(worker.Request{Operation: worker.OpConnectionTest, RequestID: "after"}))
	require.NoError(t, conn.ReadJSON(&res))
	assert.Equal(t, "after", res.RequestID)
	assert.JSONEq(t, `{"success":true}`, string(res.Result))
}

func TestServer_MalformedRequestKeepsID(t *testing.T) {
	_, ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+hostOf(ts)+"/worker", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// operation has the wrong type, the id is fine
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"operation":5,"requestId":"r-7"}`)))
	var res worker.Result
	require.NoError(t, conn.ReadJSON(&res))
	assert.Equal(t, "r-7", res.RequestID)
	require.NotNil(t, res.Error)
	assert.Equal(t, worker.KindInvalidArgument, res.Error.Kind)

	// an unreadable id stays empty
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"requestId":12}`)))
	res = worker.Result{}
	require.NoError(t, conn.ReadJSON(&res))
	assert.Empty(t, res.RequestID)
	require.NotNil(t, res.Error)
}

func TestRequestIDOf(t *testing.T) {
	tests := []struct {
		frame string
		want  string
	}{
		{`{"operation":[],"requestId":"a"}`, "a"},
		{`{"requestId":"b","payload":1}`, "b"},
		{`{"requestId":3}`, ""},
		{`{"requestId":"c"`, ""},
		{`not json`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, requestIDOf([]byte(tt.frame)), tt.frame)
	}
}

func TestServer_SessionsAreTracked(t *testing.T) {
	srv, ts := newTestServer(t)

	c, err := Dial(context.Background(), hostOf(ts), "/worker", zap.NewNop())
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return srv.Sessions().Count() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.opts.Metrics.Sessions))

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return srv.Sessions().Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, open := <-c.Results()
	assert.False(t, open)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Sessions)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_sessions")
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestParseLink(t *testing.T) {
	addr, err := ParseLink("localink://192.168.1.4:8888/")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.4:8888", addr)

	addr, err = ParseLink(Link(""))
	require.NoError(t, err)
	assert.Empty(t, addr)

	_, err = ParseLink("http://192.168.1.4:8888")
	assert.Error(t, err)
}

func TestLocalIPv4(t *testing.T) {
	assert.NotNil(t, LocalIPv4().To4())
}
