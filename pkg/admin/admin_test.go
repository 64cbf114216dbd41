package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockd-statsd/pkg/client"
	"github.com/getmockd/mockd-statsd/pkg/metrics"
	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

type fixture struct {
	srv    *statsd.Server
	api    *API
	ts     *httptest.Server
	client *client.Client
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	srv := statsd.New(statsd.DefaultConfig())
	addr, err := srv.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop() })

	c, err := client.New(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	api := New(srv, opts...)
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)

	return &fixture{srv: srv, api: api, ts: ts, client: c}
}

// sendAndWait sends raw lines and waits until the store holds n records.
func (f *fixture) sendAndWait(t *testing.T, n int, lines ...string) {
	t.Helper()
	for _, l := range lines {
		require.NoError(t, f.client.Send(l))
	}
	require.Eventually(t, func() bool { return f.srv.Store().Len() >= n }, 2*time.Second, 5*time.Millisecond)
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, f.ts.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	h := decode[statsd.HealthStatus](t, resp)
	assert.Equal(t, "running", h.Status)
	assert.Equal(t, f.srv.ID(), h.ID)
	assert.Equal(t, f.srv.Address(), h.Address)
}

func TestRecords_ListAndFilter(t *testing.T) {
	f := newFixture(t)
	f.sendAndWait(t, 3, "api.requests:1|c|#env:test", "api.latency:12|ms", "db.queries:3|c")

	all := decode[RecordListResponse](t, f.do(t, http.MethodGet, "/records", nil))
	assert.Equal(t, 3, all.Count)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, "api.requests", all.Records[0].Name)

	byName := decode[RecordListResponse](t, f.do(t, http.MethodGet, "/records?name=api.*", nil))
	assert.Equal(t, 2, byName.Count)
	assert.Equal(t, 3, byName.Total)

	byType := decode[RecordListResponse](t, f.do(t, http.MethodGet, "/records?type=counter", nil))
	require.Equal(t, 2, byType.Count)
	assert.Equal(t, "db.queries", byType.Records[1].Name)

	both := decode[RecordListResponse](t, f.do(t, http.MethodGet, "/records?name=api.*&type=c", nil))
	require.Equal(t, 1, both.Count)
	assert.Equal(t, []string{"env:test"}, both.Records[0].TagStrings())
}

func TestRecords_BadQuery(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/records?type=meter", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decode[ErrorResponse](t, resp)
	assert.Equal(t, ErrCodeInvalidRequest, e.Error)
	assert.Contains(t, e.Message, "unknown metric type")

	resp = f.do(t, http.MethodGet, "/records?name=api.[", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecords_Reset(t *testing.T) {
	f := newFixture(t)
	f.sendAndWait(t, 1, "a:1|c")

	resp := f.do(t, http.MethodDelete, "/records", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, f.srv.Store().Len())
	assert.Empty(t, f.srv.Calls())

	list := decode[RecordListResponse](t, f.do(t, http.MethodGet, "/records", nil))
	assert.Equal(t, 0, list.Count)
	assert.NotNil(t, list.Records)
}

func TestCalls(t *testing.T) {
	f := newFixture(t)
	f.sendAndWait(t, 2, "a:1|c", "b:2|g")

	calls := decode[CallListResponse](t, f.do(t, http.MethodGet, "/calls", nil))
	assert.ElementsMatch(t, []string{"a:1|c", "b:2|g"}, calls.Calls)

	resp := f.do(t, http.MethodPost, "/calls/verify", CallVerifyRequest{Call: "a:1|c"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/calls/verify", CallVerifyRequest{Call: "a:1|c"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, ErrCodeNotFound, decode[ErrorResponse](t, resp).Error)

	resp = f.do(t, http.MethodPost, "/calls/verify", CallVerifyRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValues(t *testing.T) {
	f := newFixture(t)
	f.sendAndWait(t, 4, "hits:2|c|#env:test", "hits:3|c|#env:test", "users:7|s", "users:3|s")

	v := decode[ValueResponse](t, f.do(t, http.MethodGet, "/values?name=hits&tag=env:test", nil))
	assert.Equal(t, 5.0, v.Value)
	assert.Empty(t, v.Members)

	set := decode[ValueResponse](t, f.do(t, http.MethodGet, "/values?name=users", nil))
	assert.Equal(t, []string{"3", "7"}, set.Members)

	resp := f.do(t, http.MethodGet, "/values?name=nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/values", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerify_Await(t *testing.T) {
	f := newFixture(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = f.client.Send("requests.count:1|c|#env:test")
	}()

	resp := f.do(t, http.MethodPost, "/verify", VerifyRequest{
		Name:    "requests.count",
		Type:    "c",
		Tags:    []string{"env:test"},
		Timeout: "2s",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[statsd.Result](t, resp)
	require.True(t, res.Passed, res.Message)
	assert.Equal(t, statsd.ModeAwait, res.Mode)
	require.Len(t, res.Matched, 1)
	assert.Equal(t, 1.0, res.Matched[0].Value)
}

func TestVerify_Failure(t *testing.T) {
	f := newFixture(t)
	f.sendAndWait(t, 1, "requests.count:2|c")

	lo := 5.0
	resp := f.do(t, http.MethodPost, "/verify", VerifyRequest{
		Name:    "requests.count",
		Min:     &lo,
		Timeout: "100ms",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[statsd.Result](t, resp)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Message, "requests.count")
	assert.Contains(t, res.Message, ">= 5")
	require.Len(t, res.Observed, 1)
	assert.NotEmpty(t, res.NearMisses)
}

func TestVerify_AbsentAndCount(t *testing.T) {
	f := newFixture(t)
	f.sendAndWait(t, 2, "jobs:1|c", "jobs:1|c")

	res := decode[statsd.Result](t, f.do(t, http.MethodPost, "/verify", VerifyRequest{
		Glob:    "errors.*",
		Mode:    statsd.ModeAbsent,
		Timeout: "50ms",
	}))
	assert.True(t, res.Passed, res.Message)

	res = decode[statsd.Result](t, f.do(t, http.MethodPost, "/verify", VerifyRequest{
		Name:  "jobs",
		Mode:  statsd.ModeCount,
		Count: 2,
	}))
	assert.True(t, res.Passed, res.Message)

	res = decode[statsd.Result](t, f.do(t, http.MethodPost, "/verify", VerifyRequest{
		Regexp:  "^jo",
		Mode:    statsd.ModeAbsent,
		Timeout: "50ms",
	}))
	assert.False(t, res.Passed)
}

func TestVerify_Expr(t *testing.T) {
	f := newFixture(t)
	f.sendAndWait(t, 1, "latency:250|ms|#env:prod")

	res := decode[statsd.Result](t, f.do(t, http.MethodPost, "/verify", VerifyRequest{
		Name: "latency",
		Expr: `value > 100 && "env:prod" in tags`,
	}))
	assert.True(t, res.Passed, res.Message)
}

func TestVerify_BadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{"empty body", "", ErrCodeInvalidJSON},
		{"malformed", "{", ErrCodeInvalidJSON},
		{"unknown field", `{"nmae":"x"}`, ErrCodeInvalidJSON},
		{"two names", VerifyRequest{Name: "a", Glob: "b*"}, ErrCodeInvalidMatcher},
		{"bad type", VerifyRequest{Name: "a", Type: "meter"}, ErrCodeInvalidMatcher},
		{"bad regexp", VerifyRequest{Regexp: "("}, ErrCodeInvalidMatcher},
		{"bad expr", VerifyRequest{Expr: "value +"}, ErrCodeInvalidMatcher},
		{"bad mode", VerifyRequest{Mode: "sometimes"}, ErrCodeInvalidRequest},
		{"count without n", VerifyRequest{Mode: statsd.ModeCount}, ErrCodeInvalidRequest},
		{"count outside count mode", VerifyRequest{Count: 2}, ErrCodeInvalidRequest},
		{"bad timeout", VerifyRequest{Timeout: "soon"}, ErrCodeInvalidRequest},
		{"timeout too long", VerifyRequest{Timeout: "1h"}, ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/verify", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, resp).Error)
		})
	}
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	f.sendAndWait(t, 1, "before:1|g")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/stream?replay=true&name=*&type=g"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	var rec statsd.Record
	require.NoError(t, wsjson.Read(ctx, conn, &rec))
	assert.Equal(t, "before", rec.Name)

	// The replayed record proves the subscription is live.
	require.NoError(t, f.client.Send("other:1|c\nafter:2|g"))

	require.NoError(t, wsjson.Read(ctx, conn, &rec))
	assert.Equal(t, "after", rec.Name)
	assert.Equal(t, statsd.Gauge, rec.Type)
	assert.Equal(t, 2.0, rec.Value)
}

func TestStream_ClosedOnShutdown(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/stream"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, f.api.Shutdown(ctx))

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	coll := metrics.NewPrometheusCollector(reg)
	coll.PacketReceived(42)

	f := newFixture(t, WithGatherer(reg))

	resp := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mockstatsd_packets_received_total 1")
}

func TestMetricsEndpoint_AbsentWithoutGatherer(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartShutdown(t *testing.T) {
	srv := statsd.New(statsd.DefaultConfig())
	api := New(srv)
	assert.Equal(t, "", api.Addr())
	assert.NoError(t, api.Shutdown(context.Background()), "shutdown before start")

	api = New(srv)
	addr, err := api.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, addr, api.Addr())
	assert.NotEqual(t, "127.0.0.1:0", addr)

	_, err = api.Start(context.Background(), "127.0.0.1:0")
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, api.Uptime(), time.Duration(0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, api.Shutdown(ctx))

	_, err = http.Get("http://" + addr + "/health")
	assert.Error(t, err)
}

func TestStart_BindFailure(t *testing.T) {
	first := New(statsd.New(statsd.DefaultConfig()))
	addr, err := first.Start(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	_, err = New(statsd.New(statsd.DefaultConfig())).Start(context.Background(), addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen on")
}
