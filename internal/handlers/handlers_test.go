package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hud-telemetry-service/internal/cache"
	"hud-telemetry-service/internal/clock"
	"hud-telemetry-service/internal/models"
	"hud-telemetry-service/internal/profile"
	"hud-telemetry-service/internal/simulator"
)

type fixedRand float64

func (r fixedRand) Float64() float64 { return float64(r) }

type testEnv struct {
	sim    *simulator.Simulator
	clock  *clock.Virtual
	cache  *cache.RedisCache
	router *mux.Router
}

func newTestEnv(t *testing.T, withCache bool) *testEnv {
	t.Helper()
	clk := clock.NewVirtual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sim := simulator.New(simulator.DefaultConfig(), simulator.WithClock(clk), simulator.WithRand(fixedRand(0.5)))
	t.Cleanup(sim.Stop)

	env := &testEnv{sim: sim, clock: clk}
	var store Store
	if withCache {
		mr := miniredis.RunT(t)
		c, err := cache.NewRedisCache(context.Background(), cache.Options{Addr: mr.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		env.cache = c
		store = c
	}

	h := NewHandler(sim, store, profile.Default(), profile.NewTicker(profile.DefaultMessages()), nil)
	env.router = NewRouter(h)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestTelemetryHandler(t *testing.T) {
	env := newTestEnv(t, false)
	env.sim.Tick()

	rec := env.do(http.MethodGet, "/telemetry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "log")

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Window, 40)
	assert.Len(t, snap.Flags, 40)
	assert.Equal(t, env.sim.Snapshot().Score, snap.Score)
	assert.Equal(t, models.ReasonTick, snap.Reason)
}

func TestAnomaliesHandler(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(http.MethodGet, "/telemetry/anomalies", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count     int                  `json:"count"`
		Threshold float64              `json:"threshold_ratio"`
		Anomalies []models.AnomalyFlag `json:"anomalies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0.4, body.Threshold)
	assert.Len(t, body.Anomalies, body.Count)
	for _, a := range body.Anomalies {
		assert.True(t, a.IsAnomaly)
	}
}

func TestLogsHandler(t *testing.T) {
	env := newTestEnv(t, false)
	env.sim.Tick()

	rec := env.do(http.MethodGet, "/logs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Telemetry tick", entries[0].Message)

	rec = env.do(http.MethodGet, "/logs", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 3)

	rec = env.do(http.MethodGet, "/logs?level=warn", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "anomalies detected")

	rec = env.do(http.MethodGet, "/logs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/logs?level=trace", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandHandler(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(http.MethodPost, "/commands", `{"command":"REBOOT_MODULE now"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp models.CommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "sent", resp.State)
	assert.Equal(t, "REBOOT_MODULE now", resp.Command)

	env.clock.Advance(2 * time.Second)

	latest := env.sim.Logs(1)[0]
	assert.Equal(t, models.LevelAI, latest.Level)
	assert.Contains(t, latest.Message, "REBOOT_MODULE")
}

func TestCommandHandler_Empty(t *testing.T) {
	env := newTestEnv(t, false)
	before := len(env.sim.Logs(0))

	for _, body := range []string{`{"command":""}`, `{"command":"   "}`, `{}`} {
		rec := env.do(http.MethodPost, "/commands", body)
		assert.Equal(t, http.StatusNoContent, rec.Code, body)
		assert.Empty(t, rec.Body.String())
	}

	assert.Len(t, env.sim.Logs(0), before)
	assert.Equal(t, 0, env.clock.Pending())
}

func TestCommandHandler_Errors(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(http.MethodPost, "/commands", `{"command":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/commands", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	env.sim.Stop()
	rec = env.do(http.MethodPost, "/commands", `{"command":"LOCK_DOWN"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProfileAndTicker(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(http.MethodGet, "/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Eve Kim", p.Name)
	assert.True(t, strings.HasPrefix(p.Avatar, "data:image/svg+xml;base64,"))

	rec = env.do(http.MethodGet, "/ticker", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ticker models.Ticker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticker))
	assert.Len(t, ticker.Messages, 4)
	assert.Contains(t, ticker.Marquee, "CEO OF ENCOM • SYSTEM ALERT")
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(http.MethodGet, "/health", "")
	var status models.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "disabled", status.Redis)
	assert.Equal(t, "degraded", status.Status)

	require.NoError(t, env.sim.Start())
	rec = env.do(http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.Running)

	withCache := newTestEnv(t, true)
	rec = withCache.do(http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "connected", status.Redis)
}

func TestStatsHandler(t *testing.T) {
	env := newTestEnv(t, false)
	env.sim.Tick()
	env.sim.Tick()

	rec := env.do(http.MethodGet, "/stats", "")
	var stats models.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "memory", stats.Source)
	assert.Equal(t, int64(2), stats.Ticks)
	assert.Equal(t, 4, stats.LogEntries)
}

func TestStatsHandler_FromCache(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	require.NoError(t, env.cache.CacheSnapshot(ctx, env.sim.Tick()))
	_, err := env.sim.Dispatch("LOCK_DOWN")
	require.NoError(t, err)
	require.NoError(t, env.cache.CacheSnapshot(ctx, env.sim.Snapshot()))

	rec := env.do(http.MethodGet, "/stats", "")
	var stats models.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "redis", stats.Source)
	assert.Equal(t, int64(1), stats.Ticks)
	assert.Equal(t, int64(1), stats.Commands)
}

func TestHistoryHandler(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(http.MethodGet, "/telemetry/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env = newTestEnv(t, true)
	for i := 0; i < 3; i++ {
		require.NoError(t, env.cache.CacheSnapshot(context.Background(), env.sim.Tick()))
	}

	rec = env.do(http.MethodGet, "/telemetry/history?count=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var points []models.ScorePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 2)
	assert.Equal(t, env.sim.Snapshot().Sequence, points[0].Sequence)

	rec = env.do(http.MethodGet, "/telemetry/history?count=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamHandler(t *testing.T) {
	env := newTestEnv(t, false)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	assert.Equal(t, "snapshot", first.event)
	assert.Equal(t, env.sim.Snapshot().Sequence, first.snapshot.Sequence)

	tick := env.sim.Tick()
	second := readEvent(t, reader)
	assert.Equal(t, tick.Sequence, second.snapshot.Sequence)
	assert.Equal(t, models.ReasonTick, second.snapshot.Reason)
	assert.Len(t, second.snapshot.Window, 40)
}

type sseEvent struct {
	event    string
	snapshot models.Snapshot
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.event != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.snapshot))
		}
	}
}
