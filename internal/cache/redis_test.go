package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hud-telemetry-service/internal/models"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func tickSnapshot(seq uint64, t int64, score float64, anomalies int) models.Snapshot {
	return models.Snapshot{
		Sequence:     seq,
		Reason:       models.ReasonTick,
		Timestamp:    time.Date(2024, 1, 1, 0, 0, int(seq), 0, time.UTC),
		Window:       []models.TelemetrySample{{T: t - 1, Metric: 50}, {T: t, Metric: 61}},
		AnomalyCount: anomalies,
		Score:        score,
		Confidence:   "0.00",
	}
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestCacheSnapshot_Tick(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.CacheSnapshot(ctx, tickSnapshot(1, 40, 12.5, 2)))
	require.NoError(t, c.CacheSnapshot(ctx, tickSnapshot(2, 41, 90, 3)))

	latest, err := c.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Sequence)
	assert.Equal(t, 90.0, latest.Score)

	history, err := c.ScoreHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(41), history[0].T)
	assert.Equal(t, 12.5, history[1].Score)

	ticks, err := c.GetCounter(ctx, TicksKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ticks)

	anomalies, err := c.GetCounter(ctx, AnomaliesKey)
	require.NoError(t, err)
	assert.Equal(t, int64(5), anomalies)

	assert.True(t, mr.TTL(SnapshotKey) > 0)
}

func TestCacheSnapshot_Command(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	snap := tickSnapshot(1, 40, 1, 0)
	snap.Reason = models.ReasonCommand
	require.NoError(t, c.CacheSnapshot(ctx, snap))

	commands, err := c.GetCounter(ctx, CommandsKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), commands)

	ticks, err := c.GetCounter(ctx, TicksKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ticks)

	history, err := c.ScoreHistory(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestScoreHistory_Trimmed(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < ScoreHistoryLimit+5; i++ {
		require.NoError(t, c.CacheSnapshot(ctx, tickSnapshot(uint64(i+1), int64(i), 1, 0)))
	}

	items, err := mr.List(ScoreHistoryKey)
	require.NoError(t, err)
	assert.Len(t, items, ScoreHistoryLimit)

	history, err := c.ScoreHistory(ctx, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(ScoreHistoryLimit+4), history[0].T)
}

// journalSnapshot собирает снимок с журналом из total записей, из которых видны последние keep
func journalSnapshot(seq, total uint64, keep int) models.Snapshot {
	snap := tickSnapshot(seq, int64(seq), 1, 0)
	snap.Reason = models.ReasonAck
	snap.LogTotal = total
	for i := 0; i < keep && uint64(i) < total; i++ {
		snap.Log = append(snap.Log, models.LogEntry{
			Level:   models.LevelInfo,
			Message: fmt.Sprintf("entry-%d", total-uint64(i)),
		})
	}
	return snap
}

func mirroredMessages(t *testing.T, mr *miniredis.Miniredis) []string {
	t.Helper()
	items, err := mr.List(LogsKey)
	require.NoError(t, err)

	messages := make([]string, 0, len(items))
	for _, item := range items {
		var e models.LogEntry
		require.NoError(t, json.Unmarshal([]byte(item), &e))
		messages = append(messages, e.Message)
	}
	return messages
}

func TestCacheSnapshot_LogMirror(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.CacheSnapshot(ctx, journalSnapshot(1, 2, 10)))
	assert.Equal(t, []string{"entry-2", "entry-1"}, mirroredMessages(t, mr))

	// повтор того же снимка не дублирует записи
	require.NoError(t, c.CacheSnapshot(ctx, journalSnapshot(1, 2, 10)))
	require.NoError(t, c.CacheSnapshot(ctx, journalSnapshot(2, 5, 10)))
	assert.Equal(t, []string{"entry-5", "entry-4", "entry-3", "entry-2", "entry-1"}, mirroredMessages(t, mr))
}

func TestCacheSnapshot_LogMirrorCapped(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), Options{Addr: mr.Addr(), LogCapacity: 3})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	for i := uint64(1); i <= 10; i++ {
		require.NoError(t, c.CacheSnapshot(ctx, journalSnapshot(i, i, 3)))
	}
	assert.Equal(t, []string{"entry-10", "entry-9", "entry-8"}, mirroredMessages(t, mr))

	// журнал нового процесса начинается с нуля
	require.NoError(t, c.CacheSnapshot(ctx, journalSnapshot(1, 2, 3)))
	assert.Equal(t, []string{"entry-2", "entry-1", "entry-10"}, mirroredMessages(t, mr))
}

func TestLatestSnapshot_NotFound(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.LatestSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPing(t *testing.T) {
	c, mr := newTestCache(t)
	assert.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}
