// Package cache реализует хранение снимков HUD в Redis
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"hud-telemetry-service/internal/journal"
	"hud-telemetry-service/internal/models"
)

const (
	// SnapshotKey ключ последнего снимка
	SnapshotKey = "hud:snapshot:latest"
	// ScoreHistoryKey список истории скора, новые в начале
	ScoreHistoryKey = "hud:scores"
	// TicksKey счетчик тиков
	TicksKey = "hud:ticks:total"
	// AnomaliesKey счетчик обнаруженных аномалий
	AnomaliesKey = "hud:anomalies:total"
	// CommandsKey счетчик отправленных команд
	CommandsKey = "hud:commands:total"
	// LogsKey зеркало журнала событий, новые в начале
	LogsKey = "hud:logs"
	// SnapshotTTL время жизни последнего снимка
	SnapshotTTL = 5 * time.Minute
	// ScoreHistoryLimit сколько точек истории хранится
	ScoreHistoryLimit = 1000
)

// ErrNotFound значение отсутствует в кэше
var ErrNotFound = errors.New("not found in cache")

// RedisCache реализует кэширование в Redis
type RedisCache struct {
	client *redis.Client
	logCap int64

	mu       sync.Mutex
	logTotal uint64
}

// Options параметры подключения
type Options struct {
	Addr     string
	Password string
	DB       int
	// LogCapacity длина зеркала журнала; по умолчанию journal.DefaultCapacity
	LogCapacity int
}

// NewRedisCache создает новое подключение к Redis и проверяет его
func NewRedisCache(ctx context.Context, opts Options) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logCap := opts.LogCapacity
	if logCap < 1 {
		logCap = journal.DefaultCapacity
	}
	return &RedisCache{client: client, logCap: int64(logCap)}, nil
}

// CacheSnapshot сохраняет снимок и дописывает в зеркало журнала новые записи;
// для тиков дополнительно пишет историю скора и счетчики.
// Снимки должны передаваться по порядку, без пропусков.
func (r *RedisCache) CacheSnapshot(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, SnapshotKey, data, SnapshotTTL)

	fresh := r.freshLogs(snap)
	for i := len(fresh) - 1; i >= 0; i-- {
		entry, err := json.Marshal(fresh[i])
		if err != nil {
			return fmt.Errorf("failed to marshal log entry: %w", err)
		}
		pipe.LPush(ctx, LogsKey, entry)
	}
	if len(fresh) > 0 {
		pipe.LTrim(ctx, LogsKey, 0, r.logCap-1)
	}

	switch snap.Reason {
	case models.ReasonTick:
		point := models.ScorePoint{
			Sequence:  snap.Sequence,
			Score:     snap.Score,
			Anomalies: snap.AnomalyCount,
			Timestamp: snap.Timestamp,
		}
		if last, ok := snap.Latest(); ok {
			point.T = last.T
		}
		pointData, err := json.Marshal(point)
		if err != nil {
			return fmt.Errorf("failed to marshal score point: %w", err)
		}
		pipe.LPush(ctx, ScoreHistoryKey, pointData)
		pipe.LTrim(ctx, ScoreHistoryKey, 0, ScoreHistoryLimit-1)
		pipe.Incr(ctx, TicksKey)
		pipe.IncrBy(ctx, AnomaliesKey, int64(snap.AnomalyCount))
	case models.ReasonCommand:
		pipe.Incr(ctx, CommandsKey)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	r.logTotal = snap.LogTotal
	return nil
}

// freshLogs возвращает записи журнала, появившиеся после предыдущего снимка, новые первыми
func (r *RedisCache) freshLogs(snap models.Snapshot) []models.LogEntry {
	n := snap.LogTotal
	if n >= r.logTotal {
		n -= r.logTotal
	}
	if n > uint64(len(snap.Log)) {
		n = uint64(len(snap.Log))
	}
	return snap.Log[:n]
}

// LatestSnapshot возвращает последний сохраненный снимок
func (r *RedisCache) LatestSnapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := r.get(ctx, SnapshotKey, &snap); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// ScoreHistory возвращает последние count точек истории скора, новые первыми
func (r *RedisCache) ScoreHistory(ctx context.Context, count int64) ([]models.ScorePoint, error) {
	data, err := r.client.LRange(ctx, ScoreHistoryKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get score history: %w", err)
	}

	points := make([]models.ScorePoint, 0, len(data))
	for _, d := range data {
		var p models.ScorePoint
		if err := json.Unmarshal([]byte(d), &p); err != nil {
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

// GetCounter возвращает значение счетчика; отсутствующий счетчик равен 0
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

func (r *RedisCache) get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	return json.Unmarshal(data, dest)
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}
