// Package simulator реализует симулятор телеметрии HUD.
//
// Simulator единолично владеет окном телеметрии и журналом событий.
// На каждом тике он сдвигает окно, пересчитывает аномалии и скор,
// пишет запись в журнал и рассылает подписчикам неизменяемый снимок.
// Все изменения состояния происходят под одним мьютексом, поэтому
// снаружи окно никогда не видно без соответствующих аномалий и скора.
package simulator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hud-telemetry-service/internal/analytics"
	"hud-telemetry-service/internal/clock"
	"hud-telemetry-service/internal/journal"
	"hud-telemetry-service/internal/models"
)

// Config параметры симулятора
type Config struct {
	WindowSize       int
	ScoreLastK       int
	TickInterval     time.Duration
	AckDelayMin      time.Duration
	AckDelayMax      time.Duration
	LogCapacity      int
	SubscriberBuffer int
}

// DefaultConfig возвращает параметры, наблюдаемые в прототипе HUD
func DefaultConfig() Config {
	return Config{
		WindowSize:       analytics.DefaultWindowSize,
		ScoreLastK:       analytics.DefaultScoreLastK,
		TickInterval:     1500 * time.Millisecond,
		AckDelayMin:      700 * time.Millisecond,
		AckDelayMax:      1500 * time.Millisecond,
		LogCapacity:      journal.DefaultCapacity,
		SubscriberBuffer: 16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WindowSize < 1 {
		c.WindowSize = d.WindowSize
	}
	if c.ScoreLastK < 1 {
		c.ScoreLastK = d.ScoreLastK
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.AckDelayMin <= 0 && c.AckDelayMax <= 0 {
		c.AckDelayMin, c.AckDelayMax = d.AckDelayMin, d.AckDelayMax
	}
	if c.AckDelayMax < c.AckDelayMin {
		c.AckDelayMax = c.AckDelayMin
	}
	if c.LogCapacity < 1 {
		c.LogCapacity = d.LogCapacity
	}
	if c.SubscriberBuffer < 1 {
		c.SubscriberBuffer = d.SubscriberBuffer
	}
	return c
}

// Option настраивает Simulator
type Option func(*Simulator)

// WithClock задает часы и планировщик (по умолчанию clock.Real)
func WithClock(c clock.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

// WithRand задает источник случайности для шума и задержек подтверждения
func WithRand(r analytics.Rand) Option {
	return func(s *Simulator) { s.rnd = r }
}

// WithLogger задает логгер процесса
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSeed задает начальное окно вместо синтетического.
// Seed неверной длины отбрасывается, окно заполняется генератором.
func WithSeed(seed []models.TelemetrySample) Option {
	return func(s *Simulator) { s.seed = seed }
}

// WithIDGenerator задает генератор идентификаторов команд (по умолчанию UUID)
func WithIDGenerator(f func() string) Option {
	return func(s *Simulator) { s.newID = f }
}

// Stats счетчики симулятора с момента создания
type Stats struct {
	Ticks          uint64 `json:"ticks"`
	Commands       uint64 `json:"commands"`
	Acknowledged   uint64 `json:"acknowledged"`
	AnomaliesTotal uint64 `json:"anomalies_total"`
	PendingAcks    int    `json:"pending_acks"`
	LogEntries     int    `json:"log_entries"`
	LogCapacity    int    `json:"log_capacity"`
}

// Simulator симулятор телеметрии и скоринга
type Simulator struct {
	mu     sync.Mutex
	cfg    Config
	clock  clock.Clock
	rnd    analytics.Rand
	logger *zap.Logger
	newID  func() string
	seed   []models.TelemetrySample

	gen     *analytics.Generator
	window  *analytics.Window
	journal *journal.Journal

	snapshot models.Snapshot
	seq      uint64

	ticker  clock.Timer
	pending map[string]clock.Timer

	subscribers map[uint64]chan models.Snapshot
	backlogs    map[uint64]*backlog
	subSeq      uint64

	running bool
	stopped bool
	stats   Stats
}

// New создает симулятор и заполняет окно синтетическими данными
func New(cfg Config, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:         cfg.withDefaults(),
		clock:       clock.NewReal(),
		logger:      zap.NewNop(),
		newID:       func() string { return uuid.NewString() },
		pending:     make(map[string]clock.Timer),
		subscribers: make(map[uint64]chan models.Snapshot),
		backlogs:    make(map[uint64]*backlog),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = analytics.NewRand(s.clock.Now().UnixNano())
	}

	s.gen = analytics.NewGenerator(s.rnd)
	s.window = analytics.NewWindow(s.cfg.WindowSize)
	s.journal = journal.New(s.cfg.LogCapacity, s.clock.Now)

	if s.seed != nil && s.Initialize(s.seed) == nil {
		return s
	}
	// длина синтетического seed всегда равна размеру окна
	_ = s.Initialize(s.gen.Seed(s.cfg.WindowSize))
	return s
}

// Config возвращает действующие параметры
func (s *Simulator) Config() Config {
	return s.cfg
}

// Initialize заменяет окно начальными данными и выполняет первичный анализ
func (s *Simulator) Initialize(seed []models.TelemetrySample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if err := s.window.Reset(seed); err != nil {
		s.logger.Warn("initialize rejected", zap.Error(err))
		return err
	}

	snap := s.analyze()
	// в журнале новые первыми: info должна оказаться сверху
	s.journal.Append(models.LevelWarn, fmt.Sprintf("%d anomalies detected", snap.AnomalyCount), nil)
	s.journal.Append(models.LevelInfo, "Telemetry ingested", s.window.Len())
	s.publish(snap, models.ReasonInit)

	s.logger.Info("telemetry initialized",
		zap.Int("window", s.window.Len()),
		zap.Int("anomalies", snap.AnomalyCount),
		zap.Float64("score", snap.Score))
	return nil
}

// Start запускает повторяющийся тик
func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.running {
		return nil
	}
	s.ticker = s.clock.Every(s.cfg.TickInterval, func() { s.Tick() })
	s.running = true
	s.logger.Info("simulator started", zap.Duration("interval", s.cfg.TickInterval))
	return nil
}

// Stop останавливает тик, отменяет незавершенные подтверждения команд
// и закрывает каналы подписчиков. Повторный вызов ничего не делает.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	s.running = false

	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	for id, b := range s.backlogs {
		b.close()
		delete(s.backlogs, id)
	}
	s.logger.Info("simulator stopped", zap.Uint64("ticks", s.stats.Ticks))
}

// Running сообщает, запущен ли тик
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Tick сдвигает окно на одну точку и пересчитывает аналитику.
// После Stop возвращает последний снимок без изменений.
func (s *Simulator) Tick() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return s.snapshot
	}

	last, _ := s.window.Last()
	next := s.gen.Next(last)
	s.window.Push(next)

	snap := s.analyze()
	s.journal.Append(models.LevelDebug, "Telemetry tick", map[string]interface{}{
		"t":         next.T,
		"metric":    next.Metric,
		"anomalies": snap.AnomalyCount,
		"score":     snap.Score,
	})
	s.stats.Ticks++
	s.stats.AnomaliesTotal += uint64(snap.AnomalyCount)

	snap = s.publish(snap, models.ReasonTick)

	s.logger.Debug("telemetry tick",
		zap.Int64("t", next.T),
		zap.Float64("metric", next.Metric),
		zap.Int("anomalies", snap.AnomalyCount),
		zap.Float64("score", snap.Score))
	return snap
}

// Dispatch принимает текстовую команду: сразу пишет action-запись и
// планирует ai-подтверждение первого слова команды через случайную задержку.
// Пустая команда (после обрезки пробелов) возвращает ErrEmptyCommand и ничего не делает.
// Порядок подтверждений разных команд не гарантируется.
func (s *Simulator) Dispatch(command string) (models.CommandResponse, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return models.CommandResponse{}, ErrEmptyCommand
	}
	token := strings.Fields(command)[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return models.CommandResponse{}, ErrStopped
	}

	id := s.newID()
	entry := s.journal.Append(models.LevelAction, "Sent: "+command, map[string]interface{}{"id": id})

	delay := s.ackDelay()
	s.pending[id] = s.clock.AfterFunc(delay, func() { s.acknowledge(id, token) })
	s.stats.Commands++

	s.publish(s.snapshot, models.ReasonCommand)

	s.logger.Info("command sent",
		zap.String("id", id),
		zap.String("command", command),
		zap.Duration("ack_delay", delay))

	return models.CommandResponse{
		ID:      id,
		Command: command,
		State:   "sent",
		SentAt:  entry.Timestamp,
	}, nil
}

func (s *Simulator) ackDelay() time.Duration {
	span := s.cfg.AckDelayMax - s.cfg.AckDelayMin
	return s.cfg.AckDelayMin + time.Duration(s.rnd.Float64()*float64(span))
}

func (s *Simulator) acknowledge(id, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if _, ok := s.pending[id]; !ok {
		return
	}
	delete(s.pending, id)

	s.journal.Append(models.LevelAI, fmt.Sprintf("AI: %s acknowledged", token), map[string]interface{}{"id": id})
	s.stats.Acknowledged++
	s.publish(s.snapshot, models.ReasonAck)

	s.logger.Debug("command acknowledged", zap.String("id", id), zap.String("token", token))
}

// analyze пересчитывает аномалии и скор по текущему окну; вызывается под s.mu
func (s *Simulator) analyze() models.Snapshot {
	window := s.window.Samples()
	flags := analytics.Detect(window)

	values := make([]float64, len(window))
	for i, sample := range window {
		values[i] = sample.Metric
	}
	score := analytics.PredictiveScore(values, s.cfg.ScoreLastK)

	return models.Snapshot{
		Window:       window,
		Flags:        flags,
		AnomalyCount: analytics.CountAnomalies(flags),
		Score:        score,
		Confidence:   analytics.Confidence(score),
	}
}

// publish фиксирует снимок с актуальным журналом и рассылает его подписчикам; вызывается под s.mu
func (s *Simulator) publish(snap models.Snapshot, reason models.UpdateReason) models.Snapshot {
	s.seq++
	snap.Sequence = s.seq
	snap.Reason = reason
	snap.Timestamp = s.clock.Now()
	snap.Log = s.journal.Entries()
	snap.LogTotal = s.journal.Total()
	s.snapshot = snap

	for _, ch := range s.subscribers {
		deliver(ch, snap)
	}
	for _, b := range s.backlogs {
		b.push(snap)
	}
	return snap
}

// deliver не блокирует: медленный подписчик теряет самый старый снимок
func deliver(ch chan models.Snapshot, snap models.Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Subscribe возвращает канал снимков, начиная с текущего, и функцию отписки.
// После Stop канал закрывается.
func (s *Simulator) Subscribe() (<-chan models.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan models.Snapshot, s.cfg.SubscriberBuffer)
	if s.stopped {
		close(ch)
		return ch, func() {}
	}

	s.subSeq++
	id := s.subSeq
	s.subscribers[id] = ch
	ch <- s.snapshot

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			close(c)
			delete(s.subscribers, id)
		}
	}
}

// SubscribeAll возвращает канал, который получает каждый снимок без потерь,
// начиная с текущего. Снимки копятся в памяти, пока читатель отстает,
// поэтому подписка предназначена для внутренних потребителей, считающих
// тики и команды. После Stop канал закрывается, когда очередь вычитана.
func (s *Simulator) SubscribeAll() (<-chan models.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := newBacklog()
	if s.stopped {
		b.close()
		return b.out, func() {}
	}

	s.subSeq++
	id := s.subSeq
	s.backlogs[id] = b
	b.push(s.snapshot)

	return b.out, func() {
		s.mu.Lock()
		delete(s.backlogs, id)
		s.mu.Unlock()
		b.abort()
	}
}

// Snapshot возвращает последний опубликованный снимок
func (s *Simulator) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Logs возвращает не более n последних записей журнала; n <= 0 означает все
func (s *Simulator) Logs(n int) []models.LogEntry {
	return s.journal.Latest(n)
}

// Stats возвращает счетчики симулятора
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.PendingAcks = len(s.pending)
	st.LogEntries = s.journal.Len()
	st.LogCapacity = s.journal.Capacity()
	return st
}
