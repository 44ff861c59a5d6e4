// Package models содержит структуры данных телеметрии, журнала и HTTP API
package models

import "time"

// TelemetrySample одна точка синтетической телеметрии
type TelemetrySample struct {
	T      int64   `json:"t"`
	Metric float64 `json:"metric"`
}

// AnomalyFlag результат классификации одной точки окна
type AnomalyFlag struct {
	Index     int     `json:"index"`
	Value     float64 `json:"value"`
	IsAnomaly bool    `json:"is_anomaly"`
}

// UpdateReason причина публикации снимка
type UpdateReason string

const (
	ReasonInit    UpdateReason = "init"
	ReasonTick    UpdateReason = "tick"
	ReasonCommand UpdateReason = "command"
	ReasonAck     UpdateReason = "ack"
)

// Snapshot неизменяемый срез состояния симулятора после обновления окна
type Snapshot struct {
	Sequence     uint64            `json:"sequence"`
	Reason       UpdateReason      `json:"reason"`
	Timestamp    time.Time         `json:"timestamp"`
	Window       []TelemetrySample `json:"window"`
	Flags        []AnomalyFlag     `json:"flags"`
	AnomalyCount int               `json:"anomaly_count"`
	Score        float64           `json:"score"`
	Confidence   string            `json:"confidence"`
	LogTotal     uint64            `json:"log_total"`
	Log          []LogEntry        `json:"log,omitempty"`
}

// Anomalies возвращает только точки, помеченные как аномалии
func (s Snapshot) Anomalies() []AnomalyFlag {
	out := make([]AnomalyFlag, 0, s.AnomalyCount)
	for _, f := range s.Flags {
		if f.IsAnomaly {
			out = append(out, f)
		}
	}
	return out
}

// Latest возвращает последнюю точку окна
func (s Snapshot) Latest() (TelemetrySample, bool) {
	if len(s.Window) == 0 {
		return TelemetrySample{}, false
	}
	return s.Window[len(s.Window)-1], true
}

// ScorePoint точка истории скора
type ScorePoint struct {
	Sequence  uint64    `json:"sequence"`
	T         int64     `json:"t"`
	Score     float64   `json:"score"`
	Anomalies int       `json:"anomalies"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandRequest тело POST /commands
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse подтверждение приема команды
type CommandResponse struct {
	ID      string    `json:"id"`
	Command string    `json:"command"`
	State   string    `json:"state"`
	SentAt  time.Time `json:"sent_at"`
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Uptime    string    `json:"uptime"`
	Running   bool      `json:"simulator_running"`
}

// StatsResponse содержит статистику сервиса
type StatsResponse struct {
	Ticks          int64   `json:"ticks"`
	AnomaliesCount int64   `json:"anomalies_count"`
	Commands       int64   `json:"commands"`
	LogEntries     int     `json:"log_entries"`
	Score          float64 `json:"score"`
	Source         string  `json:"source"`
}
