package models

import "time"

// Level уровень записи журнала
type Level string

const (
	LevelInfo   Level = "info"
	LevelWarn   Level = "warn"
	LevelAction Level = "action"
	LevelAI     Level = "ai"
	LevelDebug  Level = "debug"
)

// Valid сообщает, входит ли уровень в известный набор
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarn, LevelAction, LevelAI, LevelDebug:
		return true
	}
	return false
}

// LogEntry запись журнала событий симулятора
type LogEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Level     Level       `json:"level"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}
