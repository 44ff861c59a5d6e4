// Package config загружает конфигурацию сервиса из переменных окружения
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"hud-telemetry-service/internal/simulator"
)

// Config содержит конфигурацию сервиса
type Config struct {
	ServerAddr      string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisEnabled    bool
	LogLevel        string
	LogFormat       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	WindowSize       int
	ScoreLastK       int
	TickInterval     time.Duration
	AckDelayMin      time.Duration
	AckDelayMax      time.Duration
	LogCapacity      int
	SubscriberBuffer int
}

// Load загружает конфигурацию из окружения процесса
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom загружает конфигурацию через произвольную функцию поиска переменных
func LoadFrom(getenv func(string) string) (Config, error) {
	e := env{getenv: getenv}
	defaults := simulator.DefaultConfig()

	cfg := Config{
		ServerAddr:      e.str("SERVER_ADDR", ":8080"),
		RedisAddr:       e.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   e.str("REDIS_PASSWORD", ""),
		RedisDB:         e.integer("REDIS_DB", 0),
		RedisEnabled:    e.boolean("REDIS_ENABLED", true),
		LogLevel:        e.str("LOG_LEVEL", "info"),
		LogFormat:       e.str("LOG_FORMAT", "json"),
		ReadTimeout:     e.duration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    e.duration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     e.duration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 30*time.Second),

		WindowSize:       e.integer("WINDOW_SIZE", defaults.WindowSize),
		ScoreLastK:       e.integer("SCORE_LAST_K", defaults.ScoreLastK),
		TickInterval:     e.duration("TICK_INTERVAL", defaults.TickInterval),
		AckDelayMin:      e.duration("ACK_DELAY_MIN", defaults.AckDelayMin),
		AckDelayMax:      e.duration("ACK_DELAY_MAX", defaults.AckDelayMax),
		LogCapacity:      e.integer("LOG_CAPACITY", defaults.LogCapacity),
		SubscriberBuffer: e.integer("SUBSCRIBER_BUFFER", defaults.SubscriberBuffer),
	}

	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность параметров
func (c Config) Validate() error {
	var errs []error
	if c.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("WINDOW_SIZE must be positive, got %d", c.WindowSize))
	}
	if c.ScoreLastK < 1 {
		errs = append(errs, fmt.Errorf("SCORE_LAST_K must be positive, got %d", c.ScoreLastK))
	}
	if c.LogCapacity < 1 {
		errs = append(errs, fmt.Errorf("LOG_CAPACITY must be positive, got %d", c.LogCapacity))
	}
	if c.SubscriberBuffer < 1 {
		errs = append(errs, fmt.Errorf("SUBSCRIBER_BUFFER must be positive, got %d", c.SubscriberBuffer))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval))
	}
	if c.AckDelayMax <= 0 {
		errs = append(errs, fmt.Errorf("ACK_DELAY_MAX must be positive, got %s", c.AckDelayMax))
	}
	if c.AckDelayMin < 0 || c.AckDelayMin > c.AckDelayMax {
		errs = append(errs, fmt.Errorf("ACK_DELAY_MIN (%s) must be within [0, ACK_DELAY_MAX (%s)]", c.AckDelayMin, c.AckDelayMax))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Simulator возвращает параметры симулятора
func (c Config) Simulator() simulator.Config {
	return simulator.Config{
		WindowSize:       c.WindowSize,
		ScoreLastK:       c.ScoreLastK,
		TickInterval:     c.TickInterval,
		AckDelayMin:      c.AckDelayMin,
		AckDelayMax:      c.AckDelayMax,
		LogCapacity:      c.LogCapacity,
		SubscriberBuffer: c.SubscriberBuffer,
	}
}

// env читает переменные и накапливает ошибки разбора
type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, defaultValue string) string {
	if value := e.getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (e *env) integer(key string, defaultValue int) int {
	value := e.getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q: %w", key, value, err))
		return defaultValue
	}
	return n
}

func (e *env) boolean(key string, defaultValue bool) bool {
	value := e.getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err))
		return defaultValue
	}
	return b
}

func (e *env) duration(key string, defaultValue time.Duration) time.Duration {
	value := e.getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q: %w", key, value, err))
		return defaultValue
	}
	return d
}
