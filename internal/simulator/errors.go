package simulator

import (
	"errors"

	"hud-telemetry-service/internal/analytics"
)

var (
	// ErrInvalidSeedLength начальное окно неверной длины
	ErrInvalidSeedLength = analytics.ErrInvalidSeedLength
	// ErrEmptyCommand пустая команда; не ошибка для пользователя, а явный no-op
	ErrEmptyCommand = errors.New("empty command")
	// ErrStopped симулятор уже остановлен
	ErrStopped = errors.New("simulator stopped")
)
