package engine

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"thestack-server/internal/domain"
)

// Config хранит параметры запуска движка и сервера.
// Источник - переменные окружения с префиксом TC_ (.env подхватывается
// в main до разбора). Значения по умолчанию годятся для локального запуска.
type Config struct {
	Port    string `env:"TC_PORT" envDefault:"8080"`
	SaveDir string `env:"TC_SAVE_DIR" envDefault:"./saves"`

	// GridSize - сторона сетки слоя башни (GridSize x GridSize ячеек).
	GridSize int `env:"TC_GRID_SIZE" envDefault:"8"`

	// GracePeriod - окно на реконнект после грязного разрыва.
	GracePeriod time.Duration `env:"TC_GRACE_PERIOD" envDefault:"200ms"`

	// RosterInterval - период рассылки полного ростера (страховка
	// от потерянных инкрементальных сообщений).
	RosterInterval time.Duration `env:"TC_ROSTER_INTERVAL" envDefault:"5s"`

	// SaveInterval - период фонового сохранения башни.
	SaveInterval time.Duration `env:"TC_SAVE_INTERVAL" envDefault:"30s"`

	// BroadcastFloor - минимальный интервал между фан-аутами трансформа
	// одной сессии.
	BroadcastFloor time.Duration `env:"TC_BROADCAST_FLOOR" envDefault:"16ms"`
}

// LoadConfig читает окружение и проверяет здравость значений.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.GridSize <= 0 {
		cfg.GridSize = domain.DefaultGridSize
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = domain.DefaultGracePeriod
	}
	if cfg.RosterInterval <= 0 {
		cfg.RosterInterval = domain.DefaultRosterInterval
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = domain.DefaultSaveInterval
	}
	if cfg.BroadcastFloor <= 0 {
		cfg.BroadcastFloor = domain.DefaultBroadcastFloor
	}

	return cfg, nil
}

// DefaultConfig возвращает конфиг с дефолтами, минуя окружение.
// Используется ботами и тестами.
func DefaultConfig() Config {
	return Config{
		Port:           "8080",
		SaveDir:        "./saves",
		GridSize:       domain.DefaultGridSize,
		GracePeriod:    domain.DefaultGracePeriod,
		RosterInterval: domain.DefaultRosterInterval,
		SaveInterval:   domain.DefaultSaveInterval,
		BroadcastFloor: domain.DefaultBroadcastFloor,
	}
}
