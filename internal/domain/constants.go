package domain

import "time"

// Параметры башни
const (
	// DefaultGridSize - сторона сетки одного слоя. Слой считается
	// завершенным, когда занято GridSize*GridSize ячеек.
	DefaultGridSize = 8

	// SpawnRadius - радиус круга, в котором появляются новые игроки.
	SpawnRadius = 12.0
)

// Тайминги синхронизации
const (
	// DefaultGracePeriod - окно после "грязного" дисконнекта, в течение
	// которого реконнект продолжает старую сессию, а не создает новую.
	DefaultGracePeriod = 200 * time.Millisecond

	// DefaultBroadcastFloor - минимальный интервал между рассылками
	// трансформа одного игрока (потолок ~60 Гц).
	DefaultBroadcastFloor = 16 * time.Millisecond

	// DefaultRosterInterval - период полной рассылки ростера.
	// Страховка от потерянных инкрементальных сообщений.
	DefaultRosterInterval = 5 * time.Second

	// DefaultSaveInterval - период фонового сохранения леджера.
	DefaultSaveInterval = 30 * time.Second
)

// Причины отклонения кирпича
const (
	RejectReasonDuplicate = "duplicate"
	RejectReasonOutOfGrid = "out-of-grid"
)
