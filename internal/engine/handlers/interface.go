package handlers

import (
	"encoding/json"
	"time"

	"thestack-server/internal/domain"
	"thestack-server/internal/ledger"
	"thestack-server/internal/network"
	"thestack-server/internal/registry"
	"thestack-server/internal/state"
	"thestack-server/pkg/api"
)

// Context передает хендлеру состояние ядра.
// Мы передаем ссылки: хендлеры - единственное место, которое мутирует
// реестр, леджер и стор, и все они выполняются в цикле движка.
type Context struct {
	Sessions *registry.Registry
	Ledger   *ledger.Ledger
	States   *state.Store
	Hub      *network.Broadcaster

	// Actor - сессия-отправитель. nil только для join (сессии еще нет).
	Actor *domain.Session

	// SessionID - идентичность соединения. Проставляется транспортом,
	// клиент подделать ее не может.
	SessionID string

	Now time.Time

	// GracePeriod нужен join только косвенно (отмена идет через реестр),
	// BroadcastFloor - потолок частоты фан-аута трансформов.
	BroadcastFloor time.Duration

	// Persist асинхронно сохраняет леджер. Fire-and-forget:
	// хендлер не ждет диска и не узнает о его ошибках.
	Persist func()

	// Roster и WorldState собирают исходящие сообщения из текущего
	// состояния. Собраны движком, чтобы периодические рассылки и
	// хендлеры отправляли байт-в-байт одинаковые снимки.
	Roster     func() api.ServerMessage
	WorldState func(selfID string) api.ServerMessage
}

// Result - результат выполнения команды.
// Хендлер НЕ пишет в журналы сервиса напрямую, он возвращает данные.
type Result struct {
	Msg     string // Текст лога
	MsgType string // Тип лога (INFO, WARN)
}

// HandlerFunc - это контракт для любой команды протокола.
type HandlerFunc func(ctx Context, payload json.RawMessage) (Result, error)

// EmptyResult - вспомогательная функция для пустого успешного ответа
func EmptyResult() Result {
	return Result{}
}
