package engine

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"thestack-server/internal/domain"
	"thestack-server/internal/engine/handlers"
	"thestack-server/internal/engine/handlers/actions"
	"thestack-server/internal/infrastructure/storage"
	"thestack-server/internal/ledger"
	"thestack-server/internal/network"
	"thestack-server/internal/registry"
	"thestack-server/internal/state"
	"thestack-server/pkg/api"
	"thestack-server/pkg/logger"
)

// disconnectEvent - разрыв соединения, классифицированный транспортом.
type disconnectEvent struct {
	SessionID string
	Reason    domain.DisconnectReason
}

// expiryEvent - выстрел grace-таймера. Gen сверяется с реестром:
// устаревший выстрел (реконнект успел) игнорируется.
type expiryEvent struct {
	SessionID string
	Gen       uint64
}

// Stats - агрегированная сводка для health/debug эндпоинтов.
type Stats struct {
	Sessions     int   `json:"sessions"`
	Subscribers  int   `json:"subscribers"`
	Bricks       int   `json:"bricks"`
	CurrentLayer int   `json:"currentLayer"`
	Uptime       int64 `json:"uptimeSeconds"`
}

// Запросы к циклу. Ответ приходит по личному каналу: так читатели
// получают согласованный снимок, не трогая состояние цикла напрямую.
type statsQuery struct{ reply chan Stats }
type sessionsQuery struct{ reply chan []api.SessionView }
type bricksQuery struct{ reply chan []api.BrickView }
type towerQuery struct{ reply chan api.TowerView }

// GameService - ядро синхронизации. Одна горутина (run) владеет
// реестром сессий, леджером и стором трансформов; весь внешний мир
// общается с ней через каналы.
type GameService struct {
	cfg Config
	Hub *network.Broadcaster

	sessions  *registry.Registry
	ledger    *ledger.Ledger
	states    *state.Store
	snapshots *storage.SnapshotService

	handlers map[domain.ActionType]handlers.HandlerFunc

	CommandChan    chan domain.InternalCommand
	DisconnectChan chan disconnectEvent
	expiryChan     chan expiryEvent
	queryChan      chan any

	// saveWG отслеживает фоновые записи на диск: финальное
	// сохранение не должно быть перезаписано отставшим фоновым.
	saveWG sync.WaitGroup

	startedAt time.Time
	stopChan  chan struct{}
	doneChan  chan struct{}

	log *logrus.Entry
}

func NewService(cfg Config) *GameService {
	s := &GameService{
		cfg:       cfg,
		Hub:       network.NewBroadcaster(),
		ledger:    ledger.New(cfg.GridSize),
		states:    state.New(),
		snapshots: storage.NewSnapshotService(cfg.SaveDir),
		handlers:  make(map[domain.ActionType]handlers.HandlerFunc),

		CommandChan:    make(chan domain.InternalCommand, 256),
		DisconnectChan: make(chan disconnectEvent, 64),
		expiryChan:     make(chan expiryEvent, 64),
		queryChan:      make(chan any, 16),

		startedAt: time.Now(),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),

		log: logger.WithComponent("engine"),
	}

	// Колбэк зовется из горутины таймера: только переправляем факт
	// в цикл, ничего не трогаем. Переполнение канала означает, что
	// цикл мертв или завален - выстрел безопасно теряется, сессию
	// добьет следующий ScheduleRemoval или shutdown.
	s.sessions = registry.New(func(sessionID string, gen uint64) {
		select {
		case s.expiryChan <- expiryEvent{SessionID: sessionID, Gen: gen}:
		default:
			s.log.WithField("session_id", sessionID).Warn("Expiry channel full, event dropped")
		}
	})

	s.registerHandlers()
	s.restore()
	return s
}

func (s *GameService) registerHandlers() {
	s.handlers[domain.ActionJoin] = handlers.WithPayload(actions.HandleJoin)
	s.handlers[domain.ActionTransform] = handlers.WithPayload(actions.HandleTransform)
	s.handlers[domain.ActionPlaceBrick] = handlers.WithPayload(actions.HandlePlaceBrick)
	s.handlers[domain.ActionPickupBrick] = handlers.WithEmptyPayload(actions.HandlePickup)
	s.handlers[domain.ActionClearBricks] = handlers.WithEmptyPayload(actions.HandleClearAll)
	s.handlers[domain.ActionChat] = handlers.WithPayload(actions.HandleChat)
	s.handlers[domain.ActionHeartbeat] = handlers.WithEmptyPayload(actions.HandleHeartbeat)
	s.handlers[domain.ActionFullSync] = handlers.WithEmptyPayload(actions.HandleFullSync)
}

// restore поднимает башню с диска. Отсутствие файла - первый запуск.
func (s *GameService) restore() {
	snap, err := s.snapshots.Load()
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info("No saved tower found, starting empty")
			return
		}
		s.log.WithError(err).Warn("Failed to load saved tower, starting empty")
		return
	}

	s.ledger.Restore(snap)
	s.log.WithFields(logrus.Fields{
		"bricks":        s.ledger.Count(),
		"current_layer": s.ledger.Tower().CurrentLayer,
	}).Info("🏗️ Tower restored from disk")
}

func (s *GameService) Start() {
	go s.run()
}

// Stop останавливает цикл и дожидается финального сохранения.
func (s *GameService) Stop() {
	close(s.stopChan)
	<-s.doneChan
}

// ProcessCommand принимает команду от транспорта (WebSocket).
// SessionID берется из соединения - это и есть идентичность автора.
func (s *GameService) ProcessCommand(external api.ClientCommand, sessionID string) {
	actionType := domain.ParseAction(external.Action)
	if actionType == domain.ActionUnknown {
		s.log.WithFields(logrus.Fields{
			"action":     external.Action,
			"session_id": sessionID,
		}).Warn("Unknown action dropped")
		return
	}

	s.CommandChan <- domain.InternalCommand{
		Action:    actionType,
		SessionID: sessionID,
		Payload:   external.Payload,
	}
}

// Disconnect сообщает движку о разрыве соединения.
func (s *GameService) Disconnect(sessionID string, reason domain.DisconnectReason) {
	s.DisconnectChan <- disconnectEvent{SessionID: sessionID, Reason: reason}
}

// GridSize возвращает сконфигурированную сторону сетки слоя.
// Конфиг после старта неизменяем, читать можно из любой горутины.
func (s *GameService) GridSize() int {
	return s.cfg.GridSize
}

// --- Запросы (для HTTP) ---

func (s *GameService) Stats() Stats {
	q := statsQuery{reply: make(chan Stats, 1)}
	s.queryChan <- q
	return <-q.reply
}

func (s *GameService) DumpSessions() []api.SessionView {
	q := sessionsQuery{reply: make(chan []api.SessionView, 1)}
	s.queryChan <- q
	return <-q.reply
}

func (s *GameService) DumpBricks() []api.BrickView {
	q := bricksQuery{reply: make(chan []api.BrickView, 1)}
	s.queryChan <- q
	return <-q.reply
}

func (s *GameService) DumpTower() api.TowerView {
	q := towerQuery{reply: make(chan api.TowerView, 1)}
	s.queryChan <- q
	return <-q.reply
}

// --- MAIN LOOP ---

func (s *GameService) run() {
	s.log.Info("🧱 Sync loop started")

	rosterTicker := time.NewTicker(s.cfg.RosterInterval)
	saveTicker := time.NewTicker(s.cfg.SaveInterval)
	defer rosterTicker.Stop()
	defer saveTicker.Stop()

	for {
		select {
		case cmd := <-s.CommandChan:
			s.executeCommand(cmd)

		case ev := <-s.DisconnectChan:
			s.handleDisconnect(ev)

		case ev := <-s.expiryChan:
			s.handleExpiry(ev)

		case q := <-s.queryChan:
			s.handleQuery(q)

		case <-rosterTicker.C:
			// Страховочный ростер: даже если инкрементальное сообщение
			// потерялось, картина мира у клиентов сойдется за период.
			if s.sessions.Count() > 0 {
				s.Hub.Broadcast(s.rosterMessage())
			}

		case <-saveTicker.C:
			// Страховочное сохранение: если запись после мутации
			// упала, этот тик - ее повторная попытка.
			s.persistAsync()

		case <-s.stopChan:
			s.shutdown()
			return
		}
	}
}

func (s *GameService) shutdown() {
	// Дожидаемся фоновых записей, затем сохраняем синхронно:
	// процесс не умрет раньше диска, и старый снимок не перезапишет новый.
	s.saveWG.Wait()
	snap := s.ledger.Snapshot(time.Now())
	if err := s.snapshots.Save(snap); err != nil {
		s.log.WithError(err).Error("Final save failed")
	} else {
		s.log.WithField("bricks", len(snap.Bricks)).Info("💾 Final save complete")
	}
	close(s.doneChan)
}

// executeCommand выполняет хендлер и пишет его результат в лог.
func (s *GameService) executeCommand(cmd domain.InternalCommand) {
	handler, ok := s.handlers[cmd.Action]
	if !ok {
		return
	}

	actor := s.sessions.Get(cmd.SessionID)

	// До join сессии не существует, любые другие действия от
	// незарегистрированного соединения отбрасываются.
	if actor == nil && cmd.Action != domain.ActionJoin {
		s.log.WithFields(logrus.Fields{
			"action":     cmd.Action.String(),
			"session_id": cmd.SessionID,
		}).Warn("Command from unknown session dropped")
		return
	}

	ctx := handlers.Context{
		Sessions:       s.sessions,
		Ledger:         s.ledger,
		States:         s.states,
		Hub:            s.Hub,
		Actor:          actor,
		SessionID:      cmd.SessionID,
		Now:            time.Now(),
		BroadcastFloor: s.cfg.BroadcastFloor,
		Persist:        s.persistAsync,
		Roster:         s.rosterMessage,
		WorldState:     s.worldStateMessage,
	}

	result, err := handler(ctx, cmd.Payload)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"action":     cmd.Action.String(),
			"session_id": cmd.SessionID,
		}).WithError(err).Warn("Command rejected")
		return
	}

	if result.Msg != "" {
		entry := s.log.WithField("action", cmd.Action.String())
		if result.MsgType == "WARN" {
			entry.Warn(result.Msg)
		} else {
			entry.Info(result.Msg)
		}
	}
}

// handleDisconnect разводит чистые и грязные разрывы.
// Чистый - удаляем сразу, остальные не должны видеть зомби.
// Грязный - даем grace-период на реконнект, чтобы мигнувший Wi-Fi
// не выкидывал игрока из ростера.
func (s *GameService) handleDisconnect(ev disconnectEvent) {
	if s.sessions.Get(ev.SessionID) == nil {
		// Разрыв незнакомой сессии: join так и не случился,
		// либо сессию уже убрали. Ничего не делаем.
		s.log.WithFields(logrus.Fields{
			"session_id": ev.SessionID,
			"reason":     ev.Reason.String(),
		}).Debug("Disconnect for unknown session ignored")
		return
	}

	entry := s.log.WithFields(logrus.Fields{
		"session_id": ev.SessionID,
		"reason":     ev.Reason.String(),
	})

	if ev.Reason.Clean() {
		entry.Info("👋 Clean disconnect, removing immediately")
		s.removeSession(ev.SessionID)
		return
	}

	entry.WithField("grace", s.cfg.GracePeriod.String()).Info("Dirty disconnect, grace timer armed")
	s.sessions.ScheduleRemoval(ev.SessionID, s.cfg.GracePeriod)
}

// handleExpiry - grace истек без реконнекта.
func (s *GameService) handleExpiry(ev expiryEvent) {
	if !s.sessions.ValidExpiry(ev.SessionID, ev.Gen) {
		// Реконнект успел между выстрелом и обработкой.
		return
	}

	s.log.WithField("session_id", ev.SessionID).Info("Grace expired, session removed")
	s.removeSession(ev.SessionID)
}

func (s *GameService) removeSession(sessionID string) {
	if !s.sessions.Remove(sessionID) {
		return
	}
	s.states.Remove(sessionID)
	s.Hub.Broadcast(s.rosterMessage())
}

func (s *GameService) handleQuery(q any) {
	switch query := q.(type) {
	case statsQuery:
		tower := s.ledger.Tower()
		query.reply <- Stats{
			Sessions:     s.sessions.Count(),
			Subscribers:  s.Hub.SubscriberCount(),
			Bricks:       s.ledger.Count(),
			CurrentLayer: tower.CurrentLayer,
			Uptime:       int64(time.Since(s.startedAt).Seconds()),
		}

	case sessionsQuery:
		query.reply <- s.sessionViews()

	case bricksQuery:
		query.reply <- s.brickViews()

	case towerQuery:
		query.reply <- s.towerView()
	}
}

// persistAsync снимает согласованный срез в цикле и отправляет запись
// на диск в отдельной горутине. Ошибка записи только логируется:
// память остается авторитетной, следующий тик сохранения или
// shutdown повторят попытку.
func (s *GameService) persistAsync() {
	snap := s.ledger.Snapshot(time.Now())

	s.saveWG.Add(1)
	go func() {
		defer s.saveWG.Done()
		if err := s.snapshots.Save(snap); err != nil {
			s.log.WithError(err).Error("Background save failed")
		}
	}()
}

// --- STATE BUILDERS ---

func (s *GameService) sessionViews() []api.SessionView {
	list := s.sessions.List()
	out := make([]api.SessionView, 0, len(list))

	for _, sess := range list {
		view := api.SessionView{
			SessionID:   sess.ID,
			UserID:      sess.UserID,
			DisplayName: sess.DisplayName,
			AvatarRef:   sess.AvatarRef,
			LastSeenAt:  sess.LastSeen.UnixMilli(),
		}
		if t := s.states.Get(sess.ID); t != nil {
			view.Position = api.Vec3View{X: t.Pos.X, Y: t.Pos.Y, Z: t.Pos.Z}
			view.Rotation = api.Vec3View{X: t.Rot.X, Y: t.Rot.Y, Z: t.Rot.Z}
			view.IsCarrying = t.IsCarrying
			view.AnimHint = t.AnimHint
			view.UpdatedAt = t.UpdatedAt.UnixMilli()
		}
		out = append(out, view)
	}
	return out
}

func (s *GameService) brickViews() []api.BrickView {
	snap := s.ledger.Snapshot(time.Now())
	out := make([]api.BrickView, 0, len(snap.Bricks))
	for _, b := range snap.Bricks {
		out = append(out, api.BrickView{
			GridPosition: api.GridPosView{X: b.Pos.X, Z: b.Pos.Z, Layer: b.Pos.Layer},
			Color:        b.Color,
			OwnerID:      b.OwnerID,
			OwnerName:    b.OwnerName,
			PlacedAt:     b.PlacedAt,
		})
	}
	return out
}

func (s *GameService) towerView() api.TowerView {
	tower := s.ledger.Tower()
	completed := make([]int, 0, len(tower.Completed))
	for layer := range tower.Completed {
		completed = append(completed, layer)
	}
	sort.Ints(completed)
	return api.TowerView{
		CurrentLayer:    tower.CurrentLayer,
		CompletedLayers: completed,
	}
}

func (s *GameService) rosterMessage() api.ServerMessage {
	return api.ServerMessage{
		Type:      api.MsgRoster,
		Timestamp: time.Now().UnixMilli(),
		Sessions:  s.sessionViews(),
	}
}

// worldStateMessage - полный снимок мира для одного получателя.
// Единственное сообщение, в котором клиент узнает свой selfId.
func (s *GameService) worldStateMessage(selfID string) api.ServerMessage {
	tower := s.towerView()
	return api.ServerMessage{
		Type:      api.MsgWorldState,
		Timestamp: time.Now().UnixMilli(),
		SelfID:    selfID,
		Sessions:  s.sessionViews(),
		Bricks:    s.brickViews(),
		Tower:     &tower,
	}
}
