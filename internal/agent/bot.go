package agent

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"thestack-server/internal/domain"
	"thestack-server/internal/engine"
	"thestack-server/internal/replica"
	"thestack-server/pkg/api"
	"thestack-server/pkg/logger"
	"thestack-server/pkg/utils"
)

// Bot - "игрок-компьютер" (Headless Agent).
// Этот код является примером ВНЕШНЕГО клиента: бот регистрируется в хабе
// сервера так же, как обычное WebSocket-соединение, получает те же
// сообщения и ведет собственную реплику мира через internal/replica.
// Полезен для нагрузочных прогонов и как живая проверка протокола.
//
// Жизненный цикл:
//  1. NewBot -> регистрация в хабе, получение личного канала (Inbox).
//  2. Run -> горутина: join, затем цикл "сообщения + тики блуждания".
//  3. Stop -> детерминированная остановка и уборка реплики.
type Bot struct {
	SessionID string
	Name      string
	Service   *engine.GameService
	Inbox     chan api.ServerMessage

	replica *replica.Replica
	rng     *rand.Rand

	pos          domain.Vec3
	currentLayer int

	stop chan struct{}
	done chan struct{}
}

func NewBot(name string, service *engine.GameService) *Bot {
	sessionID := "bot-" + utils.GenerateID()

	return &Bot{
		SessionID: sessionID,
		Name:      name,
		Service:   service,
		Inbox:     service.Hub.Register(sessionID),
		replica:   replica.New(nil),
		rng:       rand.New(rand.NewSource(utils.StringToSeed(sessionID))),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run запускает цикл жизни бота. Должен быть запущен в горутине.
func (b *Bot) Run() {
	defer close(b.done)
	defer b.replica.Dispose()
	defer b.Service.Hub.Unregister(b.SessionID, b.Inbox)

	b.sendJoin()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-b.Inbox:
			if !ok {
				return
			}
			b.handleMessage(msg)

		case <-ticker.C:
			b.wander()
			b.replica.Tick(time.Now())

			// Примерно раз в пять секунд бот кладет кирпич.
			if b.rng.Intn(50) == 0 {
				b.placeRandomBrick()
			}

		case <-b.stop:
			b.Service.Disconnect(b.SessionID, domain.DisconnectClientClose)
			return
		}
	}
}

// Stop останавливает бота и дожидается завершения его горутины.
func (b *Bot) Stop() {
	close(b.stop)
	<-b.done
}

func (b *Bot) handleMessage(msg api.ServerMessage) {
	b.replica.ApplyMessage(msg, time.Now())

	// У headless-агента нет асинхронной загрузки моделей:
	// создание объекта завершается в тот же тик.
	for _, sv := range msg.Sessions {
		b.replica.FinishTrack(sv.SessionID)
	}

	if msg.Tower != nil {
		b.currentLayer = msg.Tower.CurrentLayer
	}
}

func (b *Bot) sendJoin() {
	payload, _ := json.Marshal(api.JoinPayload{
		UserID:      int64(b.rng.Intn(100000)),
		DisplayName: b.Name,
	})
	b.Service.ProcessCommand(api.ClientCommand{Action: "join", Payload: payload}, b.SessionID)

	logger.Log.WithFields(logrus.Fields{
		"session_id": b.SessionID,
		"name":       b.Name,
	}).Info("🤖 Bot joined")
}

// wander делает случайный шаг и отправляет transform-update.
func (b *Bot) wander() {
	b.pos.X += (b.rng.Float64() - 0.5) * 0.5
	b.pos.Z += (b.rng.Float64() - 0.5) * 0.5

	payload, _ := json.Marshal(api.TransformPayload{
		Position: api.Vec3View{X: b.pos.X, Y: b.pos.Y, Z: b.pos.Z},
		Rotation: api.Vec3View{Y: b.rng.Float64() * 6.28},
	})
	b.Service.ProcessCommand(api.ClientCommand{Action: "transform-update", Payload: payload}, b.SessionID)
}

// placeRandomBrick пытается занять случайную ячейку активного слоя.
// Отказ (ячейка занята) штатен: сервер ответит brick-rejected, бот
// просто попробует другую ячейку в следующий раз.
func (b *Bot) placeRandomBrick() {
	payload, _ := json.Marshal(api.PlaceBrickPayload{
		GridPosition: b.randomCell(),
		Color:        fmt.Sprintf("#%06x", b.rng.Intn(0xFFFFFF)),
	})
	b.Service.ProcessCommand(api.ClientCommand{Action: "place-brick", Payload: payload}, b.SessionID)
}

// randomCell выбирает ячейку в пределах сетки СЕРВЕРА: бот обязан
// уважать сконфигурированный размер, иначе его кирпичи молча
// отбрасываются как out-of-grid.
func (b *Bot) randomCell() api.GridPosView {
	grid := b.Service.GridSize()
	return api.GridPosView{
		X:     b.rng.Intn(grid),
		Z:     b.rng.Intn(grid),
		Layer: b.currentLayer,
	}
}
