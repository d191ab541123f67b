package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"thestack-server/internal/domain"
	"thestack-server/internal/engine"
	"thestack-server/pkg/api"
	"thestack-server/pkg/logger"
	"thestack-server/pkg/utils"
)

// Настройки WebSocket
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client - посредник между WebSocket и GameService.
// SessionID фиксируется при подключении и дальше сопровождает каждую
// команду: клиент не может говорить от чужого имени.
type Client struct {
	Game      *engine.GameService
	Conn      *websocket.Conn
	Send      chan api.ServerMessage
	SessionID string
}

// NewClient создает клиента. Реконнект передает свой прежний ID в
// query-параметре session; свежее подключение получает новый.
func NewClient(game *engine.GameService, conn *websocket.Conn, sessionID string) *Client {
	if sessionID == "" {
		sessionID = utils.GenerateID()
	}
	return &Client{
		Game:      game,
		Conn:      conn,
		Send:      make(chan api.ServerMessage, 256),
		SessionID: sessionID,
	}
}

// readPump читает команды от клиента до разрыва соединения.
// На выходе классифицирует причину разрыва и сообщает движку:
// от классификации зависит, удалят сессию сразу или дадут grace.
func (c *Client) readPump() {
	reason := domain.DisconnectNetworkError

	// Подписка на исходящие до первого чтения: world-state в ответ на
	// join не должен проскочить мимо еще не зарегистрированного канала.
	updates := c.Game.Hub.Register(c.SessionID)

	defer func() {
		// Убираем только СВОЮ подписку. Если реконнект с тем же ID уже
		// перерегистрировался, сессия принадлежит ему: трогать хаб и
		// сообщать движку о разрыве нельзя, иначе уборка мертвого
		// сокета снимет живое соединение.
		owned := c.Game.Hub.Unregister(c.SessionID, updates)
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("failed to close websocket connection")
		}

		if !owned {
			logger.Log.WithField("session_id", c.SessionID).Info("Stale connection closed, session taken over by reconnect")
			return
		}

		c.Game.Disconnect(c.SessionID, reason)

		logger.Log.WithFields(logrus.Fields{
			"session_id": c.SessionID,
			"reason":     reason.String(),
		}).Info("Client disconnected")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.WithError(err).Warn("failed to set read deadline")
	}
	c.Conn.SetPongHandler(func(string) error {
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			logger.Log.WithError(err).Warn("failed to set pong read deadline")
		}
		return nil
	})
	// Пересылка из хаба в writePump. Закрытие updates (ре-регистрация
	// или уборка) закрывает Send и через него гасит writePump.
	go func() {
		for msg := range updates {
			c.Send <- msg
		}
		close(c.Send)
	}()

	for {
		var cmd api.ClientCommand
		if err := c.Conn.ReadJSON(&cmd); err != nil {
			reason = classifyClose(err)
			if reason == domain.DisconnectNetworkError &&
				websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.WithError(err).Debug("WS read error")
			}
			return
		}
		c.Game.ProcessCommand(cmd, c.SessionID)
	}
}

// classifyClose переводит ошибку чтения в причину разрыва.
func classifyClose(err error) domain.DisconnectReason {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		return domain.DisconnectClientClose
	}
	if websocket.IsCloseError(err, websocket.CloseGoingAway) {
		return domain.DisconnectGoingAway
	}
	return domain.DisconnectNetworkError
}

// writePump отправляет данные клиенту + Ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.Conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("failed to close websocket connection in writePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				if err := c.Conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logger.Log.WithError(err).Debug("write close message failed")
				}
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				logger.Log.WithError(err).Debug("write json message failed")
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
