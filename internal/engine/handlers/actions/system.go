package actions

import (
	"thestack-server/internal/engine/handlers"
	"thestack-server/pkg/api"
)

// HandleHeartbeat обновляет штамп жизни сессии и отвечает лично
// отправителю. Ack нужен клиенту для замера RTT; жизнь самого
// соединения дополнительно отслеживают ping/pong транспорта.
func HandleHeartbeat(ctx handlers.Context) (handlers.Result, error) {
	ctx.Actor.LastSeen = ctx.Now

	ctx.Hub.SendTo(ctx.SessionID, api.ServerMessage{
		Type:      api.MsgHeartbeatAck,
		Timestamp: ctx.Now.UnixMilli(),
	})
	return handlers.EmptyResult(), nil
}

// HandleFullSync высылает отправителю полный снимок мира.
// Клиент запрашивает его, когда подозревает рассинхронизацию
// (например, после долгой паузы вкладки).
func HandleFullSync(ctx handlers.Context) (handlers.Result, error) {
	ctx.Hub.SendTo(ctx.SessionID, ctx.WorldState(ctx.SessionID))
	ctx.Hub.SendTo(ctx.SessionID, ctx.Roster())

	return handlers.Result{
		Msg:     "Full sync requested by " + ctx.SessionID,
		MsgType: "INFO",
	}, nil
}
