package actions

import (
	"thestack-server/internal/engine/handlers"
	"thestack-server/pkg/api"
)

// HandleChat ретранслирует сообщение чата всем, включая автора.
// Сервер не хранит историю чата: сообщение живет только в рассылке.
func HandleChat(ctx handlers.Context, payload api.ChatPayload) (handlers.Result, error) {
	ctx.Hub.Broadcast(api.ServerMessage{
		Type:      api.MsgChat,
		Timestamp: ctx.Now.UnixMilli(),
		Chat: &api.ChatView{
			SessionID:   ctx.Actor.ID,
			DisplayName: ctx.Actor.DisplayName,
			Text:        payload.Text,
		},
	})

	return handlers.EmptyResult(), nil
}
