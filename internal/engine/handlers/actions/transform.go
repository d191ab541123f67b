package actions

import (
	"thestack-server/internal/domain"
	"thestack-server/internal/engine/handlers"
	"thestack-server/pkg/api"
)

// HandleTransform принимает обновление позиции игрока.
// Состояние обновляется ВСЕГДА (последняя запись побеждает), а вот
// фан-аут ограничен потолком частоты: пропущенный кадр не потерян,
// его содержимое уедет со следующим разрешенным фан-аутом или ростером.
func HandleTransform(ctx handlers.Context, payload api.TransformPayload) (handlers.Result, error) {
	ctx.States.Apply(ctx.SessionID, domain.PlayerTransform{
		Pos:        domain.Vec3{X: payload.Position.X, Y: payload.Position.Y, Z: payload.Position.Z},
		Rot:        domain.Vec3{X: payload.Rotation.X, Y: payload.Rotation.Y, Z: payload.Rotation.Z},
		IsCarrying: payload.IsCarrying,
		AnimHint:   payload.AnimHint,
	}, ctx.Now)

	if !ctx.States.ShouldFanout(ctx.SessionID, ctx.Now, ctx.BroadcastFloor) {
		return handlers.EmptyResult(), nil
	}

	// Автору эхо не шлем: его локальный рендер авторитетен для него самого.
	ctx.Hub.BroadcastExcept(ctx.SessionID, transformMessage(ctx))
	return handlers.EmptyResult(), nil
}

// HandlePickup переключает флаг переноски. Отдельное действие, а не
// частный случай transform-update: клиент шлет его в момент события,
// и оно не должно попадать под потолок частоты.
func HandlePickup(ctx handlers.Context) (handlers.Result, error) {
	if !ctx.States.SetCarrying(ctx.SessionID, true, ctx.Now) {
		// Трансформа еще нет - игрок не успел отправить ни одного
		// transform-update. Молча игнорируем, ростер все выровняет.
		return handlers.EmptyResult(), nil
	}

	ctx.Hub.BroadcastExcept(ctx.SessionID, transformMessage(ctx))
	return handlers.EmptyResult(), nil
}

func transformMessage(ctx handlers.Context) api.ServerMessage {
	t := ctx.States.Get(ctx.SessionID)

	return api.ServerMessage{
		Type:      api.MsgTransform,
		Timestamp: ctx.Now.UnixMilli(),
		Transform: &api.TransformView{
			SessionID:  ctx.SessionID,
			Position:   api.Vec3View{X: t.Pos.X, Y: t.Pos.Y, Z: t.Pos.Z},
			Rotation:   api.Vec3View{X: t.Rot.X, Y: t.Rot.Y, Z: t.Rot.Z},
			IsCarrying: t.IsCarrying,
			AnimHint:   t.AnimHint,
			UpdatedAt:  t.UpdatedAt.UnixMilli(),
		},
	}
}
