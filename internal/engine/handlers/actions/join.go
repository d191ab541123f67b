package actions

import (
	"math"
	"math/rand"

	"thestack-server/internal/domain"
	"thestack-server/internal/engine/handlers"
	"thestack-server/internal/registry"
	"thestack-server/pkg/api"
	"thestack-server/pkg/utils"
)

// HandleJoin регистрирует сессию в реестре и вводит ее в мир.
// Единственный хендлер, для которого ctx.Actor может быть nil.
//
// Порядок отправки фиксирован: сначала world-state лично новичку
// (он узнает свой selfId и всю башню), затем ростер всем.
func HandleJoin(ctx handlers.Context, payload api.JoinPayload) (handlers.Result, error) {
	sess, rejoined := ctx.Sessions.Join(ctx.SessionID, registry.Identity{
		UserID:      payload.UserID,
		DisplayName: payload.DisplayName,
		AvatarRef:   payload.AvatarRef,
	}, ctx.Now)

	// Первый вход получает детерминированную точку спавна на окружности.
	// Реконнект трансформ не трогает: игрок остается там, где был.
	if ctx.States.Get(sess.ID) == nil {
		ctx.States.Apply(sess.ID, spawnTransform(sess.ID), ctx.Now)
	}

	ctx.Hub.SendTo(sess.ID, ctx.WorldState(sess.ID))
	ctx.Hub.Broadcast(ctx.Roster())

	verb := "joined"
	if rejoined {
		verb = "rejoined"
	}
	return handlers.Result{
		Msg:     "🎮 Player " + sess.DisplayName + " " + verb,
		MsgType: "INFO",
	}, nil
}

// spawnTransform распределяет игроков по окружности вокруг башни.
// Зерно - только ID сессии, поэтому та же сессия спавнится там же.
func spawnTransform(sessionID string) domain.PlayerTransform {
	rng := rand.New(rand.NewSource(utils.StringToSeed(sessionID)))
	angle := rng.Float64() * 2 * math.Pi

	return domain.PlayerTransform{
		Pos: domain.Vec3{
			X: math.Cos(angle) * domain.SpawnRadius,
			Y: 0,
			Z: math.Sin(angle) * domain.SpawnRadius,
		},
		Rot: domain.Vec3{Y: angle + math.Pi}, // лицом к центру
	}
}
