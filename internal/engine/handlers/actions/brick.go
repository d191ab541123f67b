package actions

import (
	"errors"
	"fmt"
	"sort"

	"thestack-server/internal/domain"
	"thestack-server/internal/engine/handlers"
	"thestack-server/internal/ledger"
	"thestack-server/pkg/api"
)

// HandlePlaceBrick пытается провести кирпич через леджер.
//
// Три исхода:
//   - ячейка вне сетки: протокольная ошибка, сообщение отбрасывается;
//   - ячейка занята: brick-rejected лично автору, остальные не узнают;
//   - принято: brick-placed всем, ВКЛЮЧАЯ автора - клиент рендерит
//     кирпич только по этому эху, никакого оптимистичного рендера.
func HandlePlaceBrick(ctx handlers.Context, payload api.PlaceBrickPayload) (handlers.Result, error) {
	pos := domain.GridPos{
		X:     payload.GridPosition.X,
		Z:     payload.GridPosition.Z,
		Layer: payload.GridPosition.Layer,
	}

	if !ctx.Ledger.InBounds(pos) {
		return handlers.Result{}, fmt.Errorf("grid position %s out of bounds (grid %d)", pos, ctx.Ledger.GridSize())
	}

	brick, err := ctx.Ledger.Place(pos, payload.Color, ctx.Actor.ID, ctx.Actor.DisplayName, ctx.Now)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateCell) {
			ctx.Hub.SendTo(ctx.Actor.ID, api.ServerMessage{
				Type:      api.MsgBrickRejected,
				Timestamp: ctx.Now.UnixMilli(),
				Reject: &api.RejectView{
					GridPosition: payload.GridPosition,
					Reason:       domain.RejectReasonDuplicate,
				},
			})
			return handlers.Result{
				Msg:     "Brick rejected (cell occupied) at " + pos.String(),
				MsgType: "WARN",
			}, nil
		}
		return handlers.Result{}, err
	}

	tower := ctx.Ledger.Tower()
	ctx.Hub.Broadcast(api.ServerMessage{
		Type:      api.MsgBrickPlaced,
		Timestamp: ctx.Now.UnixMilli(),
		Brick:     brickView(brick),
		Tower:     towerView(tower),
	})

	ctx.Persist()

	return handlers.Result{
		Msg:     fmt.Sprintf("🧱 Brick placed at %s by %s (total %d)", pos, ctx.Actor.DisplayName, ctx.Ledger.Count()),
		MsgType: "INFO",
	}, nil
}

// HandleClearAll опустошает башню целиком. Доступно любому игроку -
// мир общий, и право снести его тоже общее.
func HandleClearAll(ctx handlers.Context) (handlers.Result, error) {
	removed := ctx.Ledger.ClearAll()

	ctx.Hub.Broadcast(api.ServerMessage{
		Type:      api.MsgBricksCleared,
		Timestamp: ctx.Now.UnixMilli(),
		Cleared: &api.ClearedView{
			By:      ctx.Actor.ID,
			Removed: removed,
		},
		Tower: towerView(ctx.Ledger.Tower()),
	})

	ctx.Persist()

	return handlers.Result{
		Msg:     fmt.Sprintf("🧹 Tower cleared by %s (%d bricks removed)", ctx.Actor.DisplayName, removed),
		MsgType: "INFO",
	}, nil
}

func brickView(b *domain.Brick) *api.BrickView {
	return &api.BrickView{
		GridPosition: api.GridPosView{X: b.Pos.X, Z: b.Pos.Z, Layer: b.Pos.Layer},
		Color:        b.Color,
		OwnerID:      b.OwnerID,
		OwnerName:    b.OwnerName,
		PlacedAt:     b.PlacedAt,
	}
}

func towerView(t domain.TowerState) *api.TowerView {
	completed := make([]int, 0, len(t.Completed))
	for layer := range t.Completed {
		completed = append(completed, layer)
	}
	sort.Ints(completed)
	return &api.TowerView{
		CurrentLayer:    t.CurrentLayer,
		CompletedLayers: completed,
	}
}
