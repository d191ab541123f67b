package replica

import (
	"time"

	"thestack-server/internal/domain"
	"thestack-server/pkg/api"
)

// CreationState - фаза жизни удаленного игрока на клиенте.
// Создание объекта сцены может быть асинхронным (загрузка модели),
// поэтому между "узнали об игроке" и "объект готов" есть окно.
type CreationState uint8

const (
	// CreationPending - создание объекта запущено, но не завершено.
	CreationPending CreationState = iota
	// CreationActive - объект в сцене, трансформы применяются.
	CreationActive
)

// RemoteView - все, что клиент знает об одном удаленном игроке.
type RemoteView struct {
	SessionID   string
	DisplayName string
	State       CreationState

	// Target - последняя сетевая цель. Рендер движется к ней
	// интерполяцией, а не телепортом.
	Target   domain.PlayerTransform
	TargetAt time.Time

	// LastSeen - локальное время последнего сообщения об игроке.
	LastSeen time.Time

	// removed - удаление пришло, пока создание было в полете.
	// FinishTrack обязан немедленно освободить объект.
	removed bool

	obj *RenderObject
}

// Replica поддерживает локальную копию мира по сообщениям сервера.
// Не потокобезопасна: вызывающий подает сообщения и тики из одной
// горутины (цикл клиента).
type Replica struct {
	selfID string
	views  map[string]*RemoteView
	scene  *Scene
}

func New(scene *Scene) *Replica {
	if scene == nil {
		scene = NewScene()
	}
	return &Replica{
		views: make(map[string]*RemoteView),
		scene: scene,
	}
}

// SelfID возвращает собственный ID (пустой до первого world-state).
func (r *Replica) SelfID() string { return r.selfID }

// Scene возвращает сцену реплики.
func (r *Replica) Scene() *Scene { return r.scene }

// View возвращает представление удаленного игрока или nil.
func (r *Replica) View(sessionID string) *RemoteView { return r.views[sessionID] }

// ApplyMessage разбирает сообщение сервера. Неизвестные типы молча
// игнорируются - сервер новее клиента, это штатно.
func (r *Replica) ApplyMessage(msg api.ServerMessage, now time.Time) {
	switch msg.Type {
	case api.MsgWorldState:
		if msg.SelfID != "" {
			r.selfID = msg.SelfID
		}
		r.ApplyRoster(msg.Sessions, now)

	case api.MsgRoster:
		r.ApplyRoster(msg.Sessions, now)

	case api.MsgTransform:
		if msg.Transform != nil {
			r.ApplyTransform(*msg.Transform, now)
		}
	}
}

// ApplyRoster сводит локальное множество игроков с авторитетным.
// Ростер - единственный источник появления и исчезновения игроков;
// transform-update сам по себе никого не создает.
func (r *Replica) ApplyRoster(sessions []api.SessionView, now time.Time) {
	alive := make(map[string]bool, len(sessions))

	for _, sv := range sessions {
		if sv.SessionID == r.selfID {
			continue
		}
		alive[sv.SessionID] = true

		view, ok := r.views[sv.SessionID]
		if !ok {
			// Новый игрок: создание single-flight, повторные ростеры
			// с тем же ID второй запуск не делают.
			view = r.beginTrack(sv.SessionID)
		}
		view.DisplayName = sv.DisplayName
		view.removed = false
		view.LastSeen = now
		r.setTarget(view, transformFromSession(sv), time.UnixMilli(sv.UpdatedAt))
	}

	// Игроки, пропавшие из ростера, уходят из сцены.
	for id, view := range r.views {
		if !alive[id] {
			r.drop(view)
		}
	}
}

// ApplyTransform обновляет цель интерполяции одного игрока.
func (r *Replica) ApplyTransform(t api.TransformView, now time.Time) {
	// Собственное эхо не применяем: локальный рендер игрока
	// авторитетен для него самого.
	if t.SessionID == r.selfID {
		return
	}

	view, ok := r.views[t.SessionID]
	if !ok {
		// Трансформ неизвестного игрока: join-ростер еще не дошел.
		// Не создаем объект по трансформу - ждем ростер, он придет
		// не позже страховочного периода.
		return
	}

	view.LastSeen = now
	r.setTarget(view, domain.PlayerTransform{
		Pos:        domain.Vec3{X: t.Position.X, Y: t.Position.Y, Z: t.Position.Z},
		Rot:        domain.Vec3{X: t.Rotation.X, Y: t.Rotation.Y, Z: t.Rotation.Z},
		IsCarrying: t.IsCarrying,
		AnimHint:   t.AnimHint,
	}, time.UnixMilli(t.UpdatedAt))
}

// beginTrack регистрирует игрока в состоянии pending.
func (r *Replica) beginTrack(sessionID string) *RemoteView {
	view := &RemoteView{
		SessionID: sessionID,
		State:     CreationPending,
	}
	r.views[sessionID] = view
	return view
}

// FinishTrack завершает асинхронное создание объекта сцены.
// Если игрок успел исчезнуть, пока объект готовился, объект
// освобождается немедленно и в сцену не попадает.
func (r *Replica) FinishTrack(sessionID string) {
	view, ok := r.views[sessionID]
	if !ok || view.State == CreationActive {
		return
	}

	if view.removed {
		delete(r.views, sessionID)
		return
	}

	view.State = CreationActive
	view.obj = r.scene.Spawn(sessionID, view.Target.Pos, view.Target.Rot)
}

// drop убирает игрока. Для pending-создания объект еще не в сцене -
// помечаем removed, FinishTrack доделает уборку.
func (r *Replica) drop(view *RemoteView) {
	if view.State == CreationPending {
		view.removed = true
		return
	}
	r.scene.Release(view.SessionID)
	delete(r.views, view.SessionID)
}

func (r *Replica) setTarget(view *RemoteView, t domain.PlayerTransform, at time.Time) {
	// Цели старше уже принятой не откатывают позицию назад.
	if at.Before(view.TargetAt) {
		return
	}
	view.Target = t
	view.TargetAt = at
}

// Tick продвигает все активные объекты к их сетевым целям.
func (r *Replica) Tick(now time.Time) {
	for _, view := range r.views {
		if view.State != CreationActive || view.obj == nil {
			continue
		}

		age := now.Sub(view.TargetAt)
		if age > StaleCutoff {
			// Цель устарела: стоим на месте до свежих данных.
			continue
		}

		if dist(view.obj.Pos, view.Target.Pos) < Epsilon {
			view.obj.Pos = view.Target.Pos
			view.obj.Rot = view.Target.Rot
			continue
		}

		f := lerpFactor(age)
		view.obj.Pos = lerpVec(view.obj.Pos, view.Target.Pos, f)
		view.obj.Rot = lerpVec(view.obj.Rot, view.Target.Rot, f)
	}
}

// SweepGhosts освобождает объекты сцены, за которыми не стоит
// отслеживаемый игрок. В нормальной жизни таких нет; появление
// призрака означает багу создания, и лучше убрать его, чем
// рисовать вечно. Возвращает число убранных.
func (r *Replica) SweepGhosts() int {
	removed := 0
	for _, id := range r.scene.IDs() {
		view, ok := r.views[id]
		if !ok || view.State != CreationActive {
			r.scene.Release(id)
			removed++
		}
	}
	return removed
}

// Dispose освобождает все объекты и забывает всех игроков.
func (r *Replica) Dispose() {
	for _, view := range r.views {
		if view.State == CreationActive {
			r.scene.Release(view.SessionID)
		}
	}
	r.views = make(map[string]*RemoteView)
}

// TrackedCount возвращает число отслеживаемых игроков (включая pending).
func (r *Replica) TrackedCount() int { return len(r.views) }

func transformFromSession(sv api.SessionView) domain.PlayerTransform {
	return domain.PlayerTransform{
		Pos:        domain.Vec3{X: sv.Position.X, Y: sv.Position.Y, Z: sv.Position.Z},
		Rot:        domain.Vec3{X: sv.Rotation.X, Y: sv.Rotation.Y, Z: sv.Rotation.Z},
		IsCarrying: sv.IsCarrying,
		AnimHint:   sv.AnimHint,
	}
}
