package replica

import "thestack-server/internal/domain"

// RenderObject - визуальное представление удаленного игрока.
// В headless-режиме это просто позиция; реальный клиент вешает
// сюда модель и анимации.
type RenderObject struct {
	SessionID string
	Pos       domain.Vec3
	Rot       domain.Vec3

	// Released выставляется однократно при изъятии из сцены.
	// Объект с этим флагом не должен рисоваться и не возвращается
	// обратно - для нового игрока создается новый объект.
	Released bool
}

// Scene - плоский реестр отрисовываемых объектов по ID сессии.
type Scene struct {
	objects map[string]*RenderObject
}

func NewScene() *Scene {
	return &Scene{objects: make(map[string]*RenderObject)}
}

// Spawn создает объект для сессии. Повторный Spawn того же ID -
// ошибка вызывающего; существующий объект молча переиспользуется,
// чтобы не плодить дубликаты.
func (s *Scene) Spawn(sessionID string, pos, rot domain.Vec3) *RenderObject {
	if obj, ok := s.objects[sessionID]; ok {
		return obj
	}
	obj := &RenderObject{SessionID: sessionID, Pos: pos, Rot: rot}
	s.objects[sessionID] = obj
	return obj
}

// Release изымает объект из сцены и помечает его освобожденным.
func (s *Scene) Release(sessionID string) {
	if obj, ok := s.objects[sessionID]; ok {
		obj.Released = true
		delete(s.objects, sessionID)
	}
}

// Get возвращает объект или nil.
func (s *Scene) Get(sessionID string) *RenderObject {
	return s.objects[sessionID]
}

// IDs возвращает ID всех объектов сцены (порядок не определен).
func (s *Scene) IDs() []string {
	out := make([]string, 0, len(s.objects))
	for id := range s.objects {
		out = append(out, id)
	}
	return out
}

// Count возвращает число объектов в сцене.
func (s *Scene) Count() int { return len(s.objects) }
