package api

import (
	"encoding/json"
)

// --- СЕРВЕР -> КЛИЕНТ ---

// Типы исходящих сообщений. Закрытый набор: клиент обязан игнорировать
// неизвестные типы, сервер не отправляет ничего вне этого списка.
const (
	MsgRoster        = "roster"
	MsgTransform     = "transform-update"
	MsgWorldState    = "world-state"
	MsgBrickPlaced   = "brick-placed"
	MsgBrickRejected = "brick-rejected"
	MsgBricksCleared = "bricks-cleared"
	MsgChat          = "chat-message"
	MsgHeartbeatAck  = "heartbeat-ack"
)

// ServerMessage это корневой объект, который сервер отправляет клиенту.
// Заполнена всегда только секция, соответствующая Type; остальные
// опущены через omitempty.
type ServerMessage struct {
	Type string `json:"type"`

	// Timestamp время сервера на момент отправки, Unix milliseconds.
	Timestamp int64 `json:"timestamp,omitempty"`

	// SelfID ID сессии получателя. Заполняется в world-state, чтобы
	// клиент знал собственную идентичность (нужно для reconnect и для
	// фильтрации эха своих же трансформов).
	SelfID string `json:"selfId,omitempty"`

	// Sessions полный ростер. Заполняется в roster.
	Sessions []SessionView `json:"sessions,omitempty"`

	// Transform чужой трансформ. Заполняется в transform-update.
	Transform *TransformView `json:"transform,omitempty"`

	// Bricks и Tower - полное состояние башни. Заполняются в world-state.
	Bricks []BrickView `json:"bricks,omitempty"`
	Tower  *TowerView  `json:"tower,omitempty"`

	// Brick принятый кирпич. Заполняется в brick-placed.
	Brick *BrickView `json:"brick,omitempty"`

	// Reject причина отклонения. Заполняется в brick-rejected,
	// уходит только автору запроса.
	Reject *RejectView `json:"reject,omitempty"`

	// Cleared результат полной очистки. Заполняется в bricks-cleared.
	Cleared *ClearedView `json:"cleared,omitempty"`

	// Chat сообщение чата. Заполняется в chat-message.
	Chat *ChatView `json:"chat,omitempty"`
}

// Vec3View - координаты/углы в мировом пространстве
type Vec3View struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GridPosView - адрес ячейки башни
type GridPosView struct {
	X     int `json:"x"`
	Z     int `json:"z"`
	Layer int `json:"layer"`
}

// SessionView это DTO одной сессии в ростере.
// Содержит и идентичность, и последний известный трансформ: периодический
// ростер обязан сам по себе восстанавливать картину мира у отставшего клиента.
type SessionView struct {
	SessionID   string `json:"sessionId"`
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`

	Position   Vec3View `json:"position"`
	Rotation   Vec3View `json:"rotation"`
	IsCarrying bool     `json:"isCarryingObject"`
	AnimHint   string   `json:"animationHint,omitempty"`

	// UpdatedAt время последнего трансформа, Unix milliseconds.
	// Клиент использует его для отсечки устаревших целей интерполяции.
	UpdatedAt int64 `json:"updatedAt"`

	// LastSeenAt штамп жизни сессии (join / heartbeat), Unix milliseconds.
	LastSeenAt int64 `json:"lastSeenAt,omitempty"`
}

// TransformView это DTO инкрементального обновления позиции.
type TransformView struct {
	SessionID  string   `json:"sessionId"`
	Position   Vec3View `json:"position"`
	Rotation   Vec3View `json:"rotation"`
	IsCarrying bool     `json:"isCarryingObject"`
	AnimHint   string   `json:"animationHint,omitempty"`
	UpdatedAt  int64    `json:"updatedAt"`
}

// BrickView это DTO одного кирпича.
type BrickView struct {
	GridPosition GridPosView `json:"gridPosition"`
	Color        string      `json:"color"`
	OwnerID      string      `json:"ownerSessionId"`
	OwnerName    string      `json:"ownerDisplayName"`
	PlacedAt     int64       `json:"timestamp"`
}

// TowerView - производное состояние башни.
type TowerView struct {
	CurrentLayer    int   `json:"currentLayer"`
	CompletedLayers []int `json:"completedLayers"`
}

// RejectView - отказ в установке кирпича.
type RejectView struct {
	GridPosition GridPosView `json:"gridPosition"`
	Reason       string      `json:"reason"`
}

// ClearedView - результат clear-all.
type ClearedView struct {
	By      string `json:"by"`
	Removed int    `json:"removed"`
}

// ChatView - сообщение чата.
type ChatView struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text"`
}

// --- КЛИЕНТ -> СЕРВЕР ---

// ClientCommand это корневой объект для всех сообщений от клиента.
// Идентичность отправителя определяется соединением, а не полями
// сообщения, поэтому токена здесь нет.
type ClientCommand struct {
	// Action название действия (см. domain.ParseAction).
	Action string `json:"action"`

	// Payload JSON-объект с данными. Структура зависит от Action.
	Payload json.RawMessage `json:"payload"`
}

// --- Payloads ---

// JoinPayload используется в join. Первое сообщение каждой сессии.
type JoinPayload struct {
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

// TransformPayload используется в transform-update.
type TransformPayload struct {
	Position   Vec3View `json:"position"`
	Rotation   Vec3View `json:"rotation"`
	IsCarrying bool     `json:"isCarryingObject"`
	AnimHint   string   `json:"animationHint,omitempty"`
}

// PlaceBrickPayload используется в place-brick.
type PlaceBrickPayload struct {
	GridPosition GridPosView `json:"gridPosition"`
	Color        string      `json:"color"`
}

// ChatPayload используется в chat-message.
type ChatPayload struct {
	Text string `json:"text"`
}
