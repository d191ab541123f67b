package domain

import "time"

// Vec3 - позиция или поворот в мировых координатах
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Session - одно живое подключение.
// Инвариант: на соединение приходится максимум одна сессия,
// SessionID никогда не переиспользуется для другого соединения.
type Session struct {
	ID          string `json:"id"`
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`

	JoinedAt time.Time `json:"joinedAt"`

	// LastSeen - штамп жизни сессии. Обновляется на join и heartbeat;
	// на транспортном уровне жизнь соединения отслеживают ping/pong.
	LastSeen time.Time `json:"lastSeen"`
}

// PlayerTransform - последнее известное состояние игрока.
// Мутируется только входящими сообщениями его собственной сессии.
type PlayerTransform struct {
	Pos        Vec3   `json:"pos"`
	Rot        Vec3   `json:"rot"`
	IsCarrying bool   `json:"isCarrying"`
	AnimHint   string `json:"animHint,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// DisconnectReason - классификация причины разрыва соединения.
// От нее зависит, удаляем сессию сразу или даем grace-период.
type DisconnectReason uint8

const (
	DisconnectUnknown DisconnectReason = iota
	DisconnectClientClose                 // клиент закрыл вкладку / вышел явно
	DisconnectGoingAway                   // переход со страницы (reload)
	DisconnectNetworkError                // обрыв сети, таймаут чтения
	DisconnectServerShutdown
)

// Clean сообщает, был ли разрыв "чистым". Чистые разрывы удаляются
// немедленно, чтобы другие клиенты не видели зомби-игроков.
func (r DisconnectReason) Clean() bool {
	switch r {
	case DisconnectClientClose, DisconnectGoingAway, DisconnectServerShutdown:
		return true
	default:
		return false
	}
}

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectClientClose:
		return "client-close"
	case DisconnectGoingAway:
		return "going-away"
	case DisconnectNetworkError:
		return "network-error"
	case DisconnectServerShutdown:
		return "server-shutdown"
	default:
		return "unknown"
	}
}
