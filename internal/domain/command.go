package domain

import "encoding/json"

// InternalCommand - команда после разбора транспортного конверта.
// SessionID проставляется сервером из соединения, клиент не может
// говорить от чужого имени.
type InternalCommand struct {
	Action    ActionType
	SessionID string
	Payload   json.RawMessage
}
