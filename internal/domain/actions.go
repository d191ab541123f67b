package domain

import "strings"

// ActionType - Внутренний числовой идентификатор действия
type ActionType uint8

const (
	ActionUnknown ActionType = iota
	ActionJoin
	ActionTransform
	ActionPlaceBrick
	ActionPickupBrick
	ActionClearBricks
	ActionChat
	ActionHeartbeat
	ActionFullSync
)

// Маппинг для конвертации JSON -> Domain.
// Имена действий совпадают с протоколом клиента (kebab-case).
var actionStringToCmd = map[string]ActionType{
	"join":              ActionJoin,
	"transform-update":  ActionTransform,
	"place-brick":       ActionPlaceBrick,
	"pickup-brick":      ActionPickupBrick,
	"clear-all-bricks":  ActionClearBricks,
	"chat-message":      ActionChat,
	"heartbeat":         ActionHeartbeat,
	"request-full-sync": ActionFullSync,
}

// Маппинг для логов Domain -> String
var actionCmdToString = func() map[ActionType]string {
	m := make(map[ActionType]string, len(actionStringToCmd))
	for s, a := range actionStringToCmd {
		m[a] = s
	}
	return m
}()

// ParseAction конвертирует строку из JSON в ActionType
func ParseAction(s string) ActionType {
	// Делаем нечувствительным к регистру для надежности
	lower := strings.ToLower(s)
	if val, ok := actionStringToCmd[lower]; ok {
		return val
	}
	return ActionUnknown
}

// String реализует интерфейс Stringer (для fmt.Printf)
func (a ActionType) String() string {
	if val, ok := actionCmdToString[a]; ok {
		return val
	}
	return "unknown"
}
