package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GridPos - ячейка башни. Тройка (X, Z, Layer) является ключом
// уникальности кирпича: одна ячейка - максимум один кирпич, навсегда.
type GridPos struct {
	X     int `json:"x"`
	Z     int `json:"z"`
	Layer int `json:"layer"`
}

func (p GridPos) String() string {
	return fmt.Sprintf("(%d,%d,L%d)", p.X, p.Z, p.Layer)
}

// Brick - принятый кирпич. Неизменяем после создания, удаляется
// только полной очисткой башни.
type Brick struct {
	// ID - служебный идентификатор для логов и отладки.
	// Идентичность кирпича определяется Pos, а не этим полем.
	ID string `json:"id"`

	Pos       GridPos `json:"pos"`
	Color     string  `json:"color"`
	OwnerID   string  `json:"ownerId"`   // SessionID автора
	OwnerName string  `json:"ownerName"` // Имя на момент установки
	PlacedAt  int64   `json:"placedAt"`  // Unix milliseconds
}

// NewBrickID собирает отладочный ID из владельца, времени и случайного
// суффикса. Суффикс нужен, чтобы два кирпича одного игрока в одну
// миллисекунду не получили одинаковый ID.
func NewBrickID(ownerID string, t time.Time) string {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate brick id suffix: " + err.Error())
	}
	return fmt.Sprintf("%s-%d-%s", ownerID, t.UnixMilli(), hex.EncodeToString(b))
}

// TowerState - агрегат, производный от множества кирпичей.
// CurrentLayer монотонно не убывает (кроме полной очистки).
type TowerState struct {
	CurrentLayer int          `json:"currentLayer"`
	Completed    map[int]bool `json:"completed"`
}

// TowerSnapshot - то, что уходит на диск и читается при старте.
// Индекс по ячейкам НЕ сохраняется: он всегда перестраивается из лога.
type TowerSnapshot struct {
	// Seq - номер мутации леджера на момент снимка. На диск не пишется,
	// нужен только для упорядочивания конкурирующих записей.
	Seq uint64

	SavedAt      int64
	CurrentLayer int
	Completed    []int
	Bricks       []Brick
}
