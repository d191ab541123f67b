package ledger

import (
	"errors"
	"sort"
	"time"

	"thestack-server/internal/domain"
)

// ErrDuplicateCell возвращается при попытке поставить кирпич в занятую
// ячейку. Первый писатель побеждает, слияния и перезаписи нет.
var ErrDuplicateCell = errors.New("grid cell already occupied")

// Ledger - append-only журнал кирпичей с дедупликацией по ячейке.
// Журнал хранит порядок установки (он же порядок на диске), индекс
// дает O(1) проверку занятости. Индекс - всегда производная журнала
// и никогда не сохраняется отдельно.
//
// Ledger не потокобезопасен: им владеет единственная горутина движка.
type Ledger struct {
	gridSize int

	log      []*domain.Brick
	index    map[domain.GridPos]*domain.Brick
	perLayer map[int]int

	// seq растет на каждой принятой мутации. Снимки несут его с собой,
	// и запись на диск отбрасывает снимок старее уже записанного.
	seq uint64

	tower domain.TowerState
}

func New(gridSize int) *Ledger {
	if gridSize <= 0 {
		gridSize = domain.DefaultGridSize
	}
	return &Ledger{
		gridSize: gridSize,
		log:      make([]*domain.Brick, 0, 256),
		index:    make(map[domain.GridPos]*domain.Brick),
		perLayer: make(map[int]int),
		tower: domain.TowerState{
			CurrentLayer: 0,
			Completed:    make(map[int]bool),
		},
	}
}

// GridSize возвращает сторону сетки слоя.
func (l *Ledger) GridSize() int { return l.gridSize }

// InBounds проверяет, что ячейка лежит в пределах сетки.
func (l *Ledger) InBounds(pos domain.GridPos) bool {
	return pos.X >= 0 && pos.X < l.gridSize &&
		pos.Z >= 0 && pos.Z < l.gridSize &&
		pos.Layer >= 0
}

// Place пытается добавить кирпич. Занятая ячейка - ErrDuplicateCell,
// состояние при этом не меняется ни на байт.
func (l *Ledger) Place(pos domain.GridPos, color, ownerID, ownerName string, now time.Time) (*domain.Brick, error) {
	if _, occupied := l.index[pos]; occupied {
		return nil, ErrDuplicateCell
	}

	brick := &domain.Brick{
		ID:        domain.NewBrickID(ownerID, now),
		Pos:       pos,
		Color:     color,
		OwnerID:   ownerID,
		OwnerName: ownerName,
		PlacedAt:  now.UnixMilli(),
	}

	l.log = append(l.log, brick)
	l.index[pos] = brick
	l.perLayer[pos.Layer]++
	l.seq++

	l.advanceTower(pos.Layer)
	return brick, nil
}

// advanceTower двигает CurrentLayer вперед. Движение одностороннее:
// назад слой не откатывается никогда, кроме полной очистки.
func (l *Ledger) advanceTower(placedLayer int) {
	if placedLayer > l.tower.CurrentLayer {
		l.tower.CurrentLayer = placedLayer
	}

	// Заполненный активный слой закрывается и слой растет.
	// Цикл, а не if: после прыжка наверх ниже могли дозаполниться
	// несколько слоев подряд.
	full := l.gridSize * l.gridSize
	for l.perLayer[l.tower.CurrentLayer] >= full {
		l.tower.Completed[l.tower.CurrentLayer] = true
		l.tower.CurrentLayer++
	}
}

// ClearAll атомарно опустошает журнал и индекс.
// Возвращает число удаленных кирпичей.
func (l *Ledger) ClearAll() int {
	removed := len(l.log)

	l.log = l.log[:0]
	l.index = make(map[domain.GridPos]*domain.Brick)
	l.perLayer = make(map[int]int)
	l.seq++
	l.tower = domain.TowerState{
		CurrentLayer: 0,
		Completed:    make(map[int]bool),
	}
	return removed
}

// Count возвращает число кирпичей в журнале.
func (l *Ledger) Count() int { return len(l.log) }

// Tower возвращает копию состояния башни.
func (l *Ledger) Tower() domain.TowerState {
	completed := make(map[int]bool, len(l.tower.Completed))
	for k, v := range l.tower.Completed {
		completed[k] = v
	}
	return domain.TowerState{
		CurrentLayer: l.tower.CurrentLayer,
		Completed:    completed,
	}
}

// Snapshot возвращает согласованный срез всего состояния.
// Кирпичи копируются по значению: получатель может делать с ними
// что угодно, не трогая журнал.
func (l *Ledger) Snapshot(now time.Time) *domain.TowerSnapshot {
	bricks := make([]domain.Brick, len(l.log))
	for i, b := range l.log {
		bricks[i] = *b
	}

	completed := make([]int, 0, len(l.tower.Completed))
	for layer := range l.tower.Completed {
		completed = append(completed, layer)
	}
	sort.Ints(completed)

	return &domain.TowerSnapshot{
		Seq:          l.seq,
		SavedAt:      now.UnixMilli(),
		CurrentLayer: l.tower.CurrentLayer,
		Completed:    completed,
		Bricks:       bricks,
	}
}

// Restore загружает состояние из снимка. Индекс и счетчики слоев
// перестраиваются из журнала, сохраненным значениям не доверяем.
// Дубликат в журнале на диске (поврежденный файл) молча пропускается -
// выигрывает первый, как и при живой установке.
func (l *Ledger) Restore(snap *domain.TowerSnapshot) {
	l.ClearAll()
	if snap == nil {
		return
	}

	for i := range snap.Bricks {
		b := snap.Bricks[i]
		if _, occupied := l.index[b.Pos]; occupied {
			continue
		}
		copied := b
		l.log = append(l.log, &copied)
		l.index[copied.Pos] = &copied
		l.perLayer[copied.Pos.Layer]++
	}

	for _, layer := range snap.Completed {
		l.tower.Completed[layer] = true
	}
	l.tower.CurrentLayer = snap.CurrentLayer

	// Производное состояние обязано согласовываться с журналом,
	// даже если заголовок снимка отстал от лога.
	for _, b := range l.log {
		l.advanceTower(b.Pos.Layer)
	}
}
