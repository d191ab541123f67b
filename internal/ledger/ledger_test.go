package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thestack-server/internal/domain"
)

func TestPlace_Success(t *testing.T) {
	l := New(4)
	now := time.Now()

	brick, err := l.Place(domain.GridPos{X: 1, Z: 2, Layer: 0}, "#ff0000", "sess-a", "Alice", now)
	require.NoError(t, err)
	require.NotNil(t, brick)

	assert.Equal(t, "#ff0000", brick.Color)
	assert.Equal(t, "sess-a", brick.OwnerID)
	assert.Equal(t, now.UnixMilli(), brick.PlacedAt)
	assert.Equal(t, 1, l.Count())
}

func TestPlace_DuplicateCellRejected(t *testing.T) {
	l := New(4)
	pos := domain.GridPos{X: 0, Z: 0, Layer: 0}

	_, err := l.Place(pos, "#ff0000", "sess-a", "Alice", time.Now())
	require.NoError(t, err)

	// Повторные попытки в ту же ячейку: сколько ни шли, побеждает первый.
	for i := 0; i < 10; i++ {
		_, err := l.Place(pos, "#00ff00", "sess-b", "Bob", time.Now())
		assert.ErrorIs(t, err, ErrDuplicateCell)
	}

	// Состояние не изменилось ни на байт
	assert.Equal(t, 1, l.Count())
	snap := l.Snapshot(time.Now())
	require.Len(t, snap.Bricks, 1)
	assert.Equal(t, "#ff0000", snap.Bricks[0].Color)
	assert.Equal(t, "sess-a", snap.Bricks[0].OwnerID)
}

func TestInBounds(t *testing.T) {
	l := New(8)

	assert.True(t, l.InBounds(domain.GridPos{X: 0, Z: 0, Layer: 0}))
	assert.True(t, l.InBounds(domain.GridPos{X: 7, Z: 7, Layer: 100}))
	assert.False(t, l.InBounds(domain.GridPos{X: 8, Z: 0, Layer: 0}))
	assert.False(t, l.InBounds(domain.GridPos{X: 0, Z: 8, Layer: 0}))
	assert.False(t, l.InBounds(domain.GridPos{X: -1, Z: 0, Layer: 0}))
	assert.False(t, l.InBounds(domain.GridPos{X: 0, Z: 0, Layer: -1}))
}

func TestLayerCompletion(t *testing.T) {
	grid := 2
	l := New(grid)
	now := time.Now()

	// grid*grid - 1 кирпичей: слой еще не закрыт
	_, _ = l.Place(domain.GridPos{X: 0, Z: 0, Layer: 0}, "#fff", "a", "A", now)
	_, _ = l.Place(domain.GridPos{X: 0, Z: 1, Layer: 0}, "#fff", "a", "A", now)
	_, _ = l.Place(domain.GridPos{X: 1, Z: 0, Layer: 0}, "#fff", "a", "A", now)

	tower := l.Tower()
	assert.Equal(t, 0, tower.CurrentLayer)
	assert.False(t, tower.Completed[0])

	// Последняя ячейка закрывает слой и двигает CurrentLayer
	_, _ = l.Place(domain.GridPos{X: 1, Z: 1, Layer: 0}, "#fff", "a", "A", now)

	tower = l.Tower()
	assert.Equal(t, 1, tower.CurrentLayer)
	assert.True(t, tower.Completed[0])
}

func TestLayerCompletion_BackfillClosesChain(t *testing.T) {
	grid := 2
	l := New(grid)
	now := time.Now()

	// Сначала кирпич на слое 2: CurrentLayer прыгает вверх
	_, _ = l.Place(domain.GridPos{X: 0, Z: 0, Layer: 2}, "#fff", "a", "A", now)
	assert.Equal(t, 2, l.Tower().CurrentLayer)

	// Дозаполняем слой 2 целиком
	_, _ = l.Place(domain.GridPos{X: 0, Z: 1, Layer: 2}, "#fff", "a", "A", now)
	_, _ = l.Place(domain.GridPos{X: 1, Z: 0, Layer: 2}, "#fff", "a", "A", now)
	_, _ = l.Place(domain.GridPos{X: 1, Z: 1, Layer: 2}, "#fff", "a", "A", now)

	tower := l.Tower()
	assert.True(t, tower.Completed[2])
	assert.Equal(t, 3, tower.CurrentLayer)
}

func TestCurrentLayerMonotonic(t *testing.T) {
	l := New(4)
	now := time.Now()

	_, _ = l.Place(domain.GridPos{X: 0, Z: 0, Layer: 5}, "#fff", "a", "A", now)
	require.Equal(t, 5, l.Tower().CurrentLayer)

	// Кирпич на нижнем слое не откатывает CurrentLayer
	_, _ = l.Place(domain.GridPos{X: 0, Z: 0, Layer: 1}, "#fff", "a", "A", now)
	assert.Equal(t, 5, l.Tower().CurrentLayer)
}

func TestClearAll(t *testing.T) {
	l := New(2)
	now := time.Now()

	_, _ = l.Place(domain.GridPos{X: 0, Z: 0, Layer: 0}, "#fff", "a", "A", now)
	_, _ = l.Place(domain.GridPos{X: 0, Z: 1, Layer: 0}, "#fff", "a", "A", now)

	removed := l.ClearAll()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, l.Count())
	assert.Equal(t, 0, l.Tower().CurrentLayer)
	assert.Empty(t, l.Tower().Completed)

	// Освобожденная ячейка снова доступна
	_, err := l.Place(domain.GridPos{X: 0, Z: 0, Layer: 0}, "#fff", "a", "A", now)
	assert.NoError(t, err)
}

func TestSnapshotIsolation(t *testing.T) {
	l := New(4)
	now := time.Now()

	_, _ = l.Place(domain.GridPos{X: 0, Z: 0, Layer: 0}, "#fff", "a", "A", now)
	snap := l.Snapshot(now)
	require.Len(t, snap.Bricks, 1)

	// Мутация снимка не трогает леджер
	snap.Bricks[0].Color = "#000"
	fresh := l.Snapshot(now)
	assert.Equal(t, "#fff", fresh.Bricks[0].Color)
}

func TestRestore(t *testing.T) {
	src := New(2)
	now := time.Now()

	_, _ = src.Place(domain.GridPos{X: 0, Z: 0, Layer: 0}, "#f00", "a", "A", now)
	_, _ = src.Place(domain.GridPos{X: 0, Z: 1, Layer: 0}, "#0f0", "b", "B", now)
	_, _ = src.Place(domain.GridPos{X: 1, Z: 0, Layer: 0}, "#00f", "a", "A", now)
	_, _ = src.Place(domain.GridPos{X: 1, Z: 1, Layer: 0}, "#fff", "b", "B", now)
	snap := src.Snapshot(now)

	dst := New(2)
	dst.Restore(snap)

	assert.Equal(t, 4, dst.Count())
	assert.Equal(t, 1, dst.Tower().CurrentLayer)
	assert.True(t, dst.Tower().Completed[0])

	// Занятость восстановлена: старые ячейки отклоняются
	_, err := dst.Place(domain.GridPos{X: 0, Z: 0, Layer: 0}, "#fff", "c", "C", now)
	assert.ErrorIs(t, err, ErrDuplicateCell)
}

func TestRestore_CorruptDuplicateSkipped(t *testing.T) {
	now := time.Now()
	pos := domain.GridPos{X: 0, Z: 0, Layer: 0}

	// Поврежденный снимок с дубликатом в журнале
	snap := &domain.TowerSnapshot{
		Bricks: []domain.Brick{
			{ID: "first", Pos: pos, Color: "#f00", OwnerID: "a", PlacedAt: now.UnixMilli()},
			{ID: "second", Pos: pos, Color: "#0f0", OwnerID: "b", PlacedAt: now.UnixMilli()},
		},
	}

	l := New(4)
	l.Restore(snap)

	require.Equal(t, 1, l.Count())
	fresh := l.Snapshot(now)
	assert.Equal(t, "#f00", fresh.Bricks[0].Color)
}

func TestSnapshotSeq_GrowsWithMutations(t *testing.T) {
	l := New(2)
	now := time.Now()

	s0 := l.Snapshot(now)

	_, err := l.Place(domain.GridPos{X: 0, Z: 0, Layer: 0}, "#fff", "a", "A", now)
	require.NoError(t, err)
	s1 := l.Snapshot(now)

	l.ClearAll()
	s2 := l.Snapshot(now)

	// Каждая принятая мутация двигает Seq: по нему запись на диск
	// отличает свежий снимок от запоздавшего.
	assert.Less(t, s0.Seq, s1.Seq)
	assert.Less(t, s1.Seq, s2.Seq)

	// Отклоненная мутация Seq не трогает
	_, err = l.Place(domain.GridPos{X: 1, Z: 1, Layer: 0}, "#fff", "a", "A", now)
	require.NoError(t, err)
	s3 := l.Snapshot(now)

	_, err = l.Place(domain.GridPos{X: 1, Z: 1, Layer: 0}, "#000", "b", "B", now)
	require.ErrorIs(t, err, ErrDuplicateCell)
	assert.Equal(t, s3.Seq, l.Snapshot(now).Seq)
}
