package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"thestack-server/internal/domain"
)

const (
	MagicHeader string = `TWRS` // 4 байта
	Version1    uint32 = 1

	// SnapshotFile - имя файла снимка в каталоге сохранений.
	// Снимок один: каждый Save перезаписывает предыдущий.
	SnapshotFile = "tower.twrs"
)

// snapshotHeader — это точное представление заголовка файла в памяти.
// binary.Write умеет писать его целиком: тут нет слайсов и строк,
// только массивы и числа.
type snapshotHeader struct {
	Magic          [4]byte // 4 байта
	Version        uint32  // 4 байта
	SavedAt        int64   // 8 байт
	CurrentLayer   int32   // 4 байта
	CompletedCount int32   // 4 байта
	BrickCount     int32   // 4 байта
}

// brickHeader — заголовок каждой записи кирпича.
// Динамические хвосты (цвет, владелец, имя) идут следом,
// их длины лежат в заголовке.
type brickHeader struct {
	X            int32 // 4
	Z            int32 // 4
	Layer        int32 // 4
	PlacedAt     int64 // 8
	ColorLen     uint8 // 1
	OwnerIDLen   uint8 // 1
	OwnerNameLen uint8 // 1
}

// SnapshotService пишет и читает durable-снимки башни.
// Запись сериализуется мьютексом: два фоновых сохранения не должны
// толкаться на одном временном файле. Мьютекс не FIFO, поэтому
// дополнительно сверяется Seq снимка: запоздавшая горутина со старым
// снимком не должна перезаписать более новый на диске.
type SnapshotService struct {
	SaveDir string

	mu      sync.Mutex
	lastSeq uint64
}

func NewSnapshotService(dir string) *SnapshotService {
	// Создаем папку если нет
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = os.MkdirAll(dir, 0755)
	}
	return &SnapshotService{SaveDir: dir}
}

func (s *SnapshotService) path() string {
	return filepath.Join(s.SaveDir, SnapshotFile)
}

// Save записывает снимок на диск. Пишем во временный файл и
// переименовываем: упавший посередине процесс не оставит
// полузаписанного снимка.
func (s *SnapshotService) Save(snap *domain.TowerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Более новый снимок уже на диске - этот молча устарел.
	if snap.Seq < s.lastSeq {
		return nil
	}

	tmp := s.path() + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := writeBinary(f, snap); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, s.path()); err != nil {
		return err
	}
	s.lastSeq = snap.Seq
	return nil
}

func writeBinary(w io.Writer, snap *domain.TowerSnapshot) error {
	// 1. Подготавливаем и пишем ГЛОБАЛЬНЫЙ ЗАГОЛОВОК
	header := snapshotHeader{
		Version:        Version1,
		SavedAt:        snap.SavedAt,
		CurrentLayer:   int32(snap.CurrentLayer),
		CompletedCount: int32(len(snap.Completed)),
		BrickCount:     int32(len(snap.Bricks)),
	}
	copy(header.Magic[:], MagicHeader) // Копируем строку в массив [4]byte

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// 2. Завершенные слои
	for _, layer := range snap.Completed {
		if err := binary.Write(w, binary.LittleEndian, int32(layer)); err != nil {
			return err
		}
	}

	// 3. Журнал кирпичей, в порядке установки
	for _, b := range snap.Bricks {
		colorBytes := []byte(b.Color)
		ownerBytes := []byte(b.OwnerID)
		nameBytes := []byte(b.OwnerName)

		if len(colorBytes) > 255 || len(ownerBytes) > 255 || len(nameBytes) > 255 {
			return fmt.Errorf("brick %s: string field too long", b.Pos)
		}

		bh := brickHeader{
			X:            int32(b.Pos.X),
			Z:            int32(b.Pos.Z),
			Layer:        int32(b.Pos.Layer),
			PlacedAt:     b.PlacedAt,
			ColorLen:     uint8(len(colorBytes)),
			OwnerIDLen:   uint8(len(ownerBytes)),
			OwnerNameLen: uint8(len(nameBytes)),
		}

		if err := binary.Write(w, binary.LittleEndian, &bh); err != nil {
			return err
		}

		// Динамические данные (тело)
		if _, err := w.Write(colorBytes); err != nil {
			return err
		}
		if _, err := w.Write(ownerBytes); err != nil {
			return err
		}
		if _, err := w.Write(nameBytes); err != nil {
			return err
		}
	}

	return nil
}
