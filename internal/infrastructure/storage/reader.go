package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"thestack-server/internal/domain"
)

// Load читает снимок из каталога сохранений.
// Отсутствие файла - не ошибка формата: вызывающий различает его
// через os.IsNotExist и стартует с пустой башней.
func (s *SnapshotService) Load() (*domain.TowerSnapshot, error) {
	f, err := os.Open(s.path())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readBinary(f)
}

// LoadFile читает снимок по явному пути. Нужен инструментам,
// работающим с файлами вне каталога сохранений.
func LoadFile(path string) (*domain.TowerSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readBinary(f)
}

func readBinary(r io.Reader) (*domain.TowerSnapshot, error) {
	// 1. Читаем заголовок целиком
	var header snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Валидация
	if string(header.Magic[:]) != MagicHeader {
		return nil, fmt.Errorf("invalid magic")
	}
	if header.Version != Version1 {
		return nil, fmt.Errorf("unsupported version: %d (expected %d)", header.Version, Version1)
	}

	snap := &domain.TowerSnapshot{
		SavedAt:      header.SavedAt,
		CurrentLayer: int(header.CurrentLayer),
		Completed:    make([]int, header.CompletedCount),
		Bricks:       make([]domain.Brick, header.BrickCount),
	}

	// 2. Завершенные слои
	for i := 0; i < int(header.CompletedCount); i++ {
		var layer int32
		if err := binary.Read(r, binary.LittleEndian, &layer); err != nil {
			return nil, err
		}
		snap.Completed[i] = int(layer)
	}

	// 3. Журнал кирпичей
	for i := 0; i < int(header.BrickCount); i++ {
		var bh brickHeader
		if err := binary.Read(r, binary.LittleEndian, &bh); err != nil {
			return nil, err
		}

		brick := domain.Brick{
			Pos: domain.GridPos{
				X:     int(bh.X),
				Z:     int(bh.Z),
				Layer: int(bh.Layer),
			},
			PlacedAt: bh.PlacedAt,
		}

		buf := make([]byte, int(bh.ColorLen)+int(bh.OwnerIDLen)+int(bh.OwnerNameLen))
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		brick.Color = string(buf[:bh.ColorLen])
		brick.OwnerID = string(buf[bh.ColorLen : int(bh.ColorLen)+int(bh.OwnerIDLen)])
		brick.OwnerName = string(buf[int(bh.ColorLen)+int(bh.OwnerIDLen):])

		// Отладочный ID не сохраняется - генерируем заново.
		brick.ID = domain.NewBrickID(brick.OwnerID, time.UnixMilli(brick.PlacedAt))

		snap.Bricks[i] = brick
	}

	return snap, nil
}
