package api

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// MaxChatLength - предел длины сообщения чата в рунах.
const MaxChatLength = 500

// MaxNameLength - предел длины отображаемого имени.
const MaxNameLength = 32

// Validator - интерфейс, который могут реализовать DTO.
// Валидация выполняется на транспортной границе, до бизнес-логики:
// сообщение с невалидной формой отбрасывается и не доходит до движка.
type Validator interface {
	Validate() error
}

func (p JoinPayload) Validate() error {
	if p.DisplayName == "" {
		return errors.New("displayName is required")
	}
	if utf8.RuneCountInString(p.DisplayName) > MaxNameLength {
		return fmt.Errorf("displayName too long (max %d)", MaxNameLength)
	}
	return nil
}

func (p TransformPayload) Validate() error {
	if !finite(p.Position) || !finite(p.Rotation) {
		return errors.New("transform contains non-finite values")
	}
	return nil
}

func (p PlaceBrickPayload) Validate() error {
	if p.Color == "" {
		return errors.New("color is required")
	}
	if p.GridPosition.X < 0 || p.GridPosition.Z < 0 || p.GridPosition.Layer < 0 {
		return errors.New("gridPosition out of range")
	}
	return nil
}

func (p ChatPayload) Validate() error {
	if p.Text == "" {
		return errors.New("text is required")
	}
	if utf8.RuneCountInString(p.Text) > MaxChatLength {
		return fmt.Errorf("text too long (max %d)", MaxChatLength)
	}
	return nil
}

func finite(v Vec3View) bool {
	for _, f := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
