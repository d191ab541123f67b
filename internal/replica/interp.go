package replica

import (
	"math"
	"time"

	"thestack-server/internal/domain"
)

// Параметры интерполяции
const (
	// StaleCutoff - возраст цели, после которого интерполяция к ней
	// прекращается полностью. Догонять цель секундной давности хуже,
	// чем стоять: следующий ростер все равно ее перепишет.
	StaleCutoff = 1000 * time.Millisecond

	// FactorMax - коэффициент притяжения к совсем свежей цели.
	FactorMax = 0.35

	// FactorMin - коэффициент на границе устаревания.
	FactorMin = 0.08

	// Epsilon - дистанция, ближе которой объект прилипает к цели.
	Epsilon = 0.001
)

// lerpFactor возвращает силу притяжения к цели данного возраста.
// Чем старше цель, тем мягче движение: резкий рывок к устаревшей
// позиции выглядит как телепорт.
func lerpFactor(age time.Duration) float64 {
	if age <= 0 {
		return FactorMax
	}
	if age >= StaleCutoff {
		return 0
	}
	t := float64(age) / float64(StaleCutoff)
	return FactorMax - (FactorMax-FactorMin)*t
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}

func lerpVec(a, b domain.Vec3, f float64) domain.Vec3 {
	return domain.Vec3{
		X: lerp(a.X, b.X, f),
		Y: lerp(a.Y, b.Y, f),
		Z: lerp(a.Z, b.Z, f),
	}
}

func dist(a, b domain.Vec3) float64 {
	dx, dy, dz := b.X-a.X, b.Y-a.Y, b.Z-a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
