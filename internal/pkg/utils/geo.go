package utils

import "math"

// ValidateCoordinates проверяет валидность координат
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Clamp ограничивает значение отрезком [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// SafeDiv - деление, возвращающее 0 при нулевом знаменателе
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
