// Package geo содержит геодезические вычисления, используемые движком верификации.
package geo

import "math"

// EarthRadiusMeters - средний радиус Земли
const EarthRadiusMeters = 6371000.0

// Point - координата WGS-84 в десятичных градусах
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// DistanceTo возвращает расстояние до другой точки в метрах
func (p Point) DistanceTo(other Point) float64 {
	return Distance(p.Lat, p.Lon, other.Lat, other.Lon)
}

// Distance вычисляет расстояние по большому кругу (формула гаверсинусов) в метрах
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	// погрешность округления может вывести a за пределы [0, 1] у антиподов
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
