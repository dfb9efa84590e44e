// Package geo provides geodesic primitives and the weighted multi-criteria
// scoring used by both assignment strategies to rank response vehicles.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// ValidCoordinates reports whether the pair is a finite WGS84 coordinate.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Distance returns the great-circle distance in kilometres between two
// points. Invalid coordinates yield +Inf so that a bad candidate always
// sorts last instead of aborting the assignment.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if !ValidCoordinates(lat1, lon1) || !ValidCoordinates(lat2, lon2) {
		return math.Inf(1)
	}

	la1 := lat1 * math.Pi / 180
	lo1 := lon1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	lo2 := lon2 * math.Pi / 180

	dLat := la2 - la1
	dLon := lo2 - lo1

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

// Bearing returns the initial compass bearing in degrees [0,360) from the
// first point towards the second.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(la2)
	x := math.Cos(la1)*math.Sin(la2) - math.Sin(la1)*math.Cos(la2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}
