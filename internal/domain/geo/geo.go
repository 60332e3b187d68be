// Package geo provides great-circle distance helpers shared by the scorers.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = 6371.0

const (
	degToRad     = math.Pi / 180
	metresPerKm  = 1000
	displayScale = 10 // one decimal place
)

// Point is an optional coordinate pair as stored on events.
type Point struct {
	Lat *float64
	Lng *float64
}

// Valid reports whether both coordinates are present.
func (p Point) Valid() bool {
	return p.Lat != nil && p.Lng != nil
}

// DistanceKm returns the Haversine distance between two points in kilometres.
// The result is not rounded; scoring thresholds compare against it directly.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	a := sinLat*sinLat + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Distance returns the distance between two points and whether both were valid.
func Distance(a, b Point) (float64, bool) {
	if !a.Valid() || !b.Valid() {
		return 0, false
	}
	return DistanceKm(*a.Lat, *a.Lng, *b.Lat, *b.Lng), true
}

// TravelDistanceKm is DistanceKm rounded to one decimal place, for display.
func TravelDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Round(DistanceKm(lat1, lon1, lat2, lon2)*displayScale) / displayScale
}

// FormatDistance renders a distance for people: metres under one kilometre,
// otherwise kilometres with one decimal.
func FormatDistance(km float64) string {
	if km < 0 || math.IsNaN(km) {
		km = 0
	}
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*metresPerKm)))
	}
	return fmt.Sprintf("%.1f km", math.Round(km*displayScale)/displayScale)
}
