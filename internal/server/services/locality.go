package services

import (
	"math"

	"github.com/spacetask/spacetask/internal/server/models"
)

const (
	// kmPerDegree approximates one degree of latitude in kilometres.
	kmPerDegree = 111.0

	DefaultNearbyRadiusKm = 5.0
)

// NewBoundingBox returns the rectangle used by the nearby search. It is a
// flat approximation: the longitude span is widened by 1/|lat| rather than
// cos(lat), and the equator, where that is undefined, searches every
// longitude. Boxes are not clamped to valid coordinate ranges.
func NewBoundingBox(lat, lng, radiusKm float64) (models.BoundingBox, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return models.BoundingBox{}, err
	}
	if radiusKm < 0 || math.IsNaN(radiusKm) || math.IsInf(radiusKm, 0) {
		return models.BoundingBox{}, invalid("radius %v must be a non-negative number", radiusKm)
	}
	if radiusKm == 0 {
		radiusKm = DefaultNearbyRadiusKm
	}

	latRange := radiusKm / kmPerDegree
	box := models.BoundingBox{
		MinLat: lat - latRange,
		MaxLat: lat + latRange,
		MinLng: -180,
		MaxLng: 180,
	}

	if lat != 0 {
		lngRange := radiusKm / (kmPerDegree * math.Abs(lat))
		box.MinLng = lng - lngRange
		box.MaxLng = lng + lngRange
	}

	return box, nil
}
