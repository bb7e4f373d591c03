package geo

import (
	"errors"

	"github.com/golang/geo/s2"
)

var (
	ErrInvalidBoundingBox = errors.New("invalid bounding box")
)

type BoundingBox struct {
	MinLat float64 `json:"minLat" yaml:"min_lat"`
	MaxLat float64 `json:"maxLat" yaml:"max_lat"`
	MinLng float64 `json:"minLng" yaml:"min_lng"`
	MaxLng float64 `json:"maxLng" yaml:"max_lng"`
}

func NewBoundingBox(minLat, maxLat, minLng, maxLng float64) BoundingBox {
	return BoundingBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
}

func (b BoundingBox) Validate() error {
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return ErrInvalidBoundingBox
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLng < -180 || b.MaxLng > 180 {
		return ErrInvalidBoundingBox
	}
	return nil
}

// ToS2Rect converts the box to an s2 lat/lng rectangle.
func (b BoundingBox) ToS2Rect() s2.Rect {
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(b.MinLat, b.MinLng))
	return rect.AddPoint(s2.LatLngFromDegrees(b.MaxLat, b.MaxLng))
}

// Contains is inclusive on every border.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return b.ToS2Rect().ContainsLatLng(s2.LatLngFromDegrees(lat, lng))
}

func (b BoundingBox) Center() (float64, float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// AngularDistanceKm measures the s2 great-circle angle between two points in km.
func AngularDistanceKm(latOne, longOne, latTwo, longTwo float64) float64 {
	angle := s2.LatLngFromDegrees(latOne, longOne).Distance(s2.LatLngFromDegrees(latTwo, longTwo))
	return angle.Radians() * earthRadiusKM
}
