package geo

import "math"

const (
	earthRadiusKM = 6371.0
	earthRadiusM  = 6371007
)

func havFunction(angleRad float64) float64 {
	return (1 - math.Cos(angleRad)) / 2.0
}

func degreeToRadians(angle float64) float64 {
	return angle * (math.Pi / 180.0)
}

func radiansToDegree(angle float64) float64 {
	return angle * (180.0 / math.Pi)
}

// CalculateHaversineDistance returns the great-circle distance in km.
func CalculateHaversineDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	latOne = degreeToRadians(latOne)
	longOne = degreeToRadians(longOne)
	latTwo = degreeToRadians(latTwo)
	longTwo = degreeToRadians(longTwo)

	a := havFunction(latOne-latTwo) + math.Cos(latOne)*math.Cos(latTwo)*havFunction(longOne-longTwo)
	c := 2.0 * math.Asin(math.Sqrt(a))
	return earthRadiusKM * c
}

// HaversineMeters is CalculateHaversineDistance in meters.
func HaversineMeters(latOne, longOne, latTwo, longTwo float64) float64 {
	return CalculateHaversineDistance(latOne, longOne, latTwo, longTwo) * 1000
}

// PlanarDistance is the Euclidean distance over raw degrees. It ignores meridian convergence
// and is only meaningful as a relative measure on small areas.
func PlanarDistance(latOne, longOne, latTwo, longTwo float64) float64 {
	dx := longOne - longTwo
	dy := latOne - latTwo
	return math.Sqrt(dx*dx + dy*dy)
}

// GetDestinationPoint returns the point reached from (lat, lon) after dist km on bearing degrees.
func GetDestinationPoint(lat, lon, bearing, dist float64) (float64, float64) {
	dr := dist / earthRadiusKM
	bearing = degreeToRadians(bearing)
	latR := degreeToRadians(lat)
	lonR := degreeToRadians(lon)

	destLat := math.Asin(math.Sin(latR)*math.Cos(dr) + math.Cos(latR)*math.Sin(dr)*math.Cos(bearing))
	destLon := lonR + math.Atan2(math.Sin(bearing)*math.Sin(dr)*math.Cos(latR), math.Cos(dr)-math.Sin(latR)*math.Sin(destLat))

	return radiansToDegree(destLat), radiansToDegree(destLon)
}

// Interpolate returns the point at fraction [0,1] of the straight line from a to b in degree space.
func Interpolate(latA, lonA, latB, lonB, fraction float64) (float64, float64) {
	if fraction <= 0 {
		return latA, lonA
	}
	if fraction >= 1 {
		return latB, lonB
	}
	return latA + (latB-latA)*fraction, lonA + (lonB-lonA)*fraction
}
