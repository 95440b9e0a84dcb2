package geo

import "math"

// haversine distance
const earthRadiusKM = 6371.0

const earthRadiusM = earthRadiusKM * 1000

type Location struct {
	Latitude  float64
	Longitude float64
}

func degreeToRadians(angle float64) float64 {
	return angle * (math.Pi / 180.0)
}

func NewLocation(latDegree float64, longDegree float64) Location {
	return Location{
		Latitude:  degreeToRadians(latDegree),
		Longitude: degreeToRadians(longDegree),
	}
}

func havFunction(angleRad float64) float64 {
	return (1 - math.Cos(angleRad)) / 2.0
}

func havFormula(locationOne Location, locationTwo Location) float64 {
	latitudeDiff := locationOne.Latitude - locationTwo.Latitude
	longitudeDiff := locationOne.Longitude - locationTwo.Longitude

	havLatitude := havFunction(latitudeDiff)
	havLongitude := havFunction(longitudeDiff)

	return havLatitude + math.Cos(locationOne.Latitude)*math.Cos(locationTwo.Latitude)*havLongitude
}

func archaversine(havAngle float64) float64 {
	return 2.0 * math.Asin(math.Sqrt(havAngle))
}

// HaversineDistance in km
func HaversineDistance(locationOne Location, locationTwo Location) float64 {
	centralAngleRad := archaversine(havFormula(locationOne, locationTwo))
	return earthRadiusKM * centralAngleRad
}

// MetersToLatDegrees converts a north-south distance to degrees of latitude.
func MetersToLatDegrees(m float64) float64 {
	return m / (earthRadiusM * math.Pi / 180.0)
}

// MetersToLonDegrees converts an east-west distance at lat to degrees of longitude.
func MetersToLonDegrees(m, lat float64) float64 {
	c := math.Cos(degreeToRadians(lat))
	if c < 1e-6 {
		return 180
	}
	return m / (earthRadiusM * math.Pi / 180.0 * c)
}
