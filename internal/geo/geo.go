// Package geo provides the spatial primitives used by the clock engine:
// coordinates, great-circle distance, and circular perimeter containment.
package geo

import (
	"fmt"
	"math"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Coordinate is an immutable latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Validate reports whether the coordinate lies in the valid WGS84 ranges.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lon)
	}
	return nil
}

// DistanceMeters returns the great-circle (haversine) distance between two
// coordinates in meters. Callers are responsible for validating ranges first.
func DistanceMeters(a, b Coordinate) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Perimeter is a circular geofence owned by one organization. At most one
// perimeter exists per organization; updates replace it wholesale.
type Perimeter struct {
	OrganizationID string
	DisplayName    string
	Center         Coordinate
	RadiusMeters   float64
}

// Distance returns the distance in meters from point to the perimeter center.
func (p Perimeter) Distance(point Coordinate) float64 {
	return DistanceMeters(point, p.Center)
}

// Contains reports whether point lies inside the perimeter. The boundary
// counts as inside.
func (p Perimeter) Contains(point Coordinate) bool {
	return p.Distance(point) <= p.RadiusMeters
}
