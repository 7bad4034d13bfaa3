package geo

import (
	"context"
	"errors"
	"math"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000

// ErrPermissionDenied is returned when the device refuses to share its
// location. It is distinct from transient lookup failures: callers must not
// retry it.
var ErrPermissionDenied = errors.New("geo: location permission denied")

// Position is a single device fix.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Locator performs an on-demand, single-shot position fetch.
type Locator interface {
	Current(ctx context.Context) (Position, error)
}

type fixedLocator struct {
	pos Position
	err error
}

func (f fixedLocator) Current(context.Context) (Position, error) { return f.pos, f.err }

// Fixed returns a Locator that yields a pre-resolved position or error.
// Transport layers use it to carry a device fix that arrived with a
// request.
func Fixed(pos Position, err error) Locator { return fixedLocator{pos: pos, err: err} }

// Distance returns the great-circle distance in meters between two
// coordinates using the haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
