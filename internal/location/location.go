// Package location supplies device coordinates on demand plus a change
// subscription for the location trigger.
package location

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/saviour-labs/alertfeed/internal/models"
)

// ErrUnknown means no position has been reported yet. Triggers treat it as a
// no-op, not a failure.
var ErrUnknown = errors.New("current location unknown")

type Provider interface {
	Current(ctx context.Context) (models.Coordinates, error)
	Watch() <-chan models.Coordinates
}

// Manual is fed by the companion device through the location-report API.
// A zero seed is treated as unknown until the first report arrives.
type Manual struct {
	mu      sync.RWMutex
	current models.Coordinates
	known   bool
	updates chan models.Coordinates
}

func NewManual(seed models.Coordinates) *Manual {
	m := &Manual{
		updates: make(chan models.Coordinates, 8),
	}
	if seed.Latitude != 0 || seed.Longitude != 0 {
		m.current = seed
		m.known = true
	}
	return m
}

func (m *Manual) Current(_ context.Context) (models.Coordinates, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.known {
		return models.Coordinates{}, ErrUnknown
	}
	return m.current, nil
}

func (m *Manual) Watch() <-chan models.Coordinates {
	return m.updates
}

// Update records a new position and pushes it to the watch channel. Drops
// the update for watchers that are behind; Current still reflects it.
func (m *Manual) Update(coords models.Coordinates) {
	m.mu.Lock()
	m.current = coords
	m.known = true
	m.mu.Unlock()

	select {
	case m.updates <- coords:
	default:
	}
}

const earthRadiusKm = 6371.0

// DistanceKm is the haversine great-circle distance between two positions.
func DistanceKm(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
