package universe

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"everterm/internal/esi"
)

// Station is a named NPC station.
type Station struct {
	ID       StationID `json:"station_id"`
	Name     string    `json:"name"`
	SystemID SystemID  `json:"system_id"`
}

// Structure is a player-owned structure resolved through the authenticated
// structures endpoint.
type Structure struct {
	ID       StructureID `json:"id"`
	Name     string      `json:"name"`
	SystemID SystemID    `json:"system_id"`
	TypeID   TypeID      `json:"type_id"`
}

// StationStore is a persistent L2 cache for station records.
type StationStore interface {
	GetStation(id StationID) (Station, bool)
	SetStation(s Station)
}

// Stations resolves NPC station details with an in-memory L1 cache and an
// optional persistent L2 store.
type Stations struct {
	client *esi.Client
	store  StationStore // may be nil

	cache sync.Map // StationID -> Station
	group singleflight.Group
}

// NewStations creates a station catalog. store may be nil to skip the
// persistent layer.
func NewStations(client *esi.Client, store StationStore) *Stations {
	return &Stations{client: client, store: store}
}

// Get resolves a station by ID, trying L1, then the store, then ESI.
func (s *Stations) Get(ctx context.Context, id StationID) (Station, error) {
	if v, ok := s.cache.Load(id); ok {
		return v.(Station), nil
	}
	if s.store != nil {
		if station, ok := s.store.GetStation(id); ok {
			s.cache.Store(id, station)
			return station, nil
		}
	}

	v, err, _ := s.group.Do(fmt.Sprintf("station:%d", uint64(id)), func() (any, error) {
		return s.fetch(ctx, id)
	})
	if err != nil {
		return Station{}, err
	}
	return v.(Station), nil
}

func (s *Stations) fetch(ctx context.Context, id StationID) (Station, error) {
	var station Station
	if err := s.client.GetJSON(ctx, fmt.Sprintf("/universe/stations/%d/", uint64(id)), &station); err != nil {
		return Station{}, fmt.Errorf("fetch station %d: %w", uint64(id), err)
	}

	s.cache.Store(id, station)
	if s.store != nil {
		s.store.SetStation(station)
	}
	log.Debug().Uint64("station_id", uint64(id)).Str("name", station.Name).Msg("station resolved")
	return station, nil
}
