package universe

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"everterm/internal/esi"
)

type memStationStore struct {
	stations map[StationID]Station
	reads    int
	writes   int
}

func (m *memStationStore) GetStation(id StationID) (Station, bool) {
	m.reads++
	s, ok := m.stations[id]
	return s, ok
}

func (m *memStationStore) SetStation(s Station) {
	m.writes++
	m.stations[s.ID] = s
}

func TestStations_Fallthrough(t *testing.T) {
	var networkHits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		networkHits.Add(1)
		w.Header().Set("x-esi-error-limit-remain", "100")
		w.Header().Set("x-esi-error-limit-reset", "60")
		fmt.Fprint(w, `{"station_id":60003760,"name":"Jita IV - Moon 4 - Caldari Navy Assembly Plant","system_id":30000142}`)
	}))
	defer srv.Close()

	client := esi.NewClient("test", "test", 4, "").WithBaseURL(srv.URL)
	store := &memStationStore{stations: map[StationID]Station{}}
	stations := NewStations(client, store)

	jita := StationID(60003760)

	// Miss everywhere → network, then persisted.
	got, err := stations.Get(t.Context(), jita)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SystemID != 30000142 || got.Name == "" {
		t.Errorf("station = %+v", got)
	}
	if networkHits.Load() != 1 || store.writes != 1 {
		t.Errorf("network=%d writes=%d, want 1/1", networkHits.Load(), store.writes)
	}

	// L1 hit → no store read, no network.
	storeReads := store.reads
	if _, err := stations.Get(t.Context(), jita); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if networkHits.Load() != 1 || store.reads != storeReads {
		t.Error("L1 hit escalated to store or network")
	}

	// Fresh catalog, warm store → store hit, no network.
	stations2 := NewStations(client, store)
	if _, err := stations2.Get(t.Context(), jita); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if networkHits.Load() != 1 {
		t.Error("store hit escalated to network")
	}
}
