package db

import (
	"path/filepath"
	"testing"

	"everterm/internal/universe"
)

func TestStationCache_RoundTrip(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "stations.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	jita := universe.Station{
		ID:       universe.StationID(60003760),
		Name:     "Jita IV - Moon 4 - Caldari Navy Assembly Plant",
		SystemID: universe.SystemID(30000142),
	}

	if _, ok := d.GetStation(jita.ID); ok {
		t.Fatal("empty cache reported a hit")
	}

	d.SetStation(jita)
	got, ok := d.GetStation(jita.ID)
	if !ok {
		t.Fatal("cached station not found")
	}
	if got != jita {
		t.Errorf("station = %+v, want %+v", got, jita)
	}

	// Upsert replaces.
	jita.Name = "Jita 4-4"
	d.SetStation(jita)
	got, _ = d.GetStation(jita.ID)
	if got.Name != "Jita 4-4" {
		t.Errorf("name = %q after upsert", got.Name)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "stations.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d.Close()
}
