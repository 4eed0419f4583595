package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"everterm/internal/universe"
)

// DB wraps the SQLite database backing the persistent station-name cache.
type DB struct {
	sql *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	log.Info().Str("path", path).Msg("station cache database opened")
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS station_cache (
			station_id INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			system_id  INTEGER NOT NULL
		);
	`)
	return err
}

// GetStation looks up a cached station record.
func (d *DB) GetStation(id universe.StationID) (universe.Station, bool) {
	var name string
	var systemID uint32
	err := d.sql.QueryRow(
		`SELECT name, system_id FROM station_cache WHERE station_id = ?`, uint64(id),
	).Scan(&name, &systemID)
	if err != nil {
		return universe.Station{}, false
	}
	sys, err := universe.NewSystemID(systemID)
	if err != nil {
		return universe.Station{}, false
	}
	return universe.Station{ID: id, Name: name, SystemID: sys}, true
}

// SetStation stores or replaces a station record.
func (d *DB) SetStation(s universe.Station) {
	_, err := d.sql.Exec(
		`INSERT INTO station_cache (station_id, name, system_id) VALUES (?, ?, ?)
		 ON CONFLICT(station_id) DO UPDATE SET name = excluded.name, system_id = excluded.system_id`,
		uint64(s.ID), s.Name, uint32(s.SystemID),
	)
	if err != nil {
		log.Warn().Err(err).Uint64("station_id", uint64(s.ID)).Msg("failed to cache station")
	}
}
