package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"everterm/internal/esi"
)

// Region is a named EVE region.
type Region struct {
	ID   RegionID `json:"region_id"`
	Name string   `json:"name"`
}

const saveDebounce = 5 * time.Second

// Regions is the region catalog. It is built once at startup, either from
// the on-disk JSON cache or from ESI, and is read-mostly afterwards.
type Regions struct {
	client    *esi.Client
	cachePath string // empty disables the disk cache

	mu      sync.RWMutex
	regions map[RegionID]Region

	group singleflight.Group

	// Debounced save state: fetches stamp lastFetch, a single background
	// saver waits for 5s of idle before flushing.
	saveMu      sync.Mutex
	lastFetch   time.Time
	savePending bool
}

// NewRegions creates an empty catalog backed by the given client. cachePath
// is the regions.json location; empty disables persistence.
func NewRegions(client *esi.Client, cachePath string) *Regions {
	return &Regions{
		client:    client,
		cachePath: cachePath,
		regions:   make(map[RegionID]Region),
	}
}

// LoadFromCache populates the catalog from the on-disk JSON cache. When it
// succeeds the network path can be skipped entirely.
func (r *Regions) LoadFromCache() error {
	if r.cachePath == "" {
		return fmt.Errorf("no cache path configured")
	}
	contents, err := os.ReadFile(r.cachePath)
	if err != nil {
		return err
	}
	var list []Region
	if err := json.Unmarshal(contents, &list); err != nil {
		return fmt.Errorf("parse %s: %w", r.cachePath, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, region := range list {
		r.regions[region.ID] = region
	}
	log.Info().Int("regions", len(list)).Str("path", r.cachePath).Msg("region catalog loaded from cache")
	return nil
}

// FetchAll lists every region ID and fans out detail fetches. Concurrency is
// bounded by the client's semaphore.
func (r *Regions) FetchAll(ctx context.Context) error {
	var ids []RegionID
	if err := r.client.GetJSON(ctx, "/universe/regions/", &ids); err != nil {
		return fmt.Errorf("list regions: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := r.Get(ctx, id)
			return err
		})
	}
	return g.Wait()
}

// Get returns the region for id, fetching it from ESI on a catalog miss.
// Concurrent misses for the same id coalesce into one request.
func (r *Regions) Get(ctx context.Context, id RegionID) (Region, error) {
	r.mu.RLock()
	region, ok := r.regions[id]
	r.mu.RUnlock()
	if ok {
		return region, nil
	}

	v, err, _ := r.group.Do(fmt.Sprintf("region:%d", uint32(id)), func() (any, error) {
		return r.fetch(ctx, id)
	})
	if err != nil {
		return Region{}, err
	}
	return v.(Region), nil
}

func (r *Regions) fetch(ctx context.Context, id RegionID) (Region, error) {
	var region Region
	if err := r.client.GetJSON(ctx, fmt.Sprintf("/universe/regions/%d/", uint32(id)), &region); err != nil {
		return Region{}, fmt.Errorf("fetch region %d: %w", uint32(id), err)
	}

	r.mu.Lock()
	r.regions[region.ID] = region
	r.mu.Unlock()

	r.scheduleSave()
	return region, nil
}

// All returns every known region, sorted by ID.
func (r *Regions) All() []Region {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Region, 0, len(r.regions))
	for _, region := range r.regions {
		out = append(out, region)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of known regions.
func (r *Regions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.regions)
}

// scheduleSave arms the debounced cache save: the flush happens once the
// catalog has been idle for saveDebounce, further fetches push the deadline.
func (r *Regions) scheduleSave() {
	if r.cachePath == "" {
		return
	}

	r.saveMu.Lock()
	r.lastFetch = time.Now()
	if r.savePending {
		r.saveMu.Unlock()
		return
	}
	r.savePending = true
	r.saveMu.Unlock()

	go func() {
		for {
			r.saveMu.Lock()
			remaining := saveDebounce - time.Since(r.lastFetch)
			r.saveMu.Unlock()
			if remaining > 0 {
				time.Sleep(remaining)
				continue
			}
			break
		}

		if err := r.SaveToCache(); err != nil {
			log.Error().Err(err).Str("path", r.cachePath).Msg("failed to save region cache")
		}

		r.saveMu.Lock()
		r.savePending = false
		r.saveMu.Unlock()
	}()
}

// SaveToCache writes the catalog to disk as a pretty-printed JSON list.
func (r *Regions) SaveToCache() error {
	if r.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.cachePath), 0o755); err != nil {
		return err
	}
	contents, err := json.MarshalIndent(r.All(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.cachePath, contents, 0o644)
}
