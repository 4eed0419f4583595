package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"everterm/internal/esi"
	"everterm/internal/universe"
)

// orderRecord mirrors one entry of the ESI market order response. Location
// and system IDs stay raw here; validation happens during Order construction
// so one bad record never fails a page.
type orderRecord struct {
	Duration     uint32     `json:"duration"`
	IsBuyOrder   bool       `json:"is_buy_order"`
	Issued       string     `json:"issued"`
	LocationID   uint64     `json:"location_id"`
	MinVolume    uint32     `json:"min_volume"`
	OrderID      uint64     `json:"order_id"`
	Price        float64    `json:"price"`
	Range        OrderRange `json:"range"`
	SystemID     uint32     `json:"system_id"`
	TypeID       uint32     `json:"type_id"`
	VolumeRemain uint32     `json:"volume_remain"`
	VolumeTotal  uint32     `json:"volume_total"`
}

// errSkipOrder marks records that are valid upstream but out of scope here
// (orders placed at player structures).
var errSkipOrder = fmt.Errorf("order out of scope")

func (rec *orderRecord) toOrder() (Order, error) {
	issued, err := time.Parse(time.RFC3339, rec.Issued)
	if err != nil {
		return Order{}, fmt.Errorf("order %d: bad issued timestamp %q: %w", rec.OrderID, rec.Issued, err)
	}

	location, err := universe.NewStationID(rec.LocationID)
	if err != nil {
		if universe.IsStructureLocation(rec.LocationID) {
			// Structure markets are handled by the backend, not the book.
			return Order{}, errSkipOrder
		}
		return Order{}, fmt.Errorf("order %d: %w", rec.OrderID, err)
	}

	system, err := universe.NewSystemID(rec.SystemID)
	if err != nil {
		return Order{}, fmt.Errorf("order %d: %w", rec.OrderID, err)
	}

	return Order{
		ID:           rec.OrderID,
		IsBuyOrder:   rec.IsBuyOrder,
		Price:        rec.Price,
		Issued:       issued.UTC(),
		Expiry:       issued.UTC().Add(time.Duration(rec.Duration) * 24 * time.Hour),
		LocationID:   location,
		SystemID:     system,
		TypeID:       universe.TypeID(rec.TypeID),
		MinVolume:    rec.MinVolume,
		Range:        rec.Range,
		VolumeRemain: rec.VolumeRemain,
		VolumeTotal:  rec.VolumeTotal,
	}, nil
}

// FetchRegion retrieves the complete paginated order snapshot for one
// region. Page 1 supplies the page count and the Last-Modified/Expires
// stamps; the remaining pages fetch concurrently. Any page failure, or a
// page disagreeing with page 1 about the page count, aborts the snapshot:
// partial snapshots would corrupt the delta stream.
func FetchRegion(ctx context.Context, client *esi.Client, region universe.Region) (*RegionSnapshot, error) {
	base := fmt.Sprintf("/markets/%d/orders/", uint32(region.ID))

	resp, err := client.Get(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("region %s: page 1: %w", region.Name, err)
	}

	pages := 1
	if v := resp.Header.Get("x-pages"); v != "" {
		pages, err = strconv.Atoi(v)
		if err != nil || pages < 1 {
			resp.Body.Close()
			return nil, fmt.Errorf("region %s: bad x-pages %q", region.Name, v)
		}
	}
	lastModified, err := parseHeaderDate(resp, "Last-Modified")
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("region %s: %w", region.Name, err)
	}
	expires, err := parseHeaderDate(resp, "Expires")
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("region %s: %w", region.Name, err)
	}

	pageRecords := make([][]json.RawMessage, pages)
	if err := json.NewDecoder(resp.Body).Decode(&pageRecords[0]); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("region %s: decode page 1: %w", region.Name, err)
	}
	resp.Body.Close()

	if pages > 1 {
		g, ctx := errgroup.WithContext(ctx)
		for p := 2; p <= pages; p++ {
			p := p
			g.Go(func() error {
				records, err := fetchPage(ctx, client, base, p, pages)
				if err != nil {
					return err
				}
				pageRecords[p-1] = records
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("region %s: %w", region.Name, err)
		}
	}

	m := NewMarket()
	m.LastModified = lastModified
	m.Expires = expires
	kept, dropped := 0, 0
	for _, records := range pageRecords {
		for _, raw := range records {
			var rec orderRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				log.Debug().Err(err).Str("region", region.Name).Msg("dropping unparseable order record")
				dropped++
				continue
			}
			order, err := rec.toOrder()
			if err != nil {
				if err != errSkipOrder {
					log.Debug().Err(err).Str("region", region.Name).Msg("dropping invalid order")
					dropped++
				}
				continue
			}
			m.Insert(order)
			kept++
		}
	}

	log.Debug().
		Str("region", region.Name).
		Int("pages", pages).
		Int("orders", kept).
		Int("dropped", dropped).
		Time("expires", expires).
		Msg("region snapshot fetched")

	return &RegionSnapshot{
		Region:       region,
		Market:       m,
		LastModified: lastModified,
		Expires:      expires,
	}, nil
}

func fetchPage(ctx context.Context, client *esi.Client, base string, page, expectedPages int) ([]json.RawMessage, error) {
	resp, err := client.Get(ctx, fmt.Sprintf("%s?page=%d", base, page))
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	defer resp.Body.Close()

	// The upstream snapshot changed under us if the page count moved.
	if v := resp.Header.Get("x-pages"); v != "" {
		if reported, err := strconv.Atoi(v); err == nil && reported != expectedPages {
			return nil, fmt.Errorf("page %d: page count changed mid-snapshot (%d != %d)", page, reported, expectedPages)
		}
	}

	var records []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("page %d: decode: %w", page, err)
	}
	return records, nil
}

func parseHeaderDate(resp *http.Response, name string) (time.Time, error) {
	v := resp.Header.Get(name)
	if v == "" {
		return time.Time{}, fmt.Errorf("missing %s header", name)
	}
	t, err := time.Parse(time.RFC1123, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad %s header %q: %w", name, v, err)
	}
	return t.UTC(), nil
}
