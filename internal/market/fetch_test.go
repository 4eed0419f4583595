package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"everterm/internal/esi"
	"everterm/internal/universe"
)

var testRegion = universe.Region{ID: universe.RegionID(10000002), Name: "The Forge"}

func marketHeaders(w http.ResponseWriter, pages int) {
	w.Header().Set("x-pages", fmt.Sprint(pages))
	w.Header().Set("Last-Modified", "Mon, 02 Jun 2025 11:55:00 GMT")
	w.Header().Set("Expires", "Mon, 02 Jun 2025 12:00:00 GMT")
	w.Header().Set("x-esi-error-limit-remain", "100")
	w.Header().Set("x-esi-error-limit-reset", "60")
}

func orderJSON(orderID uint64, typeID uint32, locationID uint64, price float64) string {
	return fmt.Sprintf(`{
		"duration": 90, "is_buy_order": false, "issued": "2025-06-01T12:00:00Z",
		"location_id": %d, "min_volume": 1, "order_id": %d, "price": %g,
		"range": "region", "system_id": 30000142, "type_id": %d,
		"volume_remain": 100, "volume_total": 100
	}`, locationID, orderID, price, typeID)
}

func TestFetchRegion_TwoPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/markets/10000002/orders/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		marketHeaders(w, 2)
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprintf(w, "[%s,%s]",
				orderJSON(1, 34, 60003760, 4.5),
				orderJSON(2, 34, 60003760, 5.0))
		case "2":
			fmt.Fprintf(w, "[%s]", orderJSON(3, 35, 60003760, 100))
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	client := esi.NewClient("test", "test", 4, "").WithBaseURL(srv.URL)
	snap, err := FetchRegion(context.Background(), client, testRegion)
	if err != nil {
		t.Fatalf("FetchRegion: %v", err)
	}

	if snap.Region.ID != testRegion.ID {
		t.Errorf("region = %v", snap.Region)
	}
	if got := snap.Market.OrderCount(); got != 3 {
		t.Errorf("orders = %d, want 3", got)
	}
	if book := snap.Market.Items[34]; book == nil || len(book.Orders) != 2 {
		t.Errorf("type 34 book = %+v", book)
	}
	if book := snap.Market.Items[35]; book == nil || len(book.Orders) != 1 {
		t.Errorf("type 35 book = %+v", book)
	}

	wantLM := time.Date(2025, 6, 2, 11, 55, 0, 0, time.UTC)
	if !snap.LastModified.Equal(wantLM) {
		t.Errorf("LastModified = %v, want %v", snap.LastModified, wantLM)
	}
	wantExp := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	if !snap.Expires.Equal(wantExp) {
		t.Errorf("Expires = %v, want %v", snap.Expires, wantExp)
	}

	order := snap.Market.Items[34].Orders[1]
	if !order.Expiry.Equal(order.Issued.Add(90 * 24 * time.Hour)) {
		t.Errorf("expiry = %v, issued = %v", order.Expiry, order.Issued)
	}
}

func TestFetchRegion_DropsStructureAndBadRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		marketHeaders(w, 1)
		// One good order, one at a player structure, one with a broken
		// timestamp. Only the first survives; none of them fail the snapshot.
		bad := strings.Replace(orderJSON(7, 34, 60003760, 1), "2025-06-01T12:00:00Z", "yesterday", 1)
		fmt.Fprintf(w, "[%s,%s,%s]",
			orderJSON(5, 34, 60003760, 2.0),
			orderJSON(6, 34, 1042508032148, 3.0),
			bad)
	}))
	defer srv.Close()

	client := esi.NewClient("test", "test", 4, "").WithBaseURL(srv.URL)
	snap, err := FetchRegion(context.Background(), client, testRegion)
	if err != nil {
		t.Fatalf("FetchRegion: %v", err)
	}
	if got := snap.Market.OrderCount(); got != 1 {
		t.Errorf("orders = %d, want 1", got)
	}
	if _, ok := snap.Market.Items[34].Orders[5]; !ok {
		t.Error("surviving order missing")
	}
}

func TestFetchRegion_PageCountDriftAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			marketHeaders(w, 2)
			fmt.Fprintf(w, "[%s]", orderJSON(1, 34, 60003760, 1))
		default:
			marketHeaders(w, 3) // snapshot changed under us
			fmt.Fprint(w, "[]")
		}
	}))
	defer srv.Close()

	client := esi.NewClient("test", "test", 4, "").WithBaseURL(srv.URL)
	if _, err := FetchRegion(context.Background(), client, testRegion); err == nil {
		t.Fatal("want error on page-count drift")
	}
}

func TestFetchRegion_FailedPageAbortsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			marketHeaders(w, 2)
			fmt.Fprintf(w, "[%s]", orderJSON(1, 34, 60003760, 1))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := esi.NewClient("test", "test", 4, "").WithBaseURL(srv.URL)
	if _, err := FetchRegion(context.Background(), client, testRegion); err == nil {
		t.Fatal("want error when a page fails")
	}
}

func TestFetchRegion_MissingHeadersFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-pages", "1")
		fmt.Fprint(w, "[]") // no Last-Modified / Expires
	}))
	defer srv.Close()

	client := esi.NewClient("test", "test", 4, "").WithBaseURL(srv.URL)
	if _, err := FetchRegion(context.Background(), client, testRegion); err == nil {
		t.Fatal("want error on missing headers")
	}
}
