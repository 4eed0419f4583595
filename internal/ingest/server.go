package ingest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"everterm/internal/universe"
)

// Server is the internal data server: read-only views over the global book
// and the refresh-interval map.
type Server struct {
	book    *Book
	tracker *Tracker
	router  *mux.Router
}

// NewServer wires the data-server routes.
func NewServer(book *Book, tracker *Tracker) *Server {
	s := &Server{book: book, tracker: tracker, router: mux.NewRouter()}

	s.router.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
	s.router.HandleFunc("/refresh_intervals", s.handleRefreshIntervals).Methods(http.MethodGet)
	s.router.HandleFunc("/market/{type_id}", s.handleMarket).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe binds 0.0.0.0:port and serves until the listener fails.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("data server listening")
	return srv.ListenAndServe()
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "OK %s", time.Now().UTC().Format(time.RFC1123Z))
}

func (s *Server) handleRefreshIntervals(w http.ResponseWriter, _ *http.Request) {
	intervals := s.tracker.Intervals()

	// Keys serialize as decimal region IDs; unrefreshed regions are null.
	out := make(map[string]*time.Time, len(intervals))
	for id, expires := range intervals {
		out[strconv.FormatUint(uint64(id), 10)] = expires
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Warn().Err(err).Msg("failed to encode refresh intervals")
	}
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["type_id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		http.Error(w, "Invalid ID format", http.StatusBadRequest)
		return
	}

	orders, ok := s.book.OrdersByType(universe.TypeID(id))
	if !ok {
		http.Error(w, "Item Type Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		log.Warn().Err(err).Uint64("type_id", id).Msg("failed to encode orders")
	}
}
