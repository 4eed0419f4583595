package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"everterm/internal/config"
	"everterm/internal/esi"
	"everterm/internal/universe"
)

// Server is the public-facing backend. Order and refresh-interval queries
// are proxied to the data server; station and structure names resolve
// locally through the catalogs.
type Server struct {
	cfg      *config.Config
	client   *esi.Client
	stations *universe.Stations
	router   *mux.Router
	httpc    *http.Client

	// Public structures known to host markets; structure names outside this
	// set are not resolvable without leaking private data.
	allowedMu sync.RWMutex
	allowed   map[universe.StructureID]bool

	tokenMu sync.Mutex // serializes SSO token refresh
}

// NewServer wires the backend routes under /api.
func NewServer(cfg *config.Config, client *esi.Client, stations *universe.Stations) *Server {
	s := &Server{
		cfg:      cfg,
		client:   client,
		stations: stations,
		router:   mux.NewRouter(),
		httpc:    &http.Client{Timeout: 30 * time.Second},
		allowed:  make(map[universe.StructureID]bool),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
	api.HandleFunc("/orders/updateTime", s.proxyTo("/refresh_intervals")).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.handleOrders).Methods(http.MethodGet)
	api.HandleFunc("/universe/struct_names/", s.handleStructNames).Methods(http.MethodGet)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe binds 0.0.0.0:4000 and serves until the listener fails.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:         "0.0.0.0:4000",
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Info().Str("addr", srv.Addr).Msg("backend listening")
	return srv.ListenAndServe()
}

// LoadPublicStructures seeds the market-structure allowlist from ESI.
func (s *Server) LoadPublicStructures(ctx context.Context) error {
	var ids []uint64
	if err := s.client.GetJSON(ctx, "/universe/structures/?filter=market", &ids); err != nil {
		return fmt.Errorf("list market structures: %w", err)
	}

	allowed := make(map[universe.StructureID]bool, len(ids))
	for _, raw := range ids {
		id, err := universe.NewStructureID(raw)
		if err != nil {
			continue
		}
		allowed[id] = true
	}

	s.allowedMu.Lock()
	s.allowed = allowed
	s.allowedMu.Unlock()
	log.Info().Int("structures", len(allowed)).Msg("public structure allowlist loaded")
	return nil
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "OK %s", time.Now().UTC().Format(time.RFC1123Z))
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, "/market/"+mux.Vars(r)["id"])
}

func (s *Server) proxyTo(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.proxy(w, path)
	}
}

// proxy forwards a GET to the data server, passing status and body through.
func (s *Server) proxy(w http.ResponseWriter, path string) {
	resp, err := s.httpc.Get(s.cfg.DatafetchURL + path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("data server unreachable")
		http.Error(w, "data server unavailable", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("proxy copy failed")
	}
}

// structureResponse mirrors GET /universe/structures/{id}/.
type structureResponse struct {
	Name     string `json:"name"`
	SystemID uint32 `json:"solar_system_id"`
	TypeID   uint32 `json:"type_id"`
}

func (s *Server) handleStructNames(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if stationID, err := universe.NewStationID(id); err == nil {
		station, err := s.stations.Get(r.Context(), stationID)
		if err != nil {
			log.Warn().Err(err).Uint64("station_id", id).Msg("station lookup failed")
			http.Error(w, "station lookup failed", http.StatusBadGateway)
			return
		}
		writeJSON(w, station)
		return
	}

	structureID, err := universe.NewStructureID(id)
	if err != nil {
		http.Error(w, "invalid location id", http.StatusBadRequest)
		return
	}

	writeJSON(w, s.resolveStructure(r.Context(), structureID))
}

// unknownStructureSystem anchors placeholder structures somewhere valid.
var unknownStructureSystem = universe.SystemID(30000380)

func (s *Server) resolveStructure(ctx context.Context, id universe.StructureID) universe.Structure {
	unknown := universe.Structure{
		ID:       id,
		Name:     "Unknown Private Structure",
		SystemID: unknownStructureSystem,
	}

	s.allowedMu.RLock()
	ok := s.allowed[id]
	s.allowedMu.RUnlock()
	if !ok {
		return unknown
	}

	if err := s.ensureAuthToken(ctx); err != nil {
		log.Warn().Err(err).Msg("SSO token refresh failed")
		return unknown
	}

	var resp structureResponse
	if err := s.client.GetJSON(ctx, fmt.Sprintf("/universe/structures/%d/", uint64(id)), &resp); err != nil {
		log.Warn().Err(err).Uint64("structure_id", uint64(id)).Msg("structure lookup failed")
		return unknown
	}

	systemID, err := universe.NewSystemID(resp.SystemID)
	if err != nil {
		systemID = unknownStructureSystem
	}
	return universe.Structure{
		ID:       id,
		Name:     resp.Name,
		SystemID: systemID,
		TypeID:   universe.TypeID(resp.TypeID),
	}
}

// ensureAuthToken refreshes the bearer token when the held one has expired.
func (s *Server) ensureAuthToken(ctx context.Context) error {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	if s.client.AuthTokenValid() {
		return nil
	}
	if s.cfg.StructRefreshToken == "" || s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return fmt.Errorf("SSO credentials not configured")
	}
	return s.client.LoadAuthToken(ctx, s.cfg.StructRefreshToken, s.cfg.ClientID, s.cfg.ClientSecret)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}
