// Package api exposes the engine over HTTP and a WebSocket state stream.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"airline_ops/internal/config"
	apperrors "airline_ops/internal/errors"
	"airline_ops/internal/game"
	"airline_ops/internal/models"
	"airline_ops/internal/routes"
	"airline_ops/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 1000
)

// LedgerReader is the read side of the tick ledger.
type LedgerReader interface {
	Recent(ctx context.Context, limit int) ([]store.LedgerEntry, error)
	RecentEvents(ctx context.Context, limit int) ([]store.EventRecord, error)
}

type Options struct {
	// Ledger is optional; without it the ledger endpoints return empty lists.
	Ledger      LedgerReader
	CORSOrigins []string
	RateLimit   config.RateLimitConfig
	Logger      *slog.Logger
}

type Server struct {
	engine  *game.Engine
	ledger  LedgerReader
	limiter *RateLimiter
	logger  *slog.Logger
	handler http.Handler
}

// New constructs the HTTP router wired to the game engine.
func New(engine *game.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  engine,
		ledger:  opts.Ledger,
		limiter: NewRateLimiter(opts.RateLimit),
		logger:  logger.With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(newCORS(opts.CORSOrigins).Handler)
	r.Use(s.limiter.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/airports", s.handleAirports)
	r.Get("/aircraft/templates", s.handleAircraftTemplates)
	r.Get("/state", s.handleState)
	r.Post("/routes", s.handleCreateRoute)
	r.Post("/routes/build", s.handleBuildRoute)
	r.Post("/tick", s.handleTick)
	r.Route("/sim", func(r chi.Router) {
		r.Post("/start", s.handleSimStart)
		r.Post("/pause", s.handleSimPause)
		r.Post("/speed", s.handleSimSpeed)
	})
	r.Post("/fleet/purchase", s.handlePurchase)
	r.Post("/fleet/maintenance", s.handleMaintenance)
	r.Post("/analysis/route", s.handleRouteAnalysis)
	r.Get("/ledger", s.handleLedger)
	r.Get("/ledger/events", s.handleLedgerEvents)
	r.Get("/ws/state", s.handleStateStream)

	s.handler = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases the rate limiter's background goroutine.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) handleAirports(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")
	fields := r.URL.Query().Get("fields")
	filtered := filterAirports(s.engine.Catalog().Airports(), tier)
	if strings.EqualFold(fields, "basic") {
		basic := make([]basicAirport, 0, len(filtered))
		for _, a := range filtered {
			basic = append(basic, basicAirport{
				ID: a.ID, Ident: a.Ident, Name: a.Name,
				Latitude: a.Latitude, Longitude: a.Longitude,
				Type: a.Type, IATA: a.IATA, ICAO: a.ICAO,
			})
		}
		writeJSON(w, http.StatusOK, basic)
		return
	}
	writeJSON(w, http.StatusOK, filtered)
}

type basicAirport struct {
	ID        string  `json:"id"`
	Ident     string  `json:"ident"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Type      string  `json:"type"`
	IATA      string  `json:"iata"`
	ICAO      string  `json:"icao"`
}

func (s *Server) handleAircraftTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Catalog().Aircraft())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var req routes.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, s.logger, badRequest("invalid route request body"))
		return
	}
	route, err := s.engine.CreateRoute(req)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, route)
}

// handleBuildRoute quotes a route without committing it.
func (s *Server) handleBuildRoute(w http.ResponseWriter, r *http.Request) {
	var req routes.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, s.logger, badRequest("invalid route request body"))
		return
	}
	route, err := s.engine.BuildRoute(req)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	s.engine.AdvanceTick()
	writeJSON(w, http.StatusOK, s.engine.State())
}

type speedRequest struct {
	Speed int `json:"speed"`
}

func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	// An empty body keeps the current speed.
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.engine.StartSim(req.Speed)
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handleSimPause(w http.ResponseWriter, r *http.Request) {
	s.engine.PauseSim()
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handleSimSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed <= 0 {
		writeError(w, r, s.logger, badRequest("speed must be a positive integer"))
		return
	}
	s.engine.SetSpeed(req.Speed)
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
		Mode       string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TemplateID == "" {
		writeError(w, r, s.logger, badRequest("template_id is required"))
		return
	}
	craft, err := s.engine.PurchaseAircraft(req.TemplateID, req.Mode)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, craft)
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnedID string `json:"owned_id"`
		Ticks   int    `json:"ticks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OwnedID == "" {
		writeError(w, r, s.logger, badRequest("owned_id is required"))
		return
	}
	craft, err := s.engine.Maintain(req.OwnedID, req.Ticks)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, craft)
}

func (s *Server) handleRouteAnalysis(w http.ResponseWriter, r *http.Request) {
	var req routes.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, s.logger, badRequest("invalid analysis request body"))
		return
	}
	results, err := s.engine.AnalyzeRoute(req)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeJSON(w, http.StatusOK, []store.LedgerEntry{})
		return
	}
	entries, err := s.ledger.Recent(r.Context(), ledgerLimit(r))
	if err != nil {
		writeError(w, r, s.logger, apperrors.WrapInternal("read ledger", err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLedgerEvents(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeJSON(w, http.StatusOK, []store.EventRecord{})
		return
	}
	events, err := s.ledger.RecentEvents(r.Context(), ledgerLimit(r))
	if err != nil {
		writeError(w, r, s.logger, apperrors.WrapInternal("read ledger events", err))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func ledgerLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultLedgerLimit
	}
	return min(limit, maxLedgerLimit)
}

func filterAirports(all []models.Airport, tier string) []models.Airport {
	if tier == "" || tier == "all" {
		return all
	}
	tier = strings.ToLower(tier)
	keep := func(t string) bool {
		switch tier {
		case "large":
			return t == "large_airport"
		case "medium":
			return t == "large_airport" || t == "medium_airport"
		case "small":
			return t == "small_airport"
		default:
			return true
		}
	}
	out := make([]models.Airport, 0, len(all))
	for _, a := range all {
		if keep(a.Type) {
			out = append(out, a)
		}
	}
	return out
}
