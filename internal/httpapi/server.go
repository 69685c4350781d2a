// Package httpapi is the External Interface Shim: a thin command surface
// that forwards to the Broker under its own lock and adds no business
// rules of its own, grounded on services/jax-api/internal/infra/http's
// middleware composition and handler style.
package httpapi

import (
	"log"
	"net/http"

	"paperbroker/internal/auth"
	"paperbroker/internal/broker"
	"paperbroker/internal/middleware"
	"paperbroker/internal/observability"
)

// Server wires the Broker to an http.ServeMux behind auth/rate-limit/CORS
// middleware.
type Server struct {
	mux         *http.ServeMux
	broker      *broker.Broker
	logger      *observability.Logger
	jwtManager  *auth.JWTManager
	rateLimiter *middleware.RateLimiter
	corsConfig  middleware.CORSConfig
}

// Config configures a Server. JWTManager may be nil to run without
// authentication (development mode, matching the teacher's server.go).
type Config struct {
	Broker      *broker.Broker
	Logger      *observability.Logger
	JWTManager  *auth.JWTManager
	RateLimiter *middleware.RateLimiter
	CORSConfig  middleware.CORSConfig
}

// New builds a Server and registers every route.
func New(cfg Config) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		broker:      cfg.Broker,
		logger:      cfg.Logger,
		jwtManager:  cfg.JWTManager,
		rateLimiter: cfg.RateLimiter,
		corsConfig:  cfg.CORSConfig,
	}
	s.routes()
	return s
}

// Handler returns the fully wrapped HTTP handler: CORS is outermost, and
// rate limiting (when configured) wraps the mux directly, matching the
// teacher's composition order.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(handler)
	}
	handler = middleware.CORS(s.corsConfig)(handler)
	return handler
}

// protect wraps handler with JWT authentication, or passes it through
// unauthenticated if no JWTManager is configured.
func (s *Server) protect(handler http.HandlerFunc) http.Handler {
	if s.jwtManager == nil {
		log.Println("WARNING: httpapi route registered without authentication (development mode)")
		return handler
	}
	return s.jwtManager.Middleware(handler)
}

// protectWriter additionally requires the "trader" role for mutating
// operations; "readonly" callers receive 403.
func (s *Server) protectWriter(handler http.HandlerFunc) http.Handler {
	protected := s.protect(handler)
	if s.jwtManager == nil {
		return protected
	}
	return s.jwtManager.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.RequireRole("trader", handler).ServeHTTP(w, r)
	}))
}

func (s *Server) routes() {
	s.mux.Handle("POST /v1/orders", s.protectWriter(s.handlePlaceOrder))
	s.mux.Handle("DELETE /v1/orders/{id}", s.protectWriter(s.handleCancelOrder))
	s.mux.Handle("GET /v1/orders", s.protect(s.handleListOpenOrders))
	s.mux.Handle("POST /v1/positions/{symbol}/close", s.protectWriter(s.handleClosePosition))

	s.mux.Handle("POST /v1/marketdata", s.protectWriter(s.handlePushMarketData))

	s.mux.Handle("GET /v1/portfolio", s.protect(s.handleGetPortfolio))
	s.mux.Handle("GET /v1/portfolio/enhanced", s.protect(s.handleGetEnhancedPortfolio))
	s.mux.Handle("GET /v1/trades", s.protect(s.handleGetTrades))

	s.mux.Handle("GET /v1/risk/status", s.protect(s.handleGetRiskStatus))
	s.mux.Handle("GET /v1/risk/violations", s.protect(s.handleGetRiskViolations))

	s.mux.Handle("POST /v1/state/save", s.protectWriter(s.handleSaveState))
	s.mux.Handle("GET /v1/state/journal-stats", s.protect(s.handleJournalStats))
	s.mux.Handle("POST /v1/state/backup", s.protectWriter(s.handleBackupJournal))
	s.mux.Handle("POST /v1/state/auto-save", s.protectWriter(s.handleSetAutoSave))

	s.mux.Handle("GET /v1/session", s.protect(s.handleGetSession))
	s.mux.Handle("GET /v1/session/is-open", s.protect(s.handleIsMarketOpen))
	s.mux.Handle("GET /v1/session/next", s.protect(s.handleNextSessionStart))
	s.mux.Handle("POST /v1/session/extended-hours", s.protectWriter(s.handleConfigureExtendedHours))
	s.mux.Handle("POST /v1/session/holiday-trading", s.protectWriter(s.handleSetHolidayTrading))
	s.mux.Handle("POST /v1/session/holidays", s.protectWriter(s.handleAddHoliday))

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}
