// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/service"
	"github.com/scenario-simulator/internal/simulator"
	"github.com/scenario-simulator/internal/timeline"
	"github.com/shopspring/decimal"
)

// SessionServiceInterface defines the session operations the API exposes
type SessionServiceInterface interface {
	Timeline() *timeline.Timeline
	Create(ctx context.Context, capital *decimal.Decimal) (*service.SessionInfo, error)
	Get(id string) (*service.SessionInfo, error)
	List() []service.SessionInfo
	Delete(id string) error
	State(id string) (*simulator.State, error)
	Buy(id, fundCode string, amount decimal.Decimal) (*simulator.TradeResult, error)
	Sell(id, fundCode string, req simulator.SellRequest) (*simulator.TradeResult, error)
	NextDay(id string) (*simulator.AdvanceResult, error)
	Snapshot(id string, q simulator.SnapshotQuery) (*simulator.DaySnapshot, error)
	FundHistory(id, code string, days int) (*simulator.FundHistory, error)
	Summary(id string) (*simulator.PerformanceSummary, error)
	Reset(id string) (*simulator.State, error)
	Document(id string) (*models.HistoryDocument, error)
	Export(ctx context.Context, id string) (*service.ExportOutcome, error)
	ExportToFile(id string) (*simulator.ExportResult, error)
	Import(id string, doc *models.HistoryDocument) (*simulator.ImportResult, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	sessions   SessionServiceInterface
	config     *ServerConfig
	logger     *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int // per client
	Burst             int
	TrustedProxies    []string
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, sessions SessionServiceInterface, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		router:   mux.NewRouter(),
		sessions: sessions,
		config:   config,
		logger:   logger.WithComponent("api"),
	}

	s.setupRouter()

	return s
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst, s.config.TrustedProxies...)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/scenario", s.handleGetScenario).Methods("GET")

	// Session endpoints
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")

	// Trading endpoints
	api.HandleFunc("/sessions/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/sessions/{id}/buy", s.handleBuy).Methods("POST")
	api.HandleFunc("/sessions/{id}/sell", s.handleSell).Methods("POST")
	api.HandleFunc("/sessions/{id}/next", s.handleNextDay).Methods("POST")

	// Market data endpoints
	api.HandleFunc("/sessions/{id}/snapshot", s.handleSnapshot).Methods("GET")
	api.HandleFunc("/sessions/{id}/history/{code}", s.handleFundHistory).Methods("GET")

	// Results endpoints
	api.HandleFunc("/sessions/{id}/summary", s.handleSummary).Methods("GET")
	api.HandleFunc("/sessions/{id}/export", s.handleExport).Methods("POST")
	api.HandleFunc("/sessions/{id}/export/file", s.handleExportFile).Methods("POST")
	api.HandleFunc("/sessions/{id}/import", s.handleImport).Methods("POST")
	api.HandleFunc("/sessions/{id}/chart", s.handleChart).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "scenario-simulator",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
