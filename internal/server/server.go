package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/analytics"
	"github.com/gkobilansky/funnel-goat/internal/config"
	"github.com/gkobilansky/funnel-goat/internal/funnel"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

type Server struct {
	store     *store.SQLiteStore
	port      int
	token     string
	tokenFile string
	router    *http.ServeMux
	startTime time.Time
	log       *zap.Logger

	campaigns *funnel.CampaignCache
	resolver  *funnel.Resolver
	recorder  *funnel.Recorder
	analytics *analytics.Service
}

func New(s *store.SQLiteStore, cfg *config.Config, log *zap.Logger) *Server {
	token := cfg.DashboardToken
	if token == "" {
		token = generateToken()
	}

	campaigns := funnel.NewCampaignCache(s, cfg.CacheTTL)

	srv := &Server{
		store:     s,
		port:      cfg.Port,
		token:     token,
		tokenFile: cfg.TokenFile(),
		router:    http.NewServeMux(),
		startTime: time.Now(),
		log:       log,
		campaigns: campaigns,
		resolver:  funnel.NewResolver(s, campaigns, log),
		recorder:  funnel.NewRecorder(s, log),
		analytics: analytics.NewService(s, cfg.Thresholds(), cfg.DefaultGoal, log),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /fg.js", s.handleGlobalJS)
	s.router.HandleFunc("GET /r/{slug}", s.withCORS(s.handleResolve))
	s.router.HandleFunc("OPTIONS /r/{slug}", s.withCORS(nil))
	s.router.HandleFunc("POST /e", s.withCORS(s.handleEvent))
	s.router.HandleFunc("OPTIONS /e", s.withCORS(nil))
	s.router.HandleFunc("POST /p", s.withCORS(s.handleProgress))
	s.router.HandleFunc("OPTIONS /p", s.withCORS(nil))
	s.router.Handle("GET /metrics", promhttp.Handler())

	// Dashboard endpoints (protected)
	s.router.Handle("GET /dashboard", s.authMiddleware(http.HandlerFunc(s.handleDashboard)))
	s.router.Handle("GET /dashboard/campaign/{slug}", s.authMiddleware(http.HandlerFunc(s.handleDashboardCampaign)))
	s.router.Handle("GET /dashboard/api/campaigns", s.authMiddleware(http.HandlerFunc(s.handleCampaignsAPI)))
	s.router.Handle("GET /dashboard/api/campaigns/{slug}/analytics", s.authMiddleware(http.HandlerFunc(s.handleAnalyticsAPI)))
	s.router.Handle("GET /dashboard/api/campaigns/{slug}/dropoff", s.authMiddleware(http.HandlerFunc(s.handleDropOffAPI)))
	s.router.Handle("GET /dashboard/api/campaigns/{slug}/export.csv", s.authMiddleware(http.HandlerFunc(s.handleExportCSV)))
	s.router.Handle("POST /dashboard/api/campaigns/{slug}/sales", s.authMiddleware(http.HandlerFunc(s.handleRecordSale)))
	s.router.Handle("POST /dashboard/api/campaigns/{slug}/spend", s.authMiddleware(http.HandlerFunc(s.handleAddSpend)))
	s.router.Handle("POST /dashboard/api/campaigns/{slug}/deactivate", s.authMiddleware(http.HandlerFunc(s.handleDeactivate)))
	s.router.Handle("POST /dashboard/api/campaigns/{slug}/variants/{id}", s.authMiddleware(http.HandlerFunc(s.handleUpdateVariant)))
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.log.Warn("failed to write token file", zap.String("path", s.tokenFile), zap.Error(err))
		}
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.Int("port", s.port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Port() int {
	return s.port
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a time-derived token if crypto/rand fails
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
