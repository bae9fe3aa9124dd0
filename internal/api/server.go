package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Gurkunwar/dailybot-engine/internal/metrics"
	"github.com/Gurkunwar/dailybot-engine/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// PassRunner triggers a lifecycle pass on demand.
type PassRunner interface {
	RunOpenPass(ctx context.Context) (services.PassResult, error)
	RunClosePass(ctx context.Context) (services.PassResult, error)
}

type Server struct {
	Standups  *services.StandupService
	Manager   *services.Manager
	Collector *services.Collector
	Summaries *services.SummaryGenerator
	Passes    PassRunner
	Limiter   *SubmitLimiter
	Gatherer  prometheus.Gatherer

	JWTSecret     string
	AllowedOrigin string
	Logger        *slog.Logger
}

func NewServer(standups *services.StandupService,
	manager *services.Manager,
	collector *services.Collector,
	summaries *services.SummaryGenerator,
	passes PassRunner,
	jwtSecret string,
	logger *slog.Logger) *Server {

	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Standups:  standups,
		Manager:   manager,
		Collector: collector,
		Summaries: summaries,
		Passes:    passes,
		Limiter:   NewSubmitLimiter(0),
		JWTSecret: jwtSecret,
		Logger:    logger,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RecoveryMiddleware(s.Logger))
	r.Use(CORSMiddleware(s.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.JWTSecret))

		r.Route("/api/projects/{projectID}", func(r chi.Router) {
			r.Get("/config", s.HandleGetConfig)
			r.Put("/config", s.HandleSaveConfig)
			r.Put("/config/active", s.HandleSetActive)
			r.Get("/sessions/active", s.HandleActiveSessionForProject)
		})

		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", s.HandleListActiveSessions)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.HandleGetSession)
				r.Post("/close", s.HandleCloseSession)
				r.Get("/responses", s.HandleListResponses)
				r.With(s.Limiter.Middleware(s.Logger)).Post("/responses", s.HandleSubmitResponse)
				r.Get("/summary", s.HandleGetSummary)
			})
		})

		r.Post("/api/passes/{pass}", s.HandleRunPass)
	})

	return r
}

// ErrNoJWTSecret is returned by Start when the server has no signing secret.
var ErrNoJWTSecret = errors.New("api: JWT_SECRET must be set to serve the API")

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	if s.JWTSecret == "" {
		return ErrNoJWTSecret
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweepLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("api server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.Logger.Info("api server stopped")
	return nil
}

func (s *Server) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(limiterIdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Limiter.Cleanup(); n > 0 {
				s.Logger.Debug("dropped idle rate limiters", slog.Int("count", n))
			}
		}
	}
}
