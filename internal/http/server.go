// Package http exposes the installment service and the date calculator as
// a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"escola/internal/log"
	"escola/internal/services"
)

// Options tune the router. Zero values pick the defaults.
type Options struct {
	AllowedOrigins []string
	RateLimit      int // requests per minute per client, 0 disables
}

type Server struct {
	http.Server
	svc         *services.InstallmentService
	logger      *log.Logger
	rateLimiter *rateLimiter
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer wires the router and returns a ready-to-run http.Server.
func NewServer(addr string, svc *services.InstallmentService, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	s := &Server{
		svc:     svc,
		logger:  logger,
		started: time.Now(),
	}
	if opts.RateLimit > 0 {
		s.rateLimiter = newRateLimiter(opts.RateLimit)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(opts Options) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.rateLimiter != nil {
			r.Use(s.rateLimiter.middleware)
		}

		r.Route("/records/{record}", func(r chi.Router) {
			r.Get("/installments", s.handleRecordSchedule)
			r.Post("/plans", s.handlePlanSchedule)
		})

		r.Route("/installments", func(r chi.Router) {
			r.Post("/", s.handleCreateInstallment)
			r.Get("/{id}", s.handleGetInstallment)
			r.Post("/{id}/pay", s.handlePayInstallment)
		})

		r.Route("/dates", func(r chi.Router) {
			r.Get("/add-months", s.handleAddMonths)
			r.Get("/months-between", s.handleMonthsBetween)
			r.Get("/validate", s.handleValidateDate)
			r.Get("/next-due", s.handleNextDue)
		})
	})

	return r
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}
