// Package server exposes the ledger over HTTP/JSON. The authenticated
// principal arrives in the X-Principal header; upstream infrastructure is
// trusted to have verified it.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"LendLedger/internal/core"
	"LendLedger/internal/observability"
	"LendLedger/internal/query"
)

// Server wires the core and query service into an HTTP API.
type Server struct {
	core    *core.Core
	queries *query.Service
	health  *observability.HealthChecker
	log     zerolog.Logger
	httpSrv *http.Server
}

func New(c *core.Core, q *query.Service, health *observability.HealthChecker, addr string, log zerolog.Logger) *Server {
	s := &Server{
		core:    c,
		queries: q,
		health:  health,
		log:     log.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/pools", func(r chi.Router) {
			r.Get("/", s.handleListPools)
			r.With(requirePrincipal).Post("/", s.handleCreatePool)

			r.Route("/{poolID}", func(r chi.Router) {
				r.Get("/", s.handleGetPool)
				r.Get("/history", s.handlePoolHistory)
				r.Get("/loans/{principal}", s.handleGetLoan)
				r.Get("/depositors/{principal}", s.handleGetDepositor)

				r.Group(func(r chi.Router) {
					r.Use(requirePrincipal)
					r.Put("/params", s.handleUpdateParams)
					r.Post("/deposit", s.handleDeposit)
					r.Post("/withdraw", s.handleWithdraw)
					r.Post("/borrow", s.handleBorrow)
					r.Post("/repay", s.handleRepay)
					r.Post("/liquidate", s.handleLiquidate)
					r.Get("/quote/{borrower}", s.handlePayoffQuote)
				})
			})
		})
		r.With(requirePrincipal).Get("/history", s.handlePrincipalHistory)
	})

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe runs until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
