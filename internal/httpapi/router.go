// Package httpapi wires the HTTP surface of the posting service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tantawy/erp/internal/service/invoice"
)

// Server wires handlers and middleware using Chi.
type Server struct {
	svc    *invoice.Service
	reader Reader
	ready  Readiness
	log    *slog.Logger
	rt     *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request/response logging and panic recovery.
func New(svc *invoice.Service, reader Reader, ready Readiness, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{svc: svc, reader: reader, ready: ready, log: logger, rt: r}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	s.rt.Post("/v1/invoices", s.postInvoice)
	s.rt.Post("/v1/invoices/batch", s.postInvoicesBatch)
	s.rt.Get("/v1/invoices", s.listInvoices)
	s.rt.Get("/v1/invoices/{id}", s.getInvoice)
	s.rt.Get("/v1/invoices/{id}/returnable", s.getReturnable)
	// Health + metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
