// Package httpapi exposes the webhook pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-payledger/core"
	"github.com/goliatone/go-payledger/webhooks"
)

const (
	WebhookRoute  = "/webhook/{merchant_id}/{product_id}"
	HealthMessage = "Stripe Payment Service is running."

	DefaultMaxBodyBytes int64 = 1 << 20
)

type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, req webhooks.Request) webhooks.Outcome
}

type HealthBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Server struct {
	Processor         WebhookProcessor
	Logger            core.Logger
	MaxBodyBytes      int64
	UnsupportedStatus int
	Metrics           http.Handler
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

func WithMaxBodyBytes(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.MaxBodyBytes = limit
		}
	}
}

func WithUnsupportedStatus(status int) Option {
	return func(s *Server) {
		s.UnsupportedStatus = status
	}
}

// WithMetricsHandler mounts handler on /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.Metrics = handler
	}
}

func NewServer(processor WebhookProcessor, opts ...Option) *Server {
	server := &Server{
		Processor:         processor,
		Logger:            glog.Nop(),
		MaxBodyBytes:      DefaultMaxBodyBytes,
		UnsupportedStatus: http.StatusUnprocessableEntity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}
	return server
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Post(WebhookRoute, s.handleWebhook)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthBody{Status: "ok", Message: HealthMessage})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.Processor == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, webhooks.ResponseBody{Detail: "webhook processor is not configured"})
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, webhooks.ResponseBody{Detail: "request body is too large"})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, webhooks.ResponseBody{Detail: "request body could not be read"})
		return
	}

	outcome := s.Processor.ProcessWebhook(r.Context(), webhooks.Request{
		MerchantID: strings.TrimSpace(chi.URLParam(r, "merchant_id")),
		ProductID:  strings.TrimSpace(chi.URLParam(r, "product_id")),
		Headers:    r.Header.Clone(),
		Body:       body,
	})
	status, response := webhooks.MapOutcome(outcome, s.UnsupportedStatus)
	s.writeJSON(w, status, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && s.Logger != nil {
		s.Logger.Warn("httpapi: write response failed", "status", status, "error", err)
	}
}

func (s *Server) maxBodyBytes() int64 {
	if s.MaxBodyBytes > 0 {
		return s.MaxBodyBytes
	}
	return DefaultMaxBodyBytes
}
