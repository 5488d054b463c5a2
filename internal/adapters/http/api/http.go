// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/hackit-tw/recruit/internal/adapters/mail"
	"github.com/hackit-tw/recruit/internal/adapters/repository"
	service "github.com/hackit-tw/recruit/internal/app"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/review"
	"github.com/hackit-tw/recruit/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Submit(ctx context.Context, a model.Applicant) (model.Application, error)
	SubmitApplicantData(ctx context.Context, token string, d model.ApplicantData) (service.ActionOutcome, error)
	VerifyToken(ctx context.Context, raw string) (model.Application, error)
	HandleAction(ctx context.Context, in service.InboundAction) (service.ActionOutcome, error)
	Search(ctx context.Context, q repository.Query) ([]model.Application, error)
	Stats(ctx context.Context) (service.Stats, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps        Dependencies
	fields      FieldMap
	renderer    *mail.Renderer
	apiToken    string
	nextFormURL string
	limiter     *rate.Limiter
	log         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithFieldMap replaces the embedded form field mapping.
func WithFieldMap(fm FieldMap) Option {
	return func(s *Server) { s.fields = fm }
}

// WithAPIToken enables the /api routes behind a bearer token.
func WithAPIToken(token string) Option {
	return func(s *Server) { s.apiToken = token }
}

// WithRateLimit throttles the form intake routes.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 && burst > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithRenderer enables the mail preview route.
func WithRenderer(r *mail.Renderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithNextFormURL sets where /redirect/check sends a verified applicant.
func WithNextFormURL(u string) Option {
	return func(s *Server) { s.nextFormURL = u }
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:   deps,
		fields: DefaultFieldMap(),
		log:    logger.Get().Named("http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", s.instrument("healthz", s.handleHealth))
	mux.Handle("GET /metrics", metricsHandler())
	mux.HandleFunc("GET /stats", s.instrument("stats", s.handleStats))

	mux.HandleFunc("POST /apply/first_part_application",
		s.instrument("first_part_application", s.rateLimit(s.handleFirstPart)))
	mux.HandleFunc("POST /apply/second_part_application",
		s.instrument("second_part_application", s.rateLimit(s.handleSecondPart)))
	mux.HandleFunc("GET /redirect/check", s.instrument("redirect_check", s.handleRedirectCheck))

	if s.renderer != nil {
		mux.HandleFunc("GET /admin/preview/email", s.instrument("preview_email", s.handlePreview))
	}
	if s.apiToken != "" {
		mux.HandleFunc("POST /api/actions", s.instrument("actions", s.bearer(s.handleAction)))
		mux.HandleFunc("GET /api/applications", s.instrument("applications", s.bearer(s.handleSearch)))
	}
}

type ackResponse struct {
	Status        string `json:"status"`
	ApplicationID string `json:"application_id,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps a service error to its status and code. Unauthorized is
// checked before not found because an unknown actor wraps both.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, review.ErrStaleState):
		return http.StatusConflict, "stale_state"
	case errors.Is(err, review.ErrUnauthorized), errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, review.ErrUnknownAssignee):
		return http.StatusNotFound, "unknown_assignee"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, review.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_transition"
	case errors.Is(err, service.ErrValidation), errors.Is(err, ErrBadRequest), errors.Is(err, mail.ErrUnknownTemplate):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrUpstreamUnavailable), errors.Is(err, service.ErrNotConfigured):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
		// Internal details stay in the log.
		err = fmt.Errorf("%s failed", op)
	}
	writeError(w, status, code, err)
}
