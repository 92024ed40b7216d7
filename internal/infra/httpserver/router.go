package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appaudits "github.com/bryanwahyu/profixion/internal/application/audits"
	appcontact "github.com/bryanwahyu/profixion/internal/application/contact"
	apppayments "github.com/bryanwahyu/profixion/internal/application/payments"
	appstats "github.com/bryanwahyu/profixion/internal/application/stats"
	"github.com/bryanwahyu/profixion/internal/domain/ai"
	domain "github.com/bryanwahyu/profixion/internal/domain/audits"
	"github.com/bryanwahyu/profixion/internal/domain/contact"
	"github.com/bryanwahyu/profixion/internal/domain/payments"
	"github.com/bryanwahyu/profixion/internal/middleware"
)

const (
	maxBodyBytes    = 1 << 20
	maxWebhookBytes = 16 << 20

	retryAfterSeconds = "30"
)

// Services groups the use-cases the router exposes. Payments may be nil
// when no gateway is configured; its routes are then not mounted.
type Services struct {
	Audits   *appaudits.Service
	Payments *apppayments.Service
	Contact  *appcontact.Service
	Stats    *appstats.Service
}

// Options configures the HTTP surface.
type Options struct {
	Logger         *zap.Logger
	Metrics        *middleware.Metrics
	HealthCheckers map[string]middleware.HealthChecker
	WebhookSecret  string
	AllowedOrigins []string
	// RateLimiter guards submission, report, payment and contact routes;
	// nil disables it. The caller owns it and closes it on shutdown.
	RateLimiter *middleware.RateLimiter
	// FilesDir is served under /files when reports are stored on disk.
	FilesDir string
}

type Router struct {
	svc    Services
	logger *zap.Logger
}

func NewRouter(svc Services, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	r := &Router{svc: svc, logger: logger.Named("httpserver")}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.RequestLogger(logger))
	mux.Use(metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.HealthHandler(opts.HealthCheckers))
	mux.Get("/metrics", metrics.Handler)

	limited := func(h http.Handler) http.Handler { return h }
	if opts.RateLimiter != nil {
		limited = opts.RateLimiter.Limit
	}
	webhookAuth := middleware.WebhookAuth(opts.WebhookSecret)

	routes := func(rt chi.Router) {
		rt.Route("/audit", func(rt chi.Router) {
			rt.With(limited).Post("/submit", r.wrap(r.handleSubmit))
			rt.With(webhookAuth).Post("/webhook", r.wrap(r.handleWebhook))
			rt.Get("/status/{trackingId}", r.wrap(r.handleStatus))
			rt.Get("/results/{trackingId}", r.wrap(r.handleResults))
			rt.Get("/progress/{trackingId}", r.wrap(r.handleProgress))
			rt.Get("/list", r.wrap(r.handleList))
			rt.With(limited).Post("/report", r.wrap(r.handleReport))
		})
		if svc.Payments != nil {
			rt.Route("/payment", func(rt chi.Router) {
				rt.Use(limited)
				rt.Post("/orders", r.wrap(r.handleCreateOrder))
				rt.Post("/verify", r.wrap(r.handleVerifyPayment))
			})
		}
		if svc.Contact != nil {
			rt.With(limited).Post("/contact/submit", r.wrap(r.handleContact))
		}
		if svc.Stats != nil {
			rt.Post("/stats/visit", r.wrap(r.handleVisit))
			rt.Get("/stats", r.wrap(r.handleStats))
		}
	}
	routes(mux)
	mux.Route("/api", routes)

	if opts.FilesDir != "" {
		files := http.StripPrefix("/files/", http.FileServer(http.Dir(opts.FilesDir)))
		mux.Handle("/files/*", files)
	}

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, code := classify(err)
		msg := err.Error()
		if status >= http.StatusInternalServerError {
			r.logger.Error("request failed",
				zap.String("path", req.URL.Path),
				zap.String("code", code),
				zap.Error(err))
			if code == "internal_error" {
				msg = "internal server error"
			}
		}
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", retryAfterSeconds)
		}
		_ = ErrorResponse(w, status, code, msg)
	}
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusConflict, "audit_not_ready"
	case errors.Is(err, domain.ErrInFlight):
		return http.StatusServiceUnavailable, "audit_in_flight"
	case errors.Is(err, domain.ErrCorruptedData):
		return http.StatusInternalServerError, "corrupted_stored_data"
	case errors.Is(err, domain.ErrCollaborator), errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusBadGateway, "collaborator_unavailable"
	case errors.Is(err, payments.ErrInvalidAmount), errors.Is(err, payments.ErrMissingDetails):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, payments.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, payments.ErrGateway):
		return http.StatusBadGateway, "payment_gateway_unavailable"
	case errors.Is(err, contact.ErrInvalidMessage):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, contact.ErrDelivery):
		return http.StatusBadGateway, "delivery_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

func decode(w http.ResponseWriter, req *http.Request, dst any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: request body: %v", domain.ErrValidation, err)
	}
	return nil
}

// trackingID reads and checks the path parameter. A malformed id cannot
// belong to any audit, so it is reported as not found.
func trackingID(req *http.Request) (string, error) {
	id := chi.URLParam(req, "trackingId")
	if err := middleware.ValidateTrackingID(id); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return id, nil
}

// POST /audit/submit
// Body: {"profileUrl": "...", "requesterId": "...", "payment": {...}}
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ProfileURL  string                 `json:"profileUrl"`
		RequesterID string                 `json:"requesterId"`
		AuthID      string                 `json:"authId"` // older clients
		Payment     *payments.Confirmation `json:"payment"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	requester := body.RequesterID
	if requester == "" {
		requester = body.AuthID
	}

	res, err := r.svc.Audits.Submit(req.Context(), appaudits.SubmitCommand{
		ProfileURL:  middleware.SanitizeString(body.ProfileURL),
		RequesterID: middleware.SanitizeString(requester),
		Payment:     body.Payment,
	})
	if err != nil {
		return err
	}
	status := http.StatusAccepted
	if res.Existing {
		status = http.StatusOK
	}
	return WriteJSON(w, status, res)
}

// POST /audit/webhook
// Dipanggil oleh provider scraping saat snapshot selesai.
func (r *Router) handleWebhook(w http.ResponseWriter, req *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxWebhookBytes))
	if err != nil {
		return fmt.Errorf("%w: read webhook body: %v", domain.ErrValidation, err)
	}

	// provider disconnects must not abort a half-finished completion
	ctx := context.WithoutCancel(req.Context())
	res, err := r.svc.Audits.HandleWebhook(ctx, body)
	if err != nil {
		return err
	}
	r.logger.Debug("webhook handled", zap.Any("outcomes", res.Outcomes))
	return WriteJSON(w, http.StatusOK, struct{}{})
}

// GET /audit/status/{trackingId}
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	id, err := trackingID(req)
	if err != nil {
		return err
	}
	view, err := r.svc.Audits.Status(req.Context(), id)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, view)
}

// GET /audit/results/{trackingId}
func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	id, err := trackingID(req)
	if err != nil {
		return err
	}
	analysis, err := r.svc.Audits.Results(req.Context(), id)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, analysis)
}

// GET /audit/progress/{trackingId}
func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) error {
	id, err := trackingID(req)
	if err != nil {
		return err
	}
	view, err := r.svc.Audits.Progress(req.Context(), id)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, view)
}

// GET /audit/list?requesterId=&page=&pageSize=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	requester := q.Get("requesterId")
	if requester == "" {
		requester = q.Get("authId")
	}
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("pageSize"))

	list, err := r.svc.Audits.List(req.Context(), middleware.SanitizeString(requester), page, size)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, list)
}

// POST /audit/report
// Body: {"trackingId": "...", "displayName": "...", "date": "2006-01-02"}
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		TrackingID  string `json:"trackingId"`
		DisplayName string `json:"displayName"`
		Date        string `json:"date"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	date, err := parseDate(body.Date)
	if err != nil {
		return err
	}

	res, err := r.svc.Audits.Report(req.Context(), appaudits.ReportCommand{
		TrackingID:  strings.TrimSpace(body.TrackingID),
		DisplayName: middleware.SanitizeString(body.DisplayName),
		Date:        date,
	})
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, res)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty means
// the service picks today.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD or RFC 3339", domain.ErrValidation)
}

// POST /payment/orders
// Body: {"amount": 499}
func (r *Router) handleCreateOrder(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	res, err := r.svc.Payments.CreateOrder(req.Context(), body.Amount)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, res)
}

// POST /payment/verify
func (r *Router) handleVerifyPayment(w http.ResponseWriter, req *http.Request) error {
	var body payments.Confirmation
	if err := decode(w, req, &body); err != nil {
		return err
	}
	res, err := r.svc.Payments.Verify(req.Context(), body)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, res)
}

// POST /contact/submit
func (r *Router) handleContact(w http.ResponseWriter, req *http.Request) error {
	var body contact.Message
	if err := decode(w, req, &body); err != nil {
		return fmt.Errorf("%w: %v", contact.ErrInvalidMessage, err)
	}
	if err := r.svc.Contact.Submit(req.Context(), body); err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// POST /stats/visit
func (r *Router) handleVisit(w http.ResponseWriter, req *http.Request) error {
	v, err := r.svc.Stats.RecordVisit(req.Context())
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, v)
}

// GET /stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	v, err := r.svc.Stats.Visits(req.Context())
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, v)
}
