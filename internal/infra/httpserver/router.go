package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	appcapture "github.com/bryanwahyu/plantscan/internal/application/capture"
	appscans "github.com/bryanwahyu/plantscan/internal/application/scans"
	domai "github.com/bryanwahyu/plantscan/internal/domain/ai"
	domain "github.com/bryanwahyu/plantscan/internal/domain/scans"
	"github.com/bryanwahyu/plantscan/internal/middleware"
)

// Options configures the HTTP surface around the scan service.
type Options struct {
	// APIKeys maps identity → api key.
	APIKeys     map[string]string
	CORSOrigins []string
	RateLimit   int
	RateRefill  int
	// Checkers back /health (database, storage).
	Checkers map[string]middleware.HealthChecker
	Log      logrus.FieldLogger
}

type Router struct {
	scansSvc *appscans.Service
	log      logrus.FieldLogger
}

func NewRouter(scansSvc *appscans.Service, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Router{scansSvc: scansSvc, log: log}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware(log))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		if opts.RateLimit > 0 {
			rt.Use(middleware.RateLimitMiddleware(opts.RateLimit, opts.RateRefill))
		}

		// multipart overhead on top of the image itself
		rt.With(middleware.MaxBodySize(appcapture.MaxImageBytes+1<<20)).
			Post("/scans", r.wrap(r.handleCreateScan))
		rt.Get("/scans", r.wrap(r.handleList))
		rt.Get("/scans/summary", r.wrap(r.handleSummary))
		rt.Get("/scans/{id}", r.wrap(r.handleGet))
		rt.Delete("/scans/{id}", r.wrap(r.handleDelete))
		rt.Get("/failures", r.wrap(r.handleFailures))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client input errors that never reached the service.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	// Image is reported when the upload succeeded before a later stage failed.
	Image *domain.StoredImageRef `json:"image,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		body := errorBody{Error: err.Error(), Kind: string(domain.KindOf(err))}
		var pe *domain.PipelineError
		if errors.As(err, &pe) {
			body.Image = pe.Image
		}

		var (
			br     badRequest
			tooBig *http.MaxBytesError
			status int
		)
		switch {
		case errors.As(err, &br):
			status = http.StatusBadRequest
		case errors.As(err, &tooBig):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, domain.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domai.ErrQuotaExceeded):
			status = http.StatusTooManyRequests
		case errors.Is(err, domain.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrUploadFailed), errors.Is(err, domain.ErrAnalysisFailed):
			status = http.StatusBadGateway
		default:
			// persist failures and anything unexpected
			status = http.StatusInternalServerError
		}
		if status >= 500 {
			r.log.WithError(err).WithField("path", req.URL.Path).Error("request failed")
		}
		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func identityOf(req *http.Request) domain.Identity {
	return domain.Identity(middleware.GetIdentityFromContext(req.Context()))
}

// POST /v1/scans (multipart, field "image")
func (r *Router) handleCreateScan(w http.ResponseWriter, req *http.Request) error {
	if err := req.ParseMultipartForm(appcapture.MaxImageBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return badRequest{msg: "expected multipart/form-data with an image field"}
	}
	file, header, err := req.FormFile("image")
	if err != nil {
		return badRequest{msg: "image field is required"}
	}
	defer file.Close()

	img, err := appcapture.ReadImage(header.Filename, file)
	if err != nil {
		return badRequest{msg: err.Error()}
	}
	img.Filename = middleware.SanitizeString(header.Filename)

	middleware.IncrementScansRunning()
	defer middleware.DecrementScansRunning()

	// the pipeline runs to completion even if the client goes away
	rec, err := r.scansSvc.Analyze(context.WithoutCancel(req.Context()), img, identityOf(req))
	middleware.RecordScan(string(domain.KindOf(err)))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, rec)
}

// GET /v1/scans?limit=&cursor=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	var before *domain.Cursor
	if raw := q.Get("cursor"); raw != "" {
		c, err := domain.ParseCursor(raw)
		if err != nil {
			return badRequest{msg: err.Error()}
		}
		before = c
	}

	page, err := r.scansSvc.List(req.Context(), identityOf(req), middleware.ValidateLimit(limit), before)
	if err != nil {
		return err
	}

	resp := struct {
		Data       []*domain.ScanRecord `json:"data"`
		NextCursor string               `json:"next_cursor,omitempty"`
	}{Data: page.Data}
	if resp.Data == nil {
		resp.Data = []*domain.ScanRecord{}
	}
	if page.NextCursor != nil {
		resp.NextCursor = page.NextCursor.Encode()
	}
	return writeJSON(w, http.StatusOK, resp)
}

// GET /v1/scans/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return badRequest{msg: err.Error()}
	}
	rec, err := r.scansSvc.Get(req.Context(), identityOf(req), domain.ScanID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rec)
}

// DELETE /v1/scans/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateScanID(id); err != nil {
		return badRequest{msg: err.Error()}
	}
	if err := r.scansSvc.Delete(req.Context(), identityOf(req), domain.ScanID(id)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/scans/summary?days=
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))
	days = middleware.ValidateDays(days)

	sum, err := r.scansSvc.Summary(req.Context(), identityOf(req), days)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, struct {
		Days int `json:"days"`
		domain.Summary
	}{Days: days, Summary: sum})
}

// GET /v1/failures?limit=
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.scansSvc.ListFailures(req.Context(), identityOf(req), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": list})
}
