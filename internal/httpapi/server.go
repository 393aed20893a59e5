package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"llamad/internal/llm"
	"llamad/internal/supervise"
	"llamad/pkg/types"
)

// Service defines the orchestrator methods required by the HTTP API layer.
type Service interface {
	Models() []types.ModelDescriptor
	Status(ctx context.Context) types.StatusResponse
	StartServer(ctx context.Context, modelOverride string) (supervise.StartResult, error)
	StopServer(ctx context.Context) error
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error
	Running(ctx context.Context) bool
}

// zlog is an optional structured logger. If unset, the HTTP layer stays quiet.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// errorStatus maps orchestrator errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case supervise.IsModelNotFound(err):
		return http.StatusNotFound
	case supervise.IsModelMissing(err):
		return http.StatusBadRequest
	case supervise.IsBinaryNotFound(err):
		return http.StatusServiceUnavailable
	case supervise.IsStartFailed(err), supervise.IsStopFailed(err):
		return http.StatusInternalServerError
	case llm.IsServerUnreachable(err):
		return http.StatusServiceUnavailable
	case llm.IsRequestTimeout(err):
		return http.StatusGatewayTimeout
	case llm.IsGenerationFailure(err):
		return http.StatusBadGateway
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// NewMux builds the daemon router.
//
// Routes: /models, /status, /server/start, /server/stop, /generate,
// /healthz, /readyz, /metrics.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// listModels godoc
	// @Summary List discovered models
	// @Produce json
	// @Success 200 {object} types.ModelsResponse
	// @Router /models [get]
	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		models := svc.Models()
		if models == nil {
			models = []types.ModelDescriptor{}
		}
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: models}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	// status godoc
	// @Summary Orchestrator and server status
	// @Produce json
	// @Success 200 {object} types.StatusResponse
	// @Router /status [get]
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status(r.Context())); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	// startServer godoc
	// @Summary Start the managed llama-server
	// @Accept json
	// @Produce json
	// @Param request body types.StartRequest false "start options"
	// @Success 200 {object} types.StartResponse
	// @Failure 404 {object} types.ErrorResponse
	// @Failure 503 {object} types.ErrorResponse
	// @Router /server/start [post]
	r.Post("/server/start", func(w http.ResponseWriter, r *http.Request) {
		var req types.StartRequest
		if r.Body != nil && r.ContentLength != 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
		}
		start := time.Now()
		res, err := svc.StartServer(r.Context(), req.Model)
		if err != nil {
			logRequest(r, errorStatus(err), time.Since(start), err)
			writeJSONError(w, errorStatus(err), err.Error())
			return
		}
		logRequest(r, http.StatusOK, time.Since(start), nil)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.StartResponse{Status: string(res.Status), Message: res.Message})
	})

	// stopServer godoc
	// @Summary Stop the managed llama-server
	// @Produce json
	// @Success 200 {object} types.StartResponse
	// @Failure 500 {object} types.ErrorResponse
	// @Router /server/stop [post]
	r.Post("/server/stop", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if err := svc.StopServer(r.Context()); err != nil {
			logRequest(r, errorStatus(err), time.Since(start), err)
			writeJSONError(w, errorStatus(err), err.Error())
			return
		}
		logRequest(r, http.StatusOK, time.Since(start), nil)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.StartResponse{Status: "stopped"})
	})

	// generate godoc
	// @Summary Generate a completion, optionally streamed as NDJSON
	// @Accept json
	// @Produce json
	// @Param request body types.GenerateRequest true "generation request"
	// @Success 200 {object} types.GenerateResponse
	// @Failure 503 {object} types.ErrorResponse
	// @Failure 504 {object} types.ErrorResponse
	// @Router /generate [post]
	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		if req.Stream {
			w.Header().Set("Content-Type", "application/x-ndjson")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		start := time.Now()
		// Join the daemon base context with the request context so shutdown
		// cancels in-flight generations too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Generate(joinedCtx, req, w, flush); err != nil {
			// Client disconnect or shutdown: nothing useful left to write.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			logRequest(r, errorStatus(err), time.Since(start), err)
			writeJSONError(w, errorStatus(err), err.Error())
			return
		}
		logRequest(r, http.StatusOK, time.Since(start), nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Running(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("stopped"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// logRequest emits one structured line per mutating/inference request.
func logRequest(r *http.Request, status int, dur time.Duration, err error) {
	if zlog == nil {
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Int("status", status).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("request")
}
