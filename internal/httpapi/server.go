// Package httpapi exposes the learner's admin surface over HTTP: status,
// parameters, the backbone list and the task lifecycle. It does not score
// inputs.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"incnet/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Ready() bool
	Status() types.StatusResponse
	Params() types.ParamsResponse
	Backbones() (types.BackbonesResponse, error)
	BeginTask(newClasses int) (types.StatusResponse, error)
	EndTask() (types.StatusResponse, error)
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if c := corsMiddleware(); c != nil {
		r.Use(c)
	}
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := handlers{svc: svc}
	r.Get("/status", h.status)
	r.Get("/params", h.params)
	r.Get("/backbones", h.backbones)
	r.Post("/tasks", h.beginTask)
	r.Post("/tasks/end", h.endTask)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("draining"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct{ svc Service }

// status godoc
// @Summary      Learner status
// @Tags         learner
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// params godoc
// @Summary      Trainable parameters
// @Tags         learner
// @Produce      json
// @Success      200  {object}  types.ParamsResponse
// @Router       /params [get]
func (h handlers) params(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Params())
}

// backbones godoc
// @Summary      Selectable backbones
// @Tags         backbones
// @Produce      json
// @Success      200  {object}  types.BackbonesResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /backbones [get]
func (h handlers) backbones(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Backbones()
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// beginTask godoc
// @Summary      Begin a task
// @Description  Registers the next task and grows the classification head.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        body  body      types.BeginTaskRequest  true  "task"
// @Success      201   {object}  types.StatusResponse
// @Failure      400   {object}  types.ErrorResponse
// @Failure      409   {object}  types.ErrorResponse
// @Failure      415   {object}  types.ErrorResponse
// @Router       /tasks [post]
func (h handlers) beginTask(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.BeginTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.NewClasses < 0 {
		writeJSONError(w, http.StatusBadRequest, "new_classes must not be negative")
		return
	}
	st, err := h.svc.BeginTask(req.NewClasses)
	if err != nil {
		h.fail(w, "begin", err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// endTask godoc
// @Summary      End the open task
// @Description  Commits the open task's adapters and freezes what it trained.
// @Tags         tasks
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Failure      409  {object}  types.ErrorResponse
// @Router       /tasks/end [post]
func (h handlers) endTask(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.EndTask()
	if err != nil {
		h.fail(w, "end", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h handlers) fail(w http.ResponseWriter, op string, err error) {
	code := statusFor(err)
	if code == http.StatusConflict {
		IncrementTaskConflict(op)
	}
	if code >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("op", op).Msg("task request failed")
	}
	writeJSONError(w, code, err.Error())
}
