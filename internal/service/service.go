// Package service serialises access to a learner for the admin API and
// keeps its Prometheus gauges current.
package service

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"incnet/internal/backbone"
	"incnet/internal/learner"
	"incnet/pkg/types"
)

var logger = zerolog.Nop()

// SetLogger installs a structured logger for service events.
func SetLogger(l zerolog.Logger) { logger = l }

// ServiceConfig encapsulates everything Service construction needs.
type ServiceConfig struct {
	Learner *learner.Learner
	// Catalog is optional; without it no backbone reports available weights.
	Catalog *backbone.DirCatalog
	// Registerer receives the learner metrics. Nil skips registration.
	Registerer prometheus.Registerer
}

// Service is safe for concurrent use.
type Service struct {
	mu         sync.RWMutex
	l          *learner.Learner
	cat        *backbone.DirCatalog
	metrics    *Metrics
	startTime  time.Time
	lastErr    string
	tasksTotal uint64
	draining   bool
}

// NewWithConfig constructs a Service and publishes the initial gauges.
func NewWithConfig(cfg ServiceConfig) (*Service, error) {
	if cfg.Learner == nil {
		return nil, errors.New("service: learner is required")
	}
	m, err := NewMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}
	s := &Service{
		l:         cfg.Learner,
		cat:       cfg.Catalog,
		metrics:   m,
		startTime: time.Now(),
	}
	s.observe(s.l.Snapshot())
	return s, nil
}

// Ready reports whether the service takes requests; false once draining.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.draining
}

// Drain marks the service as shutting down so readiness probes fail while
// in-flight requests finish.
func (s *Service) Drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	logger.Info().Msg("service draining")
}

func (s *Service) observe(snap learner.Snapshot) {
	s.metrics.task.Set(float64(snap.Task))
	s.metrics.featureDim.Set(float64(snap.FeatureDim))
	s.metrics.headClasses.Set(float64(snap.HeadClasses))
	s.metrics.adapterSets.Set(float64(snap.AdapterSets))
	if snap.TaskOpen {
		s.metrics.taskOpen.Set(1)
	} else {
		s.metrics.taskOpen.Set(0)
	}
}

// statusLocked builds the status response; the caller holds s.mu.
func (s *Service) statusLocked() types.StatusResponse {
	snap := s.l.Snapshot()
	now := time.Now()
	return types.StatusResponse{
		Model:          snap.Model,
		Backbone:       snap.Backbone,
		Device:         snap.Device,
		Task:           snap.Task,
		TaskOpen:       snap.TaskOpen,
		KnownClasses:   snap.KnownClasses,
		TaskSizes:      snap.TaskSizes,
		NextTaskSize:   snap.NextTaskSize,
		FeatureDim:     snap.FeatureDim,
		HeadClasses:    snap.HeadClasses,
		ProxyClasses:   snap.ProxyClasses,
		AdapterSets:    snap.AdapterSets,
		LastError:      s.lastErr,
		UptimeSeconds:  int64(now.Sub(s.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		TasksTotal:     s.tasksTotal,
	}
}

// Status builds a status response for /status.
func (s *Service) Status() types.StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

// Params lists the trainable parameters and the parameter totals.
func (s *Service) Params() types.ParamsResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.l.Snapshot()
	resp := types.ParamsResponse{Total: snap.TotalParams, TrainableTotal: snap.TrainableParams}
	resp.Trainable = make([]types.Param, 0)
	for _, p := range s.l.TrainableParams() {
		resp.Trainable = append(resp.Trainable, types.Param{Name: p.Name, Numel: p.Numel})
	}
	return resp
}

// Backbones lists the selectable backbones and whether the catalog holds
// weights for each.
func (s *Service) Backbones() (types.BackbonesResponse, error) {
	return ListBackbones(s.cat)
}

// ListBackbones reports every selectable backbone. cat may be nil; a catalog
// root that does not exist yet holds no weights.
func ListBackbones(cat *backbone.DirCatalog) (types.BackbonesResponse, error) {
	var resp types.BackbonesResponse
	have := map[string]bool{}
	if cat != nil {
		resp.WeightsDir = cat.Root()
		list, err := cat.List()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return types.BackbonesResponse{}, err
		}
		for _, m := range list {
			have[m.Name] = true
		}
	}
	for _, name := range backbone.Names() {
		key, _ := backbone.CheckpointKey(name)
		resp.Backbones = append(resp.Backbones, types.Backbone{
			Name:             name,
			Adapters:         strings.HasSuffix(name, "_ease"),
			WeightsAvailable: have[key],
		})
	}
	return resp, nil
}

// BeginTask opens a task with newClasses classes.
func (s *Service) BeginTask(newClasses int) (types.StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.l.BeginTask(newClasses); err != nil {
		s.lastErr = err.Error()
		logger.Warn().Err(err).Int("new_classes", newClasses).Msg("begin task rejected")
		return types.StatusResponse{}, err
	}
	s.tasksTotal++
	s.metrics.tasksTotal.Inc()
	s.observe(s.l.Snapshot())
	return s.statusLocked(), nil
}

// EndTask closes the open task.
func (s *Service) EndTask() (types.StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.l.EndTask(); err != nil {
		s.lastErr = err.Error()
		logger.Warn().Err(err).Msg("end task rejected")
		return types.StatusResponse{}, err
	}
	s.observe(s.l.Snapshot())
	return s.statusLocked(), nil
}
