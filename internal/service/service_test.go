package service

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"incnet/internal/backbone"
	"incnet/internal/config"
	"incnet/internal/httpapi"
	"incnet/internal/inc"
	"incnet/internal/learner"
)

func tinyArch() backbone.Arch {
	return backbone.Arch{ImgSize: 8, PatchSize: 4, InChans: 1, EmbedDim: 8, Depth: 1, NumHeads: 2, MLPRatio: 2}
}

func newTestService(t *testing.T, cat *backbone.DirCatalog) (*Service, *prometheus.Registry) {
	t.Helper()
	cfg := config.Config{ModelName: "ease", BackboneType: "vit_base_patch16_224_ease", InitCls: 4, Increment: 2, FFNNum: 2}
	l, err := learner.New(cfg, learner.WithBackboneOptions(backbone.WithArch(tinyArch())))
	if err != nil {
		t.Fatalf("learner: %v", err)
	}
	reg := prometheus.NewRegistry()
	s, err := NewWithConfig(ServiceConfig{Learner: l, Catalog: cat, Registerer: reg})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return s, reg
}

func TestNewRequiresLearner(t *testing.T) {
	if _, err := NewWithConfig(ServiceConfig{}); err == nil {
		t.Fatalf("expected error without learner")
	}
}

func TestTaskFlowUpdatesStatusAndMetrics(t *testing.T) {
	s, _ := newTestService(t, nil)
	if !s.Ready() {
		t.Fatalf("service should be ready")
	}
	if got := testutil.ToFloat64(s.metrics.task); got != -1 {
		t.Fatalf("initial task gauge %v", got)
	}

	st, err := s.BeginTask(0)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if st.Task != 0 || !st.TaskOpen || st.HeadClasses != 4 || st.TasksTotal != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if _, err := s.BeginTask(0); !learner.IsTaskInProgress(err) {
		t.Fatalf("expected task in progress, got %v", err)
	}
	if s.Status().LastError == "" {
		t.Fatalf("rejected call should record last error")
	}
	if got := testutil.ToFloat64(s.metrics.taskOpen); got != 1 {
		t.Fatalf("task_open gauge %v", got)
	}

	st, err = s.EndTask()
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if st.TaskOpen || st.AdapterSets != 1 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if _, err := s.BeginTask(2); err != nil {
		t.Fatalf("begin second: %v", err)
	}

	if got := testutil.ToFloat64(s.metrics.tasksTotal); got != 2 {
		t.Fatalf("tasks_total %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.featureDim); got != 16 {
		t.Fatalf("feature_dim gauge %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.headClasses); got != 6 {
		t.Fatalf("head_classes gauge %v", got)
	}
}

func TestMetricsRegistered(t *testing.T) {
	_, reg := newTestService(t, nil)
	n, err := testutil.GatherAndCount(reg)
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 6 {
		t.Fatalf("registered %d series, want 6", n)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestParams(t *testing.T) {
	s, _ := newTestService(t, nil)
	before := s.Params()
	if _, err := s.BeginTask(0); err != nil {
		t.Fatalf("begin: %v", err)
	}
	after := s.Params()
	if after.TrainableTotal <= before.TrainableTotal || after.Total <= after.TrainableTotal {
		t.Fatalf("before=%+v after=%+v", before, after)
	}
	sum := 0
	for _, p := range after.Trainable {
		sum += p.Numel
	}
	if sum != after.TrainableTotal {
		t.Fatalf("trainable sum %d != %d", sum, after.TrainableTotal)
	}
}

func TestParamsDoesNotLogPerParameter(t *testing.T) {
	s, _ := newTestService(t, nil)
	var buf bytes.Buffer
	inc.SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { inc.SetLogger(zerolog.Nop()) })
	if got := s.Params(); len(got.Trainable) == 0 {
		t.Fatalf("expected trainable adapters")
	}
	if buf.Len() != 0 {
		t.Fatalf("params request logged: %s", buf.String())
	}
}

func TestDrainFailsReadiness(t *testing.T) {
	s, _ := newTestService(t, nil)
	mux := httpapi.NewMux(s)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("readyz before drain: %d", w.Code)
	}
	s.Drain()
	if s.Ready() {
		t.Fatalf("draining service should not be ready")
	}
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz after drain: %d", w.Code)
	}
}

func TestBackbones(t *testing.T) {
	cat, err := backbone.NewDirCatalog(t.TempDir())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	v, err := backbone.NewViT(tinyArch(), rand.NewSource(1))
	if err != nil {
		t.Fatalf("vit: %v", err)
	}
	if err := cat.Save(backbone.KeyViTB16In21k, v.OutDim(), v); err != nil {
		t.Fatalf("save: %v", err)
	}
	s, _ := newTestService(t, cat)
	resp, err := s.Backbones()
	if err != nil {
		t.Fatalf("backbones: %v", err)
	}
	if resp.WeightsDir != cat.Root() || len(resp.Backbones) != len(backbone.Names()) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	for _, b := range resp.Backbones {
		key, _ := backbone.CheckpointKey(b.Name)
		if b.WeightsAvailable != (key == backbone.KeyViTB16In21k) {
			t.Fatalf("%s: weights available=%v", b.Name, b.WeightsAvailable)
		}
	}
}

func TestListBackbonesMissingRoot(t *testing.T) {
	cat, err := backbone.NewDirCatalog(t.TempDir() + "/absent")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	resp, err := ListBackbones(cat)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, b := range resp.Backbones {
		if b.WeightsAvailable {
			t.Fatalf("%s reported weights in an empty catalog", b.Name)
		}
	}
	if resp, _ := ListBackbones(nil); resp.WeightsDir != "" || len(resp.Backbones) != 6 {
		t.Fatalf("nil catalog: %+v", resp)
	}
}

func TestConcurrentStatus(t *testing.T) {
	s, _ := newTestService(t, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Status()
			_ = s.Params()
		}()
	}
	if _, err := s.BeginTask(0); err != nil {
		t.Fatalf("begin: %v", err)
	}
	wg.Wait()
}
