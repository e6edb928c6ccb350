// Package learner drives an EaseNet through the incremental task lifecycle:
// a task is begun (the head grows), trained by the caller, ended (its
// adapters are committed) and optionally given class prototypes.
//
// A Learner is not safe for concurrent use; callers serialise access.
package learner

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"incnet/internal/backbone"
	"incnet/internal/config"
	"incnet/internal/inc"
	"incnet/internal/nn"
)

var logger = zerolog.Nop()

// SetLogger installs a structured logger for task lifecycle messages.
func SetLogger(l zerolog.Logger) { logger = l }

const protoEps = 1e-12

type options struct {
	pub        EventPublisher
	pretrained bool
	bbOpts     []backbone.Option
}

// Option customises New.
type Option func(*options)

// WithPublisher routes lifecycle events to p.
func WithPublisher(p EventPublisher) Option { return func(o *options) { o.pub = p } }

// WithPretrained requests pretrained backbone weights.
func WithPretrained(b bool) Option { return func(o *options) { o.pretrained = b } }

// WithBackboneOptions forwards options to the backbone selector.
func WithBackboneOptions(opts ...backbone.Option) Option {
	return func(o *options) { o.bbOpts = append(o.bbOpts, opts...) }
}

// Learner owns an EaseNet and the bookkeeping around its tasks.
type Learner struct {
	cfg          config.Config
	net          *inc.EaseNet
	pub          EventPublisher
	knownClasses int
	taskSizes    []int
	open         bool
}

// New validates cfg, builds the adapter network and returns a learner with
// no task registered. When cfg.WeightsDir is set the directory serves as the
// pretrained weight catalog.
func New(cfg config.Config, opts ...Option) (*Learner, error) {
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("learner: %w", err)
	}
	o := options{pub: noopPublisher{}}
	if cfg.WeightsDir != "" {
		cat, err := backbone.NewDirCatalog(cfg.WeightsDir)
		if err != nil {
			return nil, fmt.Errorf("learner: %w", err)
		}
		o.bbOpts = append(o.bbOpts, backbone.WithCatalog(cat))
	}
	for _, opt := range opts {
		opt(&o)
	}
	net, err := inc.NewEaseNet(cfg, o.pretrained, o.bbOpts...)
	if err != nil {
		return nil, err
	}
	if _, ok := net.Backbone().(backbone.Adaptive); !ok {
		return nil, fmt.Errorf("learner: backbone %q: %w", cfg.BackboneType, inc.ErrNotAdaptive)
	}
	logger.Info().
		Str("model", cfg.ModelName).
		Str("backbone", cfg.BackboneType).
		Int("init_cls", cfg.InitCls).
		Int("increment", cfg.Increment).
		Bool("use_init_ptm", cfg.UseInitPTM).
		Msg("learner ready")
	return &Learner{cfg: cfg, net: net, pub: o.pub}, nil
}

func (l *Learner) Config() config.Config { return l.cfg }
func (l *Learner) Net() *inc.EaseNet     { return l.net }
func (l *Learner) KnownClasses() int     { return l.knownClasses }
func (l *Learner) TaskOpen() bool        { return l.open }

// NextTaskSize is the number of new classes the next task must bring.
func (l *Learner) NextTaskSize() int {
	if len(l.taskSizes) == 0 {
		return l.cfg.InitCls
	}
	return l.cfg.Increment
}

func (l *Learner) adaptive() backbone.Adaptive {
	return l.net.Backbone().(backbone.Adaptive)
}

func (l *Learner) publish(name string, fields map[string]any) {
	l.pub.Publish(Event{ID: uuid.NewString(), Name: name, Task: l.net.CurTask(), Fields: fields})
}

// BeginTask registers a task with newClasses classes and grows the head.
// Zero selects the configured size; any other count must match it because
// the reweighted scoring derives class ranges from init_cls and increment.
func (l *Learner) BeginTask(newClasses int) error {
	if l.open {
		return ErrTaskInProgress(l.net.CurTask())
	}
	want := l.NextTaskSize()
	if newClasses == 0 {
		newClasses = want
	}
	if newClasses != want {
		return ErrInvalidInput("begin task: got %d new classes, expected %d", newClasses, want)
	}
	total := l.knownClasses + newClasses
	if err := l.net.UpdateHead(total); err != nil {
		return fmt.Errorf("begin task: %w", err)
	}
	l.knownClasses = total
	l.taskSizes = append(l.taskSizes, newClasses)
	l.open = true
	l.net.SetTraining(true)

	logger.Info().
		Int("task", l.net.CurTask()).
		Int("new_classes", newClasses).
		Int("known_classes", total).
		Int("feature_dim", l.net.FeatureDim()).
		Msg("task begun")
	l.publish(EventTaskBegun, map[string]any{
		"new_classes":   newClasses,
		"known_classes": total,
		"feature_dim":   l.net.FeatureDim(),
	})
	return nil
}

// EndTask freezes everything trained for the open task, commits its
// adapters and switches the network to eval mode. Only the fresh adapter
// set created by the commit remains trainable.
func (l *Learner) EndTask() error {
	if !l.open {
		return ErrNoOpenTask("end task")
	}
	l.net.Freeze()
	ad := l.adaptive()
	ad.AddAdapterToList()
	l.net.SetTraining(false)
	l.open = false

	logger.Info().
		Int("task", l.net.CurTask()).
		Int("adapter_sets", ad.NumAdapterSets()).
		Msg("task ended")
	l.publish(EventTaskEnded, map[string]any{"adapter_sets": ad.NumAdapterSets()})
	return nil
}

// blockOffset is the first head column of the newest task's feature block.
func (l *Learner) blockOffset() int {
	t := l.net.CurTask()
	if l.cfg.UseInitPTM {
		t++
	}
	return t * l.net.OutDim()
}

// NewestFeatures returns the features of x under the most recently
// committed adapter set, one block wide.
func (l *Learner) NewestFeatures(x mat.Matrix) (*mat.Dense, error) {
	ad := l.adaptive()
	if l.net.CurTask() < 0 || ad.NumAdapterSets() != l.net.CurTask()+1 {
		return nil, ErrInvalidInput("newest features: adapters for task %d not committed", l.net.CurTask())
	}
	feats, err := ad.ForwardTask(x, true, l.cfg.UseInitPTM)
	if err != nil {
		return nil, err
	}
	r, c := feats.Dims()
	return feats.Slice(0, r, c-l.net.OutDim(), c).(*mat.Dense), nil
}

// SetPrototypes writes the L2-normalised mean feature of each of the newest
// task's classes into that class's head row, in the newest feature block.
// features holds one block-wide row per label. Classes without samples keep
// their current weights. It returns the number of classes written.
func (l *Learner) SetPrototypes(features *mat.Dense, labels []int) (int, error) {
	if l.net.CurTask() < 0 {
		return 0, ErrNoOpenTask("set prototypes")
	}
	r, c := features.Dims()
	if r != len(labels) {
		return 0, ErrInvalidInput("set prototypes: %d feature rows for %d labels", r, len(labels))
	}
	d := l.net.OutDim()
	if c != d {
		return 0, ErrInvalidInput("set prototypes: feature width %d, expected %d", c, d)
	}
	start := l.knownClasses - l.taskSizes[len(l.taskSizes)-1]
	sums := make(map[int][]float64)
	for i, y := range labels {
		if y < start || y >= l.knownClasses {
			return 0, ErrInvalidInput("set prototypes: label %d outside newest task classes [%d, %d)", y, start, l.knownClasses)
		}
		s, ok := sums[y]
		if !ok {
			s = make([]float64, d)
			sums[y] = s
		}
		floats.Add(s, features.RawRowView(i))
	}

	w := l.net.Head().Weight.Value
	off := l.blockOffset()
	for y, s := range sums {
		norm := floats.Norm(s, 2)
		if norm < protoEps {
			norm = protoEps
		}
		floats.Scale(1/norm, s)
		for j, v := range s {
			w.Set(y, off+j, v)
		}
	}

	logger.Debug().Int("task", l.net.CurTask()).Int("classes", len(sums)).Msg("prototypes set")
	l.publish(EventPrototypesSet, map[string]any{"classes": len(sums)})
	return len(sums), nil
}

// Evaluate returns the top-1 accuracy of test-mode predictions on x.
func (l *Learner) Evaluate(x mat.Matrix, labels []int) (float64, error) {
	r, _ := x.Dims()
	if r == 0 || r != len(labels) {
		return 0, ErrInvalidInput("evaluate: %d rows for %d labels", r, len(labels))
	}
	out, err := l.net.Forward(x, true)
	if err != nil {
		return 0, fmt.Errorf("evaluate: %w", err)
	}
	correct := 0
	for i, y := range labels {
		if floats.MaxIdx(out.Logits.RawRowView(i)) == y {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// Snapshot is a point-in-time view of the learner's state.
type Snapshot struct {
	Model           string `json:"model"`
	Backbone        string `json:"backbone"`
	Device          string `json:"device"`
	Task            int    `json:"task"`
	TaskOpen        bool   `json:"task_open"`
	KnownClasses    int    `json:"known_classes"`
	TaskSizes       []int  `json:"task_sizes"`
	NextTaskSize    int    `json:"next_task_size"`
	FeatureDim      int    `json:"feature_dim"`
	HeadClasses     int    `json:"head_classes"`
	ProxyClasses    int    `json:"proxy_classes"`
	AdapterSets     int    `json:"adapter_sets"`
	TotalParams     int    `json:"total_params"`
	TrainableParams int    `json:"trainable_params"`
}

func (l *Learner) Snapshot() Snapshot {
	s := Snapshot{
		Model:        l.cfg.ModelName,
		Backbone:     l.cfg.BackboneType,
		Device:       l.net.Device(),
		Task:         l.net.CurTask(),
		TaskOpen:     l.open,
		KnownClasses: l.knownClasses,
		TaskSizes:    append([]int{}, l.taskSizes...),
		NextTaskSize: l.NextTaskSize(),
		FeatureDim:   l.net.FeatureDim(),
		AdapterSets:  l.adaptive().NumAdapterSets(),
	}
	if fc := l.net.Head(); fc != nil {
		s.HeadClasses = fc.OutFeatures
	}
	if p := l.net.ProxyHead(); p != nil {
		s.ProxyClasses = p.OutFeatures
	}
	s.TotalParams, s.TrainableParams = nn.CountParameters(l.net)
	return s
}

// TrainableParams lists every parameter that still requires gradients
// without logging them; see EaseNet.ShowTrainableParams for the logged form.
func (l *Learner) TrainableParams() []nn.ParamCount { return nn.Trainable(l.net) }
