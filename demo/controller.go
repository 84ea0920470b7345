// Package demo is the controller behind the web page and the CLI: it loads a
// dataset, validates the user's pipeline selection and runs the selected
// cleaning steps and models through the automl package.
//
// A run is a straight line: scale, encode, impute, fit, evaluate, plot. Any
// failure aborts the run with a PipelineError naming the stage.
package demo

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/atomgo/automl"
	"github.com/YuminosukeSato/atomgo/dataset"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// Fixed parameters of a run
const (
	EncodeStrategy = "LeaveOneOut"
	MaxOneHot      = 10
	StratNum       = "median"
	StratCat       = "most_frequent"
	FitMetric      = "f1"

	ROCTitle = "ROC curve"
	PRCTitle = "PR curve"
)

// Progress messages, emitted in this order (skipped steps are not announced)
const (
	MsgInit     = "Initializing atom..."
	MsgScale    = "Scaling the data..."
	MsgEncode   = "Encoding the categorical features..."
	MsgImpute   = "Imputing the missing values..."
	MsgFit      = "Fitting the models..."
	MsgEvaluate = "Evaluating the models..."
	MsgPlot     = "Drawing the plots..."
)

// Pipeline stage names used in PipelineError
const (
	StageInit     = "init"
	StageScale    = "scale"
	StageEncode   = "encode"
	StageImpute   = "impute"
	StageFit      = "fit"
	StageEvaluate = "evaluate"
	StagePlot     = "plot"
)

// ProgressFunc receives progress text between stages
type ProgressFunc func(msg string)

// Upload is a user supplied file
type Upload struct {
	Filename string
	Body     io.Reader
}

// LoadDataset returns the bundled dataset when useBuiltin is set, otherwise
// it parses upload. A missing upload yields a DataLoadError wrapping
// ErrNoUpload.
func LoadDataset(useBuiltin bool, upload *Upload) (*dataset.Dataset, error) {
	if useBuiltin {
		return dataset.Builtin()
	}
	if upload == nil || upload.Body == nil {
		return nil, errors.NewDataLoadError("upload", errors.ErrNoUpload)
	}
	return dataset.Parse(upload.Filename, upload.Body)
}

// ValidateConfig rejects a selection with neither encode nor impute, whatever
// the scale setting, and then a selection without models.
func ValidateConfig(cfg PipelineConfig) error {
	if !cfg.Encode && !cfg.Impute {
		return errors.NewConfigError(errors.NoCleaningStep)
	}
	if cfg.Models.Empty() {
		return errors.NewConfigError(errors.NoModels)
	}
	return nil
}

// Winner is the best model of a run by the fit metric
type Winner struct {
	ID    automl.ModelID
	Model string
	Score float64
}

// RunResult is everything a run produces. Metrics are passed through from
// the evaluation unmodified.
type RunResult struct {
	RunID    string
	Config   PipelineConfig
	Metric   string
	Metrics  automl.Table
	Winner   Winner
	ROC      []byte // PNG
	PRC      []byte // PNG
	Branch   []string
	Failed   map[automl.ModelID]string
	Progress []string
	Duration time.Duration
}

// Controller runs pipelines. It holds only settings, so one Controller can
// serve concurrent runs.
type Controller struct {
	logger      log.Logger
	randomState int64
	testSize    float64
	nEstimators int
	nJobs       int
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(l log.Logger) Option { return func(c *Controller) { c.logger = l } }

// WithRandomState sets the seed of every run
func WithRandomState(seed int64) Option { return func(c *Controller) { c.randomState = seed } }

// WithTestSize sets the held out fraction
func WithTestSize(size float64) Option { return func(c *Controller) { c.testSize = size } }

// WithNEstimators overrides the number of trees or boosting rounds
func WithNEstimators(n int) Option { return func(c *Controller) { c.nEstimators = n } }

// WithNJobs sets the forest worker count
func WithNJobs(n int) Option { return func(c *Controller) { c.nJobs = n } }

// NewController creates a Controller with seed 1 and a 0.2 test split
func NewController(opts ...Option) *Controller {
	c := &Controller{
		randomState: automl.DefaultRandomState,
		testSize:    automl.DefaultTestSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrDefault(c.logger, "demo")
	return c
}

// OnRunClicked handles the Run trigger: it validates cfg and then runs the
// pipeline. A validation failure returns before any progress text.
func (c *Controller) OnRunClicked(ctx context.Context, cfg PipelineConfig, ds *dataset.Dataset, progress ProgressFunc) (*RunResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		c.logger.Warn("Rejected pipeline config", "error", err)
		return nil, err
	}
	if ds == nil {
		return nil, errors.NewDataLoadError("upload", errors.ErrNoUpload)
	}
	return c.RunPipeline(ctx, ds, cfg, progress)
}

// RunPipeline runs the selected steps in fixed order on ds.
func (c *Controller) RunPipeline(ctx context.Context, ds *dataset.Dataset, cfg PipelineConfig, progress ProgressFunc) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{
		RunID:  uuid.NewString(),
		Config: cfg,
		Metric: FitMetric,
		Failed: make(map[automl.ModelID]string),
	}
	logger := c.logger.With(log.RunIDKey, res.RunID)
	emit := func(msg string) {
		res.Progress = append(res.Progress, msg)
		logger.Debug(msg)
		if progress != nil {
			progress(msg)
		}
	}
	step := func(stage string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return errors.NewPipelineError(stage, err)
		}
		if err := errors.SafeExecute(stage, fn); err != nil {
			logger.Error("Pipeline stage failed", log.StageKey, stage, "error", err)
			return errors.NewPipelineError(stage, err)
		}
		return nil
	}

	logger.Info("Starting run",
		log.SourceKey, ds.Name(),
		"scale", cfg.Scale,
		"encode", cfg.Encode,
		"impute", cfg.Impute,
		"models", cfg.Models.String(),
	)

	var clf *automl.Classifier
	emit(MsgInit)
	if err := step(StageInit, func() (err error) {
		clf, err = automl.NewClassifier(ds,
			automl.WithRandomState(c.randomState),
			automl.WithTestSize(c.testSize),
			automl.WithNEstimators(c.nEstimators),
			automl.WithNJobs(c.nJobs),
			automl.WithLogger(logger),
		)
		return err
	}); err != nil {
		return nil, err
	}

	if cfg.Scale {
		emit(MsgScale)
		if err := step(StageScale, func() error { return clf.Scale(automl.ScaleOptions{}) }); err != nil {
			return nil, err
		}
	}
	if cfg.Encode {
		emit(MsgEncode)
		if err := step(StageEncode, func() error {
			return clf.Encode(automl.EncodeOptions{Strategy: EncodeStrategy, MaxOneHot: MaxOneHot})
		}); err != nil {
			return nil, err
		}
	}
	if cfg.Impute {
		emit(MsgImpute)
		if err := step(StageImpute, func() error {
			return clf.Impute(automl.ImputeOptions{StratNum: StratNum, StratCat: StratCat})
		}); err != nil {
			return nil, err
		}
	}

	emit(MsgFit)
	if err := step(StageFit, func() error { return clf.Run(ctx, cfg.Models.IDs(), FitMetric) }); err != nil {
		return nil, err
	}
	for _, f := range clf.Failed() {
		res.Failed[f.ID] = f.Err.Error()
	}

	emit(MsgEvaluate)
	if err := step(StageEvaluate, func() (err error) {
		if res.Metrics, err = clf.Evaluate(); err != nil {
			return err
		}
		w, err := clf.Winner()
		if err != nil {
			return err
		}
		res.Winner = Winner{ID: w.ID, Model: w.Acronym, Score: w.Score}
		return nil
	}); err != nil {
		return nil, err
	}

	emit(MsgPlot)
	if err := step(StagePlot, func() (err error) {
		if res.ROC, err = clf.PlotROC(ROCTitle); err != nil {
			return err
		}
		res.PRC, err = clf.PlotPRC(PRCTitle)
		return err
	}); err != nil {
		return nil, err
	}

	res.Branch = clf.Branch()
	res.Duration = time.Since(start)
	logger.Info("Finished run",
		"winner", res.Winner.Model,
		log.MetricKey, FitMetric,
		log.ScoreKey, res.Winner.Score,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}
