package demo

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/atomgo/automl"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return NewController(WithLogger(logger), WithNEstimators(10))
}

func TestValidateConfig(t *testing.T) {
	models := NewModelSet(automl.GNB)
	tests := []struct {
		name    string
		cfg     PipelineConfig
		wantErr error
	}{
		{"nothing", PipelineConfig{Models: models}, errors.ErrNoCleaningStep},
		{"scale only", PipelineConfig{Scale: true, Models: models}, errors.ErrNoCleaningStep},
		{"no cleaning checked before models", PipelineConfig{Scale: true}, errors.ErrNoCleaningStep},
		{"encode", PipelineConfig{Encode: true, Models: models}, nil},
		{"impute", PipelineConfig{Impute: true, Models: models}, nil},
		{"all", PipelineConfig{Scale: true, Encode: true, Impute: true, Models: models}, nil},
		{"no models", PipelineConfig{Encode: true}, errors.ErrNoModels},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLoadDataset(t *testing.T) {
	ds, err := LoadDataset(true, nil)
	require.NoError(t, err)
	assert.Greater(t, ds.NRows(), 0)
	assert.Equal(t, "RainTomorrow", ds.Target().Name)

	ds, err = LoadDataset(false, nil)
	assert.Nil(t, ds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoUpload))
	var dle *errors.DataLoadError
	assert.True(t, errors.As(err, &dle))

	ds, err = LoadDataset(false, &Upload{Filename: "d.csv", Body: strings.NewReader("a,b\n1,x\n2,y\n")})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NRows())

	_, err = LoadDataset(false, &Upload{Filename: "d.csv", Body: strings.NewReader("")})
	require.Error(t, err)
	assert.True(t, errors.As(err, &dle))
}

func TestModelSet(t *testing.T) {
	s := NewModelSet(automl.RF, automl.GNB, automl.RF)
	assert.Equal(t, []automl.ModelID{automl.RF, automl.GNB}, s.IDs())
	assert.Equal(t, "rf,gnb", s.String())
	assert.True(t, s.Contains(automl.GNB))
	assert.False(t, s.Contains(automl.ET))

	s2 := s.With(automl.ET)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, s2.Len())
	assert.True(t, ModelSet{}.Empty())
}

func TestOnRunClicked_NoCleaningStepStopsEarly(t *testing.T) {
	c := newTestController(t)
	var progress []string
	cfg := PipelineConfig{Models: NewModelSet(automl.GNB)}

	// a nil dataset would fail any stage, so reaching one would surface a different error
	res, err := c.OnRunClicked(context.Background(), cfg, nil, func(msg string) { progress = append(progress, msg) })
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoCleaningStep))
	assert.Empty(t, progress)
}

func TestOnRunClicked_RandomForest(t *testing.T) {
	c := newTestController(t)
	ds, err := LoadDataset(true, nil)
	require.NoError(t, err)

	var progress []string
	cfg := PipelineConfig{Encode: true, Impute: true, Models: NewModelSet(automl.RF)}
	res, err := c.OnRunClicked(context.Background(), cfg, ds, func(msg string) { progress = append(progress, msg) })
	require.NoError(t, err)

	want := []string{MsgInit, MsgEncode, MsgImpute, MsgFit, MsgEvaluate, MsgPlot}
	assert.Equal(t, want, progress)
	assert.Equal(t, want, res.Progress)

	f1, ok := res.Metrics.Get(automl.RF, "f1")
	require.True(t, ok)
	assert.Equal(t, res.Winner.Score, f1)
	assert.Equal(t, automl.RF, res.Winner.ID)
	assert.True(t, bytes.HasPrefix(res.ROC, []byte("\x89PNG")))
	assert.True(t, bytes.HasPrefix(res.PRC, []byte("\x89PNG")))
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Branch, 3)
	assert.Empty(t, res.Failed)
}

func TestRunPipeline_Deterministic(t *testing.T) {
	c := newTestController(t)
	ds, err := LoadDataset(true, nil)
	require.NoError(t, err)
	cfg := PipelineConfig{Scale: true, Encode: true, Impute: true, Models: NewModelSet(automl.GNB, automl.ET)}

	a, err := c.RunPipeline(context.Background(), ds, cfg, nil)
	require.NoError(t, err)
	b, err := c.RunPipeline(context.Background(), ds, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Metrics, b.Metrics)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, MsgScale, a.Progress[1])
}

func TestRunPipeline_StageErrors(t *testing.T) {
	c := newTestController(t)
	ds, err := LoadDataset(true, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		cfg   PipelineConfig
		stage string
	}{
		// categorical columns reach the models
		{"impute without encode", PipelineConfig{Impute: true, Models: NewModelSet(automl.GNB)}, StageFit},
		{"no models", PipelineConfig{Encode: true, Impute: true}, StageFit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.RunPipeline(context.Background(), ds, tt.cfg, nil)
			require.Error(t, err)
			var pe *errors.PipelineError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.stage, pe.Stage)
		})
	}
}

func TestRunPipeline_Cancelled(t *testing.T) {
	c := newTestController(t)
	ds, err := LoadDataset(true, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.RunPipeline(ctx, ds, DefaultConfig(), nil)
	require.Error(t, err)
	var pe *errors.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, StageInit, pe.Stage)
	assert.True(t, errors.Is(err, context.Canceled))
}
