package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

func TestTestLogger_Levels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", ErrorCodeKey, ErrorEmptyData)
	testLogger.Error("error message", fmt.Errorf("boom"), StageKey, "fit")

	require.NotEmpty(t, buffer.String())
	assert.Equal(t, []string{"debug message", "info message", "warning message", "error message"}, testLogger.Messages())
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	// JSON decoding turns numbers into float64.
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(StageKey, "fit"))
}

func TestTestLogger_LevelFiltering(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelWarn)

	testLogger.Debug("hidden debug")
	testLogger.Info("hidden info")
	testLogger.Warn("visible warn")

	assert.Equal(t, []string{"visible warn"}, testLogger.Messages())
	assert.False(t, testLogger.Enabled(context.Background(), LevelInfo))
	assert.True(t, testLogger.Enabled(context.Background(), LevelError))
}

func TestTestLogger_WithSharesBuffer(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)
	child := testLogger.With(ModelNameKey, "GaussianNB", RunIDKey, "run-1")

	child.Info("fitted", SamplesKey, 10)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "GaussianNB"))
	assert.True(t, testLogger.ContainsField(RunIDKey, "run-1"))
	assert.True(t, testLogger.ContainsField(SamplesKey, 10.0))
}

func TestTestLogger_ConcurrentWrites(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			testLogger.With(IterationKey, i).Info("tick")
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestSlogLogger_ErrorAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupLogger(Options{Level: "debug", Format: "json", Writer: &buf})
	require.NoError(t, err)

	logger.Error("pipeline failed", errors.New("boom"), StageKey, "impute")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "pipeline failed", entry["message"])
	assert.Equal(t, "ERROR", entry["severity"])
	assert.Equal(t, "boom", entry[ErrAttrKey])
	assert.Equal(t, "impute", entry[StageKey])
	assert.NotEmpty(t, entry[StacktraceAttrKey])
}

func TestZerologLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := SetupLogger(Options{Level: "info", Format: "console", Writer: &buf})
	require.NoError(t, err)

	logger.Debug("not shown")
	logger.With(ComponentKey, "cli").Info("Fitting the models...", ModelIDKey, "gnb")

	out := buf.String()
	assert.NotContains(t, out, "not shown")
	assert.Contains(t, out, "Fitting the models...")
	assert.Contains(t, out, "gnb")
	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
}

func TestSetupLogger_RoutesWarnings(t *testing.T) {
	var buf bytes.Buffer
	_, err := SetupLogger(Options{Level: "warn", Format: "json", Writer: &buf})
	require.NoError(t, err)

	errors.Warn(errors.NewUndefinedMetricWarning("precision", "no predicted samples", 0))

	assert.True(t, strings.Contains(buf.String(), "UndefinedMetricWarning"))
}

func TestSetupLogger_Invalid(t *testing.T) {
	_, err := SetupLogger(Options{Format: "xml"})
	assert.Error(t, err)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestGetLoggerWithName(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	testLogger, _ := NewTestLogger(LevelInfo)
	SetLogger(testLogger)
	GetLoggerWithName("automl").Info("hello")

	assert.True(t, testLogger.ContainsField(ComponentKey, "automl"))
	assert.Same(t, testLogger, OrDefault(testLogger, "x"))
}
