// Standard attribute keys for atomgo log records.
//
// Keys follow a dotted naming convention ("model.name", "data.samples") so
// that records from a pipeline run can be filtered by category.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator.
	// Examples: "GaussianNB", "RandomForestClassifier", "LGBMClassifier"
	ModelNameKey = "model.name"

	// ModelIDKey is the short model identifier used by the pipeline ("gnb", "rf").
	ModelIDKey = "model.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	// Examples: "automl", "preprocessing", "web"
	ComponentKey = "ml.component"
)

// Pipeline Context
const (
	// RunIDKey identifies one pipeline run end to end.
	RunIDKey = "run.id"

	// StageKey names the pipeline stage ("scale", "encode", "impute", "fit", "evaluate", "plot").
	StageKey = "pipeline.stage"

	// ColumnKey names a dataset column.
	ColumnKey = "data.column"

	// StrategyKey records an encoding or imputation strategy.
	StrategyKey = "pipeline.strategy"
)

// Data Shape
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// ClassesKey records the number of target classes.
	ClassesKey = "data.classes"

	// SourceKey records where a dataset was loaded from.
	SourceKey = "data.source"
)

// Performance and Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// MetricKey names the metric used to rank models.
	MetricKey = "metrics.name"

	// ScoreKey records a metric value.
	ScoreKey = "metrics.score"

	// IterationKey records the current boosting round.
	IterationKey = "training.iteration"
)

// HTTP
const (
	HTTPMethodKey = "http.method"
	HTTPPathKey   = "http.path"
	HTTPStatusKey = "http.status"
	RequestIDKey  = "http.request_id"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
)
