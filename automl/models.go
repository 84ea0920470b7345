package automl

import (
	"strings"

	"github.com/YuminosukeSato/atomgo/core/model"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
	"github.com/YuminosukeSato/atomgo/sklearn/ensemble"
	"github.com/YuminosukeSato/atomgo/sklearn/lightgbm"
	"github.com/YuminosukeSato/atomgo/sklearn/linear_model"
	"github.com/YuminosukeSato/atomgo/sklearn/naive_bayes"
	"github.com/YuminosukeSato/atomgo/sklearn/xgboost"
)

// ModelID identifies a model in the registry
type ModelID string

// Registered models
const (
	GNB ModelID = "gnb"
	LR  ModelID = "lr"
	RF  ModelID = "rf"
	ET  ModelID = "et"
	XGB ModelID = "xgb"
	LGB ModelID = "lgb"
)

// ModelOptions are the experiment-wide settings passed to every model
type ModelOptions struct {
	RandomState int64
	NJobs       int
	NEstimators int // 0 keeps the model default
	Logger      log.Logger
}

// ModelSpec describes a registered model
type ModelSpec struct {
	ID       ModelID
	Acronym  string
	Name     string
	Ensemble bool
	// HandlesMissing is true when the model accepts NaN features
	HandlesMissing bool
	New            func(ModelOptions) model.Classifier
}

var registry = []ModelSpec{
	{
		ID: GNB, Acronym: "GNB", Name: "Gaussian Naive Bayes",
		New: func(ModelOptions) model.Classifier {
			return naive_bayes.NewGaussianNB()
		},
	},
	{
		ID: LR, Acronym: "LR", Name: "Logistic Regression",
		New: func(o ModelOptions) model.Classifier {
			return linear_model.NewLogisticRegression(
				linear_model.WithLRMaxIter(1000),
				linear_model.WithLRRandomState(o.RandomState),
				linear_model.WithLRLogger(o.Logger),
			)
		},
	},
	{
		ID: RF, Acronym: "RF", Name: "Random Forest", Ensemble: true,
		New: func(o ModelOptions) model.Classifier {
			opts := []ensemble.Option{ensemble.WithRandomState(o.RandomState), ensemble.WithNJobs(o.NJobs)}
			if o.NEstimators > 0 {
				opts = append(opts, ensemble.WithNEstimators(o.NEstimators))
			}
			return ensemble.NewRandomForestClassifier(opts...)
		},
	},
	{
		ID: ET, Acronym: "ET", Name: "Extra-Trees", Ensemble: true,
		New: func(o ModelOptions) model.Classifier {
			opts := []ensemble.Option{ensemble.WithRandomState(o.RandomState), ensemble.WithNJobs(o.NJobs)}
			if o.NEstimators > 0 {
				opts = append(opts, ensemble.WithNEstimators(o.NEstimators))
			}
			return ensemble.NewExtraTreesClassifier(opts...)
		},
	},
	{
		ID: XGB, Acronym: "XGB", Name: "XGBoost", Ensemble: true, HandlesMissing: true,
		New: func(o ModelOptions) model.Classifier {
			opts := []xgboost.Option{xgboost.WithRandomState(o.RandomState), xgboost.WithLogger(o.Logger)}
			if o.NEstimators > 0 {
				opts = append(opts, xgboost.WithNEstimators(o.NEstimators))
			}
			return xgboost.NewXGBClassifier(opts...)
		},
	},
	{
		ID: LGB, Acronym: "LGB", Name: "LightGBM", Ensemble: true, HandlesMissing: true,
		New: func(o ModelOptions) model.Classifier {
			opts := []lightgbm.Option{lightgbm.WithRandomState(o.RandomState), lightgbm.WithLogger(o.Logger)}
			if o.NEstimators > 0 {
				opts = append(opts, lightgbm.WithNEstimators(o.NEstimators))
			}
			return lightgbm.NewLGBMClassifier(opts...)
		},
	},
}

// Models returns every registered model in display order
func Models() []ModelSpec {
	return append([]ModelSpec(nil), registry...)
}

// Spec returns the registry entry of id
func (id ModelID) Spec() (ModelSpec, bool) {
	for _, s := range registry {
		if s.ID == id {
			return s, true
		}
	}
	return ModelSpec{}, false
}

// String returns the model's acronym, or the raw id when unregistered
func (id ModelID) String() string {
	if s, ok := id.Spec(); ok {
		return s.Acronym
	}
	return string(id)
}

// ParseModelID accepts an id or an acronym in any case ("rf", "RF")
func ParseModelID(s string) (ModelID, error) {
	id := ModelID(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := id.Spec(); !ok {
		return "", errors.NewValidationError("model", "unknown model", s)
	}
	return id, nil
}

// ParseModelIDs parses a comma separated list such as "gnb,rf"
func ParseModelIDs(list string) ([]ModelID, error) {
	var ids []ModelID
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := ParseModelID(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
