package metrics

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// Scorer evaluates predictions with one named metric.
type Scorer struct {
	// Name is the canonical metric name ("f1", "roc_auc", ...).
	Name string
	// NeedsProba is true when Fn expects positive-class probabilities
	// instead of hard labels.
	NeedsProba bool
	// Fn computes the metric; larger is better for every registered scorer.
	Fn func(yTrue, yPred *mat.VecDense) (float64, error)
}

// Score applies the scorer, picking labels or probabilities as required.
func (s Scorer) Score(yTrue, labels, proba *mat.VecDense) (float64, error) {
	if s.NeedsProba {
		return s.Fn(yTrue, proba)
	}
	return s.Fn(yTrue, labels)
}

var scorers = map[string]Scorer{
	"accuracy":          {Name: "accuracy", Fn: Accuracy},
	"average_precision": {Name: "average_precision", NeedsProba: true, Fn: AveragePrecision},
	"balanced_accuracy": {Name: "balanced_accuracy", Fn: BalancedAccuracy},
	"f1":                {Name: "f1", Fn: F1Score},
	"jaccard":           {Name: "jaccard", Fn: Jaccard},
	"mcc":               {Name: "mcc", Fn: MatthewsCorrCoef},
	"precision":         {Name: "precision", Fn: Precision},
	"recall":            {Name: "recall", Fn: Recall},
	"roc_auc":           {Name: "roc_auc", NeedsProba: true, Fn: AUC},
}

var aliases = map[string]string{
	"auc":               "roc_auc",
	"ap":                "average_precision",
	"ba":                "balanced_accuracy",
	"f1_score":          "f1",
	"matthews_corrcoef": "mcc",
}

// GetScorer looks up a scorer by name or common alias, case-insensitively.
func GetScorer(name string) (Scorer, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	s, ok := scorers[key]
	if !ok {
		return Scorer{}, errors.NewValidationError("metric", "unknown metric", name)
	}
	return s, nil
}

// BinaryScorers returns every registered scorer sorted by name. This is the
// column set of an evaluation table.
func BinaryScorers() []Scorer {
	out := make([]Scorer, 0, len(scorers))
	for _, s := range scorers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
