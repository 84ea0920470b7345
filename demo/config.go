package demo

import (
	"strings"

	"github.com/YuminosukeSato/atomgo/automl"
)

// ModelSet is an ordered set of models. Adding a model twice keeps the first
// position.
type ModelSet struct {
	ids []automl.ModelID
}

// NewModelSet builds a set from ids, dropping duplicates
func NewModelSet(ids ...automl.ModelID) ModelSet {
	var s ModelSet
	for _, id := range ids {
		s = s.With(id)
	}
	return s
}

// With returns a copy of s that also contains id
func (s ModelSet) With(id automl.ModelID) ModelSet {
	if s.Contains(id) {
		return s
	}
	ids := make([]automl.ModelID, len(s.ids), len(s.ids)+1)
	copy(ids, s.ids)
	return ModelSet{ids: append(ids, id)}
}

// Contains reports whether id is in the set
func (s ModelSet) Contains(id automl.ModelID) bool {
	for _, x := range s.ids {
		if x == id {
			return true
		}
	}
	return false
}

// IDs returns the models in insertion order
func (s ModelSet) IDs() []automl.ModelID { return append([]automl.ModelID(nil), s.ids...) }

// Len returns the number of models
func (s ModelSet) Len() int { return len(s.ids) }

// Empty reports whether no model is selected
func (s ModelSet) Empty() bool { return len(s.ids) == 0 }

func (s ModelSet) String() string {
	parts := make([]string, len(s.ids))
	for i, id := range s.ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

// PipelineConfig is the user's selection for one run. It is built once per
// run and passed by value.
type PipelineConfig struct {
	Scale  bool
	Encode bool
	Impute bool
	Models ModelSet
}

// DefaultConfig matches the initial state of the form: encode and impute on,
// Gaussian Naive Bayes and Random Forest selected.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		Encode: true,
		Impute: true,
		Models: NewModelSet(automl.GNB, automl.RF),
	}
}
