package plot

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

func TestROCRendersPNG(t *testing.T) {
	curves := []Curve{
		{Label: LegendLabel("GNB", "AUC", 0.81), X: []float64{0, 0.2, 1}, Y: []float64{0, 0.7, 1}},
		{Label: LegendLabel("RF", "AUC", 0.9), X: []float64{0, 0.1, 1}, Y: []float64{0, 0.8, 1}},
	}
	data, err := ROC("ROC curve", curves, Options{Width: 3 * vg.Inch, Height: 2 * vg.Inch})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	b := img.Bounds()
	assert.Greater(t, b.Dx(), 0)
	assert.Greater(t, b.Dx(), b.Dy())
}

func TestPRCRendersPNG(t *testing.T) {
	curves := []Curve{
		{Label: "GNB (AP=0.500)", X: []float64{0, 0.5, 1}, Y: []float64{1, 0.6, 0.5}},
	}
	data, err := PRC("Precision-recall curve", curves, Options{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestCurveValidation(t *testing.T) {
	tests := []struct {
		name   string
		curves []Curve
	}{
		{"no curves", nil},
		{"length mismatch", []Curve{{Label: "a", X: []float64{0, 1}, Y: []float64{0}}}},
		{"empty curve", []Curve{{Label: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ROC("t", tt.curves, Options{})
			assert.Error(t, err)
			_, err = PRC("t", tt.curves, Options{})
			assert.Error(t, err)
		})
	}
}

func TestLegendLabel(t *testing.T) {
	assert.Equal(t, "RF (AUC=0.912)", LegendLabel("RF", "AUC", 0.91234))
}
