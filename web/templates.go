package web

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/yuin/goldmark"

	"github.com/YuminosukeSato/atomgo/automl"
	"github.com/YuminosukeSato/atomgo/dataset"
	"github.com/YuminosukeSato/atomgo/demo"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

//go:embed templates/index.html templates/intro.md
var templateFS embed.FS

// previewRows is the number of rows shown by "Show raw data"
const previewRows = 5

// FormState mirrors the sidebar and data checkboxes
type FormState struct {
	Scale   bool
	Encode  bool
	Impute  bool
	Builtin bool
	ShowRaw bool
	Models  demo.ModelSet
}

func defaultForm() FormState {
	cfg := demo.DefaultConfig()
	return FormState{Scale: cfg.Scale, Encode: cfg.Encode, Impute: cfg.Impute, Models: cfg.Models}
}

// Config returns the pipeline selection of the form
func (f FormState) Config() demo.PipelineConfig {
	return demo.PipelineConfig{Scale: f.Scale, Encode: f.Encode, Impute: f.Impute, Models: f.Models}
}

// PageData holds everything the page template renders.
type PageData struct {
	Title       string
	Intro       template.HTML
	BuiltinName string
	Form        FormState
	Models      []ModelChoice
	Warning     string
	Error       string
	Preview     *Preview
	Result      *ResultView
}

// ModelChoice is one model checkbox
type ModelChoice struct {
	ID      string
	Name    string
	Checked bool
}

// Preview is the head of the dataset and a per-column summary
type Preview struct {
	Header  []string
	Rows    [][]string
	Columns []dataset.Summary
	NRows   int
}

// ResultView is a RunResult formatted for display
type ResultView struct {
	RunID       string
	Metric      string
	Winner      string
	WinnerScore string
	Columns     []string
	Rows        []RowView
	Failed      map[automl.ModelID]string
	ROC         template.URL
	PRC         template.URL
	Branch      []string
	Progress    []string
	Duration    string
}

// RowView is one line of the metrics table
type RowView struct {
	Model  string
	Values []string
	Winner bool
}

type renderer struct {
	page  *template.Template
	intro template.HTML
}

func newRenderer() (*renderer, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse page template")
	}
	src, err := templateFS.ReadFile("templates/intro.md")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read intro")
	}
	intro, err := markdownToHTML(src)
	if err != nil {
		return nil, err
	}
	return &renderer{page: page, intro: intro}, nil
}

// markdownToHTML renders the embedded intro. goldmark drops raw HTML by default.
func markdownToHTML(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert(src, &buf); err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}
	return template.HTML(buf.String()), nil
}

func (r *renderer) render(w io.Writer, data PageData) error {
	data.Title = "ATOM-ML demo"
	data.Intro = r.intro
	data.BuiltinName = dataset.BuiltinName
	for _, spec := range automl.Models() {
		data.Models = append(data.Models, ModelChoice{
			ID:      string(spec.ID),
			Name:    spec.Name,
			Checked: data.Form.Models.Contains(spec.ID),
		})
	}
	if err := r.page.Execute(w, data); err != nil {
		return errors.Wrap(err, "failed to render page")
	}
	return nil
}

func newPreview(ds *dataset.Dataset) *Preview {
	return &Preview{
		Header:  ds.ColumnNames(),
		Rows:    ds.Head(previewRows),
		Columns: ds.Describe(),
		NRows:   ds.NRows(),
	}
}

func newResultView(res *demo.RunResult) *ResultView {
	v := &ResultView{
		RunID:       res.RunID,
		Metric:      res.Metric,
		Winner:      res.Winner.Model,
		WinnerScore: formatScore(res.Winner.Score),
		Columns:     res.Metrics.Columns,
		Failed:      res.Failed,
		ROC:         pngDataURL(res.ROC),
		PRC:         pngDataURL(res.PRC),
		Branch:      res.Branch,
		Progress:    res.Progress,
		Duration:    res.Duration.Round(time.Millisecond).String(),
	}
	for _, row := range res.Metrics.Rows {
		rv := RowView{Model: row.Model, Winner: row.ID == res.Winner.ID}
		for _, x := range row.Values {
			rv.Values = append(rv.Values, formatScore(x))
		}
		v.Rows = append(v.Rows, rv)
	}
	return v
}

func formatScore(x float64) string { return strconv.FormatFloat(x, 'f', 3, 64) }

func pngDataURL(img []byte) template.URL {
	return template.URL(fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(img)))
}
