package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/YuminosukeSato/atomgo/automl"
	"github.com/YuminosukeSato/atomgo/demo"
	"github.com/YuminosukeSato/atomgo/pkg/errors"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

// WarnNoCleaningStep is shown in the sidebar when neither encode nor impute is selected
const WarnNoCleaningStep = "Please select more cleaning steps"

// WarnNoModels is shown in the sidebar when no model is selected
const WarnNoModels = "Please select at least one model"

// formMemory is the part of a multipart upload kept in memory
const formMemory = 8 << 20

// handleIndex renders the page in its initial state.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, PageData{Form: defaultForm()})
}

// handleHealth returns a JSON health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRun runs the pipeline from the submitted form and renders the page.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	form, upload, status, err := s.parseForm(r)
	if err != nil {
		s.renderPage(w, r, status, PageData{Form: defaultForm(), Error: err.Error()})
		return
	}
	page := PageData{Form: form}

	ds, err := demo.LoadDataset(form.Builtin, upload)
	switch {
	case errors.Is(err, errors.ErrNoUpload):
		ds = nil
	case err != nil:
		page.Error = err.Error()
		s.renderPage(w, r, http.StatusUnprocessableEntity, page)
		return
	}
	if ds != nil && form.ShowRaw {
		page.Preview = newPreview(ds)
	}

	if err := demo.ValidateConfig(form.Config()); err != nil {
		page.Warning = warningFor(err)
		s.renderPage(w, r, http.StatusOK, page)
		return
	}
	if ds == nil {
		s.renderPage(w, r, http.StatusOK, page)
		return
	}

	res, err := s.ctrl.OnRunClicked(r.Context(), form.Config(), ds, nil)
	if err != nil {
		page.Error = err.Error()
		s.renderPage(w, r, statusFor(err), page)
		return
	}
	page.Result = newResultView(res)
	s.renderPage(w, r, http.StatusOK, page)
}

// runResponse is the JSON body of a successful /api/run
type runResponse struct {
	RunID      string                    `json:"run_id"`
	Metric     string                    `json:"metric"`
	Winner     winnerJSON                `json:"winner"`
	Columns    []string                  `json:"columns"`
	Rows       []rowJSON                 `json:"rows"`
	Failed     map[automl.ModelID]string `json:"failed,omitempty"`
	Branch     []string                  `json:"branch"`
	Progress   []string                  `json:"progress"`
	DurationMs int64                     `json:"duration_ms"`
	ROC        string                    `json:"roc_png"`
	PRC        string                    `json:"prc_png"`
}

type winnerJSON struct {
	ID    automl.ModelID `json:"id"`
	Model string         `json:"model"`
	Score float64        `json:"score"`
}

type rowJSON struct {
	ID     automl.ModelID `json:"id"`
	Model  string         `json:"model"`
	Values []float64      `json:"values"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// handleAPIRun is the JSON version of handleRun. Unlike the page, a missing
// dataset is an error.
func (s *Server) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	form, upload, status, err := s.parseForm(r)
	if err != nil {
		s.writeError(w, r, status, "request", err)
		return
	}
	if err := demo.ValidateConfig(form.Config()); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "config", err)
		return
	}
	ds, err := demo.LoadDataset(form.Builtin, upload)
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "data", err)
		return
	}
	res, err := s.ctrl.OnRunClicked(r.Context(), form.Config(), ds, nil)
	if err != nil {
		s.writeError(w, r, statusFor(err), "pipeline", err)
		return
	}

	body := runResponse{
		RunID:      res.RunID,
		Metric:     res.Metric,
		Winner:     winnerJSON{ID: res.Winner.ID, Model: res.Winner.Model, Score: res.Winner.Score},
		Columns:    res.Metrics.Columns,
		Failed:     res.Failed,
		Branch:     res.Branch,
		Progress:   res.Progress,
		DurationMs: res.Duration.Milliseconds(),
		ROC:        base64.StdEncoding.EncodeToString(res.ROC),
		PRC:        base64.StdEncoding.EncodeToString(res.PRC),
	}
	for _, row := range res.Metrics.Rows {
		body.Rows = append(body.Rows, rowJSON{ID: row.ID, Model: row.Model, Values: row.Values})
	}
	writeJSON(w, http.StatusOK, body)
}

// parseForm reads the checkboxes and the optional upload. Unchecked boxes are
// absent from the form, so the defaults of the page do not apply here.
func (s *Server) parseForm(r *http.Request) (FormState, *demo.Upload, int, error) {
	if err := r.ParseMultipartForm(formMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return FormState{}, nil, http.StatusRequestEntityTooLarge, errors.Newf("upload exceeds %d bytes", s.maxUpload)
		}
		return FormState{}, nil, http.StatusBadRequest, errors.Wrap(err, "failed to parse form")
	}

	checked := func(name string) bool { return r.FormValue(name) != "" }
	form := FormState{
		Scale:   checked("scale"),
		Encode:  checked("encode"),
		Impute:  checked("impute"),
		Builtin: checked("builtin"),
		ShowRaw: checked("show_raw"),
	}
	for _, v := range r.Form["model"] {
		ids, err := automl.ParseModelIDs(v)
		if err != nil {
			return FormState{}, nil, http.StatusBadRequest, err
		}
		for _, id := range ids {
			form.Models = form.Models.With(id)
		}
	}

	if form.Builtin {
		return form, nil, 0, nil
	}
	file, header, err := r.FormFile("data")
	if err != nil {
		// no file chosen
		return form, nil, 0, nil
	}
	// the multipart part is read fully before the request ends
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return FormState{}, nil, http.StatusBadRequest, errors.Wrap(err, "failed to read upload")
	}
	if len(data) == 0 {
		return form, nil, 0, nil
	}
	return form, &demo.Upload{Filename: header.Filename, Body: bytes.NewReader(data)}, 0, nil
}

func warningFor(err error) string {
	if errors.Is(err, errors.ErrNoModels) {
		return WarnNoModels
	}
	return WarnNoCleaningStep
}

func statusFor(err error) int {
	var cfgErr *errors.ConfigError
	var dataErr *errors.DataLoadError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &dataErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, data PageData) {
	// render into a buffer so a template error never leaves a half page
	var buf bytes.Buffer
	if err := s.pages.render(&buf, data); err != nil {
		s.logger.Error("Failed to render page",
			log.RequestIDKey, middleware.GetReqID(r.Context()),
			"error", err,
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, kind string, err error) {
	reqID := middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", log.RequestIDKey, reqID, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind, RequestID: reqID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
