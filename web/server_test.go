package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/atomgo/automl"
	"github.com/YuminosukeSato/atomgo/demo"
	"github.com/YuminosukeSato/atomgo/pkg/log"
)

func newTestServer(t *testing.T, maxUpload int64) (*Server, *log.TestLogger) {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	ctrl := demo.NewController(demo.WithLogger(logger), demo.WithNEstimators(10))
	s, err := NewServer(ServerConfig{Controller: ctrl, Logger: logger, MaxUploadBytes: maxUpload})
	require.NoError(t, err)
	return s, logger
}

func postForm(t *testing.T, s http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func postUpload(t *testing.T, s http.Handler, path string, fields url.Values, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	fw, err := mw.CreateFormFile("data", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	s, logger := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "No results yet. Click the run button!")
	assert.Contains(t, body, `name="encode" checked`)
	assert.Contains(t, body, `name="scale">`)
	assert.Contains(t, body, `value="gnb" checked`)
	assert.Contains(t, body, `value="lgb">`)
	assert.Contains(t, body, "<strong>Run</strong>", "intro markdown is rendered")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.True(t, logger.ContainsMessage("Handled request"))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRun_NoCleaningStepWarns(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := postForm(t, s, "/run", url.Values{"scale": {"on"}, "model": {"gnb"}, "builtin": {"on"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, WarnNoCleaningStep)
	assert.Contains(t, body, "No results yet")
	assert.Contains(t, body, `name="scale" checked`)
}

func TestRun_NoDataset(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := postForm(t, s, "/run", url.Values{"encode": {"on"}, "impute": {"on"}, "model": {"gnb"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No results yet")
}

func TestRun_Builtin(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := postForm(t, s, "/run", url.Values{
		"encode":   {"on"},
		"impute":   {"on"},
		"model":    {"gnb", "rf"},
		"builtin":  {"on"},
		"show_raw": {"on"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "No results yet")
	assert.Contains(t, body, "Data preview:")
	assert.Contains(t, body, "<th>RainTomorrow</th>")
	assert.Contains(t, body, "<td>Location</td><td>categorical</td>")
	assert.Contains(t, body, "<th>f1</th>")
	assert.Contains(t, body, "<td>GNB</td>")
	assert.Contains(t, body, "<td>RF</td>")
	assert.Contains(t, body, `src="data:image/png;base64,`)
}

func TestRun_MalformedUpload(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := postUpload(t, s, "/run", url.Values{"encode": {"on"}, "model": {"gnb"}}, "bad.csv", "a,b\n\"1,2\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="error"`)
}

func TestRun_UploadTooLarge(t *testing.T) {
	s, _ := newTestServer(t, 1024)
	rec := postUpload(t, s, "/run", url.Values{"encode": {"on"}, "model": {"gnb"}}, "big.csv", strings.Repeat("1,2\n", 1000))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRun_UnknownModel(t *testing.T) {
	s, _ := newTestServer(t, 0)
	rec := postForm(t, s, "/run", url.Values{"encode": {"on"}, "model": {"svm"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIRun(t *testing.T) {
	s, _ := newTestServer(t, 0)

	var csv strings.Builder
	csv.WriteString("x1,x2,color,label\n")
	for i := 0; i < 60; i++ {
		color := []string{"red", "green", "blue"}[i%3]
		if i%2 == 0 {
			csv.WriteString(strings.Join([]string{"1", "0.5", color, "yes"}, ",") + "\n")
		} else {
			csv.WriteString(strings.Join([]string{"-1", "-0.5", color, "no"}, ",") + "\n")
		}
	}
	rec := postUpload(t, s, "/api/run", url.Values{"encode": {"on"}, "model": {"gnb,lgb"}}, "data.csv", csv.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp runResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "f1", resp.Metric)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, automl.GNB, resp.Rows[0].ID)
	assert.Equal(t, 1.0, resp.Winner.Score)
	png, err := base64.StdEncoding.DecodeString(resp.ROC)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestAPIRun_Errors(t *testing.T) {
	s, _ := newTestServer(t, 0)
	tests := []struct {
		name   string
		values url.Values
		status int
		kind   string
	}{
		{"no cleaning step", url.Values{"model": {"gnb"}, "builtin": {"on"}}, http.StatusBadRequest, "config"},
		{"no models", url.Values{"encode": {"on"}, "builtin": {"on"}}, http.StatusBadRequest, "config"},
		{"no dataset", url.Values{"encode": {"on"}, "model": {"gnb"}}, http.StatusUnprocessableEntity, "data"},
		{"pipeline failure", url.Values{"impute": {"on"}, "model": {"gnb"}, "builtin": {"on"}}, http.StatusInternalServerError, "pipeline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(t, s, "/api/run", tt.values)
			assert.Equal(t, tt.status, rec.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestNewServerRequiresController(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}
