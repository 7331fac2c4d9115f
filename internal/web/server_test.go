package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSV = "age,city\n25,NYC\n,LA\n30,NYC\n30,NYC\n1000,SF\n"

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := core.NewService(cfg.ServiceOptions(), nil)
	require.NoError(t, err)

	s := NewServer(svc, cfg)
	t.Cleanup(func() { _ = s.Shutdown(t.Context()) })
	return s
}

// multipartBody builds a form with an optional file and extra fields.
func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type requestOpt func(*http.Request)

func htmx(r *http.Request) { r.Header.Set("HX-Request", "true") }

func withCookie(c *http.Cookie) requestOpt {
	return func(r *http.Request) { r.AddCookie(c) }
}

func do(s *Server, method, target string, body *bytes.Buffer, contentType string, opts ...requestOpt) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", SessionCookie)
	return nil
}

// loadTestData starts a session and uploads testCSV into it.
func loadTestData(t *testing.T, s *Server) *http.Cookie {
	t.Helper()
	body, ct := multipartBody(t, "data.csv", testCSV, nil)
	rec := do(s, http.MethodPost, "/load", body, ct, htmx)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

// =============================================================================
// Pages
// =============================================================================

func TestIndex_IssuesSessionCookie(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Load data")
	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = do(s, http.MethodGet, "/", nil, "", withCookie(c))
	assert.Empty(t, rec.Result().Cookies(), "an existing session is reused")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/healthz", nil, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var got HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 4, got.Jobs.MaxConcurrent)
}

// =============================================================================
// Dataset workflow
// =============================================================================

func TestWorkflow_LoadCleanDownloadReset(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := loadTestData(t, s)

	rec := do(s, http.MethodPost, "/clean", nil, "", htmx, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, core.SuccessMarker)
	assert.Contains(t, body, "Handled 1 missing values")
	assert.Contains(t, body, "Removed 1 duplicates")
	assert.Contains(t, body, "Original data")

	rec = do(s, http.MethodGet, "/download?format=csv", nil, "", withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="cleaned_data.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "age,city\n"))
	assert.NotContains(t, rec.Body.String(), "1000", "the outlier row is gone")

	rec = do(s, http.MethodPost, "/reset", nil, "", withCookie(cookie))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = do(s, http.MethodGet, "/download", nil, "", withCookie(cookie))
	assert.Contains(t, rec.Body.String(), "1000", "reset restores the original rows")
}

func TestLoad_URLField(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, testCSV)
	}))
	defer src.Close()

	s := newTestServer(t, func(c *config.Config) { c.Fetch.AllowPrivate = true })
	form := url.Values{"url": {src.URL + "/data.csv"}}
	rec := do(s, http.MethodPost, "/load", bytes.NewBufferString(form.Encode()),
		"application/x-www-form-urlencoded", htmx)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Showing 5 of 5 rows")
}

func TestLoad_URLFieldPrivateAddressRejected(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testCSV)
	}))
	defer src.Close()

	s := newTestServer(t, nil)
	form := url.Values{"url": {src.URL + "/data.csv"}}
	rec := do(s, http.MethodPost, "/load", bytes.NewBufferString(form.Encode()),
		"application/x-www-form-urlencoded", htmx)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "URL004")
}

func TestLoad_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	body, ct := multipartBody(t, "", "", nil)
	rec := do(s, http.MethodPost, "/load", body, ct, htmx)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "#messages", rec.Header().Get("HX-Retarget"))
	assert.Contains(t, rec.Body.String(), "FILE004")

	body, ct = multipartBody(t, "empty.csv", "", nil)
	rec = do(s, http.MethodPost, "/load", body, ct, htmx)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE005")

	form := url.Values{"url": {"ftp://example.com/a.csv"}}
	rec = do(s, http.MethodPost, "/load", bytes.NewBufferString(form.Encode()),
		"application/x-www-form-urlencoded", withAccept("application/json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, "URL001", er.Code)
}

func withAccept(v string) requestOpt {
	return func(r *http.Request) { r.Header.Set("Accept", v) }
}

func TestClean_WithoutSession(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodPost, "/clean", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "SES001")
}

func TestClean_WithoutData(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := sessionCookie(t, do(s, http.MethodGet, "/", nil, ""))

	rec := do(s, http.MethodPost, "/clean", nil, "", htmx, withCookie(cookie))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "DATA002")
}

func TestTransform(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := loadTestData(t, s)

	form := url.Values{"program": {"dropna age\nfilter row.age < 100"}}
	rec := do(s, http.MethodPost, "/transform", bytes.NewBufferString(form.Encode()),
		"application/x-www-form-urlencoded", htmx, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Applied 2 statements, 3 rows remain")

	form = url.Values{"program": {"filter row.age >"}}
	rec = do(s, http.MethodPost, "/transform", bytes.NewBufferString(form.Encode()),
		"application/x-www-form-urlencoded", htmx, withCookie(cookie))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "CODE001")
}

func TestTransform_Disabled(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Manual.Enabled = false })
	cookie := loadTestData(t, s)

	form := url.Values{"program": {"dedupe"}}
	rec := do(s, http.MethodPost, "/transform", bytes.NewBufferString(form.Encode()),
		"application/x-www-form-urlencoded", htmx, withCookie(cookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "CODE002")
}

func TestDownload_BadFormat(t *testing.T) {
	s := newTestServer(t, nil)
	cookie := loadTestData(t, s)

	rec := do(s, http.MethodGet, "/download?format=pdf", nil, "", withCookie(cookie))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE006")

	rec = do(s, http.MethodGet, "/download?format=xlsx", nil, "", withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
}

func TestActivity(t *testing.T) {
	s := newTestServer(t, nil)
	loadTestData(t, s)

	rec := do(s, http.MethodGet, "/activity", nil, "", withAccept("application/json"))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Entries []core.ActivityEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Entries, 1)
	assert.Equal(t, core.ActionLoad, got.Entries[0].Action)
	assert.Equal(t, "data.csv", got.Entries[0].Source)

	rec = do(s, http.MethodGet, "/activity", nil, "")
	assert.Contains(t, rec.Body.String(), "Recent activity")
}

// =============================================================================
// JSON API
// =============================================================================

func TestAPIClean(t *testing.T) {
	s := newTestServer(t, nil)

	body, ct := multipartBody(t, "data.csv", testCSV, nil)
	rec := do(s, http.MethodPost, "/api/clean", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get(ReportHeader), core.SuccessMarker))
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

	body, ct = multipartBody(t, "data.csv", testCSV, nil)
	rec = do(s, http.MethodPost, "/api/clean?format=json", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Report struct {
			MissingHandled    int `json:"missing_handled"`
			DuplicatesRemoved int `json:"duplicates_removed"`
		} `json:"report"`
		Preview core.Preview `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Report.MissingHandled)
	assert.Equal(t, 1, got.Report.DuplicatesRemoved)
	assert.Equal(t, []string{"age", "city"}, got.Preview.Columns)
}

func TestAPITransform(t *testing.T) {
	s := newTestServer(t, nil)

	body, ct := multipartBody(t, "data.csv", testCSV, map[string]string{"program": "dedupe"})
	rec := do(s, http.MethodPost, "/api/transform?format=json", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got APIResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Applied)
	assert.Equal(t, 4, got.Preview.TotalRows)
	assert.Equal(t, []string{core.MissingMark, "LA"}, got.Preview.Rows[1],
		"JSON previews mark missing cells the same way as the HTML table")
}

func TestAPISession(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, http.MethodGet, "/api/session", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cookie := loadTestData(t, s)
	rec = do(s, http.MethodGet, "/api/session", nil, "", withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	var got SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, cookie.Value, got.ID)
	assert.True(t, got.HasData)
	assert.False(t, got.Modified)
	assert.Equal(t, 5, got.Preview.TotalRows)
}

func TestAPI_RequiresKey(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	rec := do(s, http.MethodGet, "/api/activity", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(s, http.MethodGet, "/api/activity", nil, "", func(r *http.Request) {
		r.Header.Set("X-API-Key", "secret")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// Rate limiting and status mapping
// =============================================================================

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"), "limits are per client")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("a"), "a new window refills")
}

func TestRateLimit_Responds429(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Rate.RequestsPerMinute = 1 })

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/healthz", nil, "").Code)
	rec := do(s, http.MethodGet, "/healthz", nil, "", withAccept("application/json"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.IngestionError{Err: core.ErrFileTooLarge}, http.StatusRequestEntityTooLarge},
		{&core.IngestionError{Err: core.ErrInvalidCSV}, http.StatusBadRequest},
		{&core.IngestionError{Err: fmt.Errorf("%w: status 500", core.ErrUnreachable)}, http.StatusBadGateway},
		{core.ErrTooManyJobs, http.StatusServiceUnavailable},
		{core.ErrSessionNotFound, http.StatusNotFound},
		{core.ErrManualModeDisabled, http.StatusForbidden},
		{core.ErrNoDataset, http.StatusConflict},
		{&core.UserCodeError{Line: 1, Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{&core.DataError{Column: "a", Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
