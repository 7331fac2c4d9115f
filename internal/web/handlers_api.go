package web

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/core"
)

// ReportHeader carries the cleaning summary on API downloads.
const ReportHeader = "X-Cleaning-Report"

// SessionSummary is the JSON view of a session.
type SessionSummary struct {
	ID       string        `json:"id"`
	Source   string        `json:"source,omitempty"`
	HasData  bool          `json:"hasData"`
	Modified bool          `json:"modified"`
	Report   *core.Report  `json:"report,omitempty"`
	Program  string        `json:"program,omitempty"`
	Preview  *core.Preview `json:"preview,omitempty"`
}

// APIResult is the JSON body of /api/clean and /api/transform with format=json.
type APIResult struct {
	Report  *core.Report  `json:"report,omitempty"`
	Applied int           `json:"applied,omitempty"`
	Preview *core.Preview `json:"preview"`
}

// handleSessionSummary describes the caller's session.
func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r, false)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	snap := sess.Snapshot()
	sum := SessionSummary{
		ID:       snap.ID,
		Source:   snap.Source,
		HasData:  snap.HasData(),
		Modified: snap.Modified(),
		Report:   snap.Report,
		Program:  snap.Program,
	}
	if snap.HasData() {
		sum.Preview = core.BuildPreview(snap.Current, s.service.PreviewRows())
	}
	writeJSON(w, http.StatusOK, sum)
}

// readAPIDataset loads the dataset named by the request without a session.
func (s *Server) readAPIDataset(w http.ResponseWriter, r *http.Request) (string, *core.Dataset, error) {
	lr, err := s.parseLoadRequest(w, r)
	if err != nil {
		return "", nil, err
	}
	defer lr.close()

	if lr.url != "" {
		ds, err := s.service.FetchURL(r.Context(), lr.url)
		return lr.url, ds, err
	}
	ds, err := s.service.ReadUpload(lr.name, lr.contentType, lr.file)
	return lr.name, ds, err
}

// handleAPIClean cleans a posted file or URL in one call. The result is
// returned as CSV (default), XLSX or JSON per the format query parameter;
// file responses carry the summary in X-Cleaning-Report.
func (s *Server) handleAPIClean(w http.ResponseWriter, r *http.Request) {
	source, ds, err := s.readAPIDataset(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	out, report, err := s.service.CleanDataset(withRequestMetadata(r), source, ds)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	s.writeAPIResult(w, r, out, APIResult{Report: report})
}

// handleAPITransform runs the program form field on a posted file or URL.
func (s *Server) handleAPITransform(w http.ResponseWriter, r *http.Request) {
	_, ds, err := s.readAPIDataset(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	res, err := s.service.TransformDataset(withRequestMetadata(r), ds, r.FormValue("program"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	s.writeAPIResult(w, r, res.Dataset, APIResult{Report: res.Report, Applied: res.Applied})
}

func (s *Server) writeAPIResult(w http.ResponseWriter, r *http.Request, ds *core.Dataset, res APIResult) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "json" {
		res.Preview = core.BuildPreview(ds, parseIntParam(r, "rows", s.service.PreviewRows()))
		writeJSON(w, http.StatusOK, res)
		return
	}

	f, err := core.ParseFormat(format)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	var buf bytes.Buffer
	if err := core.Export(&buf, ds, f); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if res.Report != nil {
		w.Header().Set(ReportHeader, res.Report.Summary())
	}
	writeAttachment(w, f, buf.Bytes())
}
