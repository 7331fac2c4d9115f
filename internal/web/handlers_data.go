package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/core"
)

const (
	// formOverhead is added to the upload cap for multipart boundaries and fields.
	formOverhead = 1 << 20
	// multipartMemory is how much of a multipart body is kept in memory
	// before spilling to temp files.
	multipartMemory = 8 << 20
)

// loadRequest is the source named by a load form: a URL or an uploaded file.
type loadRequest struct {
	url         string
	file        multipart.File
	name        string
	contentType string
}

func (lr *loadRequest) close() {
	if lr.file != nil {
		lr.file.Close()
	}
}

// parseLoadRequest reads the url field, or the file field when url is empty.
func (s *Server) parseLoadRequest(w http.ResponseWriter, r *http.Request) (*loadRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, fmt.Errorf("parse form: %w", err)
	}

	lr := &loadRequest{url: strings.TrimSpace(r.FormValue("url"))}
	if lr.url != "" {
		return lr, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, core.ErrNoSource
		}
		return nil, fmt.Errorf("read form file: %w", err)
	}
	lr.file = file
	lr.name = header.Filename
	lr.contentType = header.Header.Get("Content-Type")
	return lr, nil
}

// handleLoad replaces the session dataset with an uploaded file or URL.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r, true)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	lr, err := s.parseLoadRequest(w, r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer lr.close()

	ctx := withRequestMetadata(r)
	if lr.url != "" {
		err = s.service.LoadURL(ctx, sess, lr.url)
	} else {
		err = s.service.LoadUpload(ctx, sess, lr.name, lr.contentType, lr.file)
	}
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	s.respondWorkspace(w, r, sess, "")
}

// handleClean runs automatic cleaning on the session dataset.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r, false)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if _, err := s.service.Clean(withRequestMetadata(r), sess); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	s.respondWorkspace(w, r, sess, "")
}

// handleTransform runs the submitted manual program.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r, false)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	res, err := s.service.Transform(withRequestMetadata(r), sess, r.FormValue("program"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	s.respondWorkspace(w, r, sess, fmt.Sprintf("Applied %d statements, %d rows remain", res.Applied, res.Dataset.NumRows()))
}

// handleReset restores the dataset as loaded.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r, false)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if err := s.service.Reset(withRequestMetadata(r), sess); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	s.respondWorkspace(w, r, sess, "Restored the original dataset")
}

// handleDownload sends the current dataset as cleaned_data.csv or .xlsx.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r, false)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	format, err := core.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	// Buffer so an export failure can still produce an error response.
	var buf bytes.Buffer
	if err := s.service.Export(withRequestMetadata(r), sess, &buf, format); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeAttachment(w, format, buf.Bytes())
}

// writeAttachment sends data as a download named after DownloadName.
func writeAttachment(w http.ResponseWriter, format core.Format, data []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, core.DownloadName, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
