package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/web/templates"
	"github.com/a-h/templ"
)

// defaultActivityLimit is the number of entries on the activity page.
const defaultActivityLimit = 100

// handleIndex renders the workspace for the caller's session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r, true)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.render(r.Context(), w, http.StatusOK, templates.IndexPage(s.workspaceData(sess, "")))
}

// handleActivity lists recent activity as a page or JSON.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultActivityLimit)
	entries, err := s.service.RecentActivity(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
		return
	}
	s.render(r.Context(), w, http.StatusOK, templates.ActivityPage(entries))
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status   string             `json:"status"`
	Sessions int                `json:"sessions"`
	Jobs     core.LimiterStatus `json:"jobs"`
}

// handleHealth reports liveness and work limiter usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.service.SessionCount(),
		Jobs:     s.service.LimiterStatus(),
	})
}

// workspaceData snapshots sess for the workspace templates.
func (s *Server) workspaceData(sess *core.Session, notice string) templates.WorkspaceData {
	snap := sess.Snapshot()
	d := templates.WorkspaceData{
		Snapshot:      snap,
		ManualEnabled: s.service.ManualEnabled(),
		Notice:        notice,
	}
	if !snap.HasData() {
		return d
	}
	d.Current = core.BuildPreview(snap.Current, s.service.PreviewRows())
	if snap.Modified() {
		d.Original = core.BuildPreview(snap.Original, s.service.PreviewRows())
	}
	return d
}

// respondWorkspace answers a dataset operation: the workspace fragment for
// HTMX, a redirect to the page for plain form posts.
func (s *Server) respondWorkspace(w http.ResponseWriter, r *http.Request, sess *core.Session, notice string) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(r.Context(), w, http.StatusOK, templates.Workspace(s.workspaceData(sess, notice)))
}

// render writes an HTML component.
func (s *Server) render(ctx context.Context, w http.ResponseWriter, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(ctx, w); err != nil {
		// Headers are gone; all that is left is to log.
		logRenderError(ctx, err)
	}
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
