package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/csvclean/internal/core"
	mw "github.com/JonMunkholm/csvclean/internal/web/middleware"
)

// SessionCookie holds the session id.
const SessionCookie = "csvclean_session"

// withRequestMetadata adds the client IP and User-Agent to the context for
// the activity log.
func withRequestMetadata(r *http.Request) context.Context {
	return core.ContextWithClient(r.Context(), mw.ClientIP(r), r.UserAgent())
}

// session returns the caller's session. With create set, a missing or
// expired session is replaced by a fresh one and the cookie is (re)issued;
// otherwise core.ErrSessionNotFound is returned. The cookie has no MaxAge:
// expiry is decided server-side by idle time.
func (s *Server) session(w http.ResponseWriter, r *http.Request, create bool) (*core.Session, error) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		sess, err := s.service.Session(c.Value)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, core.ErrSessionNotFound) {
			return nil, err
		}
	}
	if !create {
		return nil, core.ErrSessionNotFound
	}

	sess := s.service.NewSession()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}
