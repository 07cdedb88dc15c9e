package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"roomsplit/internal/core"
	"roomsplit/internal/log"
)

// SessionCookie holds the session token.
const SessionCookie = "roomsplit_session"

type ctxKey int

const (
	userIDKey ctxKey = iota
	tokenKey
)

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

// requireAuth resolves the session cookie and rejects anonymous requests.
// A renewed session gets its cookie reissued; an invalid one is cleared.
func (s *Server) requireAuth(fn func(w http.ResponseWriter, r *http.Request) error) http.Handler {
	inner := api(fn)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil || c.Value == "" {
			writeError(w, r, &requestError{status: http.StatusUnauthorized, msg: "sign in required"})
			return
		}

		sess, renewed, err := s.deps.Identity.Authenticate(r.Context(), c.Value)
		if err != nil {
			if errors.Is(err, core.ErrInvalidCredentials) {
				s.clearSessionCookie(w)
				writeError(w, r, &requestError{status: http.StatusUnauthorized, msg: "session expired, please sign in again"})
				return
			}
			writeError(w, r, err)
			return
		}
		if renewed {
			s.setSessionCookie(w, sess)
		}

		ctx := context.WithValue(r.Context(), userIDKey, sess.UserID)
		ctx = context.WithValue(ctx, tokenKey, sess.Token)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, sess.UserID))
		inner.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess core.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
