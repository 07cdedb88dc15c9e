package http

import (
	"net/http"

	"roomsplit/internal/log"
)

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) error {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	sess, err := s.deps.Identity.SignUp(r.Context(), sanitizeInput(req.Name), req.Email, req.Password)
	if err != nil {
		return err
	}
	s.setSessionCookie(w, sess)

	p, err := s.deps.Profiles.Profile(r.Context(), sess.UserID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, toProfileView(p))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) error {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	sess, err := s.deps.Identity.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	s.setSessionCookie(w, sess)

	p, err := s.deps.Profiles.Profile(r.Context(), sess.UserID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toProfileView(p))
}

// handleSignOut always clears the cookie, even for unknown sessions.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) error {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		if err := s.deps.Identity.SignOut(r.Context(), c.Value); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to delete session", log.FieldError, err)
		}
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type reauthRequest struct {
	Password string `json:"password"`
}

// handleReauth confirms the password before a sensitive change.
func (s *Server) handleReauth(w http.ResponseWriter, r *http.Request) error {
	var req reauthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if err := s.deps.Identity.Reauthenticate(r.Context(), userIDFrom(r.Context()), req.Password); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	// SignOutOthers ends every other session of the user.
	SignOutOthers bool `json:"signOutOthers"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) error {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	ctx := r.Context()
	userID := userIDFrom(ctx)
	if err := s.deps.Identity.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	if req.SignOutOthers {
		if err := s.deps.Identity.RevokeOtherSessions(ctx, userID, tokenFrom(ctx)); err != nil {
			return err
		}
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type changeEmailRequest struct {
	Password string `json:"password"`
	NewEmail string `json:"newEmail"`
}

func (s *Server) handleChangeEmail(w http.ResponseWriter, r *http.Request) error {
	var req changeEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	ctx := r.Context()
	if err := s.deps.Identity.ChangeEmail(ctx, userIDFrom(ctx), req.Password, req.NewEmail); err != nil {
		return err
	}
	p, err := s.deps.Profiles.Profile(ctx, userIDFrom(ctx))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toProfileView(p))
}
