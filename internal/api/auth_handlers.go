package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/service"
)

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type signUpResponse struct {
	User                 *models.User `json:"user"`
	VerificationRequired bool         `json:"verificationRequired"`
}

type tokenResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"type"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.badRequest(w, "email and password are required")
		return
	}

	user, err := s.sessions.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, signUpResponse{User: user, VerificationRequired: true})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !s.decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.badRequest(w, "email and password are required")
		return
	}

	session, err := s.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithSession(w, r, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if raw := bearerToken(r); raw != "" {
		if principal, err := s.tokens.Parse(raw); err == nil {
			if _, err := s.sessions.SignOut(r.Context(), principal); err != nil {
				s.log.Warn("provider sign out failed", "email", principal.Email, "err", err)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		s.badRequest(w, "email is required")
		return
	}
	if err := s.sessions.ResetPassword(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		s.badRequest(w, "email is required")
		return
	}
	if err := s.sessions.ResendVerification(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleConfirmEmail is the target of the verification link.
func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		s.badRequest(w, "token is required")
		return
	}
	if err := s.sessions.ConfirmEmail(r.Context(), token); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (s *Server) handleFederatedLogin(w http.ResponseWriter, r *http.Request) {
	url, err := s.sessions.BeginFederated()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleFederatedCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: CodeAuthFailed, Message: reason})
		return
	}
	session, err := s.sessions.CompleteFederated(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithSession(w, r, session)
}

func (s *Server) respondWithSession(w http.ResponseWriter, r *http.Request, session *service.Session) {
	if session.State == service.StatePendingVerification {
		s.writeJSON(w, http.StatusForbidden, errorResponse{Error: CodeEmailNotVerified, Message: "verify your email address before signing in"})
		return
	}
	if !session.Authenticated() {
		s.writeError(w, r, service.ErrNotAuthenticated)
		return
	}
	token, expires, err := s.tokens.Issue(session.Principal)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expires, User: session.User})
}
