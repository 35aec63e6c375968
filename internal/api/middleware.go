package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/digkill/lumina/internal/service"
)

type sessionKey struct{}

func sessionFrom(ctx context.Context) *service.Session {
	session, _ := ctx.Value(sessionKey{}).(*service.Session)
	return session
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSession resolves the bearer token into an authenticated session on every
// request, so directory changes are seen immediately.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: CodeNotAuthenticated, Message: "missing bearer token"})
			return
		}
		principal, err := s.tokens.Parse(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		session, err := s.sessions.Resolve(r.Context(), principal)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !session.Authenticated() {
			s.writeError(w, r, service.ErrNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := sessionFrom(r.Context())
		if session == nil || !session.User.IsAdmin {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: CodeForbidden, Message: "admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
