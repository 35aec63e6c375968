// Package api exposes the session, ledger, catalog and admin operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/lumina/internal/config"
	"github.com/digkill/lumina/internal/service"
)

const (
	maxBodyBytes     = 1 << 20
	maxGenerateBytes = 16 << 20
)

type Server struct {
	cfg        config.ServerConfig
	log        *slog.Logger
	tokens     *TokenIssuer
	sessions   *service.SessionService
	ledger     *service.LedgerService
	plans      *service.PlanService
	stats      *service.StatsService
	generation *service.GenerationService
	router     *chi.Mux
}

type Services struct {
	Sessions   *service.SessionService
	Ledger     *service.LedgerService
	Plans      *service.PlanService
	Stats      *service.StatsService
	Generation *service.GenerationService
}

func NewServer(cfg config.ServerConfig, log *slog.Logger, tokens *TokenIssuer, svc Services) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:        cfg,
		log:        log,
		tokens:     tokens,
		sessions:   svc.Sessions,
		ledger:     svc.Ledger,
		plans:      svc.Plans,
		stats:      svc.Stats,
		generation: svc.Generation,
		router:     r,
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignUp)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/password-reset", s.handlePasswordReset)
		r.Post("/verification", s.handleResendVerification)
		r.Get("/verify", s.handleConfirmEmail)
		r.Get("/federated/login", s.handleFederatedLogin)
		r.Get("/federated/callback", s.handleFederatedCallback)
	})
	r.Get("/plans", s.handleListPlans)

	r.Group(func(authed chi.Router) {
		authed.Use(s.requireSession)
		authed.Get("/me", s.handleMe)
		authed.Get("/me/history", s.handleHistory)
		authed.Post("/generate", s.handleGenerate)
		authed.Post("/plans/{id}/purchase", s.handlePurchase)

		authed.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/users", s.handleAdminUsers)
			r.Put("/users/{id}/credits", s.handleAdminSetCredits)
			r.Get("/stats", s.handleAdminStats)
			r.Get("/plans", s.handleListPlans)
			r.Put("/plans/{id}", s.handleAdminUpdatePlan)
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.cfg.Listen)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: CodeInvalidRequest, Message: "invalid json"})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: CodeInvalidRequest, Message: message})
}

// writeError maps err onto a status and code. Server-side failures are logged and
// their detail withheld.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	resp := errorResponse{Error: code}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	}
	if status < http.StatusInternalServerError || status == http.StatusBadGateway {
		resp.Message = err.Error()
	}
	s.writeJSON(w, status, resp)
}
