package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/service"
)

type generateRequest struct {
	Prompt      string             `json:"prompt"`
	AspectRatio models.AspectRatio `json:"aspectRatio"`
	BaseImage   string             `json:"baseImage,omitempty"`
}

type generateResponse struct {
	Image   *models.GeneratedImage `json:"image"`
	Credits int                    `json:"credits"`
}

type purchaseResponse struct {
	User *models.User       `json:"user"`
	Plan *models.CreditPlan `json:"plan"`
}

type setCreditsRequest struct {
	Credits *int `json:"credits"`
}

type planUpdateResponse struct {
	Updated bool               `json:"updated"`
	Plan    *models.CreditPlan `json:"plan"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, sessionFrom(r.Context()).User)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.generation.History(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decodeJSON(w, r, maxGenerateBytes, &req) {
		return
	}
	session := sessionFrom(r.Context())
	entry, err := s.generation.Generate(r.Context(), session, service.GenerationRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		BaseImage:   req.BaseImage,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, generateResponse{Image: entry, Credits: session.User.Credits})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	user, plan, err := s.ledger.Purchase(r.Context(), sessionFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, purchaseResponse{User: user, Plan: plan})
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.stats.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleAdminSetCredits(w http.ResponseWriter, r *http.Request) {
	var req setCreditsRequest
	if !s.decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	if req.Credits == nil {
		s.badRequest(w, "credits is required")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	user, err := s.ledger.SetBalance(r.Context(), id, *req.Credits)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("admin set balance", "admin", sessionFrom(r.Context()).User.Email, "user_id", id, "credits", *req.Credits)
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Compute(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var req service.PlanUpdate
	if !s.decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}
	plan, updated, err := s.plans.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, planUpdateResponse{Updated: updated, Plan: plan})
}
