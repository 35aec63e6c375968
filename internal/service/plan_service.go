package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/repository"
)

var ErrInvalidPlan = errors.New("invalid plan")

type PlanService struct {
	repo *repository.PlanRepository
	log  *slog.Logger
}

// PlanUpdate is a partial edit; nil fields are left as they are.
type PlanUpdate struct {
	Name         *string  `json:"name,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Credits      *int     `json:"credits,omitempty"`
	Popular      *bool    `json:"popular,omitempty"`
	ExternalLink *string  `json:"externalLink,omitempty"`
}

func NewPlanService(log *slog.Logger, repo *repository.PlanRepository) *PlanService {
	return &PlanService{repo: repo, log: log}
}

// EnsureDefaultPlans seeds the catalog on first run.
func (s *PlanService) EnsureDefaultPlans(ctx context.Context) error {
	seeded, err := s.repo.Seed(ctx)
	if err != nil {
		return err
	}
	if seeded {
		s.log.Info("seeded default credit plans", "count", len(repository.DefaultPlans))
	}
	return nil
}

func (s *PlanService) List(ctx context.Context) ([]models.CreditPlan, error) {
	plans, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []models.CreditPlan{}
	}
	return plans, nil
}

// Upsert replaces a whole plan. It reports false for unknown ids.
func (s *PlanService) Upsert(ctx context.Context, plan models.CreditPlan) (bool, error) {
	if err := validatePlan(plan); err != nil {
		return false, err
	}
	return s.repo.Upsert(ctx, plan)
}

// Update merges the set fields onto the stored plan. It returns nil, false for
// unknown ids.
func (s *PlanService) Update(ctx context.Context, id string, input PlanUpdate) (*models.CreditPlan, bool, error) {
	plan, err := s.repo.Modify(ctx, id, func(p *models.CreditPlan) error {
		if input.Name != nil {
			p.Name = strings.TrimSpace(*input.Name)
		}
		if input.Price != nil {
			p.Price = *input.Price
		}
		if input.Credits != nil {
			p.Credits = *input.Credits
		}
		if input.Popular != nil {
			p.Popular = *input.Popular
		}
		if input.ExternalLink != nil {
			p.ExternalLink = strings.TrimSpace(*input.ExternalLink)
		}
		return validatePlan(*p)
	})
	if err != nil {
		return nil, false, err
	}
	if plan == nil {
		return nil, false, nil
	}
	s.log.Info("plan updated", "plan_id", id)
	return plan, true, nil
}

func validatePlan(p models.CreditPlan) error {
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPlan)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidPlan)
	}
	if p.Credits <= 0 {
		return fmt.Errorf("%w: credits must be positive", ErrInvalidPlan)
	}
	if p.ExternalLink != "" {
		u, err := url.Parse(p.ExternalLink)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: external link must be an absolute http(s) url", ErrInvalidPlan)
		}
	}
	return nil
}
