package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/digkill/lumina/internal/kv"
	"github.com/digkill/lumina/internal/models"
)

// DefaultPlans is the catalog written on first run.
var DefaultPlans = []models.CreditPlan{
	{ID: "starter", Name: "Starter", Credits: 20, Price: 9.99},
	{ID: "pro", Name: "Pro Studio", Credits: 100, Price: 29.99, Popular: true},
	{ID: "unlimited", Name: "Unlimited", Credits: 500, Price: 99.99},
}

type PlanRepository struct {
	store kv.Store
	mu    sync.Mutex
}

func NewPlanRepository(store kv.Store) *PlanRepository {
	return &PlanRepository{store: store}
}

// Seed writes DefaultPlans only when the catalog key is absent. It reports whether
// it wrote anything.
func (r *PlanRepository) Seed(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var plans []models.CreditPlan
	found, err := loadJSON(ctx, r.store, kv.KeyPlans, &plans)
	if err != nil {
		return false, fmt.Errorf("seed plans: %w", err)
	}
	if found {
		return false, nil
	}
	if err := saveJSON(ctx, r.store, kv.KeyPlans, slices.Clone(DefaultPlans)); err != nil {
		return false, fmt.Errorf("seed plans: %w", err)
	}
	return true, nil
}

func (r *PlanRepository) List(ctx context.Context) ([]models.CreditPlan, error) {
	var plans []models.CreditPlan
	if _, err := loadJSON(ctx, r.store, kv.KeyPlans, &plans); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.CreditPlan, error) {
	plans, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(plans, func(p models.CreditPlan) bool { return p.ID == id })
	if idx < 0 {
		return nil, nil
	}
	return &plans[idx], nil
}

// Upsert replaces the plan with the same id. An unknown id leaves the catalog
// untouched and reports false.
func (r *PlanRepository) Upsert(ctx context.Context, plan models.CreditPlan) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	plans, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	idx := slices.IndexFunc(plans, func(p models.CreditPlan) bool { return p.ID == plan.ID })
	if idx < 0 {
		return false, nil
	}
	plans[idx] = plan
	if err := saveJSON(ctx, r.store, kv.KeyPlans, plans); err != nil {
		return false, fmt.Errorf("upsert plan: %w", err)
	}
	return true, nil
}

// Modify merges fn's changes onto the stored plan under the catalog lock. It
// returns nil when the id is unknown.
func (r *PlanRepository) Modify(ctx context.Context, id string, fn func(*models.CreditPlan) error) (*models.CreditPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	plans, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(plans, func(p models.CreditPlan) bool { return p.ID == id })
	if idx < 0 {
		return nil, nil
	}
	plan := plans[idx]
	if err := fn(&plan); err != nil {
		return nil, err
	}
	plan.ID = id
	plans[idx] = plan
	if err := saveJSON(ctx, r.store, kv.KeyPlans, plans); err != nil {
		return nil, fmt.Errorf("modify plan: %w", err)
	}
	return &plan, nil
}
