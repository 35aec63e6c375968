package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/repository"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrCheckoutDisabled    = errors.New("checkout is not available")
)

// errNoCredits aborts a deduction without writing.
var errNoCredits = errors.New("no credits")

// LedgerService owns every change to a user's credit balance.
type LedgerService struct {
	users    *repository.UserRepository
	plans    *repository.PlanRepository
	notifier Notifier
	log      *slog.Logger
	// simulatedCheckout enables Purchase, which credits plans without payment.
	simulatedCheckout bool
}

func NewLedgerService(log *slog.Logger, users *repository.UserRepository, plans *repository.PlanRepository, notifier Notifier, simulatedCheckout bool) *LedgerService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &LedgerService{users: users, plans: plans, notifier: notifier, log: log, simulatedCheckout: simulatedCheckout}
}

// SetBalance replaces the balance outright. There is no bounds check.
func (s *LedgerService) SetBalance(ctx context.Context, userID string, amount int) (*models.User, error) {
	user, err := s.users.Update(ctx, userID, func(u *models.User) error {
		u.Credits = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("balance set", "user_id", userID, "credits", amount)
	return user, nil
}

// Adjust adds delta to the session user's balance.
func (s *LedgerService) Adjust(ctx context.Context, session *Session, delta int) (*models.User, error) {
	if !session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	user, err := s.users.Update(ctx, session.User.ID, func(u *models.User) error {
		u.Credits += delta
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("adjust credits: %w", err)
	}
	*session.User = *user
	return user, nil
}

// Deduct spends exactly one credit. It reports false, leaving the balance alone,
// when the balance is zero or negative.
func (s *LedgerService) Deduct(ctx context.Context, session *Session) (bool, error) {
	if !session.Authenticated() {
		return false, ErrNotAuthenticated
	}
	user, err := s.users.Update(ctx, session.User.ID, func(u *models.User) error {
		if u.Credits <= 0 {
			return errNoCredits
		}
		u.Credits--
		return nil
	})
	if errors.Is(err, errNoCredits) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deduct credit: %w", err)
	}
	*session.User = *user
	return true, nil
}

// Purchase credits the plan's bundle to the session user without taking payment.
// It is only available when simulated checkout is enabled; real payment goes
// through the plan's external link.
func (s *LedgerService) Purchase(ctx context.Context, session *Session, planID string) (*models.User, *models.CreditPlan, error) {
	if !session.Authenticated() {
		return nil, nil, ErrNotAuthenticated
	}
	if !s.simulatedCheckout {
		return nil, nil, ErrCheckoutDisabled
	}
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	if plan == nil {
		return nil, nil, ErrPlanNotFound
	}

	user, err := s.Adjust(ctx, session, plan.Credits)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("plan purchased", "user_id", user.ID, "plan_id", plan.ID, "credits", plan.Credits)
	s.notifier.CreditsPurchased(ctx, *user, *plan)
	return user, plan, nil
}
