package service

import (
	"context"

	"github.com/digkill/lumina/internal/models"
)

// Notifier receives business events worth telling an operator about. Calls must
// not block the caller for long; failures are the notifier's to log.
type Notifier interface {
	UserSignedUp(ctx context.Context, user models.User)
	CreditsPurchased(ctx context.Context, user models.User, plan models.CreditPlan)
}

type NopNotifier struct{}

func (NopNotifier) UserSignedUp(context.Context, models.User) {}

func (NopNotifier) CreditsPurchased(context.Context, models.User, models.CreditPlan) {}
