package service

import (
	"github.com/digkill/lumina/internal/repository"
)

func (s *ServiceSuite) TestDeduct() {
	a := s.signedIn("a@x.com", "")
	b := s.signedIn("b@x.com", "")

	ok, err := s.ledger.Deduct(s.ctx, a)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(4, a.User.Credits)

	stored, err := s.users.Get(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(4, stored.Credits)

	other, err := s.users.Get(s.ctx, "b@x.com")
	s.Require().NoError(err)
	s.Equal(5, other.Credits)
	s.Equal(5, b.User.Credits)
}

func (s *ServiceSuite) TestDeductAtZeroOrNegative() {
	a := s.signedIn("a@x.com", "")
	for _, balance := range []int{0, -5} {
		_, err := s.ledger.SetBalance(s.ctx, a.User.ID, balance)
		s.Require().NoError(err)

		ok, err := s.ledger.Deduct(s.ctx, a)
		s.Require().NoError(err)
		s.False(ok)

		stored, err := s.users.Get(s.ctx, "a@x.com")
		s.Require().NoError(err)
		s.Equal(balance, stored.Credits)
	}
}

func (s *ServiceSuite) TestLedgerRequiresSession() {
	_, err := s.ledger.Deduct(s.ctx, Anonymous())
	s.ErrorIs(err, ErrNotAuthenticated)
	_, err = s.ledger.Adjust(s.ctx, nil, 5)
	s.ErrorIs(err, ErrNotAuthenticated)
	_, _, err = s.ledger.Purchase(s.ctx, Anonymous(), "pro")
	s.ErrorIs(err, ErrNotAuthenticated)
}

func (s *ServiceSuite) TestSetBalanceUnknownUser() {
	_, err := s.ledger.SetBalance(s.ctx, "ghost", 10)
	s.ErrorIs(err, repository.ErrUserNotFound)
}

func (s *ServiceSuite) TestAdjustAndPurchase() {
	a := s.signedIn("a@x.com", "")

	user, err := s.ledger.Adjust(s.ctx, a, -2)
	s.Require().NoError(err)
	s.Equal(3, user.Credits)

	user, plan, err := s.ledger.Purchase(s.ctx, a, "pro")
	s.Require().NoError(err)
	s.Equal(100, plan.Credits)
	s.Equal(103, user.Credits)
	s.Equal([]string{a.User.ID + ":pro"}, s.notifier.purchases)

	_, _, err = s.ledger.Purchase(s.ctx, a, "ghost")
	s.ErrorIs(err, ErrPlanNotFound)
}

func (s *ServiceSuite) TestPurchaseDisabled() {
	a := s.signedIn("a@x.com", "")
	ledger := NewLedgerService(s.log, s.users, s.plans, s.notifier, false)

	_, _, err := ledger.Purchase(s.ctx, a, "pro")
	s.ErrorIs(err, ErrCheckoutDisabled)

	stored, err := s.users.Get(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(5, stored.Credits)
	s.Empty(s.notifier.purchases)
}
