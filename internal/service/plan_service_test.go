package service

import (
	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func (s *ServiceSuite) TestEnsureDefaultPlansIdempotent() {
	s.Require().NoError(s.planSvc.EnsureDefaultPlans(s.ctx))
	plans, err := s.planSvc.List(s.ctx)
	s.Require().NoError(err)
	s.Equal(repository.DefaultPlans, plans)
}

func (s *ServiceSuite) TestUpdatePlan() {
	plan, updated, err := s.planSvc.Update(s.ctx, "starter", PlanUpdate{
		Price:        ptr(4.99),
		Popular:      ptr(true),
		ExternalLink: ptr("https://pay.example.com/starter"),
	})
	s.Require().NoError(err)
	s.True(updated)
	s.Equal(models.CreditPlan{ID: "starter", Name: "Starter", Credits: 20, Price: 4.99, Popular: true, ExternalLink: "https://pay.example.com/starter"}, *plan)

	_, updated, err = s.planSvc.Update(s.ctx, "ghost", PlanUpdate{Name: ptr("Ghost")})
	s.Require().NoError(err)
	s.False(updated)

	plans, err := s.planSvc.List(s.ctx)
	s.Require().NoError(err)
	s.Len(plans, 3)
}

func (s *ServiceSuite) TestUpdatePlanValidation() {
	cases := map[string]PlanUpdate{
		"negative price": {Price: ptr(-1.0)},
		"zero credits":   {Credits: ptr(0)},
		"blank name":     {Name: ptr("  ")},
		"relative link":  {ExternalLink: ptr("/pay")},
		"ftp link":       {ExternalLink: ptr("ftp://pay.example.com")},
	}
	for name, input := range cases {
		_, _, err := s.planSvc.Update(s.ctx, "pro", input)
		s.ErrorIs(err, ErrInvalidPlan, name)
	}

	pro, err := s.plans.GetByID(s.ctx, "pro")
	s.Require().NoError(err)
	s.Equal(repository.DefaultPlans[1], *pro)
}

func (s *ServiceSuite) TestUpsertPlan() {
	updated, err := s.planSvc.Upsert(s.ctx, models.CreditPlan{ID: "ghost", Name: "Ghost", Credits: 1})
	s.Require().NoError(err)
	s.False(updated)

	updated, err = s.planSvc.Upsert(s.ctx, models.CreditPlan{ID: "pro", Name: "Pro", Credits: 0})
	s.ErrorIs(err, ErrInvalidPlan)
	s.False(updated)

	updated, err = s.planSvc.Upsert(s.ctx, models.CreditPlan{ID: "pro", Name: "Pro", Credits: 90, Price: 19})
	s.Require().NoError(err)
	s.True(updated)
}
