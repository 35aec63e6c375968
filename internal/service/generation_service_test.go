package service

import (
	"errors"
	"io"
	"log/slog"

	"github.com/digkill/lumina/internal/kv"
	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/repository"
)

func (s *ServiceSuite) TestGenerateChargesAndRecords() {
	a := s.signedIn("a@x.com", "")

	entry, err := s.gen.Generate(s.ctx, a, GenerationRequest{Prompt: "  a fox  ", AspectRatio: models.AspectWide})
	s.Require().NoError(err)
	s.Equal("a fox", entry.Prompt)
	s.Equal("data:image/png;base64,aW1n", entry.ImageURL)
	s.Equal(models.AspectWide, entry.AspectRatio)
	s.Equal(a.User.ID, entry.UserID)
	s.Equal(4, a.User.Credits)

	history, err := s.gen.History(s.ctx, a)
	s.Require().NoError(err)
	s.Equal([]models.GeneratedImage{*entry}, history)
}

func (s *ServiceSuite) TestGenerateRefundsOnFailure() {
	a := s.signedIn("a@x.com", "")
	s.generator.err = errGeneratorDown

	_, err := s.gen.Generate(s.ctx, a, GenerationRequest{Prompt: "fox"})
	s.ErrorIs(err, errGeneratorDown)
	s.ErrorIs(err, ErrGenerationFailed)

	stored, err := s.users.Get(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(5, stored.Credits)

	count, err := s.history.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ServiceSuite) TestGenerateRejections() {
	a := s.signedIn("a@x.com", "")

	_, err := s.gen.Generate(s.ctx, Anonymous(), GenerationRequest{Prompt: "fox"})
	s.ErrorIs(err, ErrNotAuthenticated)

	_, err = s.gen.Generate(s.ctx, a, GenerationRequest{Prompt: "   "})
	s.ErrorIs(err, ErrEmptyPrompt)

	_, err = s.gen.Generate(s.ctx, a, GenerationRequest{Prompt: "fox", AspectRatio: "2:1"})
	s.ErrorIs(err, ErrInvalidAspectRatio)

	_, err = s.gen.Generate(s.ctx, a, GenerationRequest{Prompt: "fox", BaseImage: "data:nonsense"})
	s.Error(err)

	_, err = s.ledger.SetBalance(s.ctx, a.User.ID, 0)
	s.Require().NoError(err)
	a.User.Credits = 0
	_, err = s.gen.Generate(s.ctx, a, GenerationRequest{Prompt: "fox"})
	s.ErrorIs(err, ErrInsufficientCredits)

	s.Empty(s.generator.calls)
}

func (s *ServiceSuite) TestGenerateDefaultsAndPassesBaseImage() {
	a := s.signedIn("a@x.com", "")

	entry, err := s.gen.Generate(s.ctx, a, GenerationRequest{Prompt: "fox", BaseImage: "aGVsbG8="})
	s.Require().NoError(err)
	s.Equal(models.AspectSquare, entry.AspectRatio)
	s.Require().Len(s.generator.calls, 1)
	s.Equal("aGVsbG8=", s.generator.calls[0].BaseImage)
}

func (s *ServiceSuite) TestGenerateUploads() {
	a := s.signedIn("a@x.com", "")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	uploading := NewGenerationService(log, s.ledger, s.history, s.generator, &fakeUploader{}, 0)
	entry, err := uploading.Generate(s.ctx, a, GenerationRequest{Prompt: "fox"})
	s.Require().NoError(err)
	s.Equal("https://cdn.example.com/img.png", entry.ImageURL)

	failing := NewGenerationService(log, s.ledger, s.history, s.generator, &fakeUploader{err: errors.New("s3 down")}, 0)
	entry, err = failing.Generate(s.ctx, a, GenerationRequest{Prompt: "fox"})
	s.Require().NoError(err)
	s.Equal("data:image/png;base64,aW1n", entry.ImageURL)
}

func (s *ServiceSuite) TestGenerateRefundsWhenHistoryWriteFails() {
	a := s.signedIn("a@x.com", "")
	broken := repository.NewHistoryRepository(&failingStore{Store: s.store, key: kv.KeyHistory}, repository.DefaultHistoryLimit)
	gen := NewGenerationService(s.log, s.ledger, broken, s.generator, nil, 0)

	_, err := gen.Generate(s.ctx, a, GenerationRequest{Prompt: "fox"})
	s.Require().Error(err)

	stored, err := s.users.Get(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(5, stored.Credits)
	s.Equal(5, a.User.Credits)
}
