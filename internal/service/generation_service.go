package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/digkill/lumina/internal/imagegen"
	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/repository"
)

var (
	ErrEmptyPrompt        = errors.New("prompt cannot be empty")
	ErrInvalidAspectRatio = errors.New("unsupported aspect ratio")
	ErrGenerationFailed   = errors.New("image generation failed")
)

// ImageUploader publishes a generated image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// GenerationService charges one credit per generation. The credit is taken
// before the model is called and given back if the call fails.
type GenerationService struct {
	log       *slog.Logger
	ledger    *LedgerService
	history   *repository.HistoryRepository
	generator imagegen.Generator
	uploader  ImageUploader
	timeout   time.Duration
}

type GenerationRequest struct {
	Prompt      string
	AspectRatio models.AspectRatio
	BaseImage   string
}

// NewGenerationService wires the flow. uploader may be nil, in which case images
// are kept inline as data URIs.
func NewGenerationService(log *slog.Logger, ledger *LedgerService, history *repository.HistoryRepository, generator imagegen.Generator, uploader ImageUploader, timeout time.Duration) *GenerationService {
	return &GenerationService{
		log:       log,
		ledger:    ledger,
		history:   history,
		generator: generator,
		uploader:  uploader,
		timeout:   timeout,
	}
}

func (s *GenerationService) Generate(ctx context.Context, session *Session, req GenerationRequest) (*models.GeneratedImage, error) {
	if !session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if req.AspectRatio == "" {
		req.AspectRatio = models.AspectSquare
	}
	if !req.AspectRatio.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAspectRatio, req.AspectRatio)
	}
	if req.BaseImage != "" {
		if _, err := imagegen.DecodeBaseImage(req.BaseImage); err != nil {
			return nil, err
		}
	}

	ok, err := s.ledger.Deduct(ctx, session)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientCredits
	}

	img, err := s.callGenerator(ctx, req)
	if err != nil {
		s.refund(ctx, session)
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	imageURL := img.DataURI()
	if s.uploader != nil {
		uploaded, err := s.uploader.Upload(ctx, img.Data, img.MIMEType)
		if err != nil {
			s.log.Warn("image upload failed, keeping inline copy", "user_id", session.User.ID, "err", err)
		} else {
			imageURL = uploaded
		}
	}

	entry, err := s.history.Append(ctx, session.User.ID, req.Prompt, imageURL, req.AspectRatio)
	if err != nil {
		s.refund(ctx, session)
		return nil, fmt.Errorf("record generation: %w", err)
	}
	s.log.Info("image generated", "user_id", session.User.ID, "image_id", entry.ID, "aspect_ratio", req.AspectRatio)
	return entry, nil
}

func (s *GenerationService) callGenerator(ctx context.Context, req GenerationRequest) (*imagegen.Image, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.generator.Generate(ctx, imagegen.Request{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		BaseImage:   req.BaseImage,
	})
}

func (s *GenerationService) refund(ctx context.Context, session *Session) {
	if _, err := s.ledger.Adjust(context.WithoutCancel(ctx), session, 1); err != nil {
		s.log.Error("refund after failed generation", "user_id", session.User.ID, "err", err)
		return
	}
	s.log.Info("credit refunded after failed generation", "user_id", session.User.ID)
}

func (s *GenerationService) History(ctx context.Context, session *Session) ([]models.GeneratedImage, error) {
	if !session.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return s.history.ListForUser(ctx, session.User.ID)
}
