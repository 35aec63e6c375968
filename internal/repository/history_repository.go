package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/digkill/lumina/internal/kv"
	"github.com/digkill/lumina/internal/models"
)

const DefaultHistoryLimit = 100

// HistoryRepository is the shared, newest-first generation log stored under
// kv.KeyHistory. The cap applies to the whole log, not per user.
type HistoryRepository struct {
	store kv.Store
	limit int
	now   func() time.Time
	mu    sync.Mutex
}

func NewHistoryRepository(store kv.Store, limit int) *HistoryRepository {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryRepository{store: store, limit: limit, now: time.Now}
}

func (r *HistoryRepository) load(ctx context.Context) ([]models.GeneratedImage, error) {
	var entries []models.GeneratedImage
	if _, err := loadJSON(ctx, r.store, kv.KeyHistory, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *HistoryRepository) Append(ctx context.Context, userID, prompt, imageURL string, aspectRatio models.AspectRatio) (*models.GeneratedImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	entry := models.GeneratedImage{
		ID:          uuid.NewString(),
		UserID:      userID,
		Prompt:      prompt,
		ImageURL:    imageURL,
		AspectRatio: aspectRatio,
		Timestamp:   r.now().UnixMilli(),
	}
	entries = append([]models.GeneratedImage{entry}, entries...)
	if len(entries) > r.limit {
		entries = entries[:r.limit]
	}

	if err := saveJSON(ctx, r.store, kv.KeyHistory, entries); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	return &entry, nil
}

// ListForUser returns the user's entries, newest first.
func (r *HistoryRepository) ListForUser(ctx context.Context, userID string) ([]models.GeneratedImage, error) {
	entries, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return lo.Filter(entries, func(e models.GeneratedImage, _ int) bool {
		return e.UserID == userID
	}), nil
}

func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	entries, err := r.load(ctx)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return len(entries), nil
}
