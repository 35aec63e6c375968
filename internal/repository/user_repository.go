package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/digkill/lumina/internal/kv"
	"github.com/digkill/lumina/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository is the email-keyed user directory stored under kv.KeyUsers.
type UserRepository struct {
	store kv.Store
	mu    sync.Mutex
}

func NewUserRepository(store kv.Store) *UserRepository {
	return &UserRepository{store: store}
}

// NormalizeEmail produces the directory key for an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) load(ctx context.Context) (map[string]models.User, error) {
	users := make(map[string]models.User)
	if _, err := loadJSON(ctx, r.store, kv.KeyUsers, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = make(map[string]models.User)
	}
	return users, nil
}

func (r *UserRepository) Get(ctx context.Context, email string) (*models.User, error) {
	users, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user, ok := users[NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// Upsert writes the user under its email, replacing any existing record.
func (r *UserRepository) Upsert(ctx context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	user.Email = NormalizeEmail(user.Email)
	users[user.Email] = user
	if err := saveJSON(ctx, r.store, kv.KeyUsers, users); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// Insert writes the user only when no record exists for its email and reports
// whether it did. The stored record is returned either way.
func (r *UserRepository) Insert(ctx context.Context, user models.User) (*models.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	user.Email = NormalizeEmail(user.Email)
	if existing, ok := users[user.Email]; ok {
		return &existing, false, nil
	}
	users[user.Email] = user
	if err := saveJSON(ctx, r.store, kv.KeyUsers, users); err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	return &user, true, nil
}

// List returns every user ordered by email.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	users, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	list := lo.Values(users)
	slices.SortFunc(list, func(a, b models.User) int {
		return strings.Compare(a.Email, b.Email)
	})
	return list, nil
}

// FindByID scans the directory; the storage key is the email, not the id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	users, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	user, ok := lo.Find(lo.Values(users), func(u models.User) bool {
		return u.ID == id
	})
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// Update applies fn to the user with the given id and persists the result. When
// fn returns an error nothing is written and the error is returned as is.
func (r *UserRepository) Update(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	var (
		key   string
		found bool
	)
	for email, u := range users {
		if u.ID == id {
			key, found = email, true
			break
		}
	}
	if !found {
		return nil, ErrUserNotFound
	}

	user := users[key]
	if err := fn(&user); err != nil {
		return nil, err
	}
	user.Email = key
	users[key] = user
	if err := saveJSON(ctx, r.store, kv.KeyUsers, users); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &user, nil
}
