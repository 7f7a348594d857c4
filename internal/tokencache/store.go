package tokencache

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bikerent-backend/pkg/db/models"
)

// Store persists processor access tokens.
type Store interface {
	// Get returns the newest token still valid at now, or nil.
	Get(ctx context.Context, now time.Time) (*models.AuthToken, error)
	Set(ctx context.Context, token *models.AuthToken) error
}

type gormStore struct {
	db *gorm.DB
}

// NewGormStore backs the cache with the auth_tokens table.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Get(ctx context.Context, now time.Time) (*models.AuthToken, error) {
	var token models.AuthToken
	err := s.db.WithContext(ctx).
		Where("expires_at > ?", now.UTC()).
		Order("created_at DESC").
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (s *gormStore) Set(ctx context.Context, token *models.AuthToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

// MemoryStore keeps tokens in process; used by tests and single-binary tooling.
type MemoryStore struct {
	mu     sync.Mutex
	tokens []models.AuthToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(_ context.Context, now time.Time) (*models.AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.tokens) - 1; i >= 0; i-- {
		if m.tokens[i].ExpiresAt.After(now) {
			token := m.tokens[i]
			return &token, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) Set(_ context.Context, token *models.AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, *token)
	return nil
}

// Len reports how many tokens were stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}
