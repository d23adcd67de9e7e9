package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ipetrenko/tokensvc/internal/models"
	"github.com/ipetrenko/tokensvc/internal/storage"
)

type InMemoryPrincipalManager struct {
	mu         sync.RWMutex
	principals map[string]models.Principal
	byEmail    map[string]string
}

func NewPrincipalRepository() *InMemoryPrincipalManager {
	return &InMemoryPrincipalManager{
		principals: make(map[string]models.Principal),
		byEmail:    make(map[string]string),
	}
}

func (m *InMemoryPrincipalManager) CreatePrincipal(_ context.Context, email, username, passwordHash string) (*models.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[email]; exists {
		return nil, storage.ErrEmailTaken
	}

	p := models.Principal{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.principals[p.ID] = p
	m.byEmail[p.Email] = p.ID

	return &p, nil
}

func (m *InMemoryPrincipalManager) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, storage.ErrPrincipalNotFound
	}
	p := m.principals[id]
	return &p, nil
}

func (m *InMemoryPrincipalManager) FindByID(_ context.Context, id string) (*models.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.principals[id]
	if !ok {
		return nil, storage.ErrPrincipalNotFound
	}
	return &p, nil
}

func (m *InMemoryPrincipalManager) VerifyPassword(p *models.Principal, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(plaintext)) == nil
}

// DeletePrincipal exists for tests that need a dangling record owner.
func (m *InMemoryPrincipalManager) DeletePrincipal(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.principals[id]
	if !ok {
		return
	}
	delete(m.byEmail, p.Email)
	delete(m.principals, id)
}
