package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"go-user-service/internal/model"
)

// MemoryUserRepository keeps users in process memory. Ids are ObjectID hex
// strings so identifiers look the same as with the MongoDB store.
type MemoryUserRepository struct {
	mu        sync.RWMutex
	byID      map[string]model.User
	idByEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:      map[string]model.User{},
		idByEmail: map[string]string{},
	}
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByEmail[normalizeEmail(email)]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	if _, err := bson.ObjectIDFromHex(id); err != nil {
		return model.User{}, model.ErrMalformedIdentifier
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

// Create checks and inserts under one lock, so duplicate emails cannot race.
func (r *MemoryUserRepository) Create(_ context.Context, u model.User) (model.User, error) {
	key := normalizeEmail(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.idByEmail[key]; exists {
		return model.User{}, model.ErrEmailTaken
	}

	u.ID = bson.NewObjectID().Hex()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	r.byID[u.ID] = u
	r.idByEmail[key] = u.ID
	return u, nil
}

func (r *MemoryUserRepository) CountByEmail(_ context.Context, email string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := normalizeEmail(email)
	count := 0
	for _, u := range r.byID {
		if normalizeEmail(u.Email) == key {
			count++
		}
	}
	return count, nil
}

// Delete exists for tests that need a token whose subject has vanished.
func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return model.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.idByEmail, normalizeEmail(u.Email))
	return nil
}

func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
