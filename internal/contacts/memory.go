// Package contacts provides trusted-contact storage implementations.
package contacts

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
)

// Store holds trusted contacts. The emergency alert path reads from
// here, so writes are rare and reads must never block for long.
type Store struct {
	mu       sync.RWMutex
	contacts map[string]domain.TrustedContact
	log      *logger.Logger
}

// NewStore creates an empty contact store.
func NewStore(log *logger.Logger) *Store {
	return &Store{
		contacts: make(map[string]domain.TrustedContact),
		log:      log,
	}
}

// List returns all contacts, primary first, then by name.
func (s *Store) List(ctx context.Context) ([]domain.TrustedContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TrustedContact, 0, len(s.contacts))
	for _, c := range s.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Primary != out[j].Primary {
			return out[i].Primary
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Get returns a contact by ID.
func (s *Store) Get(ctx context.Context, id string) (domain.TrustedContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[id]
	if !ok {
		s.log.Debug("contact not found: %s", id)
		return domain.TrustedContact{}, domain.ErrNotFound
	}
	return c, nil
}

// Add stores a contact, assigning an ID when empty. A contact marked
// primary demotes any existing primary.
func (s *Store) Add(ctx context.Context, c domain.TrustedContact) (domain.TrustedContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Primary {
		for id, existing := range s.contacts {
			if existing.Primary {
				existing.Primary = false
				s.contacts[id] = existing
			}
		}
	}
	s.contacts[c.ID] = c
	s.log.Info("contact added: %s (%s)", c.Name, c.ID)
	return c, nil
}

// Remove deletes a contact by ID.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.contacts, id)
	s.log.Info("contact removed: %s", id)
	return nil
}

// Primary returns the primary contact, or the first by name when no
// contact is marked primary.
func (s *Store) Primary(ctx context.Context) (domain.TrustedContact, error) {
	all, _ := s.List(ctx)
	if len(all) == 0 {
		return domain.TrustedContact{}, domain.ErrNotFound
	}
	return all[0], nil
}

// Search returns contacts whose name contains the query string.
func (s *Store) Search(ctx context.Context, query string) ([]domain.TrustedContact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var out []domain.TrustedContact
	for _, c := range s.contacts {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
