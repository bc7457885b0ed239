// Package userstest provides an in-memory users.Store for tests.
package userstest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wuwenbin0122/useradmin/internal/models"
	"github.com/wuwenbin0122/useradmin/internal/users"
)

// Store mirrors the Mongo store's observable behaviour: unique emails,
// newest-first ordering and case-insensitive substring search.
type Store struct {
	mu      sync.RWMutex
	records map[primitive.ObjectID]models.User

	// Err, when set, is returned by every operation.
	Err error
}

var _ users.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{records: make(map[primitive.ObjectID]models.User)}
}

func (s *Store) Insert(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	for _, existing := range s.records {
		if existing.Email == user.Email {
			return users.ErrEmailExists
		}
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.records[user.ID] = clone(*user)
	return nil
}

func (s *Store) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, users.ErrNotFound
	}

	user, ok := s.records[oid]
	if !ok {
		return nil, users.ErrNotFound
	}

	out := clone(user)
	return &out, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, s.Err
	}

	for _, user := range s.records {
		if user.Email == email {
			out := clone(user)
			return &out, nil
		}
	}

	return nil, users.ErrNotFound
}

func (s *Store) List(_ context.Context, query users.ListQuery) ([]models.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Err != nil {
		return nil, 0, s.Err
	}

	needle := strings.ToLower(query.Search)
	matched := make([]models.User, 0, len(s.records))
	for _, user := range s.records {
		if needle == "" ||
			strings.Contains(strings.ToLower(user.Email), needle) ||
			strings.Contains(strings.ToLower(user.PhoneNumber), needle) ||
			strings.Contains(strings.ToLower(user.Remarks), needle) {
			matched = append(matched, user)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.Hex() > matched[j].ID.Hex()
	})

	total := int64(len(matched))
	start := query.Skip
	if start > total {
		start = total
	}
	end := total
	if query.Limit > 0 && start+query.Limit < total {
		end = start + query.Limit
	}

	page := make([]models.User, 0, end-start)
	for _, user := range matched[start:end] {
		out := clone(user)
		out.PasswordHash = ""
		page = append(page, out)
	}

	return page, total, nil
}

func (s *Store) Update(_ context.Context, id string, patch users.Patch) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, users.ErrNotFound
	}

	user, ok := s.records[oid]
	if !ok {
		return nil, users.ErrNotFound
	}

	if patch.Email != nil {
		for otherID, other := range s.records {
			if otherID != oid && other.Email == *patch.Email {
				return nil, users.ErrEmailExists
			}
		}
	}

	patch.Apply(&user)
	user.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	s.records[oid] = clone(user)

	out := clone(user)
	return &out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return users.ErrNotFound
	}

	if _, ok := s.records[oid]; !ok {
		return users.ErrNotFound
	}
	delete(s.records, oid)
	return nil
}

// Raw returns the stored record, hash included.
func (s *Store) Raw(id primitive.ObjectID) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.records[id]
	return clone(user), ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func clone(u models.User) models.User {
	if u.FavouriteCourses != nil {
		u.FavouriteCourses = append([]string{}, u.FavouriteCourses...)
	}
	return u
}
