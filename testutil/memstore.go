// Package testutil provides testing utilities for phonebook tests.
//
// MemStore is a thread-safe in-memory document store implementing the
// resolver's Store contract, so resolver and gateway behavior can be tested
// without a running MongoDB.
package testutil

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/phonebook/errors"
	"github.com/c360/phonebook/store"
)

// MemStore is an in-memory document store for tests
type MemStore struct {
	mu      sync.RWMutex
	persons map[primitive.ObjectID]store.Person
	users   map[primitive.ObjectID]store.User
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		persons: make(map[primitive.ObjectID]store.Person),
		users:   make(map[primitive.ObjectID]store.User),
	}
}

// CountPersons returns the number of person records
func (m *MemStore) CountPersons(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.persons), nil
}

// AllPersons returns person records honoring the phone filter
func (m *MemStore) AllPersons(_ context.Context, filter store.PhoneFilter) ([]store.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	persons := []store.Person{}
	for _, p := range m.persons {
		switch filter {
		case store.PhoneYes:
			if p.Phone == "" {
				continue
			}
		case store.PhoneNo:
			if p.Phone != "" {
				continue
			}
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// PersonByName returns the person with the given name, or nil
func (m *MemStore) PersonByName(_ context.Context, name string) (*store.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.persons {
		if p.Name == name {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

// PersonsByIDs expands person references preserving input order
func (m *MemStore) PersonsByIDs(_ context.Context, ids []primitive.ObjectID) ([]store.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	persons := []store.Person{}
	for _, id := range ids {
		if p, ok := m.persons[id]; ok {
			persons = append(persons, p)
		}
	}
	return persons, nil
}

// UserByUsername returns the user with the given username, or nil
func (m *MemStore) UserByUsername(_ context.Context, username string) (*store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

// UserByID returns the user with the given id, or nil
func (m *MemStore) UserByID(_ context.Context, id primitive.ObjectID) (*store.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if u, ok := m.users[id]; ok {
		found := u
		return &found, nil
	}
	return nil, nil
}

// InsertPerson adds a person, enforcing the name uniqueness constraint
func (m *MemStore) InsertPerson(_ context.Context, person *store.Person) error {
	if err := person.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.persons {
		if p.Name == person.Name {
			return errors.WrapValidation(errors.ErrDuplicateKey, "MemStore", "InsertPerson",
				"uniqueness constraint")
		}
	}
	if person.ID.IsZero() {
		person.ID = primitive.NewObjectID()
	}
	m.persons[person.ID] = *person
	return nil
}

// SavePerson replaces an existing person record
func (m *MemStore) SavePerson(_ context.Context, person *store.Person) error {
	if err := person.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.persons[person.ID]; !ok {
		return errors.WrapNotFound(errors.ErrRecordNotFound, "MemStore", "SavePerson",
			"person "+person.ID.Hex())
	}
	m.persons[person.ID] = *person
	return nil
}

// InsertUser adds a user, enforcing the username uniqueness constraint
func (m *MemStore) InsertUser(_ context.Context, user *store.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return errors.WrapValidation(errors.ErrDuplicateKey, "MemStore", "InsertUser",
				"uniqueness constraint")
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Friends == nil {
		user.Friends = []primitive.ObjectID{}
	}
	m.users[user.ID] = *user
	return nil
}

// SaveUser replaces an existing user record
func (m *MemStore) SaveUser(_ context.Context, user *store.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return errors.WrapNotFound(errors.ErrRecordNotFound, "MemStore", "SaveUser",
			"user "+user.ID.Hex())
	}
	m.users[user.ID] = *user
	return nil
}
