// Package resolver implements the query and mutation set of the phonebook
// API, validating preconditions and delegating to the document store, the
// token service, and the event notifier.
package resolver

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/phonebook/auth"
	"github.com/c360/phonebook/errors"
	"github.com/c360/phonebook/metric"
	"github.com/c360/phonebook/notifier"
	"github.com/c360/phonebook/store"
)

// Store is the document store contract the resolver set depends on
type Store interface {
	CountPersons(ctx context.Context) (int, error)
	AllPersons(ctx context.Context, filter store.PhoneFilter) ([]store.Person, error)
	PersonByName(ctx context.Context, name string) (*store.Person, error)
	PersonsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]store.Person, error)
	UserByUsername(ctx context.Context, username string) (*store.User, error)
	UserByID(ctx context.Context, id primitive.ObjectID) (*store.User, error)
	InsertPerson(ctx context.Context, person *store.Person) error
	SavePerson(ctx context.Context, person *store.Person) error
	InsertUser(ctx context.Context, user *store.User) error
	SaveUser(ctx context.Context, user *store.User) error
}

// Resolver executes the phonebook queries and mutations
type Resolver struct {
	store     Store
	tokens    *auth.TokenService
	passwords *auth.PasswordHasher
	notifier  *notifier.Notifier
	metrics   *metric.Metrics // optional
	logger    *slog.Logger
}

// New creates a resolver set. The metrics recorder may be nil.
func New(st Store, tokens *auth.TokenService, passwords *auth.PasswordHasher,
	events *notifier.Notifier, metrics *metric.Metrics, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:     st,
		tokens:    tokens,
		passwords: passwords,
		notifier:  events,
		metrics:   metrics,
		logger:    logger.With("component", "resolver"),
	}
}

// PersonCount returns the total number of person records
func (r *Resolver) PersonCount(ctx context.Context) (int, error) {
	return r.store.CountPersons(ctx)
}

// AllPersons returns person records, filtered by phone presence when a
// filter is given
func (r *Resolver) AllPersons(ctx context.Context, filter store.PhoneFilter) ([]store.Person, error) {
	return r.store.AllPersons(ctx, filter)
}

// FindPerson returns the person with the given name, or nil if absent
func (r *Resolver) FindPerson(ctx context.Context, name string) (*store.Person, error) {
	return r.store.PersonByName(ctx, name)
}

// Me returns the authenticated user from the request context, or nil for
// anonymous requests
func (r *Resolver) Me(ctx context.Context) *store.User {
	return auth.CurrentUser(ctx)
}

// Friends expands a user's friend references to full person records
func (r *Resolver) Friends(ctx context.Context, user *store.User) ([]store.Person, error) {
	if user == nil {
		return []store.Person{}, nil
	}
	return r.store.PersonsByIDs(ctx, user.Friends)
}

// AddPerson inserts a new person, appends it to the current user's friends
// list, and publishes a person-added event. Requires an authenticated user.
func (r *Resolver) AddPerson(ctx context.Context, name, phone, street, city string) (*store.Person, error) {
	currentUser := auth.CurrentUser(ctx)
	if currentUser == nil {
		return nil, errors.WrapAuthentication(errors.ErrNotAuthenticated,
			"Resolver", "AddPerson", "identity check")
	}

	person := &store.Person{
		Name:   name,
		Phone:  phone,
		Street: street,
		City:   city,
	}

	args := map[string]any{"name": name, "phone": phone, "street": street, "city": city}

	if err := r.store.InsertPerson(ctx, person); err != nil {
		return nil, errors.Validation(err, "Resolver", "AddPerson", args)
	}

	currentUser.Friends = append(currentUser.Friends, person.ID)
	if err := r.store.SaveUser(ctx, currentUser); err != nil {
		return nil, errors.Validation(err, "Resolver", "AddPerson", args)
	}

	r.notifier.Publish(*person)
	if r.metrics != nil {
		r.metrics.EventsPublished.Inc()
	}

	r.logger.Info("person added", "name", person.Name, "by", currentUser.Username)
	return person, nil
}

// EditNumber updates the phone number of the person with the given name.
// Fails with a not-found error when no such person exists.
func (r *Resolver) EditNumber(ctx context.Context, name, phone string) (*store.Person, error) {
	person, err := r.store.PersonByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, errors.WrapNotFound(errors.ErrRecordNotFound,
			"Resolver", "EditNumber", "person "+name)
	}

	person.Phone = phone
	if err := r.store.SavePerson(ctx, person); err != nil {
		return nil, errors.Validation(err, "Resolver", "EditNumber",
			map[string]any{"name": name, "phone": phone})
	}

	return person, nil
}

// CreateUser registers a new account, storing a salted argon2id hash of the
// supplied password
func (r *Resolver) CreateUser(ctx context.Context, username, password string) (*store.User, error) {
	hash, err := r.passwords.Hash(password)
	if err != nil {
		return nil, errors.Validation(err, "Resolver", "CreateUser",
			map[string]any{"username": username})
	}

	user := &store.User{
		Username:     username,
		PasswordHash: hash,
		Friends:      []primitive.ObjectID{},
	}

	if err := r.store.InsertUser(ctx, user); err != nil {
		return nil, errors.Validation(err, "Resolver", "CreateUser",
			map[string]any{"username": username})
	}

	r.logger.Info("user created", "username", username)
	return user, nil
}

// Login verifies the credentials and issues a signed token. Unknown users
// and wrong passwords fail identically with a validation error.
func (r *Resolver) Login(ctx context.Context, username, password string) (string, error) {
	user, err := r.store.UserByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	if user == nil {
		return "", errors.WrapValidation(errors.ErrWrongCredentials,
			"Resolver", "Login", "credential check")
	}

	ok, err := r.passwords.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return "", errors.WrapValidation(errors.ErrWrongCredentials,
			"Resolver", "Login", "credential check")
	}

	token, err := r.tokens.Issue(auth.Identity{
		Username: user.Username,
		UserID:   user.ID.Hex(),
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("login", "username", username)
	return token, nil
}

// AddAsFriend adds the named person to the current user's friends list.
// Adding an existing friend again is a no-op; the list never holds
// duplicates. Requires an authenticated user.
func (r *Resolver) AddAsFriend(ctx context.Context, name string) (*store.Person, error) {
	currentUser := auth.CurrentUser(ctx)
	if currentUser == nil {
		return nil, errors.WrapAuthentication(errors.ErrNotAuthenticated,
			"Resolver", "AddAsFriend", "identity check")
	}

	person, err := r.store.PersonByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if person == nil {
		return nil, errors.WrapNotFound(errors.ErrRecordNotFound,
			"Resolver", "AddAsFriend", "person "+name)
	}

	if !currentUser.HasFriend(person.ID) {
		currentUser.Friends = append(currentUser.Friends, person.ID)
		if err := r.store.SaveUser(ctx, currentUser); err != nil {
			return nil, errors.Validation(err, "Resolver", "AddAsFriend",
				map[string]any{"name": name})
		}
	}

	return person, nil
}

// SubscribePersonAdded registers a subscription for person-added events,
// live until the context is cancelled
func (r *Resolver) SubscribePersonAdded(ctx context.Context) (*notifier.Subscription, error) {
	return r.notifier.Subscribe(ctx)
}
