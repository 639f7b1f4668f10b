// Package store maps Person and User records onto MongoDB collections.
package store

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/c360/phonebook/errors"
)

const (
	personsCollection = "persons"
	usersCollection   = "users"
)

// Store is the document store adapter for Person and User records.
// All operations are directly visible in the backing store on success;
// there is no write-behind caching and no retry layer.
type Store struct {
	persons *mongo.Collection
	users   *mongo.Collection
	logger  *slog.Logger
}

// Connect dials MongoDB and verifies connectivity with a ping. A failed
// ping still returns the client alongside the error: the driver reconnects
// lazily, so callers may keep the client and let individual operations fail
// until the store becomes reachable.
func Connect(ctx context.Context, url string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, errors.WrapTransient(err, "Store", "Connect", "dial")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return client, errors.WrapTransient(err, "Store", "Connect", "ping")
	}

	return client, nil
}

// New creates a store over the given database
func New(client *mongo.Client, database string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	db := client.Database(database)
	return &Store{
		persons: db.Collection(personsCollection),
		users:   db.Collection(usersCollection),
		logger:  logger.With("component", "store"),
	}
}

// EnsureIndexes creates the unique indexes backing the name and username
// constraints. Safe to call on every startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := s.persons.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return errors.WrapTransient(err, "Store", "EnsureIndexes", "persons name index")
	}

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return errors.WrapTransient(err, "Store", "EnsureIndexes", "users username index")
	}

	return nil
}

// CountPersons returns the total number of person records
func (s *Store) CountPersons(ctx context.Context) (int, error) {
	n, err := s.persons.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.Wrap(err, "Store", "CountPersons", "count")
	}
	return int(n), nil
}

// AllPersons returns person records, optionally filtered by phone presence
func (s *Store) AllPersons(ctx context.Context, filter PhoneFilter) ([]Person, error) {
	query := bson.D{}
	switch filter {
	case PhoneYes:
		query = bson.D{{Key: "phone", Value: bson.D{
			{Key: "$exists", Value: true},
			{Key: "$ne", Value: ""},
		}}}
	case PhoneNo:
		query = bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "phone", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "phone", Value: ""}},
		}}}
	}

	cursor, err := s.persons.Find(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "Store", "AllPersons", "find")
	}
	defer cursor.Close(ctx)

	var persons []Person
	if err := cursor.All(ctx, &persons); err != nil {
		return nil, errors.Wrap(err, "Store", "AllPersons", "decode")
	}
	return persons, nil
}

// PersonByName returns the person with the given name, or nil if absent
func (s *Store) PersonByName(ctx context.Context, name string) (*Person, error) {
	var person Person
	err := s.persons.FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&person)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "Store", "PersonByName", "find")
	}
	return &person, nil
}

// PersonsByIDs expands a list of person references to full records,
// preserving the order of the input ids. Missing references are skipped.
func (s *Store) PersonsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]Person, error) {
	if len(ids) == 0 {
		return []Person{}, nil
	}

	cursor, err := s.persons.Find(ctx, bson.D{
		{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "Store", "PersonsByIDs", "find")
	}
	defer cursor.Close(ctx)

	var found []Person
	if err := cursor.All(ctx, &found); err != nil {
		return nil, errors.Wrap(err, "Store", "PersonsByIDs", "decode")
	}

	byID := make(map[primitive.ObjectID]Person, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	persons := make([]Person, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			persons = append(persons, p)
		}
	}
	return persons, nil
}

// UserByUsername returns the user with the given username, or nil if absent
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.users.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "Store", "UserByUsername", "find")
	}
	return &user, nil
}

// UserByID returns the user with the given id, or nil if absent
func (s *Store) UserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	var user User
	err := s.users.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "Store", "UserByID", "find")
	}
	return &user, nil
}

// InsertPerson persists a new person record and assigns its id.
// Fails with a validation error on required-field or uniqueness violations.
func (s *Store) InsertPerson(ctx context.Context, person *Person) error {
	if err := person.Validate(); err != nil {
		return err
	}

	if person.ID.IsZero() {
		person.ID = primitive.NewObjectID()
	}

	if _, err := s.persons.InsertOne(ctx, person); err != nil {
		return s.translateWriteError(err, "InsertPerson")
	}

	s.logger.Debug("person inserted", "name", person.Name, "id", person.ID.Hex())
	return nil
}

// SavePerson persists a mutated person record in place
func (s *Store) SavePerson(ctx context.Context, person *Person) error {
	if err := person.Validate(); err != nil {
		return err
	}

	result, err := s.persons.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: person.ID}}, person)
	if err != nil {
		return s.translateWriteError(err, "SavePerson")
	}
	if result.MatchedCount == 0 {
		return errors.WrapNotFound(errors.ErrRecordNotFound, "Store", "SavePerson",
			"person "+person.ID.Hex())
	}
	return nil
}

// InsertUser persists a new user record and assigns its id.
// Fails with a validation error on a duplicate username.
func (s *Store) InsertUser(ctx context.Context, user *User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Friends == nil {
		user.Friends = []primitive.ObjectID{}
	}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		return s.translateWriteError(err, "InsertUser")
	}

	s.logger.Debug("user inserted", "username", user.Username, "id", user.ID.Hex())
	return nil
}

// SaveUser persists a mutated user record in place
func (s *Store) SaveUser(ctx context.Context, user *User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	result, err := s.users.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: user.ID}}, user)
	if err != nil {
		return s.translateWriteError(err, "SaveUser")
	}
	if result.MatchedCount == 0 {
		return errors.WrapNotFound(errors.ErrRecordNotFound, "Store", "SaveUser",
			"user "+user.ID.Hex())
	}
	return nil
}

// translateWriteError maps driver write failures onto the error taxonomy.
// Only write errors are translated; read failures propagate unclassified.
func (s *Store) translateWriteError(err error, operation string) error {
	if mongo.IsDuplicateKeyError(err) {
		return errors.WrapValidation(errors.ErrDuplicateKey, "Store", operation,
			"uniqueness constraint")
	}
	return errors.Wrap(err, "Store", operation, "write")
}
