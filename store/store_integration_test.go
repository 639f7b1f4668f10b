package store

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/c360/phonebook/errors"
)

// setupMongo starts a throwaway MongoDB container and returns a connected
// store. Skipped in -short mode.
func setupMongo(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping store integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017")
	require.NoError(t, err)

	client, err := Connect(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Disconnect(context.Background())
	})

	store := New(client, fmt.Sprintf("phonebook_test_%d", time.Now().UnixNano()), slog.Default())
	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func TestStoreIntegration_PersonLifecycle(t *testing.T) {
	store := setupMongo(t)
	ctx := context.Background()

	person := &Person{
		Name:   "Ada Lovelace",
		Phone:  "040-123456",
		Street: "Analytical St 1",
		City:   "London",
	}
	require.NoError(t, store.InsertPerson(ctx, person))
	assert.False(t, person.ID.IsZero())

	found, err := store.PersonByName(ctx, "Ada Lovelace")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Analytical St 1", found.Street)
	assert.Equal(t, "London", found.City)
	assert.Equal(t, person.ID, found.ID)

	// Uniqueness constraint on name.
	dup := &Person{Name: "Ada Lovelace", Street: "Other St 2", City: "Paris"}
	err = store.InsertPerson(ctx, dup)
	assert.True(t, errors.IsValidation(err), "expected validation error, got %v", err)

	count, err := store.CountPersons(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Phone update is visible on re-read.
	found.Phone = "050-654321"
	require.NoError(t, store.SavePerson(ctx, found))

	again, err := store.PersonByName(ctx, "Ada Lovelace")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "050-654321", again.Phone)

	// Absent name reads as nil, not an error.
	missing, err := store.PersonByName(ctx, "Nobody Here")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Saving an unknown id surfaces NotFound.
	ghost := &Person{ID: primitive.NewObjectID(), Name: "Ghost Person", Street: "Void 0", City: "Nowhere"}
	err = store.SavePerson(ctx, ghost)
	assert.True(t, errors.IsNotFound(err), "expected not found, got %v", err)
}

func TestStoreIntegration_PhoneFilter(t *testing.T) {
	store := setupMongo(t)
	ctx := context.Background()

	withPhone := &Person{Name: "Grace Hopper", Phone: "040-111111", Street: "Navy Yard 3", City: "Arlington"}
	noPhone := &Person{Name: "Alan Turing", Street: "Bletchley Rd 2", City: "Milton Keynes"}
	require.NoError(t, store.InsertPerson(ctx, withPhone))
	require.NoError(t, store.InsertPerson(ctx, noPhone))

	all, err := store.AllPersons(ctx, PhoneAny)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	yes, err := store.AllPersons(ctx, PhoneYes)
	require.NoError(t, err)
	require.Len(t, yes, 1)
	assert.Equal(t, "Grace Hopper", yes[0].Name)

	no, err := store.AllPersons(ctx, PhoneNo)
	require.NoError(t, err)
	require.Len(t, no, 1)
	assert.Equal(t, "Alan Turing", no[0].Name)
}

func TestStoreIntegration_UserFriends(t *testing.T) {
	store := setupMongo(t)
	ctx := context.Background()

	p1 := &Person{Name: "Friend One", Street: "First St 1", City: "Espoo"}
	p2 := &Person{Name: "Friend Two", Street: "Second St 2", City: "Tampere"}
	require.NoError(t, store.InsertPerson(ctx, p1))
	require.NoError(t, store.InsertPerson(ctx, p2))

	user := &User{Username: "mluukkai", PasswordHash: "$argon2id$stub"}
	require.NoError(t, store.InsertUser(ctx, user))
	assert.False(t, user.ID.IsZero())

	// Duplicate username rejected.
	err := store.InsertUser(ctx, &User{Username: "mluukkai", PasswordHash: "$argon2id$stub"})
	assert.True(t, errors.IsValidation(err), "expected validation error, got %v", err)

	// Friends list round-trips and expands in insertion order.
	user.Friends = append(user.Friends, p2.ID, p1.ID)
	require.NoError(t, store.SaveUser(ctx, user))

	loaded, err := store.UserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Friends, 2)

	friends, err := store.PersonsByIDs(ctx, loaded.Friends)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, "Friend Two", friends[0].Name)
	assert.Equal(t, "Friend One", friends[1].Name)

	byName, err := store.UserByUsername(ctx, "mluukkai")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)

	absent, err := store.UserByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, absent)
}
