//go:build integration

package mongodb

import (
	"context"
	"testing"

	"github.com/ArowuTest/jraffle-backend/internal/models"
	"github.com/ArowuTest/jraffle-backend/internal/repositories"
	"github.com/ArowuTest/jraffle-backend/internal/testhelpers"
	dbsetup "github.com/ArowuTest/jraffle-backend/pkg/mongodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func setupDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:6",
		testcontainers.WithLabels(map[string]string{"test": "jraffle-repository", "test-name": t.Name()}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	return client.Database("jraffle_test")
}

func TestRaffleRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	repo := NewRaffleRepository(setupDatabase(t))

	raffle := testhelpers.NewRaffle("r1", 50)
	require.NoError(t, repo.Create(ctx, raffle))
	assert.ErrorIs(t, repo.Create(ctx, testhelpers.NewRaffle("r1", 50)), repositories.ErrDuplicateKey)

	users := []models.User{testhelpers.NewUser("u1", 1, 2)}
	require.NoError(t, repo.SetUsers(ctx, "r1", 0, users))
	assert.ErrorIs(t, repo.SetUsers(ctx, "r1", 0, nil), repositories.ErrVersionConflict)
	assert.ErrorIs(t, repo.SetUsers(ctx, "missing", 0, nil), repositories.ErrNotFound)

	title := "Renamed"
	require.NoError(t, repo.Update(ctx, "r1", 1, &models.RaffleUpdate{Title: &title}))

	got, err := repo.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, []int{1, 2}, got.Users[0].Tickets)

	_, err = repo.collection.InsertOne(ctx, bson.M{"_id": "broken", "totalTickets": 0, "pricePerTicket": 1})
	require.NoError(t, err)
	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "r1", all[0].ID)

	require.NoError(t, repo.Delete(ctx, "r1"))
	assert.ErrorIs(t, repo.Delete(ctx, "r1"), repositories.ErrNotFound)
	_, err = repo.FindByID(ctx, "r1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestPurchaseRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	repo := NewPurchaseRepository(setupDatabase(t))

	require.NoError(t, repo.Create(ctx, testhelpers.NewPendingPurchase("p1", "r1", 3, 4)))
	require.NoError(t, repo.Create(ctx, testhelpers.NewPendingPurchase("p2", "r2", 5)))

	pending, err := repo.FindAll(ctx, models.PurchaseFilter{RaffleID: "r1", Status: models.PurchaseStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "p1", pending[0].ID)

	require.NoError(t, repo.Transition(ctx, "p1", models.PurchaseStatusPending, models.PurchaseStatusConfirmed, "u9"))
	assert.ErrorIs(t, repo.Transition(ctx, "p1", models.PurchaseStatusPending, models.PurchaseStatusRejected, ""), repositories.ErrStatusConflict)
	assert.ErrorIs(t, repo.Transition(ctx, "nope", models.PurchaseStatusPending, models.PurchaseStatusRejected, ""), repositories.ErrNotFound)

	got, err := repo.FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusConfirmed, got.Status)
	assert.Equal(t, "u9", got.UserID)
	require.NotNil(t, got.ConfirmedAt)
	assert.False(t, got.ConfirmedAt.IsZero())
	assert.Nil(t, got.RejectedAt)

	require.NoError(t, repo.Delete(ctx, "p2"))
	assert.ErrorIs(t, repo.Delete(ctx, "p2"), repositories.ErrNotFound)
}

func TestAdminUserRepositoryIntegration(t *testing.T) {
	ctx := context.Background()
	db := setupDatabase(t)
	require.NoError(t, dbsetup.EnsureIndexes(ctx, db))
	repo := NewAdminUserRepository(db)

	admin := &models.AdminUser{ID: "a1", Username: "admin", Password: "hash", Role: models.RoleAdmin}
	require.NoError(t, repo.Create(ctx, admin))
	assert.ErrorIs(t, repo.Create(ctx, &models.AdminUser{Username: "admin", Password: "x"}), repositories.ErrDuplicateKey)

	got, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)

	require.NoError(t, repo.UpdatePassword(ctx, "a1", "newhash"))
	got, err = repo.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.Password)

	_, err = repo.FindByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
