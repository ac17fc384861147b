package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/authguard/internal/directory"
	"github.com/opsdeck/authguard/internal/models"
)

func TestDirectory_GetByEmail(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()

	email, password := TestEmployee("get-by-email")
	seeded, err := SeedEmployee(ctx, testDB.Pool, email, password, "employee", true)
	require.NoError(t, err)

	repo := directory.NewRepository(testDB.DB)

	identity, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, identity.ID)
	assert.Equal(t, email, identity.Email)
	assert.Equal(t, "employee", identity.Role)
	assert.True(t, identity.Active)
	assert.NotEmpty(t, identity.PasswordHash)
}

func TestDirectory_GetByEmail_NotFound(t *testing.T) {
	requireDatabase(t)

	repo := directory.NewRepository(testDB.DB)

	_, err := repo.GetByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDirectory_GetByID(t *testing.T) {
	requireDatabase(t)
	ctx := context.Background()

	email, password := TestEmployee("get-by-id")
	seeded, err := SeedEmployee(ctx, testDB.Pool, email, password, "admin", false)
	require.NoError(t, err)

	repo := directory.NewRepository(testDB.DB)

	identity, err := repo.GetByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, email, identity.Email)
	assert.Equal(t, "admin", identity.Role)
	assert.False(t, identity.Active)

	_, err = repo.GetByID(ctx, seeded.ID+1000)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
