package seed

import (
	"context"
	"testing"

	"sun/internal/models"
	"sun/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDemo_PopulatesAllStages(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	res, err := Demo(ctx, store, Options{Users: 6, Donations: 9, BcryptCost: bcrypt.MinCost, RandSeed: 42})
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.Len(t, res.Users, 6)
	require.Len(t, res.Donations, 9)

	counts := map[models.DonationStatus]int{}
	for _, d := range res.Donations {
		counts[d.Status]++
	}
	assert.Equal(t, 3, counts[models.StatusAvailable])
	assert.Equal(t, 3, counts[models.StatusClaimed])
	assert.Equal(t, 3, counts[models.StatusDistributed])

	users, err := store.Users().List(ctx)
	require.NoError(t, err)
	total := 0
	for _, u := range users {
		total += u.Points
	}
	// 9 creations, 6 claims, 3 distributions
	assert.Equal(t, 9*10+6*5+3*5, total)
}

func TestDemo_SkipsPopulatedStore(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	_, err := Demo(ctx, store, Options{Users: 3, Donations: 1, BcryptCost: bcrypt.MinCost, RandSeed: 7})
	require.NoError(t, err)

	res, err := Demo(ctx, store, Options{Users: 3, Donations: 1, BcryptCost: bcrypt.MinCost, RandSeed: 7})
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	users, err := store.Users().List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestDemo_SeededAccountsCanLogIn(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	res, err := Demo(ctx, store, Options{Users: 3, Donations: 1, BcryptCost: bcrypt.MinCost, RandSeed: 1})
	require.NoError(t, err)

	stored, err := store.Users().GetByEmail(ctx, res.Users[0].Email)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte(DefaultPassword)))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "oconnor", slug("O'Connor"))
	assert.Equal(t, "mary", slug("Mary "))
}
