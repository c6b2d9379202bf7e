package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sun/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("user create and lookup", func(t *testing.T) {
		store := newStore(t)
		users := store.Users()

		user := &models.User{Name: "Ada", Email: "  Ada@Example.COM ", Password: "hash", Role: models.RoleDonor}
		require.NoError(t, users.Create(ctx, user))
		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "ada@example.com", user.Email)

		byID, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, "Ada", byID.Name)
		assert.NotNil(t, byID.DonationsMade)
		assert.NotNil(t, byID.Certificates)

		byEmail, err := users.GetByEmail(ctx, "ADA@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, user.ID, byEmail.ID)
	})

	t.Run("user absent returns nil", func(t *testing.T) {
		store := newStore(t)

		user, err := store.Users().GetByID(ctx, "missing")
		assert.NoError(t, err)
		assert.Nil(t, user)

		user, err = store.Users().GetByEmail(ctx, "nobody@example.com")
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		store := newStore(t)
		users := store.Users()

		require.NoError(t, users.Create(ctx, &models.User{Name: "A", Email: "dup@example.com", Password: "x", Role: models.RoleDonor}))
		err := users.Create(ctx, &models.User{Name: "B", Email: "DUP@example.com", Password: "x", Role: models.RoleDonor})
		assert.True(t, models.IsCode(err, models.CodeDuplicateEmail), "got %v", err)

		all, err := users.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("users listed in insertion order", func(t *testing.T) {
		store := newStore(t)
		names := []string{"first", "second", "third"}
		for _, name := range names {
			require.NoError(t, store.Users().Create(ctx, &models.User{Name: name, Email: name + "@example.com", Password: "x", Role: models.RoleVolunteer}))
			time.Sleep(2 * time.Millisecond)
		}

		all, err := store.Users().List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, name := range names {
			assert.Equal(t, name, all[i].Name)
		}
	})

	t.Run("user mutate persists and bumps version", func(t *testing.T) {
		store := newStore(t)
		users := store.Users()
		user := &models.User{Name: "Mut", Email: "mut@example.com", Password: "x", Role: models.RoleDonor}
		require.NoError(t, users.Create(ctx, user))

		updated, err := users.Mutate(ctx, user.ID, func(u *models.User) error {
			u.Points += 10
			u.DonationsMade = append(u.DonationsMade, models.DonationSummary{ID: "d1", Title: "Coat", Status: models.StatusAvailable})
			u.Certificates = append(u.Certificates, models.Certificate{Name: models.CertificateActiveContributor, AwardedDate: time.Now().UTC()})
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 10, updated.Points)
		assert.Equal(t, int64(1), updated.Version)

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, stored.Points)
		require.Len(t, stored.DonationsMade, 1)
		assert.Equal(t, "Coat", stored.DonationsMade[0].Title)
		assert.True(t, stored.HasCertificate(models.CertificateActiveContributor))
	})

	t.Run("user mutate error leaves record untouched", func(t *testing.T) {
		store := newStore(t)
		users := store.Users()
		user := &models.User{Name: "Keep", Email: "keep@example.com", Password: "x", Role: models.RoleDonor}
		require.NoError(t, users.Create(ctx, user))

		boom := models.NewValidationError("nope")
		_, err := users.Mutate(ctx, user.ID, func(u *models.User) error {
			u.Points = 999
			return boom
		})
		assert.True(t, errors.Is(err, boom))

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.Points)
	})

	t.Run("user mutate missing is not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Users().Mutate(ctx, "missing", func(*models.User) error { return nil })
		assert.True(t, models.IsCode(err, models.CodeNotFound), "got %v", err)
	})

	t.Run("concurrent user mutations serialize", func(t *testing.T) {
		store := newStore(t)
		users := store.Users()
		user := &models.User{Name: "Busy", Email: "busy@example.com", Password: "x", Role: models.RoleDonor}
		require.NoError(t, users.Create(ctx, user))

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := users.Mutate(ctx, user.ID, func(u *models.User) error {
					u.Points += 5
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stored, err := users.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, workers*5, stored.Points)
	})

	t.Run("donation create forces available", func(t *testing.T) {
		store := newStore(t)
		claimer := "someone"
		donation := &models.Donation{
			Title:     "Books",
			Category:  models.CategoryBooks,
			Quantity:  3,
			Condition: models.ConditionGood,
			DonorID:   "donor-1",
			Status:    models.StatusDistributed,
			ClaimedBy: &claimer,
		}
		require.NoError(t, store.Donations().Create(ctx, donation))
		assert.NotEmpty(t, donation.ID)

		stored, err := store.Donations().GetByID(ctx, donation.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAvailable, stored.Status)
		assert.Nil(t, stored.ClaimedBy)
		assert.Nil(t, stored.DistributedBy)
		assert.Equal(t, 3, stored.Quantity)
	})

	t.Run("donation missing is not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Donations().GetByID(ctx, "missing")
		assert.True(t, models.IsCode(err, models.CodeNotFound), "got %v", err)

		_, err = store.Donations().Mutate(ctx, "missing", func(*models.Donation) error { return nil })
		assert.True(t, models.IsCode(err, models.CodeNotFound), "got %v", err)
	})

	t.Run("donations listed in insertion order", func(t *testing.T) {
		store := newStore(t)
		titles := []string{"a", "b", "c"}
		for _, title := range titles {
			require.NoError(t, store.Donations().Create(ctx, &models.Donation{Title: title, Category: models.CategoryOther, Quantity: 1, Condition: models.ConditionNew, DonorID: "d"}))
			time.Sleep(2 * time.Millisecond)
		}

		all, err := store.Donations().List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, title := range titles {
			assert.Equal(t, title, all[i].Title)
		}
	})

	t.Run("donation mutate sets claimer", func(t *testing.T) {
		store := newStore(t)
		donations := store.Donations()
		donation := &models.Donation{Title: "Desk", Category: models.CategoryFurniture, Quantity: 1, Condition: models.ConditionFair, DonorID: "d"}
		require.NoError(t, donations.Create(ctx, donation))

		claimer := "vol-1"
		updated, err := donations.Mutate(ctx, donation.ID, func(d *models.Donation) error {
			d.Status = models.StatusClaimed
			d.ClaimedBy = &claimer
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusClaimed, updated.Status)

		stored, err := donations.GetByID(ctx, donation.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusClaimed, stored.Status)
		require.NotNil(t, stored.ClaimedBy)
		assert.Equal(t, claimer, *stored.ClaimedBy)
		assert.Equal(t, int64(1), stored.Version)
	})

	t.Run("ping", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Ping(ctx))
	})
}
