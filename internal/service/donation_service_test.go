package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"sun/internal/models"
	"sun/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleFixture struct {
	store     repository.Store
	svc       *DonationService
	events    *recordingPublisher
	donor     models.CallerIdentity
	volunteer models.CallerIdentity
}

func newLifecycleFixture(t *testing.T, store repository.Store) *lifecycleFixture {
	t.Helper()
	events := &recordingPublisher{}
	f := &lifecycleFixture{
		store:  store,
		svc:    NewDonationService(store.Donations(), store.Users(), events),
		events: events,
	}
	f.donor = f.addUser(t, "Dora Donor", "dora@example.com", models.RoleDonor)
	f.volunteer = f.addUser(t, "Val Volunteer", "val@example.com", models.RoleVolunteer)
	return f
}

func (f *lifecycleFixture) addUser(t *testing.T, name, email string, role models.Role) models.CallerIdentity {
	t.Helper()
	u := &models.User{Name: name, Email: email, Password: "hash", Role: role}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return models.CallerIdentity{ID: u.ID, Email: u.Email, Role: u.Role}
}

func (f *lifecycleFixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func (f *lifecycleFixture) create(t *testing.T, caller models.CallerIdentity, title string) *models.Donation {
	t.Helper()
	d, err := f.svc.Create(context.Background(), caller, CreateDonationInput{Title: title, Category: models.CategoryFood})
	require.NoError(t, err)
	return d
}

func TestDonationService_Create(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())
	ctx := context.Background()

	d, err := f.svc.Create(ctx, f.donor, CreateDonationInput{Title: "Blankets", Category: "clothes", Quantity: 20})
	require.NoError(t, err)

	assert.NotEmpty(t, d.ID)
	assert.Equal(t, models.StatusAvailable, d.Status)
	assert.Nil(t, d.ClaimedBy)
	assert.Nil(t, d.DistributedBy)
	assert.Equal(t, 20, d.Quantity)
	assert.Equal(t, models.ConditionGood, d.Condition)
	assert.Equal(t, f.donor.ID, d.DonorID)

	donor := f.user(t, f.donor.ID)
	assert.Equal(t, PointsForDonation, donor.Points)
	require.Len(t, donor.DonationsMade, 1)
	assert.Equal(t, d.ID, donor.DonationsMade[0].ID)
	assert.Equal(t, models.StatusAvailable, donor.DonationsMade[0].Status)

	assert.Equal(t, []string{models.EventDonationCreated}, f.events.types())
}

func TestDonationService_Create_Defaults(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())

	d, err := f.svc.Create(context.Background(), f.donor, CreateDonationInput{Title: "Rice", Category: "food"})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Quantity)
	assert.Equal(t, models.ConditionGood, d.Condition)
}

func TestDonationService_Create_Validation(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateDonationInput
	}{
		{"missing title", CreateDonationInput{Category: "food"}},
		{"missing category", CreateDonationInput{Title: "Rice"}},
		{"blank title", CreateDonationInput{Title: "   ", Category: "food"}},
		{"negative quantity", CreateDonationInput{Title: "Rice", Category: "food", Quantity: -1}},
		{"unknown condition", CreateDonationInput{Title: "Rice", Category: "food", Condition: "broken"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.donor, tt.in)
			assertValidationError(t, err)
		})
	}

	donor := f.user(t, f.donor.ID)
	assert.Zero(t, donor.Points)
	assert.Empty(t, donor.DonationsMade)
}

func TestDonationService_Create_UnknownCaller(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())

	_, err := f.svc.Create(context.Background(), models.CallerIdentity{ID: "ghost"}, CreateDonationInput{Title: "Rice", Category: "food"})
	assertAppErrorCode(t, err, models.CodeUnauthorized)

	list, err := f.store.Donations().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDonationService_Claim(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())
	d := f.create(t, f.donor, "Blankets")

	claimed, err := f.svc.Claim(context.Background(), f.volunteer, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, claimed.Status)
	require.NotNil(t, claimed.ClaimedBy)
	assert.Equal(t, f.volunteer.ID, *claimed.ClaimedBy)

	volunteer := f.user(t, f.volunteer.ID)
	assert.Equal(t, PointsForClaim, volunteer.Points)
	require.Len(t, volunteer.DonationsClaimed, 1)
	assert.Equal(t, d.ID, volunteer.DonationsClaimed[0].ID)

	donor := f.user(t, f.donor.ID)
	require.Len(t, donor.DonationsMade, 1)
	assert.Equal(t, models.StatusClaimed, donor.DonationsMade[0].Status)
	assert.Equal(t, PointsForDonation, donor.Points)

	assert.Equal(t, []string{models.EventDonationCreated, models.EventDonationClaimed}, f.events.types())
}

func TestDonationService_Claim_NotAvailableLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())
	ctx := context.Background()
	d := f.create(t, f.donor, "Blankets")
	_, err := f.svc.Claim(ctx, f.volunteer, d.ID)
	require.NoError(t, err)

	other := f.addUser(t, "Otto", "otto@example.com", models.RoleOrganisation)
	beforeDonation, err := f.store.Donations().GetByID(ctx, d.ID)
	require.NoError(t, err)
	beforeOther := f.user(t, other.ID)
	beforeDonor := f.user(t, f.donor.ID)

	_, err = f.svc.Claim(ctx, other, d.ID)
	assertAppErrorCode(t, err, models.CodeInvalidTransition)
	assert.Contains(t, err.Error(), "Donation is not available for claiming")

	afterDonation, err := f.store.Donations().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, beforeDonation, afterDonation)
	assert.Equal(t, beforeOther, f.user(t, other.ID))
	assert.Equal(t, beforeDonor, f.user(t, f.donor.ID))
}

func TestDonationService_Claim_UnknownDonation(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())

	_, err := f.svc.Claim(context.Background(), f.volunteer, "missing")
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestDonationService_Claim_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())
	d := f.create(t, f.donor, "Blankets")

	const claimers = 10
	callers := make([]models.CallerIdentity, claimers)
	for i := range callers {
		callers[i] = f.addUser(t, "Claimer", "claimer"+string(rune('a'+i))+"@example.com", models.RoleVolunteer)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, caller := range callers {
		wg.Add(1)
		go func(caller models.CallerIdentity) {
			defer wg.Done()
			if _, err := f.svc.Claim(context.Background(), caller, d.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.True(t, models.IsCode(err, models.CodeInvalidTransition), "unexpected error: %v", err)
			}
		}(caller)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	total := 0
	for _, caller := range callers {
		total += f.user(t, caller.ID).Points
	}
	assert.Equal(t, PointsForClaim, total)
}

func TestDonationService_Claim_CompensatesWhenCreditFails(t *testing.T) {
	t.Parallel()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	f := newLifecycleFixture(t, store)
	d := f.create(t, f.donor, "Blankets")

	creditErr := errors.New("write failed")
	users := &userRepoStub{
		getByIDFn: store.Users().GetByID,
		mutateFn: func(ctx context.Context, id string, fn repository.UserMutator) (*models.User, error) {
			if id == f.volunteer.ID {
				return nil, creditErr
			}
			return store.Users().Mutate(ctx, id, fn)
		},
	}
	svc := NewDonationService(store.Donations(), users, nil)

	_, err := svc.Claim(ctx, f.volunteer, d.ID)
	assertAppErrorCode(t, err, models.CodeInternal)
	assert.ErrorIs(t, err, creditErr)

	after, err := store.Donations().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, after.Status)
	assert.Nil(t, after.ClaimedBy)
	assert.Equal(t, models.StatusAvailable, f.user(t, f.donor.ID).DonationsMade[0].Status)
}

func TestDonationService_Claim_DonorMirrorFailureIsBestEffort(t *testing.T) {
	t.Parallel()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	f := newLifecycleFixture(t, store)
	d := f.create(t, f.donor, "Blankets")

	users := &userRepoStub{
		getByIDFn: store.Users().GetByID,
		mutateFn: func(ctx context.Context, id string, fn repository.UserMutator) (*models.User, error) {
			if id == f.donor.ID {
				return nil, errors.New("donor write failed")
			}
			return store.Users().Mutate(ctx, id, fn)
		},
	}
	svc := NewDonationService(store.Donations(), users, nil)

	claimed, err := svc.Claim(ctx, f.volunteer, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, claimed.Status)
	assert.Equal(t, PointsForClaim, f.user(t, f.volunteer.ID).Points)
	assert.Equal(t, models.StatusAvailable, f.user(t, f.donor.ID).DonationsMade[0].Status)
}

func TestDonationService_Distribute(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())
	ctx := context.Background()
	d := f.create(t, f.donor, "Blankets")
	_, err := f.svc.Claim(ctx, f.volunteer, d.ID)
	require.NoError(t, err)

	distributed, err := f.svc.Distribute(ctx, f.volunteer, d.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDistributed, distributed.Status)
	require.NotNil(t, distributed.DistributedBy)
	assert.Equal(t, f.volunteer.ID, *distributed.DistributedBy)
	assert.Equal(t, 12, distributed.PeopleHelped)

	volunteer := f.user(t, f.volunteer.ID)
	assert.Equal(t, PointsForClaim+PointsForDistribution, volunteer.Points)
	assert.Equal(t, models.StatusDistributed, volunteer.DonationsClaimed[0].Status)
	assert.Equal(t, models.StatusDistributed, f.user(t, f.donor.ID).DonationsMade[0].Status)
}

func TestDonationService_Distribute_RequiresClaimed(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())
	ctx := context.Background()
	d := f.create(t, f.donor, "Blankets")

	_, err := f.svc.Distribute(ctx, f.volunteer, d.ID, 0)
	assertAppErrorCode(t, err, models.CodeInvalidTransition)

	_, err = f.svc.Claim(ctx, f.volunteer, d.ID)
	require.NoError(t, err)
	_, err = f.svc.Distribute(ctx, f.volunteer, d.ID, 0)
	require.NoError(t, err)

	_, err = f.svc.Distribute(ctx, f.volunteer, d.ID, 0)
	assertAppErrorCode(t, err, models.CodeInvalidTransition)
	assert.Equal(t, PointsForClaim+PointsForDistribution, f.user(t, f.volunteer.ID).Points)
}

func TestDonationService_Distribute_NegativePeopleHelped(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())

	_, err := f.svc.Distribute(context.Background(), f.volunteer, "any", -1)
	assertValidationError(t, err)
}

func TestDonationService_Distribute_CompensatesWhenCreditFails(t *testing.T) {
	t.Parallel()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	f := newLifecycleFixture(t, store)
	d := f.create(t, f.donor, "Blankets")
	_, err := f.svc.Claim(ctx, f.volunteer, d.ID)
	require.NoError(t, err)

	distributor := f.addUser(t, "Dee", "dee@example.com", models.RoleOrganisation)
	users := &userRepoStub{
		getByIDFn: store.Users().GetByID,
		mutateFn: func(ctx context.Context, id string, fn repository.UserMutator) (*models.User, error) {
			if id == distributor.ID {
				return nil, errors.New("write failed")
			}
			return store.Users().Mutate(ctx, id, fn)
		},
	}
	svc := NewDonationService(store.Donations(), users, nil)

	_, err = svc.Distribute(ctx, distributor, d.ID, 4)
	assertAppErrorCode(t, err, models.CodeInternal)

	after, err := store.Donations().GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, after.Status)
	assert.Nil(t, after.DistributedBy)
	assert.Zero(t, after.PeopleHelped)
}

func TestDonationService_Certificates(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())
	ctx := context.Background()

	countCert := func(u *models.User, name string) int {
		n := 0
		for _, c := range u.Certificates {
			if c.Name == name {
				n++
			}
		}
		return n
	}

	for i := 1; i <= 10; i++ {
		d := f.create(t, f.donor, "Item")
		_, err := f.svc.Claim(ctx, f.volunteer, d.ID)
		require.NoError(t, err)
		_, err = f.svc.Distribute(ctx, f.volunteer, d.ID, 1)
		require.NoError(t, err)

		v := f.user(t, f.volunteer.ID)
		switch {
		case i < 5:
			assert.Empty(t, v.Certificates, "after %d actions", i)
		case i < 10:
			assert.Equal(t, 1, countCert(v, models.CertificateActiveContributor), "after %d actions", i)
			assert.Zero(t, countCert(v, models.CertificateSuperHelper), "after %d actions", i)
		default:
			assert.Equal(t, 1, countCert(v, models.CertificateActiveContributor))
			assert.Equal(t, 1, countCert(v, models.CertificateSuperHelper))
		}
	}

	v := f.user(t, f.volunteer.ID)
	assert.Equal(t, 10*(PointsForClaim+PointsForDistribution), v.Points)

	certEvents := 0
	for _, typ := range f.events.types() {
		if typ == models.EventCertificateAwarded {
			certEvents++
		}
	}
	assert.Equal(t, 2, certEvents)
}

func TestDonationService_ListJoinsDonor(t *testing.T) {
	t.Parallel()
	f := newLifecycleFixture(t, repository.NewMemoryStore())
	ctx := context.Background()

	first := f.create(t, f.donor, "First")
	second := f.create(t, f.volunteer, "Second")
	_, err := f.svc.Claim(ctx, f.volunteer, first.ID)
	require.NoError(t, err)

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
	require.NotNil(t, all[0].Donor)
	assert.Equal(t, "Dora Donor", all[0].Donor.Name)
	assert.Equal(t, f.donor.ID, all[0].Donor.ID)
	assert.Equal(t, "Val Volunteer", all[1].Donor.Name)

	available, err := f.svc.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, second.ID, available[0].ID)
}

func TestDonationService_GetWithMissingDonor(t *testing.T) {
	t.Parallel()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	d := &models.Donation{Title: "Orphan", Category: "other", DonorID: "gone"}
	require.NoError(t, store.Donations().Create(ctx, d))

	svc := NewDonationService(store.Donations(), store.Users(), nil)
	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Orphan", got.Title)
	assert.Nil(t, got.Donor)

	_, err = svc.Get(ctx, "missing")
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestDonationService_PublishFailureDoesNotFailOperation(t *testing.T) {
	t.Parallel()
	store := repository.NewMemoryStore()
	events := &recordingPublisher{err: errors.New("broker down")}
	svc := NewDonationService(store.Donations(), store.Users(), events)
	donor := &models.User{Name: "D", Email: "d@example.com", Password: "x"}
	require.NoError(t, store.Users().Create(context.Background(), donor))

	_, err := svc.Create(context.Background(), models.CallerIdentity{ID: donor.ID}, CreateDonationInput{Title: "Rice", Category: "food"})
	require.NoError(t, err)
	assert.Len(t, events.types(), 1)
}
