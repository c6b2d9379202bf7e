package repository

import (
	"context"
	"sync"
	"time"

	"sun/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps users and donations in process memory. Callers only ever see copies.
type MemoryStore struct {
	users     *memoryUserRepository
	donations *memoryDonationRepository
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: &memoryUserRepository{
			byID:    make(map[string]*models.User),
			byEmail: make(map[string]string),
			locks:   newKeyedMutex(),
			obs:     newInstrumentation(BackendMemory, "users"),
		},
		donations: &memoryDonationRepository{
			byID:  make(map[string]*models.Donation),
			locks: newKeyedMutex(),
			obs:   newInstrumentation(BackendMemory, "donations"),
		},
	}
}

func (s *MemoryStore) Users() UserRepository         { return s.users }
func (s *MemoryStore) Donations() DonationRepository { return s.donations }
func (s *MemoryStore) Name() string                  { return BackendMemory }

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }

type memoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.User
	byEmail map[string]string
	order   []string
	locks   *keyedMutex
	obs     *instrumentation
}

func (r *memoryUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := r.obs.start(ctx, "Create")
	defer func() { done(err) }()

	if err = ctx.Err(); err != nil {
		return err
	}
	prepareUser(user)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[user.Email]; taken {
		return models.NewDuplicateEmailError()
	}
	r.byID[user.ID] = user.Clone()
	r.byEmail[user.Email] = user.ID
	r.order = append(r.order, user.ID)
	r.obs.log.LogCreate(ctx, user.ID)
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (_ *models.User, err error) {
	ctx, done := r.obs.start(ctx, "GetByID")
	defer func() { done(err) }()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return user.Clone(), nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	ctx, done := r.obs.start(ctx, "GetByEmail")
	defer func() { done(err) }()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return r.byID[id].Clone(), nil
}

func (r *memoryUserRepository) List(ctx context.Context) (_ []*models.User, err error) {
	ctx, done := r.obs.start(ctx, "List")
	defer func() { done(err) }()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]*models.User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, r.byID[id].Clone())
	}
	return users, nil
}

func (r *memoryUserRepository) Mutate(ctx context.Context, id string, fn UserMutator) (_ *models.User, err error) {
	ctx, done := r.obs.start(ctx, "Mutate")
	defer func() { done(err) }()

	unlock := r.locks.Lock(id)
	defer unlock()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	current, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}

	working := current.Clone()
	if err = fn(working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.Email = current.Email
	working.CreatedAt = current.CreatedAt
	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.byID[current.ID] = working
	r.mu.Unlock()
	return working.Clone(), nil
}

type memoryDonationRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.Donation
	order []string
	locks *keyedMutex
	obs   *instrumentation
}

func (r *memoryDonationRepository) Create(ctx context.Context, donation *models.Donation) (err error) {
	ctx, done := r.obs.start(ctx, "Create")
	defer func() { done(err) }()

	if err = ctx.Err(); err != nil {
		return err
	}
	prepareDonation(donation)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[donation.ID] = donation.Clone()
	r.order = append(r.order, donation.ID)
	r.obs.log.LogCreate(ctx, donation.ID)
	return nil
}

func (r *memoryDonationRepository) GetByID(ctx context.Context, id string) (_ *models.Donation, err error) {
	ctx, done := r.obs.start(ctx, "GetByID")
	defer func() { done(err) }()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	donation, ok := r.byID[id]
	if !ok {
		return nil, models.NewNotFoundError("Donation", id)
	}
	return donation.Clone(), nil
}

func (r *memoryDonationRepository) List(ctx context.Context) (_ []*models.Donation, err error) {
	ctx, done := r.obs.start(ctx, "List")
	defer func() { done(err) }()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	donations := make([]*models.Donation, 0, len(r.order))
	for _, id := range r.order {
		donations = append(donations, r.byID[id].Clone())
	}
	return donations, nil
}

func (r *memoryDonationRepository) Mutate(ctx context.Context, id string, fn DonationMutator) (_ *models.Donation, err error) {
	ctx, done := r.obs.start(ctx, "Mutate")
	defer func() { done(err) }()

	unlock := r.locks.Lock(id)
	defer unlock()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	current, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, models.NewNotFoundError("Donation", id)
	}

	working := current.Clone()
	if err = fn(working); err != nil {
		return nil, err
	}
	working.ID = current.ID
	working.CreatedAt = current.CreatedAt
	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.byID[current.ID] = working
	r.mu.Unlock()
	return working.Clone(), nil
}

// prepareUser fills the fields every backend assigns on insert.
func prepareUser(user *models.User) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = normalizeEmail(user.Email)
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	user.Version = 0
	user.Normalize()
}

// prepareDonation fills the fields every backend assigns on insert.
func prepareDonation(donation *models.Donation) {
	if donation.ID == "" {
		donation.ID = uuid.NewString()
	}
	donation.Status = models.StatusAvailable
	donation.ClaimedBy = nil
	donation.DistributedBy = nil
	now := time.Now().UTC()
	if donation.CreatedAt.IsZero() {
		donation.CreatedAt = now
	}
	donation.UpdatedAt = donation.CreatedAt
	donation.Version = 0
}
