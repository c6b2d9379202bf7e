package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sun/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errConcurrentUpdate means a guarded update matched no row because the version moved.
var errConcurrentUpdate = errors.New("concurrent update detected")

// GormStore persists users and donations in a relational database through GORM.
type GormStore struct {
	db        *gorm.DB
	users     *userRepository
	donations *donationRepository
}

// NewGormStore wraps an open GORM connection. The schema must already be migrated.
func NewGormStore(db *gorm.DB) *GormStore {
	backend := db.Dialector.Name()
	return &GormStore{
		db:        db,
		users:     &userRepository{db: db, obs: newInstrumentation(backend, "users")},
		donations: &donationRepository{db: db, obs: newInstrumentation(backend, "donations")},
	}
}

// NewUserRepository returns a GORM-backed UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return NewGormStore(db).users
}

// NewDonationRepository returns a GORM-backed DonationRepository.
func NewDonationRepository(db *gorm.DB) DonationRepository {
	return NewGormStore(db).donations
}

func (s *GormStore) Users() UserRepository         { return s.users }
func (s *GormStore) Donations() DonationRepository { return s.donations }
func (s *GormStore) Name() string                  { return s.db.Dialector.Name() }

// Ping checks the underlying SQL connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the SQL connection pool.
func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports row locks.
// SQLite serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == BackendPostgres {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

type userRepository struct {
	db  *gorm.DB
	obs *instrumentation
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := r.obs.start(ctx, "Create")
	defer func() { done(err) }()

	prepareUser(user)
	if err = r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueConstraintError(err) {
			return models.NewDuplicateEmailError()
		}
		return models.NewInternalError(err)
	}
	r.obs.log.LogCreate(ctx, user.ID)
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (_ *models.User, err error) {
	ctx, done := r.obs.start(ctx, "GetByID")
	defer func() { done(err) }()

	var user models.User
	if err = r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	user.Normalize()
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	ctx, done := r.obs.start(ctx, "GetByEmail")
	defer func() { done(err) }()

	var user models.User
	if err = r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	user.Normalize()
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) (_ []*models.User, err error) {
	ctx, done := r.obs.start(ctx, "List")
	defer func() { done(err) }()

	var users []*models.User
	if err = r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, u := range users {
		u.Normalize()
	}
	return users, nil
}

func (r *userRepository) Mutate(ctx context.Context, id string, fn UserMutator) (_ *models.User, err error) {
	ctx, done := r.obs.start(ctx, "Mutate")
	defer func() { done(err) }()

	var result *models.User
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.User
		if err := lockForUpdate(tx).Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return err
		}
		current.Normalize()

		working := current.Clone()
		if err := fn(working); err != nil {
			return err
		}
		working.ID = current.ID
		working.Email = current.Email
		working.CreatedAt = current.CreatedAt
		working.Version = current.Version + 1
		working.UpdatedAt = time.Now().UTC()

		res := tx.Model(&models.User{}).
			Where("id = ? AND version = ?", current.ID, current.Version).
			Select("*").Omit("id", "created_at").
			Updates(working)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("user %s: %w", id, errConcurrentUpdate)
		}
		result = working
		return nil
	})
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return result, nil
}

type donationRepository struct {
	db  *gorm.DB
	obs *instrumentation
}

func (r *donationRepository) Create(ctx context.Context, donation *models.Donation) (err error) {
	ctx, done := r.obs.start(ctx, "Create")
	defer func() { done(err) }()

	prepareDonation(donation)
	if err = r.db.WithContext(ctx).Create(donation).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.obs.log.LogCreate(ctx, donation.ID)
	return nil
}

func (r *donationRepository) GetByID(ctx context.Context, id string) (_ *models.Donation, err error) {
	ctx, done := r.obs.start(ctx, "GetByID")
	defer func() { done(err) }()

	var donation models.Donation
	if err = r.db.WithContext(ctx).Where("id = ?", id).First(&donation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Donation", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &donation, nil
}

func (r *donationRepository) List(ctx context.Context) (_ []*models.Donation, err error) {
	ctx, done := r.obs.start(ctx, "List")
	defer func() { done(err) }()

	var donations []*models.Donation
	if err = r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&donations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return donations, nil
}

func (r *donationRepository) Mutate(ctx context.Context, id string, fn DonationMutator) (_ *models.Donation, err error) {
	ctx, done := r.obs.start(ctx, "Mutate")
	defer func() { done(err) }()

	var result *models.Donation
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Donation
		if err := lockForUpdate(tx).Where("id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Donation", id)
			}
			return err
		}

		working := current.Clone()
		if err := fn(working); err != nil {
			return err
		}
		working.ID = current.ID
		working.CreatedAt = current.CreatedAt
		working.Version = current.Version + 1
		working.UpdatedAt = time.Now().UTC()

		res := tx.Model(&models.Donation{}).
			Where("id = ? AND version = ?", current.ID, current.Version).
			Select("*").Omit("id", "created_at").
			Updates(working)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("donation %s: %w", id, errConcurrentUpdate)
		}
		result = working
		return nil
	})
	if err != nil {
		return nil, wrapStoreError(err)
	}
	return result, nil
}

// wrapStoreError passes application errors through and hides driver errors behind InternalError.
func wrapStoreError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
