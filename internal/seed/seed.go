// Package seed populates a store with demo participants and donations. It drives the
// same services the HTTP layer uses, so seeded data earns points and certificates
// exactly like real traffic.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sun/internal/models"
	"sun/internal/observability"
	"sun/internal/repository"
	"sun/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "password123"

// Options size the demo data set.
type Options struct {
	Users      int
	Donations  int
	Password   string
	BcryptCost int
	// RandSeed makes the generated data reproducible. Zero picks a time-based seed.
	RandSeed int64
	// Force seeds even when the store already holds users.
	Force bool
	// Events receives lifecycle events for seeded donations. Nil discards them.
	Events service.EventPublisher
}

// Result lists what was created.
type Result struct {
	Users     []*models.User
	Donations []*models.Donation
	Skipped   bool
}

var categories = []string{
	models.CategoryFood,
	models.CategoryClothes,
	models.CategoryBooks,
	models.CategoryElectronics,
	models.CategoryFurniture,
	models.CategoryOther,
}

var conditions = []string{
	string(models.ConditionNew),
	string(models.ConditionGood),
	string(models.ConditionFair),
}

func (o Options) withDefaults() Options {
	if o.Users <= 0 {
		o.Users = 12
	}
	if o.Donations == 0 {
		o.Donations = 30
	}
	if o.Password == "" {
		o.Password = DefaultPassword
	}
	if o.RandSeed == 0 {
		o.RandSeed = time.Now().UnixNano()
	}
	return o
}

// Demo registers o.Users participants across all roles and creates o.Donations donations,
// pushing roughly a third to claimed and a third of those onward to distributed.
// A store that already has users is left untouched unless o.Force is set.
func Demo(ctx context.Context, store repository.Store, o Options) (*Result, error) {
	o = o.withDefaults()

	if !o.Force {
		existing, err := store.Users().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		if len(existing) > 0 {
			observability.Logger.InfoContext(ctx, "Store already populated, skipping demo seed",
				slog.Int("users", len(existing)))
			return &Result{Skipped: true}, nil
		}
	}

	var userOpts []service.UserServiceOption
	if o.BcryptCost > 0 {
		userOpts = append(userOpts, service.WithBcryptCost(o.BcryptCost))
	}
	users := service.NewUserService(store.Users(), userOpts...)
	donations := service.NewDonationService(store.Donations(), store.Users(), o.Events)
	faker := gofakeit.New(o.RandSeed)

	res := &Result{}
	roles := []models.Role{models.RoleDonor, models.RoleOrganisation, models.RoleVolunteer}
	for i := 0; i < o.Users; i++ {
		u, err := users.Register(ctx, fakeUser(faker, i, roles[i%len(roles)], o.Password))
		if err != nil {
			return nil, fmt.Errorf("register demo user %d: %w", i, err)
		}
		res.Users = append(res.Users, u)
	}

	var donors, helpers []*models.User
	for _, u := range res.Users {
		if u.Role == models.RoleDonor {
			donors = append(donors, u)
		} else {
			helpers = append(helpers, u)
		}
	}

	for i := 0; i < o.Donations; i++ {
		donor := donors[i%len(donors)]
		d, err := donations.Create(ctx, identity(donor), fakeDonation(faker))
		if err != nil {
			return nil, fmt.Errorf("create demo donation %d: %w", i, err)
		}

		if len(helpers) > 0 && i%3 != 0 {
			helper := helpers[faker.Number(0, len(helpers)-1)]
			if d, err = donations.Claim(ctx, identity(helper), d.ID); err != nil {
				return nil, fmt.Errorf("claim demo donation %d: %w", i, err)
			}
			if i%3 == 2 {
				if d, err = donations.Distribute(ctx, identity(helper), d.ID, faker.Number(1, 40)); err != nil {
					return nil, fmt.Errorf("distribute demo donation %d: %w", i, err)
				}
			}
		}
		res.Donations = append(res.Donations, d)
	}

	observability.Logger.InfoContext(ctx, "Demo data seeded",
		slog.String("backend", store.Name()),
		slog.Int("users", len(res.Users)),
		slog.Int("donations", len(res.Donations)),
	)
	return res, nil
}

func identity(u *models.User) models.CallerIdentity {
	return models.CallerIdentity{ID: u.ID, Email: u.Email, Role: u.Role}
}

func fakeUser(f *gofakeit.Faker, i int, role models.Role, password string) service.RegisterInput {
	first, last := f.FirstName(), f.LastName()
	in := service.RegisterInput{
		Name:     first + " " + last,
		Email:    fmt.Sprintf("%s.%s.%d@example.org", slug(first), slug(last), i),
		Password: password,
		Phone:    f.Phone(),
		Role:     role,
		Location: models.Location{City: f.City(), State: f.StateAbr()},
	}
	switch role {
	case models.RoleOrganisation:
		in.Name = f.Company()
		in.OrgType = f.RandomString([]string{"shelter", "food bank", "school", "community centre"})
	case models.RoleVolunteer:
		in.Skills = strings.Join([]string{f.HackerVerb(), f.JobDescriptor()}, ", ")
	}
	return in
}

func fakeDonation(f *gofakeit.Faker) service.CreateDonationInput {
	return service.CreateDonationInput{
		Title:       f.ProductName(),
		Description: f.Sentence(12),
		Category:    f.RandomString(categories),
		Quantity:    f.Number(1, 20),
		Condition:   models.Condition(f.RandomString(conditions)),
		Location:    models.Location{City: f.City(), State: f.StateAbr()},
	}
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, s)
}
