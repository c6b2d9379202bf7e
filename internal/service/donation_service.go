package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sun/internal/models"
	"sun/internal/observability"
	"sun/internal/repository"
	"sun/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// EventPublisher receives lifecycle events after a transition is committed.
type EventPublisher interface {
	Publish(ctx context.Context, event models.DonationEvent) error
}

// DonationService is the lifecycle engine: create, claim and distribute donations
// and credit the users involved.
type DonationService struct {
	donations repository.DonationRepository
	users     repository.UserRepository
	events    EventPublisher
	now       func() time.Time
}

// CreateDonationInput is the payload for a new listing.
type CreateDonationInput struct {
	Title       string
	Description string
	Category    string
	Quantity    int
	Condition   models.Condition
	Location    models.Location
}

// NewDonationService wires the engine. events may be nil.
func NewDonationService(donations repository.DonationRepository, users repository.UserRepository, events EventPublisher) *DonationService {
	return &DonationService{
		donations: donations,
		users:     users,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// requireUser rejects callers whose account no longer exists.
func (s *DonationService) requireUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Not authorized, user not found")
	}
	return user, nil
}

// Create lists a new donation for caller and credits the donor with a summary and points.
func (s *DonationService) Create(ctx context.Context, caller models.CallerIdentity, in CreateDonationInput) (*models.Donation, error) {
	span, ctx := observability.NewSpan(ctx, "DonationService.Create")
	defer span.End()

	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Category) == "" {
		return nil, models.NewValidationError("Title and category are required")
	}
	for _, check := range []error{
		validation.ValidateTitle(in.Title),
		validation.ValidateDescription(in.Description),
		validation.ValidateCategory(in.Category),
		validation.ValidateQuantity(in.Quantity),
		validation.ValidateCondition(in.Condition),
	} {
		if check != nil {
			return nil, models.NewValidationError(check.Error())
		}
	}

	if _, err := s.requireUser(ctx, caller.ID); err != nil {
		return nil, err
	}

	quantity := in.Quantity
	if quantity == 0 {
		quantity = 1
	}
	condition := in.Condition
	if condition == "" {
		condition = models.ConditionGood
	}

	donation := &models.Donation{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Quantity:    quantity,
		Condition:   condition,
		Location:    in.Location,
		DonorID:     caller.ID,
	}
	if err := s.donations.Create(ctx, donation); err != nil {
		span.SetError(err)
		return nil, err
	}
	span.AddAttributes(attribute.String("donation.id", donation.ID))

	if _, err := s.users.Mutate(ctx, caller.ID, creditDonation(donation.Summary())); err != nil {
		span.SetError(err)
		observability.Logger.ErrorContext(ctx, "failed to credit donor",
			slog.String("donation_id", donation.ID),
			slog.String("error", err.Error()),
		)
		return nil, models.NewInternalError(err)
	}
	observability.PointsAwarded.WithLabelValues("donation").Add(PointsForDonation)

	s.publish(ctx, models.DonationEvent{
		Type:       models.EventDonationCreated,
		DonationID: donation.ID,
		ActorID:    caller.ID,
		Status:     string(donation.Status),
		Points:     PointsForDonation,
	})
	return donation, nil
}

// Claim moves an available donation to claimed and credits the claimer.
func (s *DonationService) Claim(ctx context.Context, caller models.CallerIdentity, donationID string) (*models.Donation, error) {
	span, ctx := observability.NewSpan(ctx, "DonationService.Claim")
	defer span.End()
	span.AddAttributes(attribute.String("donation.id", donationID))

	if _, err := s.requireUser(ctx, caller.ID); err != nil {
		return nil, err
	}

	donation, err := s.donations.Mutate(ctx, donationID, func(d *models.Donation) error {
		return applyClaim(d, caller.ID)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.users.Mutate(ctx, caller.ID, creditClaim(donation.Summary())); err != nil {
		span.SetError(err)
		s.compensate(ctx, donationID, "claim", revertClaim(caller.ID), err)
		return nil, models.NewInternalError(err)
	}
	observability.DonationTransitions.WithLabelValues(string(models.StatusClaimed)).Inc()
	observability.PointsAwarded.WithLabelValues("claim").Add(PointsForClaim)

	s.mirror(ctx, donation.DonorID, mirrorStatus(donation.ID, models.StatusClaimed, madeList))

	s.publish(ctx, models.DonationEvent{
		Type:       models.EventDonationClaimed,
		DonationID: donation.ID,
		ActorID:    caller.ID,
		Status:     string(donation.Status),
		Points:     PointsForClaim,
	})
	return donation, nil
}

// Distribute moves a claimed donation to distributed, credits the distributor and
// awards any milestone certificates now reached.
func (s *DonationService) Distribute(ctx context.Context, caller models.CallerIdentity, donationID string, peopleHelped int) (*models.Donation, error) {
	span, ctx := observability.NewSpan(ctx, "DonationService.Distribute")
	defer span.End()
	span.AddAttributes(attribute.String("donation.id", donationID))

	if err := validation.ValidatePeopleHelped(peopleHelped); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.requireUser(ctx, caller.ID); err != nil {
		return nil, err
	}

	var previousPeopleHelped int
	donation, err := s.donations.Mutate(ctx, donationID, func(d *models.Donation) error {
		previousPeopleHelped = d.PeopleHelped
		return applyDistribute(d, caller.ID, peopleHelped)
	})
	if err != nil {
		return nil, err
	}

	var awarded []string
	if _, err := s.users.Mutate(ctx, caller.ID, creditDistribution(s.now(), &awarded)); err != nil {
		span.SetError(err)
		s.compensate(ctx, donationID, "distribute", revertDistribute(caller.ID, previousPeopleHelped), err)
		return nil, models.NewInternalError(err)
	}
	observability.DonationTransitions.WithLabelValues(string(models.StatusDistributed)).Inc()
	observability.PointsAwarded.WithLabelValues("distribution").Add(PointsForDistribution)

	s.mirror(ctx, donation.DonorID, mirrorStatus(donation.ID, models.StatusDistributed, madeList))
	if donation.ClaimedBy != nil {
		s.mirror(ctx, *donation.ClaimedBy, mirrorStatus(donation.ID, models.StatusDistributed, claimedList))
	}

	s.publish(ctx, models.DonationEvent{
		Type:       models.EventDonationDistributed,
		DonationID: donation.ID,
		ActorID:    caller.ID,
		Status:     string(donation.Status),
		Points:     PointsForDistribution,
	})
	for _, name := range awarded {
		observability.CertificatesAwarded.WithLabelValues(name).Inc()
		s.publish(ctx, models.DonationEvent{
			Type:        models.EventCertificateAwarded,
			DonationID:  donation.ID,
			ActorID:     caller.ID,
			Certificate: name,
		})
	}
	return donation, nil
}

// compensate reverts a donation transition after the caller's credit failed.
func (s *DonationService) compensate(ctx context.Context, donationID, step string, revert repository.DonationMutator, cause error) {
	_, err := s.donations.Mutate(context.WithoutCancel(ctx), donationID, revert)
	if err == nil {
		observability.Logger.WarnContext(ctx, "reverted donation transition after credit failure",
			slog.String("donation_id", donationID),
			slog.String("step", step),
			slog.String("cause", cause.Error()),
		)
		return
	}
	level := slog.LevelError
	if errors.Is(err, errCompensationSkipped) {
		level = slog.LevelWarn
	}
	observability.Logger.Log(ctx, level, "could not revert donation transition",
		slog.String("donation_id", donationID),
		slog.String("step", step),
		slog.String("cause", cause.Error()),
		slog.String("error", err.Error()),
	)
}

// mirror applies a best-effort summary update. Failures are logged and counted, never returned.
func (s *DonationService) mirror(ctx context.Context, userID string, fn repository.UserMutator) {
	if _, err := s.users.Mutate(context.WithoutCancel(ctx), userID, fn); err != nil {
		observability.SummarySyncFailures.Inc()
		observability.Logger.WarnContext(ctx, "failed to update donation summary",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *DonationService) publish(ctx context.Context, event models.DonationEvent) {
	if s.events == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.events.Publish(ctx, event); err != nil {
		observability.Logger.WarnContext(ctx, "failed to publish donation event",
			slog.String("type", event.Type),
			slog.String("donation_id", event.DonationID),
			slog.String("error", err.Error()),
		)
	}
}

// List returns every donation joined with its donor's display name, in insertion order.
func (s *DonationService) List(ctx context.Context) ([]models.DonationWithDonor, error) {
	donations, err := s.donations.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.withDonors(ctx, donations)
}

// ListAvailable returns only donations that can still be claimed.
func (s *DonationService) ListAvailable(ctx context.Context) ([]models.DonationWithDonor, error) {
	donations, err := s.donations.List(ctx)
	if err != nil {
		return nil, err
	}
	available := donations[:0]
	for _, d := range donations {
		if d.Status == models.StatusAvailable {
			available = append(available, d)
		}
	}
	return s.withDonors(ctx, available)
}

// Get returns one donation joined with its donor.
func (s *DonationService) Get(ctx context.Context, id string) (*models.DonationWithDonor, error) {
	donation, err := s.donations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	joined, err := s.withDonors(ctx, []*models.Donation{donation})
	if err != nil {
		return nil, err
	}
	return &joined[0], nil
}

// withDonors resolves each distinct donor once. A donor that no longer resolves yields a nil Donor.
func (s *DonationService) withDonors(ctx context.Context, donations []*models.Donation) ([]models.DonationWithDonor, error) {
	donors := make(map[string]*models.DonorRef)
	out := make([]models.DonationWithDonor, 0, len(donations))
	for _, d := range donations {
		ref, seen := donors[d.DonorID]
		if !seen {
			user, err := s.users.GetByID(ctx, d.DonorID)
			if err != nil {
				return nil, err
			}
			if user != nil {
				ref = &models.DonorRef{ID: user.ID, Name: user.Name}
			}
			donors[d.DonorID] = ref
		}
		out = append(out, models.DonationWithDonor{Donation: *d, Donor: ref})
	}
	return out, nil
}
