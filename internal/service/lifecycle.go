package service

import (
	"time"

	"sun/internal/models"
)

// Points granted per lifecycle step.
const (
	PointsForDonation     = 10
	PointsForClaim        = 5
	PointsForDistribution = 5
)

// milestone pairs a certificate with the action count that earns it.
type milestone struct {
	name      string
	threshold int
}

// milestones are checked in order, so lower thresholds are awarded first.
var milestones = []milestone{
	{models.CertificateActiveContributor, 5},
	{models.CertificateSuperHelper, 10},
}

// Transition rules. They only read Donation.Status; user summaries are never consulted.

func applyClaim(d *models.Donation, callerID string) error {
	if d.Status != models.StatusAvailable {
		return models.NewInvalidTransitionError("Donation is not available for claiming")
	}
	d.Status = models.StatusClaimed
	claimer := callerID
	d.ClaimedBy = &claimer
	return nil
}

func applyDistribute(d *models.Donation, callerID string, peopleHelped int) error {
	if d.Status != models.StatusClaimed {
		return models.NewInvalidTransitionError("Donation must be claimed before it can be distributed")
	}
	d.Status = models.StatusDistributed
	distributor := callerID
	d.DistributedBy = &distributor
	d.PeopleHelped = peopleHelped
	return nil
}

// revertClaim undoes applyClaim when the claimer could not be credited.
func revertClaim(callerID string) func(*models.Donation) error {
	return func(d *models.Donation) error {
		if d.Status != models.StatusClaimed || d.ClaimedBy == nil || *d.ClaimedBy != callerID {
			return errCompensationSkipped
		}
		d.Status = models.StatusAvailable
		d.ClaimedBy = nil
		return nil
	}
}

// revertDistribute undoes applyDistribute when the distributor could not be credited.
func revertDistribute(callerID string, peopleHelped int) func(*models.Donation) error {
	return func(d *models.Donation) error {
		if d.Status != models.StatusDistributed || d.DistributedBy == nil || *d.DistributedBy != callerID {
			return errCompensationSkipped
		}
		d.Status = models.StatusClaimed
		d.DistributedBy = nil
		d.PeopleHelped = peopleHelped
		return nil
	}
}

// Credit rules. Points only ever increase.

func creditDonation(summary models.DonationSummary) func(*models.User) error {
	return func(u *models.User) error {
		u.DonationsMade = append(u.DonationsMade, summary)
		u.Points += PointsForDonation
		return nil
	}
}

func creditClaim(summary models.DonationSummary) func(*models.User) error {
	return func(u *models.User) error {
		u.DonationsClaimed = append(u.DonationsClaimed, summary)
		u.Points += PointsForClaim
		return nil
	}
}

// creditDistribution adds the distribution points and records any certificates earned into awarded.
func creditDistribution(now time.Time, awarded *[]string) func(*models.User) error {
	return func(u *models.User) error {
		u.Points += PointsForDistribution
		*awarded = awardCertificates(u, now)
		return nil
	}
}

// awardCertificates grants every milestone the user has reached and not yet received.
func awardCertificates(u *models.User, now time.Time) []string {
	total := u.TotalActions()
	var awarded []string
	for _, m := range milestones {
		if total >= m.threshold && !u.HasCertificate(m.name) {
			u.Certificates = append(u.Certificates, models.Certificate{Name: m.name, AwardedDate: now})
			awarded = append(awarded, m.name)
		}
	}
	return awarded
}

// mirrorStatus updates the matching summary in the list picked by list.
// A missing summary is not an error: the mirror is display data only.
func mirrorStatus(donationID string, status models.DonationStatus, list func(*models.User) []models.DonationSummary) func(*models.User) error {
	return func(u *models.User) error {
		entries := list(u)
		for i := range entries {
			if entries[i].ID == donationID {
				entries[i].Status = status
			}
		}
		return nil
	}
}

func madeList(u *models.User) []models.DonationSummary    { return u.DonationsMade }
func claimedList(u *models.User) []models.DonationSummary { return u.DonationsClaimed }
