package server

import "sun/internal/models"

// The frontend keys records on "_id", so every entity view carries it next to "id".

type summaryView struct {
	models.DonationSummary
	MongoID string `json:"_id"`
}

func summaryViews(in []models.DonationSummary) []summaryView {
	out := make([]summaryView, 0, len(in))
	for _, s := range in {
		out = append(out, summaryView{DonationSummary: s, MongoID: s.ID})
	}
	return out
}

// userView never carries the password hash: models.User excludes it from JSON.
type userView struct {
	*models.User
	MongoID           string        `json:"_id"`
	DonationsMade     []summaryView `json:"donationsMade"`
	DonationsReceived []summaryView `json:"donationsReceived"`
	DonationsClaimed  []summaryView `json:"donationsClaimed"`
}

func newUserView(u *models.User) userView {
	u.Normalize()
	return userView{
		User:              u,
		MongoID:           u.ID,
		DonationsMade:     summaryViews(u.DonationsMade),
		DonationsReceived: summaryViews(u.DonationsReceived),
		DonationsClaimed:  summaryViews(u.DonationsClaimed),
	}
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type donationView struct {
	models.Donation
	MongoID string `json:"_id"`
}

func newDonationView(d *models.Donation) donationView {
	return donationView{Donation: *d, MongoID: d.ID}
}

type donorView struct {
	ID      string `json:"id"`
	MongoID string `json:"_id"`
	Name    string `json:"name"`
}

type donationWithDonorView struct {
	donationView
	Donor *donorView `json:"donor"`
}

func newDonationWithDonorView(d models.DonationWithDonor) donationWithDonorView {
	view := donationWithDonorView{donationView: newDonationView(&d.Donation)}
	if d.Donor != nil {
		view.Donor = &donorView{ID: d.Donor.ID, MongoID: d.Donor.ID, Name: d.Donor.Name}
	}
	return view
}

func donationWithDonorViews(in []models.DonationWithDonor) []donationWithDonorView {
	out := make([]donationWithDonorView, 0, len(in))
	for _, d := range in {
		out = append(out, newDonationWithDonorView(d))
	}
	return out
}

type leaderboardView struct {
	models.LeaderboardEntry
	MongoID string `json:"_id"`
}

func leaderboardViews(in []models.LeaderboardEntry) []leaderboardView {
	out := make([]leaderboardView, 0, len(in))
	for _, e := range in {
		out = append(out, leaderboardView{LeaderboardEntry: e, MongoID: e.ID})
	}
	return out
}
