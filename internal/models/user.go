// Package models contains data structures for the application's domain models.
package models

import "time"

// Role is the participant type chosen at registration.
type Role string

const (
	RoleDonor        Role = "donor"
	RoleOrganisation Role = "organisation"
	RoleVolunteer    Role = "volunteer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleOrganisation, RoleVolunteer:
		return true
	}
	return false
}

// Certificate names awarded at action milestones.
const (
	CertificateActiveContributor = "Active Contributor"
	CertificateSuperHelper       = "Super Helper"
)

// Location is a coarse city/state pair shared by users and donations.
type Location struct {
	City  string `json:"city" bson:"city"`
	State string `json:"state" bson:"state"`
}

// DonationSummary is the denormalized copy of a donation embedded in a user's lists.
// It is display data only and never consulted for transition rules.
type DonationSummary struct {
	ID       string         `json:"id" bson:"id"`
	Title    string         `json:"title" bson:"title"`
	Category string         `json:"category" bson:"category"`
	Status   DonationStatus `json:"status" bson:"status"`
}

// Certificate is a milestone award.
type Certificate struct {
	Name        string    `json:"name" bson:"name"`
	AwardedDate time.Time `json:"awardedDate" bson:"awardedDate"`
}

// User represents a registered participant.
type User struct {
	ID                string            `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	Name              string            `gorm:"not null" json:"name" bson:"name"`
	Email             string            `gorm:"uniqueIndex;not null" json:"email" bson:"email"`
	Password          string            `gorm:"not null" json:"-" bson:"password"`
	Phone             string            `json:"phone" bson:"phone"`
	Role              Role              `gorm:"size:32;not null;default:donor" json:"role" bson:"role"`
	Location          Location          `gorm:"embedded;embeddedPrefix:location_" json:"location" bson:"location"`
	OrgType           string            `json:"orgType" bson:"orgType"`
	Skills            string            `json:"skills" bson:"skills"`
	Points            int               `gorm:"not null;default:0;index" json:"points" bson:"points"`
	DonationsMade     []DonationSummary `gorm:"serializer:json;type:text" json:"donationsMade" bson:"donationsMade"`
	DonationsReceived []DonationSummary `gorm:"serializer:json;type:text" json:"donationsReceived" bson:"donationsReceived"`
	DonationsClaimed  []DonationSummary `gorm:"serializer:json;type:text" json:"donationsClaimed" bson:"donationsClaimed"`
	Certificates      []Certificate     `gorm:"serializer:json;type:text" json:"certificates" bson:"certificates"`
	Version           int64             `gorm:"not null;default:0" json:"-" bson:"version"`
	CreatedAt         time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// Normalize replaces nil lists with empty ones so they encode as [] rather than null.
func (u *User) Normalize() {
	if u.DonationsMade == nil {
		u.DonationsMade = []DonationSummary{}
	}
	if u.DonationsReceived == nil {
		u.DonationsReceived = []DonationSummary{}
	}
	if u.DonationsClaimed == nil {
		u.DonationsClaimed = []DonationSummary{}
	}
	if u.Certificates == nil {
		u.Certificates = []Certificate{}
	}
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.DonationsMade = append([]DonationSummary{}, u.DonationsMade...)
	out.DonationsReceived = append([]DonationSummary{}, u.DonationsReceived...)
	out.DonationsClaimed = append([]DonationSummary{}, u.DonationsClaimed...)
	out.Certificates = append([]Certificate{}, u.Certificates...)
	return &out
}

// HasCertificate reports whether the named certificate was already awarded.
func (u *User) HasCertificate(name string) bool {
	for _, c := range u.Certificates {
		if c.Name == name {
			return true
		}
	}
	return false
}

// TotalActions is the milestone counter: donations made plus donations claimed.
// Donations received are not counted.
func (u *User) TotalActions() int {
	return len(u.DonationsMade) + len(u.DonationsClaimed)
}

// CallerIdentity is the authenticated user attached to a request.
type CallerIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	Points int    `json:"points"`
	// Certificates lists awarded certificate names. Only populated when the
	// leaderboard_certificates flag is on.
	Certificates []string `json:"certificates,omitempty"`
}
