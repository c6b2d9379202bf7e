package models

import "time"

// Lifecycle event types published to the realtime feed.
const (
	EventDonationCreated     = "donation.created"
	EventDonationClaimed     = "donation.claimed"
	EventDonationDistributed = "donation.distributed"
	EventCertificateAwarded  = "certificate.awarded"
)

// DonationEvent describes one lifecycle change.
type DonationEvent struct {
	Type        string    `json:"type"`
	DonationID  string    `json:"donationId"`
	ActorID     string    `json:"actorId"`
	Status      string    `json:"status,omitempty"`
	Points      int       `json:"points,omitempty"`
	Certificate string    `json:"certificate,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}
