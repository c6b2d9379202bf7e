package models

import "time"

// DonationStatus is a lifecycle state. Transitions only move forward:
// available -> claimed -> distributed.
type DonationStatus string

const (
	StatusAvailable   DonationStatus = "available"
	StatusClaimed     DonationStatus = "claimed"
	StatusDistributed DonationStatus = "distributed"
)

// Condition describes the state of a donated item.
type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionGood Condition = "good"
	ConditionFair Condition = "fair"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair:
		return true
	}
	return false
}

// Well-known categories offered by the frontend. Other non-empty values are accepted.
const (
	CategoryFood        = "food"
	CategoryClothes     = "clothes"
	CategoryBooks       = "books"
	CategoryElectronics = "electronics"
	CategoryFurniture   = "furniture"
	CategoryOther       = "other"
)

// Donation is an item listed by a donor.
type Donation struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	Title         string         `gorm:"not null" json:"title" bson:"title"`
	Description   string         `json:"description" bson:"description"`
	Category      string         `gorm:"size:64;not null;index" json:"category" bson:"category"`
	Quantity      int            `gorm:"not null;default:1" json:"quantity" bson:"quantity"`
	Condition     Condition      `gorm:"size:16;not null;default:good" json:"condition" bson:"condition"`
	Location      Location       `gorm:"embedded;embeddedPrefix:location_" json:"location" bson:"location"`
	Status        DonationStatus `gorm:"size:16;not null;index" json:"status" bson:"status"`
	DonorID       string         `gorm:"size:36;not null;index" json:"donorId" bson:"donorId"`
	ClaimedBy     *string        `gorm:"size:36" json:"claimedBy" bson:"claimedBy"`
	DistributedBy *string        `gorm:"size:36" json:"distributedBy" bson:"distributedBy"`
	PeopleHelped  int            `gorm:"not null;default:0" json:"peopleHelped" bson:"peopleHelped"`
	Version       int64          `gorm:"not null;default:0" json:"-" bson:"version"`
	CreatedAt     time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy of d.
func (d *Donation) Clone() *Donation {
	if d == nil {
		return nil
	}
	out := *d
	if d.ClaimedBy != nil {
		v := *d.ClaimedBy
		out.ClaimedBy = &v
	}
	if d.DistributedBy != nil {
		v := *d.DistributedBy
		out.DistributedBy = &v
	}
	return &out
}

// Summary builds the denormalized entry stored in user lists.
func (d *Donation) Summary() DonationSummary {
	return DonationSummary{
		ID:       d.ID,
		Title:    d.Title,
		Category: d.Category,
		Status:   d.Status,
	}
}

// DonorRef is the donor display data joined onto donation listings.
type DonorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DonationWithDonor is a donation joined with its donor's display name.
// Donor is nil when the donor record no longer resolves.
type DonationWithDonor struct {
	Donation
	Donor *DonorRef `json:"donor"`
}
