package models

import (
	"math"
	"time"
)

// DealStatus is a step in the sales pipeline.
type DealStatus string

const (
	DealInterested       DealStatus = "interested"
	DealContacted        DealStatus = "contacted"
	DealViewingScheduled DealStatus = "viewing_scheduled"
	DealOfferMade        DealStatus = "offer_made"
	DealNegotiating      DealStatus = "negotiating"
	DealClosed           DealStatus = "closed"
	DealCancelled        DealStatus = "cancelled"
)

var dealStatuses = map[DealStatus]struct{}{
	DealInterested:       {},
	DealContacted:        {},
	DealViewingScheduled: {},
	DealOfferMade:        {},
	DealNegotiating:      {},
	DealClosed:           {},
	DealCancelled:        {},
}

// Valid reports whether s is a known pipeline status.
func (s DealStatus) Valid() bool {
	_, ok := dealStatuses[s]
	return ok
}

// Terminal reports whether no further work is expected on a deal in s.
func (s DealStatus) Terminal() bool {
	return s == DealClosed || s == DealCancelled
}

// DealNote is a free-text note attached to a deal.
type DealNote struct {
	ID        string    `bson:"id" json:"id"`
	Content   string    `bson:"content" json:"content"`
	CreatedBy string    `bson:"created_by" json:"createdBy"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// StatusChange records one pipeline transition.
type StatusChange struct {
	From DealStatus `bson:"from" json:"from"`
	To   DealStatus `bson:"to" json:"to"`
	At   time.Time  `bson:"at" json:"at"`
}

// Deal tracks an agent's work on one property.
type Deal struct {
	ID         string     `bson:"_id" json:"id"`
	PropertyID string     `bson:"property_id" json:"propertyId"`
	AgentID    string     `bson:"agent_id" json:"agentId"`
	Status     DealStatus `bson:"status" json:"status"`

	OriginalPrice        float64 `bson:"original_price" json:"originalPrice"`
	FinalPrice           float64 `bson:"final_price" json:"finalPrice,omitempty"`
	CommissionPercentage float64 `bson:"commission_percentage" json:"commissionPercentage"`
	CommissionAmount     float64 `bson:"commission_amount" json:"commissionAmount,omitempty"`
	PotentialProfit      float64 `bson:"potential_profit" json:"potentialProfit,omitempty"`

	InterestedAt       time.Time  `bson:"interested_at" json:"interestedAt"`
	ContactedAt        *time.Time `bson:"contacted_at,omitempty" json:"contactedAt,omitempty"`
	ViewingScheduledAt *time.Time `bson:"viewing_scheduled_at,omitempty" json:"viewingScheduledAt,omitempty"`
	OfferMadeAt        *time.Time `bson:"offer_made_at,omitempty" json:"offerMadeAt,omitempty"`
	ClosedAt           *time.Time `bson:"closed_at,omitempty" json:"closedAt,omitempty"`
	CancelledAt        *time.Time `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`

	Notes   []DealNote     `bson:"notes" json:"notes"`
	History []StatusChange `bson:"history" json:"history"`

	ContactName  string `bson:"contact_name" json:"contactName,omitempty"`
	ContactPhone string `bson:"contact_phone" json:"contactPhone,omitempty"`
	ContactEmail string `bson:"contact_email" json:"contactEmail,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`

	// Version counts saves; a store rejects a save whose Version is stale.
	Version int `bson:"version" json:"version"`
}

// IsActive reports whether the deal is still in progress.
func (d *Deal) IsActive() bool {
	return !d.Status.Terminal()
}

// ROI is the potential profit as a whole percentage of the final price.
func (d *Deal) ROI() int {
	if d.PotentialProfit == 0 || d.FinalPrice == 0 {
		return 0
	}
	return int(math.Floor(d.PotentialProfit/d.FinalPrice*100 + 0.5))
}

// DurationDays counts started days since the deal was opened.
func (d *Deal) DurationDays(now time.Time) int {
	if d.CreatedAt.IsZero() {
		return 0
	}
	return int(math.Ceil(now.Sub(d.CreatedAt).Hours() / 24))
}
