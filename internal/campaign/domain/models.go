package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crowdvault/crowdvault/pkg/money"
)

// Campaign is the funding ledger's aggregate: a target, a deadline and
// the running total of recorded donations. State is a cached copy of the
// live classification; every gated mutation re-derives before acting.
// Version backs the optimistic compare-and-update discipline; the only
// write path is an UPDATE guarded by the expected version.
type Campaign struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Owner           string       `gorm:"not null;index" json:"owner"`
	Title           string       `gorm:"not null" json:"title"`
	Description     string       `gorm:"not null" json:"description"`
	Image           string       `gorm:"not null" json:"image"`
	Target          money.Amount `gorm:"not null" json:"target"`
	Deadline        time.Time    `gorm:"not null;index" json:"deadline"`
	AmountCollected money.Amount `gorm:"not null;default:0" json:"amount_collected"`
	DonationCount   int64        `gorm:"not null;default:0" json:"donation_count"`
	Claimed         bool         `gorm:"not null;default:false" json:"claimed"`
	State           State        `gorm:"type:text;not null" json:"state"`
	Version         int64        `gorm:"not null;default:1" json:"-"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Campaign) TableName() string { return "campaigns" }

// Donation is one immutable contribution entry. Sequence is strictly
// increasing per campaign and assigned in the same transaction that bumps
// the campaign aggregate, so the sum of entries always equals
// AmountCollected.
type Donation struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CampaignID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_donations_campaign_seq,priority:1" json:"campaign_id"`
	Donor      string       `gorm:"not null;index" json:"donor"`
	Amount     money.Amount `gorm:"not null" json:"amount"`
	Sequence   int64        `gorm:"not null;uniqueIndex:ux_donations_campaign_seq,priority:2" json:"sequence"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Donation) TableName() string { return "donations" }

// Refund records that a donor has claimed back their cumulative donation
// from a failed campaign. Row existence is the claimed flag: the insert
// uses ON CONFLICT DO NOTHING on (campaign_id, donor), so a refund can be
// granted at most once per donor per campaign.
type Refund struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CampaignID snowflake.ID `gorm:"not null;uniqueIndex:ux_refunds_campaign_donor,priority:1" json:"campaign_id"`
	Donor      string       `gorm:"not null;uniqueIndex:ux_refunds_campaign_donor,priority:2" json:"donor"`
	Amount     money.Amount `gorm:"not null" json:"amount"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Refund) TableName() string { return "refunds" }
