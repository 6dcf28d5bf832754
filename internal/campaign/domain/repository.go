package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crowdvault/crowdvault/pkg/db/pagination"
	"github.com/crowdvault/crowdvault/pkg/money"
	"gorm.io/gorm"
)

type ListCampaignFilter struct {
	Owner string
}

// CampaignMutation is the set of columns a versioned update may change.
// Nil fields are left untouched.
type CampaignMutation struct {
	AmountCollected *money.Amount
	DonationCount   *int64
	Claimed         *bool
	State           *State
}

// Repository methods take the *gorm.DB handle explicitly so callers can
// pass either the pooled handle or an open transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, campaign *Campaign) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Campaign, error)
	List(ctx context.Context, db *gorm.DB, filter ListCampaignFilter, page pagination.Pagination) ([]*Campaign, error)
	// UpdateVersioned applies the mutation iff the row still carries
	// expectedVersion, bumping the version on success. It reports false
	// when a concurrent writer got there first.
	UpdateVersioned(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, mut CampaignMutation) (bool, error)
	CountActiveByOwner(ctx context.Context, db *gorm.DB, owner string, now time.Time) (int64, error)

	InsertDonation(ctx context.Context, db *gorm.DB, donation *Donation) error
	ListDonations(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) ([]*Donation, error)
	DonorTotal(ctx context.Context, db *gorm.DB, campaignID snowflake.ID, donor string) (money.Amount, error)

	// InsertRefund writes the refund record with ON CONFLICT DO NOTHING
	// semantics and reports whether this call inserted the row.
	InsertRefund(ctx context.Context, db *gorm.DB, refund *Refund) (bool, error)
	FindRefund(ctx context.Context, db *gorm.DB, campaignID snowflake.ID, donor string) (*Refund, error)
}
