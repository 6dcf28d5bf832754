package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crowdvault/crowdvault/internal/campaign/domain"
	"github.com/crowdvault/crowdvault/pkg/db/pagination"
	"github.com/crowdvault/crowdvault/pkg/money"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, campaign *domain.Campaign) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO campaigns (
			id, owner, title, description, image, target, deadline,
			amount_collected, donation_count, claimed, state, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		campaign.ID,
		campaign.Owner,
		campaign.Title,
		campaign.Description,
		campaign.Image,
		campaign.Target,
		campaign.Deadline,
		campaign.AmountCollected,
		campaign.DonationCount,
		campaign.Claimed,
		campaign.State,
		campaign.Version,
		campaign.CreatedAt,
		campaign.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	var campaign domain.Campaign
	err := db.WithContext(ctx).Raw(
		`SELECT id, owner, title, description, image, target, deadline,
			amount_collected, donation_count, claimed, state, version, created_at, updated_at
		 FROM campaigns WHERE id = ?`,
		id,
	).Scan(&campaign).Error
	if err != nil {
		return nil, err
	}
	if campaign.ID == 0 {
		return nil, nil
	}
	return &campaign, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCampaignFilter, page pagination.Pagination) ([]*domain.Campaign, error) {
	var campaigns []*domain.Campaign
	stmt := db.WithContext(ctx).Model(&domain.Campaign{})
	if filter.Owner != "" {
		stmt = stmt.Where("owner = ?", filter.Owner)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, err
		}
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, cursorID)
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 20
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *repo) UpdateVersioned(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, mut domain.CampaignMutation) (bool, error) {
	updates := map[string]any{
		"version":    expectedVersion + 1,
		"updated_at": time.Now().UTC(),
	}
	if mut.AmountCollected != nil {
		updates["amount_collected"] = *mut.AmountCollected
	}
	if mut.DonationCount != nil {
		updates["donation_count"] = *mut.DonationCount
	}
	if mut.Claimed != nil {
		updates["claimed"] = *mut.Claimed
	}
	if mut.State != nil {
		updates["state"] = *mut.State
	}

	result := db.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CountActiveByOwner(ctx context.Context, db *gorm.DB, owner string, now time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("owner = ? AND deadline > ?", owner, now).
		Count(&count).Error
	return count, err
}

func (r *repo) InsertDonation(ctx context.Context, db *gorm.DB, donation *domain.Donation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO donations (id, campaign_id, donor, amount, sequence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		donation.ID,
		donation.CampaignID,
		donation.Donor,
		donation.Amount,
		donation.Sequence,
		donation.CreatedAt,
	).Error
}

func (r *repo) ListDonations(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) ([]*domain.Donation, error) {
	var donations []*domain.Donation
	err := db.WithContext(ctx).
		Model(&domain.Donation{}).
		Where("campaign_id = ?", campaignID).
		Order("sequence asc").
		Find(&donations).Error
	if err != nil {
		return nil, err
	}
	return donations, nil
}

func (r *repo) DonorTotal(ctx context.Context, db *gorm.DB, campaignID snowflake.ID, donor string) (money.Amount, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM donations WHERE campaign_id = ? AND donor = ?`,
		campaignID,
		donor,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return money.Amount(total), nil
}

func (r *repo) InsertRefund(ctx context.Context, db *gorm.DB, refund *domain.Refund) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "donor"}},
			DoNothing: true,
		}).
		Create(refund)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindRefund(ctx context.Context, db *gorm.DB, campaignID snowflake.ID, donor string) (*domain.Refund, error) {
	var refund domain.Refund
	err := db.WithContext(ctx).Raw(
		`SELECT id, campaign_id, donor, amount, created_at
		 FROM refunds WHERE campaign_id = ? AND donor = ?`,
		campaignID,
		donor,
	).Scan(&refund).Error
	if err != nil {
		return nil, err
	}
	if refund.ID == 0 {
		return nil, nil
	}
	return &refund, nil
}
