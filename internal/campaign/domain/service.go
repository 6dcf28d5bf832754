package domain

import (
	"context"
	"errors"
	"time"

	"github.com/crowdvault/crowdvault/pkg/db/pagination"
	"github.com/crowdvault/crowdvault/pkg/money"
)

type CreateCampaignRequest struct {
	Owner       string
	Title       string
	Description string
	Image       string
	Target      money.Amount
	Deadline    time.Time
}

type DonateRequest struct {
	CampaignID string
	Donor      string
	Amount     money.Amount
}

type ClaimFundsRequest struct {
	CampaignID string
	Caller     string
}

type ClaimRefundRequest struct {
	CampaignID string
	Donor      string
}

type ListCampaignRequest struct {
	PageToken string
	PageSize  int32
	Owner     string
}

type ListCampaignResponse struct {
	pagination.PageInfo
	Campaigns []Campaign `json:"campaigns"`
}

// DonateResult reports the new aggregate after a recorded donation.
type DonateResult struct {
	Donation        Donation     `json:"donation"`
	AmountCollected money.Amount `json:"amount_collected"`
}

type Service interface {
	Create(ctx context.Context, req CreateCampaignRequest) (Campaign, error)
	Donate(ctx context.Context, req DonateRequest) (DonateResult, error)
	ClaimFunds(ctx context.Context, req ClaimFundsRequest) (Campaign, error)
	ClaimRefund(ctx context.Context, req ClaimRefundRequest) (Refund, error)
	UpdateState(ctx context.Context, campaignID string) (Campaign, error)
	List(ctx context.Context, req ListCampaignRequest) (ListCampaignResponse, error)
	GetByID(ctx context.Context, campaignID string) (Campaign, error)
	ListDonations(ctx context.Context, campaignID string) ([]Donation, error)
	DonationByDonor(ctx context.Context, campaignID, donor string) (money.Amount, error)
	HasClaimedRefund(ctx context.Context, campaignID, donor string) (bool, error)
	ActiveCampaignCount(ctx context.Context, owner string) (int64, error)
}

var (
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidOwner          = errors.New("invalid_owner")
	ErrInvalidTitle          = errors.New("invalid_title")
	ErrInvalidDescription    = errors.New("invalid_description")
	ErrInvalidImage          = errors.New("invalid_image")
	ErrInvalidTarget         = errors.New("invalid_target")
	ErrInvalidDeadline       = errors.New("invalid_deadline")
	ErrInvalidDonor          = errors.New("invalid_donor")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrNotFound              = errors.New("campaign_not_found")
	ErrCampaignNotActive     = errors.New("campaign_not_active")
	ErrCampaignNotSuccessful = errors.New("campaign_not_successful")
	ErrCampaignNotFailed     = errors.New("campaign_not_failed")
	ErrUnauthorized          = errors.New("caller_not_owner")
	ErrAlreadyClaimed        = errors.New("already_claimed")
	ErrAlreadyRefunded       = errors.New("already_refunded")
	ErrNoDonation            = errors.New("no_donation")
	ErrContention            = errors.New("update_contention")
)
