package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crowdvault/crowdvault/internal/campaign/domain"
	"github.com/crowdvault/crowdvault/internal/clock"
	"github.com/crowdvault/crowdvault/internal/config"
	obsmetrics "github.com/crowdvault/crowdvault/internal/observability/metrics"
	"github.com/crowdvault/crowdvault/pkg/db/pagination"
	"github.com/crowdvault/crowdvault/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errVersionConflict signals a lost compare-and-update race; the
// operation re-reads and retries up to the configured bound.
var errVersionConflict = errors.New("version_conflict")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock
	LedgerCfg  *config.LedgerConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	ledgerCfg  *config.LedgerConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("campaign.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      p.Clock,
		ledgerCfg:  p.LedgerCfg,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCampaignRequest) (domain.Campaign, error) {
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		return domain.Campaign{}, domain.ErrInvalidOwner
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Campaign{}, domain.ErrInvalidTitle
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Campaign{}, domain.ErrInvalidDescription
	}
	image := strings.TrimSpace(req.Image)
	if image == "" {
		return domain.Campaign{}, domain.ErrInvalidImage
	}
	if !req.Target.IsPositive() {
		return domain.Campaign{}, domain.ErrInvalidTarget
	}

	now := s.clock.Now()
	if !req.Deadline.After(now) {
		return domain.Campaign{}, domain.ErrInvalidDeadline
	}
	maxDuration := time.Duration(s.ledgerCfg.Get().MaxCampaignDurationDays) * 24 * time.Hour
	if req.Deadline.Sub(now) > maxDuration {
		return domain.Campaign{}, domain.ErrInvalidDeadline
	}

	campaign := domain.Campaign{
		ID:              s.genID.Generate(),
		Owner:           owner,
		Title:           title,
		Description:     description,
		Image:           image,
		Target:          req.Target,
		Deadline:        req.Deadline.UTC(),
		AmountCollected: money.Zero,
		Claimed:         false,
		State:           domain.StateActive,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, &campaign); err != nil {
		s.recordOp("create", "error")
		return domain.Campaign{}, err
	}

	s.recordOp("create", "ok")
	s.log.Info("campaign created",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("owner", campaign.Owner),
		zap.String("target", campaign.Target.String()),
		zap.Time("deadline", campaign.Deadline),
	)
	return campaign, nil
}

func (s *Service) Donate(ctx context.Context, req domain.DonateRequest) (domain.DonateResult, error) {
	id, err := parseID(req.CampaignID)
	if err != nil {
		return domain.DonateResult{}, err
	}
	donor := strings.TrimSpace(req.Donor)
	if donor == "" {
		return domain.DonateResult{}, domain.ErrInvalidDonor
	}
	if !req.Amount.IsPositive() {
		return domain.DonateResult{}, domain.ErrInvalidAmount
	}
	minDonation := s.ledgerCfg.Get().MinDonation
	if min, err := money.Parse(minDonation); err != nil {
		s.log.Warn("invalid minimum donation policy ignored",
			zap.String("min_donation", minDonation),
			zap.Error(err),
		)
	} else if req.Amount.Cmp(min) < 0 {
		return domain.DonateResult{}, domain.ErrInvalidAmount
	}

	var result domain.DonateResult
	err = s.withVersionRetry(ctx, "donate", id, func(c *domain.Campaign, now time.Time) error {
		if domain.Classify(c, now) != domain.StateActive {
			return domain.ErrCampaignNotActive
		}

		newAmount, err := c.AmountCollected.Add(req.Amount)
		if err != nil {
			return domain.ErrInvalidAmount
		}
		sequence := c.DonationCount + 1
		state := domain.StateActive

		donation := domain.Donation{
			ID:         s.genID.Generate(),
			CampaignID: c.ID,
			Donor:      donor,
			Amount:     req.Amount,
			Sequence:   sequence,
			CreatedAt:  now,
		}

		// The aggregate bump and the ledger append commit together or
		// not at all.
		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.repo.UpdateVersioned(ctx, tx, c.ID, c.Version, domain.CampaignMutation{
				AmountCollected: &newAmount,
				DonationCount:   &sequence,
				State:           &state,
			})
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}
			return s.repo.InsertDonation(ctx, tx, &donation)
		})
		if txErr != nil {
			return txErr
		}

		result = domain.DonateResult{
			Donation:        donation,
			AmountCollected: newAmount,
		}
		return nil
	})
	if err != nil {
		return domain.DonateResult{}, err
	}

	s.log.Info("donation recorded",
		zap.String("campaign_id", req.CampaignID),
		zap.String("donor", donor),
		zap.String("amount", req.Amount.String()),
		zap.Int64("sequence", result.Donation.Sequence),
	)
	return result, nil
}

func (s *Service) ClaimFunds(ctx context.Context, req domain.ClaimFundsRequest) (domain.Campaign, error) {
	id, err := parseID(req.CampaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	caller := strings.TrimSpace(req.Caller)
	if caller == "" {
		return domain.Campaign{}, domain.ErrInvalidOwner
	}

	var claimed domain.Campaign
	err = s.withVersionRetry(ctx, "claim_funds", id, func(c *domain.Campaign, now time.Time) error {
		state := domain.Classify(c, now)
		if state != domain.StateSuccessful {
			return domain.ErrCampaignNotSuccessful
		}
		if c.Owner != caller {
			return domain.ErrUnauthorized
		}
		if c.Claimed {
			return domain.ErrAlreadyClaimed
		}

		flag := true
		ok, err := s.repo.UpdateVersioned(ctx, s.db, c.ID, c.Version, domain.CampaignMutation{
			Claimed: &flag,
			State:   &state,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errVersionConflict
		}

		claimed = *c
		claimed.Claimed = true
		claimed.State = state
		claimed.Version = c.Version + 1
		return nil
	})
	if err != nil {
		return domain.Campaign{}, err
	}

	s.log.Info("funds claim authorized",
		zap.String("campaign_id", req.CampaignID),
		zap.String("owner", caller),
		zap.String("amount", claimed.AmountCollected.String()),
	)
	return claimed, nil
}

func (s *Service) ClaimRefund(ctx context.Context, req domain.ClaimRefundRequest) (domain.Refund, error) {
	id, err := parseID(req.CampaignID)
	if err != nil {
		return domain.Refund{}, err
	}
	donor := strings.TrimSpace(req.Donor)
	if donor == "" {
		return domain.Refund{}, domain.ErrInvalidDonor
	}

	var refund domain.Refund
	err = s.withVersionRetry(ctx, "claim_refund", id, func(c *domain.Campaign, now time.Time) error {
		state := domain.Classify(c, now)
		if state != domain.StateFailed {
			return domain.ErrCampaignNotFailed
		}

		// The donor-total read, the refund insert and a version pin on
		// the campaign row commit together. A donation admitted just
		// before the deadline that lands after the total was summed
		// bumps the version, fails the pin and forces a re-read, so the
		// refund can never miss a ledger entry.
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			total, err := s.repo.DonorTotal(ctx, tx, c.ID, donor)
			if err != nil {
				return err
			}
			if total.IsZero() {
				return domain.ErrNoDonation
			}

			r := domain.Refund{
				ID:         s.genID.Generate(),
				CampaignID: c.ID,
				Donor:      donor,
				Amount:     total,
				CreatedAt:  now,
			}

			// Row existence is the claimed flag; the conflict-free
			// insert makes duplicate claims lose deterministically.
			inserted, err := s.repo.InsertRefund(ctx, tx, &r)
			if err != nil {
				return err
			}
			if !inserted {
				return domain.ErrAlreadyRefunded
			}

			ok, err := s.repo.UpdateVersioned(ctx, tx, c.ID, c.Version, domain.CampaignMutation{
				State: &state,
			})
			if err != nil {
				return err
			}
			if !ok {
				return errVersionConflict
			}

			refund = r
			return nil
		})
	})
	if err != nil {
		return domain.Refund{}, err
	}
	s.log.Info("refund authorized",
		zap.String("campaign_id", req.CampaignID),
		zap.String("donor", donor),
		zap.String("amount", refund.Amount.String()),
	)
	return refund, nil
}

func (s *Service) UpdateState(ctx context.Context, campaignID string) (domain.Campaign, error) {
	id, err := parseID(campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}

	var reconciled domain.Campaign
	err = s.withVersionRetry(ctx, "update_state", id, func(c *domain.Campaign, now time.Time) error {
		state := domain.Classify(c, now)
		if c.State == state {
			reconciled = *c
			return nil
		}

		ok, err := s.repo.UpdateVersioned(ctx, s.db, c.ID, c.Version, domain.CampaignMutation{
			State: &state,
		})
		if err != nil {
			return err
		}
		if !ok {
			return errVersionConflict
		}

		reconciled = *c
		reconciled.State = state
		reconciled.Version = c.Version + 1
		return nil
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	return reconciled, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCampaignRequest) (domain.ListCampaignResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	items, err := s.repo.List(ctx, s.db, domain.ListCampaignFilter{
		Owner: strings.TrimSpace(req.Owner),
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListCampaignResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(c *domain.Campaign) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        c.ID.String(),
			CreatedAt: c.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	now := s.clock.Now()
	campaigns := make([]domain.Campaign, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		snapshot := *item
		snapshot.State = domain.Classify(item, now)
		campaigns = append(campaigns, snapshot)
	}

	return domain.ListCampaignResponse{
		PageInfo:  *pageInfo,
		Campaigns: campaigns,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, campaignID string) (domain.Campaign, error) {
	id, err := parseID(campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}

	c, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	if c == nil {
		return domain.Campaign{}, domain.ErrNotFound
	}

	snapshot := *c
	snapshot.State = domain.Classify(c, s.clock.Now())
	return snapshot, nil
}

func (s *Service) ListDonations(ctx context.Context, campaignID string) ([]domain.Donation, error) {
	id, err := parseID(campaignID)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListDonations(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	donations := make([]domain.Donation, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		donations = append(donations, *item)
	}
	return donations, nil
}

func (s *Service) DonationByDonor(ctx context.Context, campaignID, donor string) (money.Amount, error) {
	id, err := parseID(campaignID)
	if err != nil {
		return money.Zero, err
	}
	donor = strings.TrimSpace(donor)
	if donor == "" {
		return money.Zero, domain.ErrInvalidDonor
	}
	return s.repo.DonorTotal(ctx, s.db, id, donor)
}

func (s *Service) HasClaimedRefund(ctx context.Context, campaignID, donor string) (bool, error) {
	id, err := parseID(campaignID)
	if err != nil {
		return false, err
	}
	donor = strings.TrimSpace(donor)
	if donor == "" {
		return false, domain.ErrInvalidDonor
	}

	refund, err := s.repo.FindRefund(ctx, s.db, id, donor)
	if err != nil {
		return false, err
	}
	return refund != nil, nil
}

func (s *Service) ActiveCampaignCount(ctx context.Context, owner string) (int64, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return 0, domain.ErrInvalidOwner
	}
	return s.repo.CountActiveByOwner(ctx, s.db, owner, s.clock.Now())
}

// withVersionRetry runs the read-compute-swap cycle for one campaign,
// re-reading on version conflicts up to the configured bound. The
// callback returns errVersionConflict to request a retry; any other
// error aborts.
func (s *Service) withVersionRetry(ctx context.Context, operation string, id snowflake.ID, fn func(c *domain.Campaign, now time.Time) error) error {
	retries := s.ledgerCfg.Get().MaxUpdateRetries
	if retries < 1 {
		retries = 1
	}

	for attempt := 0; attempt < retries; attempt++ {
		c, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			s.recordOp(operation, "error")
			return err
		}
		if c == nil {
			s.recordOp(operation, "rejected")
			return domain.ErrNotFound
		}

		err = fn(c, s.clock.Now())
		if errors.Is(err, errVersionConflict) {
			s.obsMetrics.RecordUpdateConflict()
			continue
		}
		if err != nil {
			s.recordOp(operation, "rejected")
			return err
		}
		s.recordOp(operation, "ok")
		return nil
	}

	s.recordOp(operation, "contention")
	s.log.Warn("optimistic update retries exhausted",
		zap.String("operation", operation),
		zap.String("campaign_id", id.String()),
	)
	return domain.ErrContention
}

func (s *Service) recordOp(operation, outcome string) {
	s.obsMetrics.RecordLedgerOp(operation, outcome)
}

func parseID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, domain.ErrInvalidID
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
