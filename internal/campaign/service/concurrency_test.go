package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/crowdvault/crowdvault/internal/campaign/domain"
	"github.com/crowdvault/crowdvault/internal/clock"
	"github.com/crowdvault/crowdvault/internal/config"
	"github.com/crowdvault/crowdvault/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stressLedgerConfig raises the retry bound so contention resolves by
// retrying instead of surfacing to the caller.
func stressLedgerConfig() config.LedgerConfig {
	cfg := config.DefaultLedgerConfig()
	cfg.MaxUpdateRetries = 1000
	return cfg
}

func TestConcurrentDonationsLoseNoUpdates(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := setupService(t, db, clk, stressLedgerConfig())
	ctx := context.Background()

	c := newCampaign(t, svc, "0xowner", "1000", clk.Now().Add(24*time.Hour))
	id := c.ID.String()

	const (
		workers   = 8
		perWorker = 5
	)

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			donor := fmt.Sprintf("0xdonor-%02d", w)
			for i := 0; i < perWorker; i++ {
				if _, err := svc.Donate(ctx, domain.DonateRequest{
					CampaignID: id,
					Donor:      donor,
					Amount:     money.MustParse("1"),
				}); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("donate failed under contention: %v", err)
	}

	got, err := svc.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("40"), got.AmountCollected)
	assert.Equal(t, int64(workers*perWorker), got.DonationCount)

	// Every donation landed with a distinct sequence and the ledger sums
	// back to the aggregate.
	donations, err := svc.ListDonations(ctx, id)
	require.NoError(t, err)
	require.Len(t, donations, workers*perWorker)
	var sum money.Amount
	for i, d := range donations {
		assert.Equal(t, int64(i+1), d.Sequence)
		sum, err = sum.Add(d.Amount)
		require.NoError(t, err)
	}
	assert.Equal(t, got.AmountCollected, sum)
}

func TestConcurrentClaimFundsSingleWinner(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := setupService(t, db, clk, stressLedgerConfig())
	ctx := context.Background()

	c := newCampaign(t, svc, "0xowner", "5", clk.Now().Add(24*time.Hour))
	id := c.ID.String()

	_, err := svc.Donate(ctx, domain.DonateRequest{CampaignID: id, Donor: "0xalice", Amount: money.MustParse("5")})
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClaimFunds(ctx, domain.ClaimFundsRequest{CampaignID: id, Caller: "0xowner"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, domain.ErrAlreadyClaimed):
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
}

func TestConcurrentRefundsSingleWinner(t *testing.T) {
	db := setupDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := setupService(t, db, clk, stressLedgerConfig())
	ctx := context.Background()

	c := newCampaign(t, svc, "0xowner", "100", clk.Now().Add(24*time.Hour))
	id := c.ID.String()

	_, err := svc.Donate(ctx, domain.DonateRequest{CampaignID: id, Donor: "0xalice", Amount: money.MustParse("7")})
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClaimRefund(ctx, domain.ClaimRefundRequest{CampaignID: id, Donor: "0xalice"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, domain.ErrAlreadyRefunded):
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)

	var refunds int64
	require.NoError(t, db.Raw("SELECT COUNT(*) FROM refunds WHERE campaign_id = ?", c.ID).Scan(&refunds).Error)
	assert.Equal(t, int64(1), refunds)
}
