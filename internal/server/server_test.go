package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crowdvault/crowdvault/internal/campaign/repository"
	"github.com/crowdvault/crowdvault/internal/campaign/service"
	"github.com/crowdvault/crowdvault/internal/clock"
	"github.com/crowdvault/crowdvault/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, *clock.FakeClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db.Exec(`CREATE TABLE IF NOT EXISTS campaigns (
		id BIGINT PRIMARY KEY,
		owner TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		image TEXT NOT NULL,
		target BIGINT NOT NULL,
		deadline TIMESTAMP NOT NULL,
		amount_collected BIGINT NOT NULL DEFAULT 0,
		donation_count BIGINT NOT NULL DEFAULT 0,
		claimed BOOLEAN NOT NULL DEFAULT FALSE,
		state TEXT NOT NULL,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS donations (
		id BIGINT PRIMARY KEY,
		campaign_id BIGINT NOT NULL,
		donor TEXT NOT NULL,
		amount BIGINT NOT NULL,
		sequence BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	db.Exec(`CREATE TABLE IF NOT EXISTS refunds (
		id BIGINT PRIMARY KEY,
		campaign_id BIGINT NOT NULL,
		donor TEXT NOT NULL,
		amount BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_donations_campaign_seq ON donations(campaign_id, sequence)")
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS ux_refunds_campaign_donor ON refunds(campaign_id, donor)")

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	holder := config.NewStaticLedgerConfigHolder(config.DefaultLedgerConfig())

	svc := service.New(service.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repository.Provide(),
		Clock:     clk,
		LedgerCfg: holder,
	})

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin:         r,
		Cfg:         config.Config{AppName: "crowdvault-test"},
		DB:          db,
		GenID:       node,
		CampaignSvc: svc,
		LedgerCfg:   holder,
	})

	return r, clk
}

func doJSON(t *testing.T, r *gin.Engine, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("X-Caller-ID", caller)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateCampaignRequiresCaller(t *testing.T) {
	r, clk := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/campaigns", "", gin.H{
		"title":       "Community well",
		"description": "Clean water",
		"image":       "https://example.com/i.png",
		"target":      "10",
		"deadline":    clk.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	body := decodeBody(t, w)
	payload := body["error"].(map[string]any)
	assert.Equal(t, "unauthorized", payload["type"])
}

func TestCampaignAPILifecycle(t *testing.T) {
	r, clk := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/campaigns", "0xowner", gin.H{
		"title":       "Community well",
		"description": "Clean water",
		"image":       "https://example.com/i.png",
		"target":      "10",
		"deadline":    clk.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)

	created := decodeBody(t, w)["data"].(map[string]any)
	id := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "active", created["state"])
	assert.Equal(t, "0xowner", created["owner"])

	// Claiming an active campaign is a state conflict.
	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/claim", "0xowner", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	payload := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "state_conflict", payload["type"])
	assert.Equal(t, "campaign_not_successful", payload["code"])

	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/donations", "0xalice", gin.H{"amount": "not-money"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload = decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "validation_error", payload["type"])

	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/donations", "0xalice", gin.H{"amount": "10"})
	require.Equal(t, http.StatusOK, w.Code)
	donated := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "10", donated["amount_collected"])

	w = doJSON(t, r, http.MethodGet, "/api/campaigns/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "active", got["state"])
	assert.Equal(t, "10", got["amount_collected"])

	clk.Advance(25 * time.Hour)

	w = doJSON(t, r, http.MethodGet, "/api/campaigns/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got = decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "successful", got["state"])

	// Donations close at the deadline.
	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/donations", "0xbob", gin.H{"amount": "1"})
	require.Equal(t, http.StatusConflict, w.Code)
	payload = decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "campaign_not_active", payload["code"])

	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/claim", "0xmallory", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/claim", "0xowner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	claimed := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, true, claimed["claimed"])

	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/claim", "0xowner", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	payload = decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "already_claimed", payload["code"])
}

func TestRefundAPIOnFailedCampaign(t *testing.T) {
	r, clk := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/campaigns", "0xowner", gin.H{
		"title":       "Mural",
		"description": "Paint the station wall",
		"image":       "https://example.com/m.png",
		"target":      "50",
		"deadline":    clk.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)
	id := decodeBody(t, w)["data"].(map[string]any)["id"].(string)

	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/donations", "0xalice", gin.H{"amount": "12.5"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/campaigns/"+id+"/refunds/0xalice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, false, status["claimed"])

	clk.Advance(25 * time.Hour)

	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/refund", "0xalice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	refund := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "12.5", refund["amount"])

	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/refund", "0xalice", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	payload := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "already_refunded", payload["code"])

	w = doJSON(t, r, http.MethodPost, "/api/campaigns/"+id+"/refund", "0xnobody", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	payload = decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "no_donation", payload["code"])

	w = doJSON(t, r, http.MethodGet, "/api/campaigns/"+id+"/refunds/0xalice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status = decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, true, status["claimed"])
}

func TestGetUnknownCampaign(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/campaigns/424242", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/campaigns/not-an-id", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
