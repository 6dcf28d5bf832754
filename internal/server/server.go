package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/crowdvault/crowdvault/internal/campaign"
	campaigndomain "github.com/crowdvault/crowdvault/internal/campaign/domain"
	"github.com/crowdvault/crowdvault/internal/config"
	obsmetrics "github.com/crowdvault/crowdvault/internal/observability/metrics"
	obstracing "github.com/crowdvault/crowdvault/internal/observability/tracing"
	"github.com/crowdvault/crowdvault/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	campaign.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(_ *Server) {}),
	fx.Invoke(run),
)

func NewEngine(httpMetrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CorrelationMiddleware())
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	genID       *snowflake.Node
	campaignSvc campaigndomain.Service
	ledgerCfg   *config.LedgerConfigHolder
	limiter     *ratelimit.TokenBucket
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	CampaignSvc campaigndomain.Service
	LedgerCfg   *config.LedgerConfigHolder
	Limiter     *ratelimit.TokenBucket `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		campaignSvc: p.CampaignSvc,
		ledgerCfg:   p.LedgerCfg,
		limiter:     p.Limiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Campaigns --------
	api.GET("/campaigns", s.ListCampaigns)
	api.POST("/campaigns", s.CallerRequired(), s.CreateCampaign)
	api.GET("/campaigns/:id", s.GetCampaignByID)
	api.POST("/campaigns/:id/state", s.UpdateCampaignState)

	// -------- Donations --------
	api.GET("/campaigns/:id/donations", s.ListDonations)
	api.POST("/campaigns/:id/donations", s.CallerRequired(), s.DonateRateLimit(), s.Donate)
	api.GET("/campaigns/:id/donors/:donor", s.GetDonationByDonor)

	// -------- Claims & Refunds --------
	api.POST("/campaigns/:id/claim", s.CallerRequired(), s.ClaimFunds)
	api.POST("/campaigns/:id/refund", s.CallerRequired(), s.ClaimRefund)
	api.GET("/campaigns/:id/refunds/:donor", s.GetRefundStatus)

	// -------- Owners --------
	api.GET("/owners/:owner/active-campaigns", s.GetActiveCampaignCount)
}
