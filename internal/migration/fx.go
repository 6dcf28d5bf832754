package migration

import (
	campaigndomain "github.com/crowdvault/crowdvault/internal/campaign/domain"
	"github.com/crowdvault/crowdvault/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// The versioned migration path targets postgres; dev and
			// test databases derive the schema from the models.
			return conn.AutoMigrate(
				&campaigndomain.Campaign{},
				&campaigndomain.Donation{},
				&campaigndomain.Refund{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
