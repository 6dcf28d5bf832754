package campaign

import (
	"github.com/crowdvault/crowdvault/internal/campaign/repository"
	"github.com/crowdvault/crowdvault/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
