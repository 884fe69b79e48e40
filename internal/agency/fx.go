package agency

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/counseling/internal/agency/repository"
	"github.com/smallbiznis/counseling/internal/agency/service"
)

var Module = fx.Module("agency.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
