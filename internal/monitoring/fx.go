package monitoring

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/counseling/internal/monitoring/repository"
	"github.com/smallbiznis/counseling/internal/monitoring/service"
)

var Module = fx.Module("monitoring.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
