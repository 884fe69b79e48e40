package consultant

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/counseling/internal/consultant/repository"
	"github.com/smallbiznis/counseling/internal/consultant/service"
)

var Module = fx.Module("consultant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
