package session

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/counseling/internal/session/repository"
	"github.com/smallbiznis/counseling/internal/session/service"
)

var Module = fx.Module("session.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
