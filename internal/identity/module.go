package identity

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/counseling/internal/identity/keycloak"
)

var Module = fx.Module("identity.client",
	fx.Provide(keycloak.Provide),
)
