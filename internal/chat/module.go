package chat

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/counseling/internal/chat/rocketchat"
)

var Module = fx.Module("chat.client",
	fx.Provide(rocketchat.Provide),
)
