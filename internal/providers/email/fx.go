package email

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/config"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the SMTP provider, or a discarding provider when mail is disabled.
func NewFromConfig(cfg config.Config, log *zap.Logger) (Provider, error) {
	if !cfg.Email.Enabled {
		log.Named("providers.email").Info("smtp disabled, e-mail notifications are dropped")
		return NewDiscard(log), nil
	}
	return NewSMTP(Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		TLS:      cfg.Email.SMTPTLS,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
	})
}
