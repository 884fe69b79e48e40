package email

import (
	"context"

	"go.uber.org/zap"
)

// Provider delivers counseling notification mails.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

// DiscardProvider stands in for SMTP when mail is disabled. Templates are
// still rendered so a broken template surfaces in development.
type DiscardProvider struct {
	log *zap.Logger
}

func NewDiscard(log *zap.Logger) *DiscardProvider {
	return &DiscardProvider{log: log.Named("providers.email")}
}

func (p *DiscardProvider) Send(_ context.Context, to []string, subject string, _ string) error {
	p.log.Debug("mail discarded", zap.String("subject", subject), zap.Int("recipients", len(to)))
	return nil
}

func (p *DiscardProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	subject, body, err := Render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, subject, body)
}
