// Package notification fans out the side notifications of chat activity:
// live events for connected users and e-mails to consultants.
package notification

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/config"
	"github.com/smallbiznis/counseling/internal/providers/email"
)

const (
	EventDirectMessage = "directMessage"

	templateNewEnquiry       = "new_enquiry"
	templateNewDirectMessage = "new_direct_message"
)

type Recipient struct {
	IdentityID string
	Email      string
	Name       string
}

// Dispatcher never fails the calling workflow; every error is logged and dropped.
type Dispatcher interface {
	// DirectMessage publishes a live event to every recipient except the initiator.
	DirectMessage(ctx context.Context, initiatorID string, recipientIDs []string)
	// NewEnquiry e-mails the consultants that can answer a freshly written enquiry.
	NewEnquiry(ctx context.Context, agencyName string, recipients []Recipient)
	// NewMessage e-mails consultants about a message in a running session.
	NewMessage(ctx context.Context, recipients []Recipient)
}

type liveEvent struct {
	Event   string   `json:"event"`
	UserIDs []string `json:"userIds"`
}

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Publisher Publisher
	Email     email.Provider
}

type dispatcher struct {
	log         *zap.Logger
	publisher   Publisher
	email       email.Provider
	dummySuffix string
}

func New(p Params) Dispatcher {
	return NewDispatcher(p.Publisher, p.Email, p.Config.DummyEmailSuffix, p.Log)
}

func NewDispatcher(publisher Publisher, provider email.Provider, dummySuffix string, log *zap.Logger) Dispatcher {
	return &dispatcher{
		log:         log.Named("notification.dispatcher"),
		publisher:   publisher,
		email:       provider,
		dummySuffix: strings.ToLower(strings.TrimSpace(dummySuffix)),
	}
}

func (d *dispatcher) DirectMessage(ctx context.Context, initiatorID string, recipientIDs []string) {
	ids := make([]string, 0, len(recipientIDs))
	seen := make(map[string]struct{}, len(recipientIDs))
	for _, id := range recipientIDs {
		id = strings.TrimSpace(id)
		if id == "" || id == initiatorID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}

	payload, err := json.Marshal(liveEvent{Event: EventDirectMessage, UserIDs: ids})
	if err != nil {
		d.log.Warn("encode live event", zap.Error(err))
		return
	}
	if err := d.publisher.Publish(ctx, LiveEventsChannel, payload); err != nil {
		d.log.Warn("publish live event", zap.Int("recipients", len(ids)), zap.Error(err))
	}
}

func (d *dispatcher) NewEnquiry(ctx context.Context, agencyName string, recipients []Recipient) {
	for _, r := range d.mailable(recipients) {
		d.send(ctx, r, templateNewEnquiry, map[string]any{
			"consultant_name": r.Name,
			"agency_name":     agencyName,
		})
	}
}

func (d *dispatcher) NewMessage(ctx context.Context, recipients []Recipient) {
	for _, r := range d.mailable(recipients) {
		d.send(ctx, r, templateNewDirectMessage, map[string]any{
			"consultant_name": r.Name,
		})
	}
}

func (d *dispatcher) send(ctx context.Context, r Recipient, template string, data map[string]any) {
	if err := d.email.SendTemplate(ctx, []string{r.Email}, template, data); err != nil {
		d.log.Warn("send notification mail",
			zap.String("template", template),
			zap.String("identity_id", r.IdentityID),
			zap.Error(err),
		)
	}
}

func (d *dispatcher) mailable(recipients []Recipient) []Recipient {
	out := make([]Recipient, 0, len(recipients))
	for _, r := range recipients {
		if d.IsDummy(r.Email) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// IsDummy reports whether address is empty or a generated placeholder.
func (d *dispatcher) IsDummy(address string) bool {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return true
	}
	return d.dummySuffix != "" && strings.HasSuffix(address, d.dummySuffix)
}
