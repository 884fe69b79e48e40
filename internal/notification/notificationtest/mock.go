package notificationtest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/smallbiznis/counseling/internal/notification"
)

type Dispatcher struct {
	mock.Mock
}

func (m *Dispatcher) DirectMessage(ctx context.Context, initiatorID string, recipientIDs []string) {
	m.Called(ctx, initiatorID, recipientIDs)
}

func (m *Dispatcher) NewEnquiry(ctx context.Context, agencyName string, recipients []notification.Recipient) {
	m.Called(ctx, agencyName, recipients)
}

func (m *Dispatcher) NewMessage(ctx context.Context, recipients []notification.Recipient) {
	m.Called(ctx, recipients)
}
