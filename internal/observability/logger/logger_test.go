package logger

import (
	"context"
	"testing"

	"github.com/smallbiznis/counseling/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationAndActor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := correlation.ContextWithCorrelationID(context.Background(), "cid-1")
	ctx = ContextWithActor(ctx, "consultant", "42")

	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "cid-1", fields["correlation_id"])
	assert.Equal(t, "consultant", fields["actor_type"])
	assert.Equal(t, "42", fields["actor_id"])
}

func TestWithContextWithoutMetadataReturnsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("select * from sessions"))
	assert.Equal(t, "UPDATE", operationFromSQL("UPDATE sessions SET status = ?"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
