package correlation

import (
	"context"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
)

// HeaderName carries the correlation id across service boundaries.
const HeaderName = "X-Correlation-ID"

type correlationKey struct{}

// ExtractCorrelationID fetches a correlation ID from the context if present.
func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

// ContextWithCorrelationID sets the correlation ID onto the context.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := ExtractCorrelationID(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return ContextWithCorrelationID(ctx, cid), cid
}

// FromRequest returns a context carrying the inbound correlation header, or a fresh id.
func FromRequest(r *http.Request) (context.Context, string) {
	ctx := r.Context()
	if inbound := strings.TrimSpace(r.Header.Get(HeaderName)); inbound != "" {
		return ContextWithCorrelationID(ctx, inbound), inbound
	}
	return EnsureCorrelationID(ctx)
}

// Inject copies the context correlation id onto an outbound request.
func Inject(ctx context.Context, req *http.Request) {
	if req == nil {
		return
	}
	if cid := ExtractCorrelationID(ctx); cid != "" {
		req.Header.Set(HeaderName, cid)
	}
}
