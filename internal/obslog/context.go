// Package obslog adapts the teacher's libs/observability package to the
// storage engine: structured JSON events over the stdlib logger, carrying
// symbol/operation identifiers through context instead of the teacher's
// agent run/task/flow ids.
package obslog

import "context"

type contextKey string

const (
	symbolKey    contextKey = "symbol"
	operationKey contextKey = "operation"
	requestIDKey contextKey = "request_id"
)

// RunInfo carries the identifiers every log line in a request path wants
// attached: which symbol store it touched, which operation, and a
// correlation id for the request.
type RunInfo struct {
	Symbol    string
	Operation string
	RequestID string
}

// WithRunInfo attaches info to ctx, skipping empty fields.
func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	if info.Symbol != "" {
		ctx = context.WithValue(ctx, symbolKey, info.Symbol)
	}
	if info.Operation != "" {
		ctx = context.WithValue(ctx, operationKey, info.Operation)
	}
	if info.RequestID != "" {
		ctx = context.WithValue(ctx, requestIDKey, info.RequestID)
	}
	return ctx
}

// RunInfoFromContext recovers whatever RunInfo fields were attached.
func RunInfoFromContext(ctx context.Context) RunInfo {
	info := RunInfo{}
	if v := ctx.Value(symbolKey); v != nil {
		if s, ok := v.(string); ok {
			info.Symbol = s
		}
	}
	if v := ctx.Value(operationKey); v != nil {
		if s, ok := v.(string); ok {
			info.Operation = s
		}
	}
	if v := ctx.Value(requestIDKey); v != nil {
		if s, ok := v.(string); ok {
			info.RequestID = s
		}
	}
	return info
}
