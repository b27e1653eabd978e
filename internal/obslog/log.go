package obslog

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"tradedb/internal/xerrors"
)

var logger = log.New(os.Stdout, "", 0)

// errorKinds lists the sentinel kinds normalizeFields classifies an error
// field against, most specific first.
var errorKinds = []struct {
	err  error
	kind string
}{
	{xerrors.ErrNotFound, "not_found"},
	{xerrors.ErrBusy, "busy"},
	{xerrors.ErrCorrupt, "corrupt"},
	{xerrors.ErrFatal, "fatal"},
	{xerrors.ErrInvalidConfig, "invalid_config"},
	{xerrors.ErrReadOnly, "read_only"},
}

// normalizeFields stringifies error values and, for any field whose error
// wraps one of xerrors' sentinel kinds, adds a sibling "<field>_kind" entry
// so a log consumer can filter on kind without parsing the message — the
// structured-field pass the teacher's observability.log.go spends on
// secret redaction, adapted here to error-kind classification instead.
func normalizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		err, ok := value.(error)
		if !ok {
			out[key] = value
			continue
		}
		out[key] = err.Error()
		for _, ek := range errorKinds {
			if errors.Is(err, ek.err) {
				out[key+"_kind"] = ek.kind
				break
			}
		}
	}
	return out
}

// LogEvent writes one JSON line carrying the RunInfo attached to ctx,
// merged with the caller-supplied fields, following the teacher's
// observability.LogEvent shape.
func LogEvent(ctx context.Context, level string, event string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"level": level,
		"event": event,
	}

	info := RunInfoFromContext(ctx)
	if info.Symbol != "" {
		payload["symbol"] = info.Symbol
	}
	if info.Operation != "" {
		payload["operation"] = info.Operation
	}
	if info.RequestID != "" {
		payload["request_id"] = info.RequestID
	}

	for key, value := range normalizeFields(fields) {
		payload[key] = value
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("{\"level\":\"error\",\"event\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	logger.Print(string(raw))
}

// LogStoreOp is the common case: a single store operation finishing with an
// optional error and duration.
func LogStoreOp(ctx context.Context, op string, duration time.Duration, err error) {
	fields := map[string]any{
		"latency_ms": duration.Milliseconds(),
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err
	}
	LogEvent(ctx, "info", op, fields)
}
