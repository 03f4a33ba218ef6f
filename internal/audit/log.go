package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"gradarchive.org/internal/auth"
	"gradarchive.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and account context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	if fields == nil {
		fields = map[string]any{}
	}
	lg := obs.Logger()
	ev := lg.Info().
		Str("type", "audit").
		Str("event", event).
		Time("occurred_at", time.Now().UTC())
	if rid := requestIDFromContext(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	if id, ok := auth.IdentityFromContext(ctx); ok {
		ev = ev.Str("account_id", id.AccountID)
	}
	ev.Fields(map[string]any{"fields": fields}).Send()
	return nil
}
