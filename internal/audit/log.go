package audit

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"myapp.dev/internal/auth"
	"myapp.dev/internal/obs"
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

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and subject context.
// An unnamed event is reported as a warning instead.
func LogEvent(ctx context.Context, event string, fields map[string]any) {
	event = strings.TrimSpace(event)
	if event == "" {
		obs.From(ctx).Warn("audit event without name", zap.Any("fields", fields))
		return
	}
	zf := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		zf = append(zf, obs.RequestID(rid))
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok && p.User != nil {
		zf = append(zf, obs.UserID(p.User.UUID))
	} else if c, ok := auth.ClaimsFromContext(ctx); ok {
		zf = append(zf, obs.UserID(c.Subject))
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	zf = append(zf, zap.Any("fields", copyFields))

	obs.From(ctx).Info("audit", zf...)
}
