// Package correlation threads the correlation id, tenant id and subject of
// the current request or message through context.Context. Every outbound
// event and log line embeds these values so a failure can be traced across
// API, worker, broker and webhook delivery.
package correlation

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type ctxKey int

const (
	correlationIDKey ctxKey = iota
	tenantIDKey
	subjectKey
)

// NewID returns a fresh correlation id (32 hex chars).
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithCorrelationID returns a context carrying the given correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation id carried by ctx, or "".
func CorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

// WithTenantID returns a context carrying the given tenant id.
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantIDKey, id)
}

// TenantID returns the tenant id carried by ctx, or "".
func TenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDKey).(string)
	return v
}

// WithSubject returns a context carrying the acting subject (user email or
// "worker").
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// Subject returns the subject carried by ctx, or "".
func Subject(ctx context.Context) string {
	v, _ := ctx.Value(subjectKey).(string)
	return v
}
