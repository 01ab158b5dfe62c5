package core

import (
	"context"
	"fmt"
	"regexp"
)

type contextKey string

const (
	ctxKeyOrganization contextKey = "organization_id"
	ctxKeyIPAddress    contextKey = "client_ip"
	ctxKeyUserAgent    contextKey = "user_agent"
)

var organizationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateOrganizationID checks that id is a usable tenant identifier.
func ValidateOrganizationID(id string) error {
	if id == "" {
		return ErrMissingOrganization
	}
	if !organizationIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidOrganization, id)
	}
	return nil
}

// ContextWithOrganization records the tenant an HTTP request was scoped to.
// Core operations still take the organization as an explicit argument; this
// is for handlers and log attributes.
func ContextWithOrganization(ctx context.Context, organizationID string) context.Context {
	return context.WithValue(ctx, ctxKeyOrganization, organizationID)
}

// OrganizationFromContext returns the tenant set by ContextWithOrganization, or "".
func OrganizationFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOrganization).(string); ok {
		return v
	}
	return ""
}

func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

func IPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
