package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidateOrganizationID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr error
	}{
		{"org-1", nil},
		{"Salon_42", nil},
		{strings.Repeat("a", 64), nil},
		{"", ErrMissingOrganization},
		{strings.Repeat("a", 65), ErrInvalidOrganization},
		{"org 1", ErrInvalidOrganization},
		{"org/../2", ErrInvalidOrganization},
	}
	for _, tt := range tests {
		err := ValidateOrganizationID(tt.id)
		if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
			t.Errorf("ValidateOrganizationID(%q) = %v, want %v", tt.id, err, tt.wantErr)
		}
	}
	if got := MapError(ValidateOrganizationID("bad id")).Code; got != "TEN002" {
		t.Errorf("invalid organization maps to %s, want TEN002", got)
	}
}

func TestRequestContextValues(t *testing.T) {
	ctx := context.Background()
	if OrganizationFromContext(ctx) != "" || IPAddressFromContext(ctx) != "" || UserAgentFromContext(ctx) != "" {
		t.Fatal("empty context should carry no values")
	}

	ctx = ContextWithOrganization(ctx, "org-1")
	ctx = ContextWithIPAddress(ctx, "10.0.0.9")
	ctx = ContextWithUserAgent(ctx, "curl/8")

	if got := OrganizationFromContext(ctx); got != "org-1" {
		t.Errorf("organization = %q", got)
	}
	if got := IPAddressFromContext(ctx); got != "10.0.0.9" {
		t.Errorf("ip = %q", got)
	}
	if got := UserAgentFromContext(ctx); got != "curl/8" {
		t.Errorf("user agent = %q", got)
	}
}
