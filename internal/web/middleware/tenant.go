package middleware

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/barkbook/internal/core"
)

// OrganizationHeader carries the tenant every import is scoped to.
const OrganizationHeader = "X-Organization-ID"

// Tenant resolves the organization from OrganizationHeader and stores it in
// the request context. Requests without a valid ID are rejected with 400.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		org := strings.TrimSpace(r.Header.Get(OrganizationHeader))
		if err := core.ValidateOrganizationID(org); err != nil {
			reject(w, r, http.StatusBadRequest, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(core.ContextWithOrganization(r.Context(), org)))
	})
}
