package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/JonMunkholm/barkbook/internal/config"
)

var (
	errMissingAPIKey = errors.New("missing api key")
	errInvalidAPIKey = errors.New("invalid api key")
)

// APIKeyAuth checks X-API-Key against the configured keys when
// REQUIRE_API_KEY is on. Missing keys get 401, unknown keys 403.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			switch {
			case key == "":
				reject(w, r, http.StatusUnauthorized, errMissingAPIKey)
			case !isValidAPIKey(key, cfg.APIKeys):
				reject(w, r, http.StatusForbidden, errInvalidAPIKey)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// isValidAPIKey compares key against every configured key in constant time,
// so timing does not reveal which key (if any) matched.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, k := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return valid == 1
}
