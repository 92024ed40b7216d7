package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// WebhookSecretHeader is an alternative to Authorization for providers that
// cannot send a bearer token.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookAuth validates the shared secret the scraping provider sends with
// every delivery. An empty secret disables the check.
func WebhookAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := PresentedSecret(r)
			if token == "" {
				http.Error(w, "missing webhook credentials", http.StatusUnauthorized)
				return
			}

			// constant-time comparison
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				http.Error(w, "invalid webhook credentials", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PresentedSecret extracts the credential from the request.
// Supports both "Bearer <key>" and "<key>" formats in Authorization.
func PresentedSecret(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(WebhookSecretHeader)); v != "" {
		return v
	}
	auth := r.Header.Get("Authorization")
	auth = strings.TrimPrefix(auth, "Bearer ")
	return strings.TrimSpace(auth)
}
