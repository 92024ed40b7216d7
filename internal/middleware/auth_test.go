package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWebhookAuth(t *testing.T) {
	h := WebhookAuth("s3cret")(okHandler())

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer s3cret", http.StatusOK},
		{"raw", "Authorization", "s3cret", http.StatusOK},
		{"custom header", WebhookSecretHeader, "s3cret", http.StatusOK},
		{"wrong", "Authorization", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/audit/webhook", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWebhookAuth_EmptySecretDisablesCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	WebhookAuth("")(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
