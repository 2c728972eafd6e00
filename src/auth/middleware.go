package auth

import (
	"crypto/hmac"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Middleware returns a handler wrapper that authenticates requests with a
// bearer token. Failures answer 403, matching the contract of the order
// intake API.
func Middleware(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				forbidden(w)
				return
			}

			if !tokenValid(config, token) {
				logger.WithField("path", r.URL.Path).Warn("Rejected request with invalid API token")
				forbidden(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func tokenValid(config Config, token string) bool {
	if config.APITokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(config.APITokenHash), []byte(token)) == nil
	}
	return hmac.Equal([]byte(token), []byte(config.APIToken))
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func forbidden(w http.ResponseWriter) {
	http.Error(w, "Invalid authentication token", http.StatusForbidden)
}
