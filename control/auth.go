package control

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashToken derives the bcrypt hash stored in the config for an admin token.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", errors.New("control: empty token")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// requireToken checks the Authorization bearer token against the configured
// bcrypt hash. An empty hash disables the check for loopback-only setups.
func requireToken(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearerToken(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized,
					map[string]string{"error": "missing token"})
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
				writeJSON(w, http.StatusUnauthorized,
					map[string]string{"error": "invalid token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) ||
		subtle.ConstantTimeCompare([]byte(h[:len(prefix)]), []byte(prefix)) == 0 {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
