package middleware

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/contasync/contasync/internal/handlers/render"
)

// BasicAuth gates the read endpoints behind a static username and a
// bcrypt hash of the password. The hash comes from config, never the
// plain password.
func BasicAuth(username string, passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()

			if !ok || !credentialsMatch(username, passwordHash, user, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="contasync", charset="UTF-8"`)
				render.Error(w, render.KindUnauthorized, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func credentialsMatch(username string, passwordHash string, user string, pass string) bool {
	// Compare both factors unconditionally to keep timing flat
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(user)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) == nil

	return userOK && passOK
}
