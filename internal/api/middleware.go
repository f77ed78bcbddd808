// Package api implements the BharathVani REST API using chi.
package api

import (
	"net/http"
	"strings"

	"github.com/starford/bharathvani/internal/session"
)

// SessionMiddleware resolves the bearer access token into a session and
// stores it in the request context. EventSource clients cannot set headers,
// so an access_token query parameter is accepted as well.
func SessionMiddleware(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			} else {
				token = r.URL.Query().Get("access_token")
			}
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			sess, err := sessions.Parse(token)
			if err != nil {
				writeError(w, nil, "authenticate", err)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), sess)))
		})
	}
}

// currentSession returns the session stored by SessionMiddleware.
func currentSession(r *http.Request) *session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}
