package stream

import (
	"context"
	"net/http"
	"strings"
)

// Identity is the auth collaborator. The stream layer only consumes the
// resulting principal; issuing sessions is someone else's job.
type Identity interface {
	// UserIDForToken resolves a session token to a user id, empty if the
	// token is unknown or expired.
	UserIDForToken(ctx context.Context, token string) (string, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("session"); err == nil {
		return c.Value
	}
	return ""
}
