package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"restaurant-live/internal/common/db"
)

// IdentityPG resolves session tokens and admin privilege against the
// user store. Session issuance lives elsewhere; this only reads.
type IdentityPG struct {
	conn *db.Conn
}

func NewIdentityPG(conn *db.Conn) *IdentityPG { return &IdentityPG{conn: conn} }

// UserIDForToken returns the user id for a live session token, or empty
// if the token is unknown or expired.
func (r *IdentityPG) UserIDForToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.conn.QueryRow(ctx, `
SELECT user_id FROM sessions
WHERE token = $1 AND expires_at > now()
`, token).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return userID, nil
}

func (r *IdentityPG) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var role string
	err := r.conn.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user role: %w", err)
	}
	return role == "admin", nil
}
