package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tutorboard/notifier/pkg/notifier"
)

// PGDirectory resolves eligible broadcast recipients from the application's
// users table: active accounts with notifications enabled, a qualifying
// role, and a non-empty email address.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory creates a postgres-backed recipient directory.
func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

// FindEligible implements notifier.Directory.
func (d *PGDirectory) FindEligible(ctx context.Context, criteria notifier.Criteria) ([]notifier.Recipient, error) {
	query := `
		SELECT id, email, display_name
		FROM users
		WHERE is_active = TRUE
		  AND notifications_enabled = TRUE
		  AND email <> ''`
	args := []any{}
	if len(criteria.Roles) > 0 {
		query += ` AND role = ANY($1)`
		args = append(args, criteria.Roles)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible recipients: %w", err)
	}
	defer rows.Close()

	recipients := make([]notifier.Recipient, 0)
	for rows.Next() {
		var r notifier.Recipient
		if err := rows.Scan(&r.ID, &r.Email, &r.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}
