package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/subscriber-gateway/internal/domain"
)

// SubscriberIndexRepo implements subscriber.Index against PostgreSQL.
type SubscriberIndexRepo struct{ db *sql.DB }

// NewSubscriberIndexRepo creates a Postgres-backed subscriber index.
func NewSubscriberIndexRepo(db *sql.DB) *SubscriberIndexRepo { return &SubscriberIndexRepo{db: db} }

func (r *SubscriberIndexRepo) LookupID(ctx context.Context, email string) (domain.ID, bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT subscriber_id FROM subscriber_index WHERE email = $1`,
		email,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup subscriber id: %w", err)
	}
	return domain.ID(id), true, nil
}

// Record upserts (id, email) in one statement so concurrent writers for the
// same email leave exactly one row.
func (r *SubscriberIndexRepo) Record(ctx context.Context, id domain.ID, email string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriber_index (id, subscriber_id, email, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET subscriber_id = EXCLUDED.subscriber_id, updated_at = NOW()
	`, uuid.New().String(), id.String(), email)
	if err != nil {
		return fmt.Errorf("record subscriber id: %w", err)
	}
	return nil
}

// Count returns the number of indexed emails.
func (r *SubscriberIndexRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriber_index`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscriber index: %w", err)
	}
	return n, nil
}
