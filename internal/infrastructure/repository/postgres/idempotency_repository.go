package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/icctweb/team-registration/internal/domain/idempotency"
	qb "github.com/icctweb/team-registration/internal/platform/querybuilder"
)

type IdempotencyRepository struct {
	db *sqlx.DB
}

func NewIdempotencyRepository(db *sqlx.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Lookup(ctx context.Context, key string, now time.Time) ([]byte, bool, error) {
	query, args, err := qb.Select("response_payload").
		From("idempotency_keys").
		Where(
			qb.Eq("key", key),
			qb.Expr("expires_at > ?", now.UTC()),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, false, fmt.Errorf("build lookup idempotency key query: %w", err)
	}

	var payload []byte
	if err := r.db.GetContext(ctx, &payload, query, args...); err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, classifyErr(fmt.Errorf("lookup idempotency key: %w", err))
	}

	return payload, true, nil
}

// Store is first-writer-wins: a concurrent duplicate that lost the race
// leaves the existing record untouched and still returns success.
func (r *IdempotencyRepository) Store(ctx context.Context, record idempotency.Record) error {
	insertModel := struct {
		Key       string    `db:"key"`
		CreatedAt time.Time `db:"created_at"`
		ExpiresAt time.Time `db:"expires_at"`
		Response  []byte    `db:"response_payload"`
	}{
		Key:       record.Key,
		CreatedAt: record.CreatedAt.UTC(),
		ExpiresAt: record.ExpiresAt.UTC(),
		Response:  record.Response,
	}

	query, args, err := qb.InsertModel("idempotency_keys", insertModel, "ON CONFLICT (key) DO NOTHING")
	if err != nil {
		return fmt.Errorf("build store idempotency key query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return classifyErr(fmt.Errorf("store idempotency key: %w", err))
	}
	return nil
}

func (r *IdempotencyRepository) Sweep(ctx context.Context, now time.Time) (int64, error) {
	query, args, err := qb.DeleteFrom("idempotency_keys").
		Where(qb.Lt("expires_at", now.UTC())).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build sweep idempotency keys query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classifyErr(fmt.Errorf("sweep idempotency keys: %w", err))
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return removed, nil
}
