package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/icctweb/team-registration/internal/domain/sequence"
	qb "github.com/icctweb/team-registration/internal/platform/querybuilder"
)

type SequenceRepository struct {
	db *sqlx.DB
}

func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next is a single increment-and-return statement. No read-then-write:
// the database serializes concurrent callers on the row, so no two of
// them can observe the same prior value.
func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	query, args, err := qb.Update("sequence_counters").
		SetExpr("last_value", "last_value + 1").
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("name", name)).
		Suffix("RETURNING last_value").
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build next sequence value query: %w", err)
	}

	var value int64
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&value); err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", sequence.ErrNotInitialized, name)
		}
		return 0, classifyErr(fmt.Errorf("next value of sequence %s: %w", name, err))
	}

	return value, nil
}

func (r *SequenceRepository) Resync(ctx context.Context, name string, observedMax int64) error {
	query, args, err := qb.Update("sequence_counters").
		SetExpr("last_value", "GREATEST(last_value, ?)", observedMax).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("name", name)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build resync sequence query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classifyErr(fmt.Errorf("resync sequence %s: %w", name, err))
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", sequence.ErrNotInitialized, name)
	}
	return nil
}
