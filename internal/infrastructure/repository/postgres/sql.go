package postgres

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/icctweb/team-registration/internal/platform/resilience"
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// classifyErr tags retryable postgres failures so the retry executor can
// tell them apart from constraint violations and bad input. Classes:
// 08 connection exception, 53 insufficient resources, 57 operator
// intervention, 40001 serialization failure, 40P01 deadlock.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch {
	case pqErr.Code.Class() == "08",
		pqErr.Code.Class() == "53",
		pqErr.Code.Class() == "57",
		pqErr.Code == "40001",
		pqErr.Code == "40P01":
		return resilience.MarkTransient(err)
	}

	return err
}
