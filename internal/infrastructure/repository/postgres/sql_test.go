package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/icctweb/team-registration/internal/platform/resilience"
)

func TestIsNotFound(t *testing.T) {
	if !isNotFound(sql.ErrNoRows) {
		t.Fatal("sql.ErrNoRows must classify as not found")
	}
	if isNotFound(errors.New("boom")) {
		t.Fatal("arbitrary errors are not not-found")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatal("23505 is a unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("insert team: %w", &pq.Error{Code: "23505"})) {
		t.Fatal("classification must survive wrapping")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatal("foreign-key violations are not unique violations")
	}
}

func TestClassifyErr(t *testing.T) {
	transientCodes := []pq.ErrorCode{"08006", "53300", "57P01", "40001", "40P01"}
	for _, code := range transientCodes {
		err := classifyErr(&pq.Error{Code: code})
		if !resilience.IsTransient(err) {
			t.Fatalf("code %s must be classified transient", code)
		}
	}

	permanent := classifyErr(&pq.Error{Code: "23505"})
	if resilience.IsTransient(permanent) {
		t.Fatal("constraint violations must stay permanent")
	}

	if classifyErr(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}
