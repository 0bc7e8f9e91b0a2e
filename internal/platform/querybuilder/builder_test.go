package querybuilder

import "testing"

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("internal_id", "public_id").
		From("teams").
		Where(Eq("public_id", "ICCT-007")).
		Limit(1).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT internal_id, public_id FROM teams WHERE public_id = $1 LIMIT 1"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "ICCT-007" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilder_MultiRowWithSuffix(t *testing.T) {
	query, args, err := InsertInto("players").
		Columns("internal_id", "name").
		Values("p1", "a").
		Values("p2", "b").
		Suffix("ON CONFLICT (internal_id) DO NOTHING").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	wantQuery := "INSERT INTO players (internal_id, name) VALUES ($1, $2), ($3, $4) ON CONFLICT (internal_id) DO NOTHING"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 4 {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestUpdateBuilder_SetExprAndReturning(t *testing.T) {
	query, args, err := Update("sequence_counters").
		SetExpr("last_value", "last_value + 1").
		SetExpr("updated_at", "NOW()").
		Where(Eq("name", "team")).
		Suffix("RETURNING last_value").
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	wantQuery := "UPDATE sequence_counters SET last_value = last_value + 1, updated_at = NOW() WHERE name = $1 RETURNING last_value"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 || args[0] != "team" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestUpdateBuilder_SetExprWithArgs(t *testing.T) {
	query, args, err := Update("sequence_counters").
		SetExpr("last_value", "GREATEST(last_value, ?)", int64(42)).
		Where(Eq("name", "team")).
		ToSQL()
	if err != nil {
		t.Fatalf("build update query: %v", err)
	}

	wantQuery := "UPDATE sequence_counters SET last_value = GREATEST(last_value, $1) WHERE name = $2"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestDeleteBuilder(t *testing.T) {
	query, args, err := DeleteFrom("idempotency_keys").
		Where(Lt("expires_at", "2026-01-01")).
		ToSQL()
	if err != nil {
		t.Fatalf("build delete query: %v", err)
	}

	wantQuery := "DELETE FROM idempotency_keys WHERE expires_at < $1"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 1 {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertModel(t *testing.T) {
	type row struct {
		Key     string `db:"key"`
		Payload []byte `db:"response_payload"`
		Skipped string `db:"-"`
	}

	query, args, err := InsertModel("idempotency_keys", row{Key: "k1", Payload: []byte("{}"), Skipped: "x"}, "ON CONFLICT (key) DO NOTHING")
	if err != nil {
		t.Fatalf("build insert from model: %v", err)
	}

	wantQuery := "INSERT INTO idempotency_keys (key, response_payload) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "k1" {
		t.Fatalf("unexpected args: %+v", args)
	}
}
