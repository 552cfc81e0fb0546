package pgexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yanqingluo/dble/lib/backend"
)

func TestTranslate(t *testing.T) {
	var resp *backend.ErrorResponse
	err := translate(fmt.Errorf("query: %w", &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}))
	if !errors.As(err, &resp) || resp.Code != "42P01" {
		t.Errorf("Expected an error response with SQLSTATE 42P01, got %v", err)
	}

	plain := errors.New("connection reset")
	if got := translate(plain); got != plain {
		t.Errorf("Expected connection errors to pass through, got %v", got)
	}
}

func TestSchemaUsesSentinel(t *testing.T) {
	if !strings.Contains(Schema, backend.NotFoundRow) {
		t.Errorf("Expected the schema to return the sentinel row for missing sequences")
	}
}

// TestExecutorPostgres runs against a real server if DSEQ_TEST_POSTGRES_URL is set.
func TestExecutorPostgres(t *testing.T) {
	url := os.Getenv("DSEQ_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("DSEQ_TEST_POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exec, err := New(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer exec.Close()

	if err := exec.Install(ctx); err != nil {
		t.Fatal(err)
	}
	name := fmt.Sprintf("TEST_%d", time.Now().UnixNano())
	if err := exec.Define(ctx, name, 1000, 5); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"1000,5", "1005,5"} {
		rows, err := exec.Exec(ctx, backend.NextvalQuery(name))
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 1 || string(rows[0]) != want {
			t.Errorf("Expected %s, got %q", want, rows)
		}
	}

	rows, err := exec.Exec(ctx, backend.NextvalQuery(name+"_MISSING"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || string(rows[0]) != backend.NotFoundRow {
		t.Errorf("Expected the sentinel row, got %q", rows)
	}
}
