package storeexec

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/yanqingluo/dble/lib/backend"
	"github.com/yanqingluo/dble/lib/store/lstore"
)

func TestExecutorReserves(t *testing.T) {
	table := lstore.NewLocalStore()
	if err := table.Define("GLOBAL", 1000, 5); err != nil {
		t.Fatal(err)
	}
	exec := New(table)

	for _, want := range []string{"1000,5", "1005,5"} {
		rows, err := exec.Exec(context.Background(), backend.NextvalQuery("GLOBAL"))
		if err != nil {
			t.Fatalf("Exec failed: %v", err)
		}
		if len(rows) != 1 || string(rows[0]) != want {
			t.Errorf("Expected row %s, got %q", want, rows)
		}
	}
}

func TestExecutorSentinel(t *testing.T) {
	exec := New(lstore.NewLocalStore())
	rows, err := exec.Exec(context.Background(), backend.NextvalQuery("MISSING"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || string(rows[0]) != backend.NotFoundRow {
		t.Errorf("Expected the sentinel row, got %q", rows)
	}
}

func TestExecutorErrors(t *testing.T) {
	table := lstore.NewLocalStore()
	if err := table.Define("FULL", math.MaxInt64-1, 1); err != nil {
		t.Fatal(err)
	}
	exec := New(table)

	var resp *backend.ErrorResponse
	if _, err := exec.Exec(context.Background(), "SELECT 1"); !errors.As(err, &resp) {
		t.Errorf("Expected an error response for an unknown query, got %v", err)
	}

	if _, err := exec.Exec(context.Background(), backend.NextvalQuery("FULL")); err != nil {
		t.Fatal(err)
	}
	_, err := exec.Exec(context.Background(), backend.NextvalQuery("FULL"))
	if !errors.As(err, &resp) || resp.Code != "InternalError" {
		t.Errorf("Expected an InternalError response for an exhausted sequence, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := exec.Exec(ctx, backend.NextvalQuery("FULL")); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
