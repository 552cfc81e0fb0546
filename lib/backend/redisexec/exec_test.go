package redisexec

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/yanqingluo/dble/lib/backend"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		reply   interface{}
		want    string
		wantErr bool
	}{
		{"Segment", []interface{}{int64(0), "1000", "5"}, "1000,5", false},
		{"IntegerSegment", []interface{}{int64(0), int64(7), int64(3)}, "7,3", false},
		{"LargeValues", []interface{}{int64(0), "9007199254740993", "10"}, "9007199254740993,10", false},
		{"NotFound", []interface{}{int64(1)}, backend.NotFoundRow, false},
		{"UnknownState", []interface{}{int64(9)}, "", true},
		{"ShortReply", []interface{}{int64(0), "1"}, "", true},
		{"NotAnArray", "OK", "", true},
		{"BadNumber", []interface{}{int64(0), "x", "5"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := parseResult(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseResult() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(row) != tt.want {
				t.Errorf("parseResult() = %s, want %s", row, tt.want)
			}
		})
	}
}

// TestExecutorRedis runs against a real server if DSEQ_TEST_REDIS_URL is set.
func TestExecutorRedis(t *testing.T) {
	url := os.Getenv("DSEQ_TEST_REDIS_URL")
	if url == "" {
		t.Skip("DSEQ_TEST_REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exec, err := New(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer exec.Close()

	name := fmt.Sprintf("TEST_%d", time.Now().UnixNano())
	if err := exec.Define(ctx, name, 1000, 5); err != nil {
		t.Fatal(err)
	}
	defer exec.rdb.Del(context.Background(), key(name))

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
	if string(rows[0]) != backend.NotFoundRow {
		t.Errorf("Expected the sentinel row, got %q", rows)
	}
}
