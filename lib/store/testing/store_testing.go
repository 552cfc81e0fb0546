package testing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/yanqingluo/dble/lib/store"
)

// StoreFactory is a function that creates a new, empty instance of an IStore implementation
type StoreFactory func() store.IStore

// RunStoreTests runs a comprehensive test suite for an IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Define&Get", func(t *testing.T) {
			testDefineGet(t, factory())
		})

		t.Run("Reserve", func(t *testing.T) {
			testReserve(t, factory())
		})

		t.Run("ReserveMissing", func(t *testing.T) {
			testReserveMissing(t, factory())
		})

		t.Run("SetSpan", func(t *testing.T) {
			testSetSpan(t, factory())
		})

		t.Run("Drop", func(t *testing.T) {
			testDrop(t, factory())
		})

		t.Run("InvalidArguments", func(t *testing.T) {
			testInvalidArguments(t, factory())
		})

		t.Run("Exhausted", func(t *testing.T) {
			testExhausted(t, factory())
		})

		t.Run("ConcurrentReserve", func(t *testing.T) {
			testConcurrentReserve(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// release closes the store if it holds resources
func release(s store.IStore) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

func mustDefine(t *testing.T, s store.IStore, name string, start, span int64) {
	t.Helper()
	if err := s.Define(name, start, span); err != nil {
		t.Fatalf("Define(%s, %d, %d) failed: %v", name, start, span, err)
	}
}

func mustReserve(t *testing.T, s store.IStore, name string) (int64, int64) {
	t.Helper()
	base, span, found, err := s.Reserve(name)
	if err != nil {
		t.Fatalf("Reserve(%s) failed: %v", name, err)
	}
	if !found {
		t.Fatalf("Reserve(%s): sequence not found", name)
	}
	return base, span
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testDefineGet(t *testing.T, s store.IStore) {
	defer release(s)

	mustDefine(t, s, "GLOBAL", 1000, 100)

	row, found, err := s.Get("GLOBAL")
	if err != nil || !found {
		t.Fatalf("Expected GLOBAL to exist, found=%v err=%v", found, err)
	}
	if row.Next != 1000 || row.Span != 100 {
		t.Errorf("Expected row {1000 100}, got %+v", row)
	}

	// Define replaces an existing row
	mustDefine(t, s, "GLOBAL", 5, 10)
	row, _, _ = s.Get("GLOBAL")
	if row.Next != 5 || row.Span != 10 {
		t.Errorf("Expected row {5 10} after redefine, got %+v", row)
	}

	if _, found, err := s.Get("MISSING"); found || err != nil {
		t.Errorf("Expected missing sequence to return found=false, got found=%v err=%v", found, err)
	}
}

func testReserve(t *testing.T, s store.IStore) {
	defer release(s)

	mustDefine(t, s, "GLOBAL", 1000, 5)

	for i := int64(0); i < 10; i++ {
		base, span := mustReserve(t, s, "GLOBAL")
		if base != 1000+i*5 || span != 5 {
			t.Fatalf("Reservation %d: expected (%d, 5), got (%d, %d)", i, 1000+i*5, base, span)
		}
	}

	row, _, _ := s.Get("GLOBAL")
	if row.Next != 1050 {
		t.Errorf("Expected next 1050 after ten reservations, got %d", row.Next)
	}
}

func testReserveMissing(t *testing.T, s store.IStore) {
	defer release(s)

	_, _, found, err := s.Reserve("MISSING")
	if err != nil {
		t.Errorf("Unexpected error for missing sequence: %v", err)
	}
	if found {
		t.Errorf("Expected missing sequence to return found=false")
	}
	// reserving must not create the sequence
	if _, found, _ := s.Get("MISSING"); found {
		t.Errorf("Reserve must not create sequences")
	}
}

func testSetSpan(t *testing.T, s store.IStore) {
	defer release(s)

	mustDefine(t, s, "GLOBAL", 0, 10)
	mustReserve(t, s, "GLOBAL")

	if err := s.SetSpan("GLOBAL", 3); err != nil {
		t.Fatalf("SetSpan failed: %v", err)
	}
	base, span := mustReserve(t, s, "GLOBAL")
	if base != 10 || span != 3 {
		t.Errorf("Expected (10, 3) after SetSpan, got (%d, %d)", base, span)
	}

	if err := s.SetSpan("MISSING", 3); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing sequence, got %v", err)
	}
	if err := s.SetSpan("GLOBAL", 0); !errors.Is(err, store.ErrInvalid) {
		t.Errorf("Expected ErrInvalid for zero span, got %v", err)
	}
}

func testDrop(t *testing.T, s store.IStore) {
	defer release(s)

	mustDefine(t, s, "GLOBAL", 0, 10)
	if err := s.Drop("GLOBAL"); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if _, found, _ := s.Get("GLOBAL"); found {
		t.Errorf("Expected GLOBAL to be gone after Drop")
	}
	if _, _, found, _ := s.Reserve("GLOBAL"); found {
		t.Errorf("Expected Reserve to miss a dropped sequence")
	}
	if err := s.Drop("GLOBAL"); err != nil {
		t.Errorf("Dropping a missing sequence must not fail, got %v", err)
	}
}

func testInvalidArguments(t *testing.T, s store.IStore) {
	defer release(s)

	tests := []struct {
		name  string
		seq   string
		start int64
		span  int64
	}{
		{"EmptyName", "", 0, 1},
		{"BlankName", "  ", 0, 1},
		{"ZeroSpan", "A", 0, 0},
		{"NegativeSpan", "A", 0, -5},
		{"NegativeStart", "A", -1, 5},
		{"Overflow", "A", math.MaxInt64 - 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Define(tt.seq, tt.start, tt.span); !errors.Is(err, store.ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}
}

func testExhausted(t *testing.T, s store.IStore) {
	defer release(s)

	mustDefine(t, s, "GLOBAL", math.MaxInt64-10, 10)
	base, _ := mustReserve(t, s, "GLOBAL")
	if base != math.MaxInt64-10 {
		t.Fatalf("Expected base %d, got %d", int64(math.MaxInt64-10), base)
	}

	// the next range would overflow
	_, _, _, err := s.Reserve("GLOBAL")
	if !errors.Is(err, store.ErrInternal) {
		t.Fatalf("Expected ErrInternal for an exhausted sequence, got %v", err)
	}
	row, _, _ := s.Get("GLOBAL")
	if row.Next != math.MaxInt64 {
		t.Errorf("A failed reservation must not change the row, got %+v", row)
	}
}

func testConcurrentReserve(t *testing.T, s store.IStore) {
	defer release(s)

	const (
		workers = 8
		rounds  = 50
	)
	mustDefine(t, s, "GLOBAL", 1, 7)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		bases []int64
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				base, _, found, err := s.Reserve("GLOBAL")
				if err != nil || !found {
					t.Errorf("Reserve failed: found=%v err=%v", found, err)
					return
				}
				mu.Lock()
				bases = append(bases, base)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// all ranges are disjoint and together cover [1, 1+workers*rounds*7)
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	if len(bases) != workers*rounds {
		t.Fatalf("Expected %d reservations, got %d", workers*rounds, len(bases))
	}
	for i, base := range bases {
		if want := int64(1 + i*7); base != want {
			t.Fatalf("Reservation %d: expected base %d, got %d", i, want, base)
		}
	}
}

func testInfo(t *testing.T, s store.IStore) {
	defer release(s)

	for i := 0; i < 3; i++ {
		mustDefine(t, s, fmt.Sprintf("SEQ_%d", i), 0, 1)
	}
	mustReserve(t, s, "SEQ_0")
	mustReserve(t, s, "SEQ_1")
	if err := s.Drop("SEQ_2"); err != nil {
		t.Fatal(err)
	}

	info, err := s.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.Engine == "" {
		t.Errorf("Expected an engine name")
	}
	if info.Sequences != 2 {
		t.Errorf("Expected 2 sequences, got %d", info.Sequences)
	}
	if info.Reservations != 2 {
		t.Errorf("Expected 2 reservations, got %d", info.Reservations)
	}
}

func testSaveLoad(t *testing.T, factory StoreFactory) {
	s1, ok := factory().(store.ISnapshotStore)
	if !ok {
		t.Skip("store does not support snapshots")
	}
	s2 := factory().(store.ISnapshotStore)
	defer release(s1)
	defer release(s2)

	const numSequences = 100
	for i := 0; i < numSequences; i++ {
		mustDefine(t, s1, fmt.Sprintf("SEQ_%d", i), int64(i*1000), int64(i+1))
	}
	mustReserve(t, s1, "SEQ_7")

	var buf bytes.Buffer
	if err := s1.Save(&buf); err != nil {
		if errors.Is(err, store.ErrUnsupported) {
			t.Skip("store does not support snapshots")
		}
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	// rows in the target that are not in the snapshot disappear
	mustDefine(t, s2, "STALE", 0, 1)
	if err := s2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numSequences; i++ {
		name := fmt.Sprintf("SEQ_%d", i)
		want, _, _ := s1.Get(name)
		got, found, err := s2.Get(name)
		if err != nil || !found || got != want {
			t.Fatalf("%s: expected %+v after Load, got %+v (found=%v err=%v)", name, want, got, found, err)
		}
	}
	if _, found, _ := s2.Get("STALE"); found {
		t.Errorf("Expected Load to replace all rows")
	}

	// the loaded table continues where the snapshot stopped, SEQ_7 was reserved once before Save
	base, _ := mustReserve(t, s2, "SEQ_7")
	if base != 7000+8 {
		t.Errorf("Expected base %d, got %d", 7000+8, base)
	}
	base, _ = mustReserve(t, s2, "SEQ_7")
	if base != 7000+2*8 {
		t.Errorf("Expected base %d, got %d", 7000+2*8, base)
	}
}
