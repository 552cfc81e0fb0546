package testing

import (
	"fmt"
	"sync/atomic"
	"testing"
)

// RunStoreBenchmarks runs all benchmarks for a sequence table implementation
func RunStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Reserve", func(b *testing.B) {
			benchmarkReserve(b, factory)
		})

		b.Run("ReserveParallel", func(b *testing.B) {
			benchmarkReserveParallel(b, factory)
		})

		b.Run("ReserveManySequences", func(b *testing.B) {
			benchmarkReserveManySequences(b, factory)
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkReserve(b *testing.B, factory StoreFactory) {
	s := factory()
	b.Cleanup(func() { release(s) })

	if err := s.Define("GLOBAL", 0, 100); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, _, err := s.Reserve("GLOBAL"); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkReserveParallel(b *testing.B, factory StoreFactory) {
	s := factory()
	b.Cleanup(func() { release(s) })

	if err := s.Define("GLOBAL", 0, 100); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, _, _, err := s.Reserve("GLOBAL"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func benchmarkReserveManySequences(b *testing.B, factory StoreFactory) {
	s := factory()
	b.Cleanup(func() { release(s) })

	const numSequences = 64
	names := make([]string, numSequences)
	for i := range names {
		names[i] = fmt.Sprintf("SEQ_%d", i)
		if err := s.Define(names[i], 0, 100); err != nil {
			b.Fatal(err)
		}
	}

	var counter atomic.Uint64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			name := names[counter.Add(1)%numSequences]
			if _, _, _, err := s.Reserve(name); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func benchmarkGet(b *testing.B, factory StoreFactory) {
	s := factory()
	b.Cleanup(func() { release(s) })

	if err := s.Define("GLOBAL", 0, 100); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, _, err := s.Get("GLOBAL"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
