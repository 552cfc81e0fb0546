package lstore

import (
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/yanqingluo/dble/lib/store"
)

type storeImpl struct {
	rows         *xsync.MapOf[string, store.Row]
	index        atomic.Uint64
	reservations atomic.Uint64
}

// snapshot is the serialized form of the table
type snapshot struct {
	Index uint64               `json:"index"`
	Rows  map[string]store.Row `json:"rows"`
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
func NewLocalStore() store.ISnapshotStore {
	return &storeImpl{
		rows: xsync.NewMapOf[string, store.Row](),
	}
}

// incAndGetIndex increments the index and returns the new value.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Define(name string, start, span int64) error {
	if err := store.ValidateDefine(name, start, span); err != nil {
		return err
	}
	s.rows.Store(name, store.Row{Next: start, Span: span})
	s.incAndGetIndex()
	return nil
}

func (s *storeImpl) SetSpan(name string, span int64) error {
	if err := store.ValidateSpan(span); err != nil {
		return err
	}
	found := false
	s.rows.Compute(name, func(old store.Row, loaded bool) (store.Row, bool) {
		if !loaded {
			return old, true // nothing to delete, nothing is stored
		}
		found = true
		old.Span = span
		return old, false
	})
	if !found {
		return store.NewError(store.RetCNotFound, fmt.Sprintf("sequence %s does not exist", name))
	}
	s.incAndGetIndex()
	return nil
}

func (s *storeImpl) Drop(name string) error {
	s.rows.Delete(name)
	s.incAndGetIndex()
	return nil
}

func (s *storeImpl) Reserve(name string) (base, span int64, found bool, err error) {
	s.rows.Compute(name, func(old store.Row, loaded bool) (store.Row, bool) {
		if !loaded {
			return old, true
		}
		next, advanceErr := old.Advance()
		if advanceErr != nil {
			err = advanceErr
			return old, false
		}
		base, span, found = old.Next, old.Span, true
		return next, false
	})
	if err != nil {
		return 0, 0, true, err
	}
	if found {
		s.incAndGetIndex()
		s.reservations.Add(1)
	}
	return base, span, found, nil
}

func (s *storeImpl) Get(name string) (store.Row, bool, error) {
	row, ok := s.rows.Load(name)
	return row, ok, nil
}

func (s *storeImpl) GetInfo() (store.Info, error) {
	return store.Info{
		Engine:       "lstore",
		Sequences:    uint64(s.rows.Size()),
		Reservations: s.reservations.Load(),
		Index:        s.index.Load(),
	}, nil
}

// Save writes all rows as json. The snapshot is fuzzy: rows changed during Save may or
// may not be included.
func (s *storeImpl) Save(w io.Writer) error {
	snap := snapshot{
		Index: s.index.Load(),
		Rows:  make(map[string]store.Row, s.rows.Size()),
	}
	s.rows.Range(func(name string, row store.Row) bool {
		snap.Rows[name] = row
		return true
	})
	if err := json.NewEncoder(w).Encode(&snap); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to write snapshot: %v", err))
	}
	return nil
}

func (s *storeImpl) Load(r io.Reader) error {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to read snapshot: %v", err))
	}
	s.rows.Clear()
	for name, row := range snap.Rows {
		s.rows.Store(name, row)
	}
	s.index.Store(snap.Index)
	return nil
}

func (s *storeImpl) Close() error {
	s.rows.Clear()
	return nil
}
