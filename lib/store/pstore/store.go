package pstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/yanqingluo/dble/lib/store"
)

var log = logger.GetLogger("store")

const (
	rowPrefix = "seq/"
	countKey  = "meta/sequences"
	rowSize   = 16
)

type storeImpl struct {
	db   *pebble.DB
	path string

	// serializes every read-modify-write
	mu sync.Mutex

	index        atomic.Uint64
	reservations atomic.Uint64
}

// NewPebbleStore opens (or creates) a sequence table in the pebble database at path.
// Every write is synced to disk before it is acknowledged.
func NewPebbleStore(path string) (store.ISnapshotStore, error) {
	db, err := pebble.Open(path, &pebble.Options{Logger: pebbleLogger{log}})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database at %s: %w", path, err)
	}
	log.Infof("opened sequence table at %s", path)
	return &storeImpl{db: db, path: path}, nil
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func rowKey(name string) []byte {
	return []byte(rowPrefix + name)
}

func encodeRow(row store.Row) []byte {
	b := make([]byte, rowSize)
	binary.BigEndian.PutUint64(b[0:8], uint64(row.Next))
	binary.BigEndian.PutUint64(b[8:16], uint64(row.Span))
	return b
}

func decodeRow(b []byte) (store.Row, error) {
	if len(b) != rowSize {
		return store.Row{}, fmt.Errorf("invalid row length %d", len(b))
	}
	return store.Row{
		Next: int64(binary.BigEndian.Uint64(b[0:8])),
		Span: int64(binary.BigEndian.Uint64(b[8:16])),
	}, nil
}

// get reads a value and copies it, since pebble only lends the buffer until the closer is closed.
func (s *storeImpl) get(key []byte) ([]byte, bool, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *storeImpl) loadRow(name string) (store.Row, bool, error) {
	b, ok, err := s.get(rowKey(name))
	if err != nil || !ok {
		return store.Row{}, ok, internalError("read", name, err)
	}
	row, err := decodeRow(b)
	if err != nil {
		return store.Row{}, false, internalError("decode", name, err)
	}
	return row, true, nil
}

func (s *storeImpl) count() (uint64, error) {
	b, ok, err := s.get([]byte(countKey))
	if err != nil || !ok {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid counter length %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// writeRow stores a row and adjusts the sequence counter in one synced batch.
func (s *storeImpl) writeRow(name string, row *store.Row, delta int64) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	var err error
	if row != nil {
		err = batch.Set(rowKey(name), encodeRow(*row), nil)
	} else {
		err = batch.Delete(rowKey(name), nil)
	}
	if err != nil {
		return err
	}
	if delta != 0 {
		n, err := s.count()
		if err != nil {
			return err
		}
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(int64(n)+delta))
		if err := batch.Set([]byte(countKey), b, nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	s.index.Add(1)
	return nil
}

func internalError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to %s sequence %s: %v", op, name, err))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Define(name string, start, span int64) error {
	if err := store.ValidateDefine(name, start, span); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists, err := s.loadRow(name)
	if err != nil {
		return err
	}
	var delta int64
	if !exists {
		delta = 1
	}
	return internalError("define", name, s.writeRow(name, &store.Row{Next: start, Span: span}, delta))
}

func (s *storeImpl) SetSpan(name string, span int64) error {
	if err := store.ValidateSpan(span); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists, err := s.loadRow(name)
	if err != nil {
		return err
	}
	if !exists {
		return store.NewError(store.RetCNotFound, fmt.Sprintf("sequence %s does not exist", name))
	}
	row.Span = span
	return internalError("update", name, s.writeRow(name, &row, 0))
}

func (s *storeImpl) Drop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists, err := s.loadRow(name)
	if err != nil || !exists {
		return err
	}
	return internalError("drop", name, s.writeRow(name, nil, -1))
}

func (s *storeImpl) Reserve(name string) (int64, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists, err := s.loadRow(name)
	if err != nil || !exists {
		return 0, 0, exists, err
	}
	next, err := row.Advance()
	if err != nil {
		return 0, 0, true, err
	}
	// the range only belongs to the caller once the advanced row is on disk
	if err := s.writeRow(name, &next, 0); err != nil {
		return 0, 0, true, internalError("reserve", name, err)
	}
	s.reservations.Add(1)
	return row.Next, row.Span, true, nil
}

func (s *storeImpl) Get(name string) (store.Row, bool, error) {
	return s.loadRow(name)
}

func (s *storeImpl) GetInfo() (store.Info, error) {
	n, err := s.count()
	if err != nil {
		return store.Info{}, store.NewError(store.RetCInternalError, err.Error())
	}
	return store.Info{
		Engine:       "pstore",
		Sequences:    n,
		Reservations: s.reservations.Load(),
		Index:        s.index.Load(),
	}, nil
}

func (s *storeImpl) Save(io.Writer) error {
	return store.NewError(store.RetCUnsupportedOperation, "pstore does not support snapshots")
}

func (s *storeImpl) Load(io.Reader) error {
	return store.NewError(store.RetCUnsupportedOperation, "pstore does not support snapshots")
}

func (s *storeImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Infof("closing sequence table at %s", s.path)
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Logging
// --------------------------------------------------------------------------

// pebbleLogger routes pebble's log output through the dragonboat logger
type pebbleLogger struct {
	logger.ILogger
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.ILogger.Panicf(format, args...)
}
