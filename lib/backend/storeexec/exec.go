package storeexec

import (
	"context"
	"errors"
	"io"

	"github.com/yanqingluo/dble/lib/backend"
	"github.com/yanqingluo/dble/lib/store"
)

// Executor answers nextval queries from a sequence table. The table can be local (lstore,
// pstore, dstore) or remote (rpc/client), anything that implements store.IStore.
type Executor struct {
	table store.IStore
	owned bool
}

// New creates an executor for a table that is owned by someone else.
func New(table store.IStore) *Executor {
	return &Executor{table: table}
}

// NewOwned creates an executor that closes the table (if it can be closed) on Close.
func NewOwned(table store.IStore) *Executor {
	return &Executor{table: table, owned: true}
}

func (e *Executor) Exec(ctx context.Context, query string) ([][]byte, error) {
	name, err := backend.ParseNextvalQuery(query)
	if err != nil {
		return nil, &backend.ErrorResponse{Code: "42000", Message: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, span, found, err := e.table.Reserve(name)
	if err != nil {
		var storeErr *store.Error
		if errors.As(err, &storeErr) {
			return nil, &backend.ErrorResponse{Code: storeErr.Code.String(), Message: storeErr.Msg}
		}
		// not a table error, e.g. the remote table is unreachable
		return nil, err
	}
	if !found {
		return [][]byte{[]byte(backend.NotFoundRow)}, nil
	}
	return [][]byte{backend.FormatSegmentRow(base, span)}, nil
}

func (e *Executor) Close() error {
	if !e.owned {
		return nil
	}
	if c, ok := e.table.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
