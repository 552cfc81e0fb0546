// Package storeexec answers nextval queries from a sequence table (store.IStore).
// A missing sequence yields backend.NotFoundRow, table errors become error responses
// carrying the name of the return code.
package storeexec
