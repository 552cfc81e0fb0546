// Package pgexec reserves segments in PostgreSQL. The sequence rows live in the table
// dseq_sequence; the function dseq_nextval(name) advances a row in a single UPDATE and
// returns "base,span", or the sentinel row if the sequence is not defined.
//
// Install creates both if they are missing. Errors reported by the server are returned
// as backend.ErrorResponse with the SQLSTATE as code.
package pgexec
