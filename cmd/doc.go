// Package cmd implements the command-line interface of dseq, the segmented unique ID
// allocator. It provides a hierarchical command structure with operations for running
// the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the dseq server
//   - seq: Commands for the allocator (next, list, errors, reload, perf)
//   - table: Commands for sequence table rows (define, span, drop, get, reserve, info)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables with the prefix DSEQ_, dashes become
// underscores (e.g. DSEQ_SEQUENCE_CONFIG). .env and .env.local files are read on start.
//
// See dseq -help for a list of all commands.
package cmd
