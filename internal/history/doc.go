// Package history owns the append-only ledger of terminal candidate outcomes
// that makes pipeline runs idempotent.
//
// The ledger is a line-delimited JSON file: one record per terminal event,
// never rewritten or deleted. Load reconstructs the processed-identifier set
// at pipeline start; Append is the only mutation and is safe across process
// restarts and concurrent appenders because each record is a single flushed
// line. A candidate whose only record is upload_failed is deliberately left
// out of the processed set so future runs retry it.
package history
