// Package pipeline orchestrates the discover, translate, judge, and publish
// flow for every configured keyword. It owns the per-candidate state machine
// and the ledger records that make runs idempotent.
package pipeline
