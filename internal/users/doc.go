// Package users maintains the synchronized, ordered list of OS user
// accounts.
//
// # Overview
//
// The package provides:
//  1. Record — one cached account entry, including the placeholder variant
//     that represents an uncommitted new-user slot.
//  2. RowIndex — the uid→row mapping, kept exact across inserts and
//     removals as an isolated, separately tested operation.
//  3. Model — the reconciler and consumer-facing surface: an ordered,
//     randomly indexable read view plus the mutation intents (create,
//     rename, remove, switch current, group edits). Intents validate local
//     preconditions, issue asynchronous calls through the remote gateway,
//     and commit or roll back when the call completes; unsolicited remote
//     notifications are merged idempotently through the same sequencing
//     point.
//
// # Concurrency
//
// All mutations are serialized by a single lock inside the Model — the one
// logical sequencing context. Observer callbacks run synchronously under
// that lock so they always see a consistent collection; observers must not
// call back into the Model from a callback.
package users
