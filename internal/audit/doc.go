// Package audit records accepted generation requests to an append-only
// JSON Lines file without ever blocking the request path.
//
// Producers hand events to a bounded channel; a single writer goroutine
// drains it in hand-off order, stamps each event and appends it to the
// file. Stop enqueues a sentinel behind any pending events and waits for
// the writer to flush, sync and close the file. When the channel is full,
// or after Stop, events are dropped and counted rather than delaying the
// caller.
package audit
