// Package domain contains the core entities of the generation gateway:
// jobs as seen by clients, their status vocabulary, and the audit events
// recorded for every accepted request. It is independent of the HTTP layer,
// the broker technology, and the storage backend.
package domain
