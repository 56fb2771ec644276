// Package api implements the HTTP surface of the gateway: request
// decoding and validation, mapping of service errors onto status codes,
// and the chi route table shared by every listener.
//
// Handlers hold no mutable state. Error bodies are always {"error": msg}
// with a fixed client-facing message; error details go to the logs only,
// after redaction.
package api
