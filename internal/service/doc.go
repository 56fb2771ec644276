// Package service contains the gateway's use cases. GenerationService
// validates prompts, hands jobs to the queue client, records audit events,
// resolves job status and reads stored artifacts. It depends only on the
// queue, artifact and audit contracts, never on their implementations.
package service
