// Package jobstatus translates broker-native job states into the
// service's status vocabulary. It holds no state and performs no I/O.
package jobstatus

import (
	"github.com/phrazzld/genserve/internal/domain"
	"github.com/phrazzld/genserve/internal/queue"
)

// Status is the resolved view of a job.
type Status struct {
	Status domain.JobStatus
	// ResultLocation is set only for completed jobs.
	ResultLocation string
}

// Resolve maps a poll outcome to a Status. Any error, including an
// unknown job id or an unreachable broker, yields Unknown: an unresolved
// status is a normal condition for polling clients.
func Resolve(result queue.Result, err error) Status {
	if err != nil {
		return Status{Status: domain.JobStatusUnknown}
	}

	switch result.State {
	case queue.StatePending, queue.StateStarted, queue.StateRetry:
		return Status{Status: domain.JobStatusQueued}
	case queue.StateSucceeded:
		return Status{Status: domain.JobStatusCompleted, ResultLocation: result.Location}
	case queue.StateFailed:
		return Status{Status: domain.JobStatusFailed}
	default:
		return Status{Status: domain.JobStatusUnknown}
	}
}
