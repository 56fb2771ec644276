package api

import "github.com/phrazzld/genserve/internal/domain"

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

// GenerateResponse is returned when a job has been accepted.
type GenerateResponse struct {
	Message string `json:"message"`
	ImageID string `json:"image_id"`
	TaskID  string `json:"task_id"`
}

// StatusResponse is returned by GET /status/{task_id}.
type StatusResponse struct {
	Status    string `json:"status"`
	ImagePath string `json:"image_path,omitempty"`
}

// MsgAccepted is the message returned with every accepted submission.
const MsgAccepted = "Imagen en proceso"

// Status labels on the wire
const (
	StatusLabelQueued    = "En cola"
	StatusLabelCompleted = "Completado"
	StatusLabelFailed    = "Error"
	StatusLabelUnknown   = "Desconocido"
)

// StatusLabel returns the wire label for a job status.
func StatusLabel(status domain.JobStatus) string {
	switch status {
	case domain.JobStatusQueued:
		return StatusLabelQueued
	case domain.JobStatusCompleted:
		return StatusLabelCompleted
	case domain.JobStatusFailed:
		return StatusLabelFailed
	default:
		return StatusLabelUnknown
	}
}

// jobToStatusResponse converts a resolved job to its wire form. The image
// path is only exposed for completed jobs.
func jobToStatusResponse(job *domain.Job) StatusResponse {
	resp := StatusResponse{Status: StatusLabel(job.Status)}
	if job.Status == domain.JobStatusCompleted {
		resp.ImagePath = job.ResultLocation
	}
	return resp
}
