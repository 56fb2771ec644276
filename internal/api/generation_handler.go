package api

import (
	"bytes"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/genserve/internal/api/shared"
	"github.com/phrazzld/genserve/internal/domain"
	"github.com/phrazzld/genserve/internal/platform/logger"
	"github.com/phrazzld/genserve/internal/service"
	"golang.org/x/crypto/blake2b"
)

// GenerationHandler handles the generation endpoints.
type GenerationHandler struct {
	service service.GenerationService
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(svc service.GenerationService) *GenerationHandler {
	return &GenerationHandler{service: svc}
}

// Generate handles POST /generate requests.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.RespondWithErrorAndLog(w, r, http.StatusRequestEntityTooLarge, MsgRequestTooLarge, err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, MsgInvalidFormat, err)
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, MsgEmptyPrompt, err)
		return
	}

	job, err := h.service.Submit(r.Context(), req.Prompt)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, GenerateResponse{
		Message: MsgAccepted,
		ImageID: job.ArtifactID,
		TaskID:  job.JobID,
	})
}

// Status handles GET /status/{task_id} requests. It always answers 200.
func (h *GenerationHandler) Status(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	job := h.service.Status(r.Context(), taskID)

	logger.FromContextOrDefault(r.Context()).Debug("resolved job status",
		"task_id", taskID,
		"status", job.Status)

	// Only a finished job's answer is stable enough to cache.
	if job.Status.IsTerminal() {
		w.Header().Set("Cache-Control", "private, max-age=60")
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToStatusResponse(job))
}

// Image handles GET /image/{image_id} requests.
func (h *GenerationHandler) Image(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "image_id")

	a, err := h.service.Artifact(r.Context(), imageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, MsgImageNotFound)
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}

	sum := blake2b.Sum256(a.Data)
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, a.ID+".png", a.ModTime, bytes.NewReader(a.Data))
}
