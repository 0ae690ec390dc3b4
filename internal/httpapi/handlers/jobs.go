package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clipforge/internal/httpkit"
	"clipforge/internal/pkg/errors"
	"clipforge/internal/ports"
	"clipforge/internal/scheduler"
)

type ProcessVideoRequest struct {
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
	OutputPrefix string `json:"outputPrefix"`
}

type jobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type jobResponse struct {
	JobID      string     `json:"jobId"`
	State      string     `json:"state"`
	Position   int        `json:"position,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Error      *jobError  `json:"error,omitempty"`
}

// PostProcessVideo accepts a transcode job. It only does admission
// bookkeeping; the response returns before any pipeline work starts.
func (h *Handler) PostProcessVideo(w http.ResponseWriter, r *http.Request) {
	var req ProcessVideoRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, string(errors.CodeInvalidRequest), "invalid json body", nil)
		return
	}

	jobID, position, err := h.sched.Submit(ports.ObjectRef{
		Bucket: req.Bucket,
		Key:    req.Key,
	}, req.OutputPrefix)
	if err != nil {
		writeCodedErr(w, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusAccepted, map[string]any{
		"jobId":    jobID,
		"position": position,
	})
}

// GetJob reports a job's current state and, while queued, its position.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	snap, position, err := h.sched.Status(jobID)
	if err != nil {
		writeCodedErr(w, err)
		return
	}

	resp := jobResponse{
		JobID:     snap.ID,
		State:     string(snap.State),
		CreatedAt: snap.CreatedAt,
	}
	if snap.State == scheduler.StateQueued {
		resp.Position = position
	}
	if !snap.StartedAt.IsZero() {
		t := snap.StartedAt
		resp.StartedAt = &t
	}
	if !snap.FinishedAt.IsZero() {
		t := snap.FinishedAt
		resp.FinishedAt = &t
	}
	if snap.Failure != nil {
		resp.Error = &jobError{
			Code:    string(snap.Failure.Code),
			Message: snap.Failure.Message,
		}
	}

	httpkit.WriteJSON(w, 200, resp)
}

func writeCodedErr(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	details := errors.GetFields(err)
	httpkit.WriteErr(w, errors.GetHTTPStatus(err), string(code), err.Error(), details)
}
