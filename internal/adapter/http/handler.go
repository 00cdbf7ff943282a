package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/librasign/signcheck/internal/adapter/http/validation"
	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/infrastructure/logger"
	"github.com/librasign/signcheck/internal/service"
)

type SubmissionService interface {
	Submit(ctx context.Context, ownerID int64, expectedAction string, video []byte) (*domain.Job, error)
}

type ResultService interface {
	Get(ctx context.Context, id string, callerID int64) (*domain.Job, error)
	Wait(ctx context.Context, id string, callerID int64) (*domain.Job, error)
}

type Handlers struct {
	submissions SubmissionService
	results     ResultService
	maxSizeMB   int
}

func NewHandlers(submissions SubmissionService, results ResultService, maxSizeMB int) *Handlers {
	return &Handlers{
		submissions: submissions,
		results:     results,
		maxSizeMB:   maxSizeMB,
	}
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CheckAction accepts a video and the action it is expected to contain,
// queues a recognition job and returns its id without waiting for the
// verdict.
func (h *Handlers) CheckAction() http.HandlerFunc {
	maxBytes := int64(h.maxSizeMB) * 1024 * 1024

	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "video too large")
			return
		}

		expectedAction := r.FormValue("expected_action")

		file, _, err := r.FormFile("video")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing video file")
			return
		}
		defer file.Close() //nolint:errcheck

		video, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read video")
			return
		}

		if mime, allowed := validation.DetectVideoType(video); !allowed {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %s", mime))
			return
		}

		user := userFrom(r)
		job, err := h.submissions.Submit(r.Context(), user.ID, expectedAction, video)
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, service.ErrPublish):
			// The record exists but the work item never reached the queue;
			// return the id so the stuck pending job stays observable.
			writeJSON(w, http.StatusBadGateway, submitResponse{JobID: job.ID, Status: string(job.Status)})
			return
		case err != nil:
			logger.Error.Printf("submit failed for user %d: %v", user.ID, err)
			writeError(w, http.StatusInternalServerError, "submission failed")
			return
		}

		writeJSON(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: string(job.Status)})
	}
}

// JobStatus returns the job's current projection. With ?wait=true the
// request blocks until the job is terminal or the poll window closes.
func (h *Handlers) JobStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		user := userFrom(r)

		var (
			job *domain.Job
			err error
		)
		if r.URL.Query().Get("wait") == "true" {
			job, err = h.results.Wait(r.Context(), id, user.ID)
		} else {
			job, err = h.results.Get(r.Context(), id, user.ID)
		}

		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "job not found")
			return
		case errors.Is(err, domain.ErrForbidden):
			writeError(w, http.StatusForbidden, "job belongs to another user")
			return
		case err != nil:
			logger.Error.Printf("job read failed for %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "job read failed")
			return
		}

		writeJSON(w, http.StatusOK, jobProjection(job))
	}
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
