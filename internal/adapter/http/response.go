package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/librasign/signcheck/internal/domain"
	"github.com/librasign/signcheck/internal/infrastructure/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

type jobResponse struct {
	JobID          string         `json:"job_id"`
	Status         string         `json:"status"`
	ExpectedAction string         `json:"expected_action"`
	Result         *domain.Result `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func jobProjection(job *domain.Job) jobResponse {
	return jobResponse{
		JobID:          job.ID,
		Status:         string(job.Status),
		ExpectedAction: job.ExpectedAction,
		Result:         job.Result,
		Error:          job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
