package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned when a queued message body cannot be
// parsed as a work item envelope. Such messages are dead-lettered rather
// than redelivered.
var ErrMalformedEnvelope = errors.New("malformed work item envelope")

// WorkItem is the message carried by the work queue between submission and
// the worker. The video payload travels base64-encoded so the envelope stays
// text-safe; any change to this encoding is a breaking wire change requiring
// both sides to be deployed together.
type WorkItem struct {
	JobID          string `json:"job_id"`
	ExpectedAction string `json:"expected_action"`
	VideoB64       string `json:"video_b64"`
	Attempt        int    `json:"attempt"`
}

func NewWorkItem(jobID, expectedAction string, video []byte) WorkItem {
	return WorkItem{
		JobID:          jobID,
		ExpectedAction: expectedAction,
		VideoB64:       base64.StdEncoding.EncodeToString(video),
	}
}

func (w WorkItem) Encode() ([]byte, error) {
	body, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode work item: %w", err)
	}
	return body, nil
}

// DecodeWorkItem parses a queued message body. The video payload itself is
// not decoded here; see Video.
func DecodeWorkItem(body []byte) (WorkItem, error) {
	var w WorkItem
	if err := json.Unmarshal(body, &w); err != nil {
		return WorkItem{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if w.JobID == "" || w.ExpectedAction == "" {
		return WorkItem{}, fmt.Errorf("%w: missing job_id or expected_action", ErrMalformedEnvelope)
	}
	return w, nil
}

// Video decodes the transport-encoded payload back to the original bytes.
func (w WorkItem) Video() ([]byte, error) {
	video, err := base64.StdEncoding.DecodeString(w.VideoB64)
	if err != nil {
		return nil, fmt.Errorf("decode video payload: %w", err)
	}
	return video, nil
}
