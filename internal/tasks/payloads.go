package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task types shared by producers and consumers.
const (
	TypePDFConvert = "pdf:convert"
)

// ConvertPayload is the minimal state a worker needs to run a queued job.
type ConvertPayload struct {
	JobID         string `json:"job_id"`
	URL           string `json:"url"`
	Mode          string `json:"mode"`
	CorrelationID string `json:"correlation_id"`
}

// NewConvertTask builds a conversion task for job id.
func NewConvertTask(jobID, url, mode, correlationID string, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(ConvertPayload{
		JobID:         jobID,
		URL:           url,
		Mode:          mode,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFConvert, payload, opts...), nil
}
