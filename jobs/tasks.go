package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditSuspiciousScan runs the daily suspicious activity scan.
	TaskAuditSuspiciousScan = "audit:suspicious_scan"
)

// SuspiciousScanPayload selects the day to scan. An empty date means
// yesterday in UTC.
type SuspiciousScanPayload struct {
	Date string `json:"date,omitempty"`
}

// NewSuspiciousScanTask constructs an Asynq task.
func NewSuspiciousScanTask(payload SuspiciousScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditSuspiciousScan, data), nil
}
