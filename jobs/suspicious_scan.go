package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	"github.com/facturia/facturia/internal/auditlog"
	jobmetrics "github.com/facturia/facturia/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SuspiciousDetector is the slice of the analyzer the scan needs.
type SuspiciousDetector interface {
	DetectSuspiciousActivity(ctx context.Context, date string) (map[string]int, error)
}

// SuspiciousScanJob flags IP addresses with too many failed operations in
// one day of audit logs.
type SuspiciousScanJob struct {
	Detector SuspiciousDetector
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewSuspiciousScanJob initialises the scan handler.
func NewSuspiciousScanJob(detector SuspiciousDetector, logger *slog.Logger, metrics *jobmetrics.Metrics) *SuspiciousScanJob {
	return &SuspiciousScanJob{
		Detector: detector,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan for the payload's day.
func (j *SuspiciousScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Detector == nil {
		return errors.New("suspicious scan: handler not configured")
	}
	var payload SuspiciousScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("suspicious scan: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	date := payload.Date
	if date == "" {
		date = j.now().AddDate(0, 0, -1).Format(auditlog.DateLayout)
	}
	if _, err := auditlog.ParseDate(date); err != nil {
		return fmt.Errorf("suspicious scan: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track("audit_suspicious_scan")
	logger := j.logger().With(slog.String("date", date))
	logger.Info("starting suspicious activity scan")

	flagged, err := j.Detector.DetectSuspiciousActivity(ctx, date)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	ips := make([]string, 0, len(flagged))
	for ip := range flagged {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	for _, ip := range ips {
		logger.Warn("suspicious activity detected",
			slog.String("ip_address", ip),
			slog.Int("failures", flagged[ip]),
		)
	}
	j.metrics().SetSuspicious(flagged)

	logger.Info("completed suspicious activity scan", slog.Int("flagged", len(flagged)))
	return tracker.End(nil)
}

func (j *SuspiciousScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditSuspiciousScan))
	}
	return slog.Default().With(slog.String("job", TaskAuditSuspiciousScan))
}

func (j *SuspiciousScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SuspiciousScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
