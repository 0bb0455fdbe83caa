// Package audithttp exposes the audit log analyzer over HTTP.
package audithttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/facturia/facturia/internal/auditlog"
	"github.com/facturia/facturia/internal/authz"
	"github.com/facturia/facturia/internal/platform/httpx"
	"github.com/facturia/facturia/internal/shared"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
)

// Analyzer is the read contract over the audit log directory.
type Analyzer interface {
	UserActions(ctx context.Context, actorUserID int64, date string) ([]auditlog.Event, error)
	TargetUserHistory(ctx context.Context, targetUserID int64, start, end string) ([]auditlog.Event, error)
	DetectSuspiciousActivity(ctx context.Context, date string) (map[string]int, error)
	GenerateReport(ctx context.Context, start, end string) (auditlog.Report, error)
}

// Exporter renders reports as downloadable files.
type Exporter interface {
	WriteCSV(report auditlog.Report) ([]byte, error)
	WriteXLSX(report auditlog.Report) ([]byte, error)
}

// PermissionChecker answers role permission questions.
type PermissionChecker interface {
	HasPermission(actor *authz.Actor, p authz.Permission) bool
}

// Handler serves audit log queries.
type Handler struct {
	logger   *slog.Logger
	analyzer Analyzer
	exporter Exporter
	perms    PermissionChecker
	now      func() time.Time
}

// NewHandler builds an audit handler.
func NewHandler(logger *slog.Logger, analyzer Analyzer, exporter Exporter, perms PermissionChecker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		analyzer: analyzer,
		exporter: exporter,
		perms:    perms,
		now:      time.Now,
	}
}

type eventsResponse struct {
	UserID int64            `json:"userId"`
	From   string           `json:"from,omitempty"`
	To     string           `json:"to,omitempty"`
	Date   string           `json:"date,omitempty"`
	Events []auditlog.Event `json:"events"`
}

type suspiciousResponse struct {
	Date      string         `json:"date"`
	Threshold int            `json:"threshold"`
	IPs       map[string]int `json:"ips"`
}

func (h *Handler) requireAdminPanel(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := shared.ActorFromContext(r.Context())
		if actor == nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if h.perms == nil || !h.perms.HasPermission(actor, authz.PermAccessAdminPanel) {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleUserActions(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	date, err := h.parseDay(r.URL.Query().Get("date"))
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	events, err := h.analyzer.UserActions(r.Context(), id, date)
	if err != nil {
		h.handleServerError(w, "load user actions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, eventsResponse{UserID: id, Date: date, Events: events})
}

func (h *Handler) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	from, to, err := h.parseRange(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	events, err := h.analyzer.TargetUserHistory(r.Context(), id, from, to)
	if err != nil {
		h.handleServerError(w, "load user history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, eventsResponse{UserID: id, From: from, To: to, Events: events})
}

func (h *Handler) handleSuspicious(w http.ResponseWriter, r *http.Request) {
	date, err := h.parseDay(r.URL.Query().Get("date"))
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	ips, err := h.analyzer.DetectSuspiciousActivity(r.Context(), date)
	if err != nil {
		h.handleServerError(w, "detect suspicious activity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, suspiciousResponse{Date: date, Threshold: auditlog.SuspiciousThreshold, IPs: ips})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleReportXLSX(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	data, err := h.exporter.WriteXLSX(report)
	if err != nil {
		h.handleServerError(w, "encode xlsx", err)
		return
	}
	h.writeAttachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("audit-report-%s-%s.xlsx", report.Period.Start, report.Period.End), data)
}

func (h *Handler) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	data, err := h.exporter.WriteCSV(report)
	if err != nil {
		h.handleServerError(w, "encode csv", err)
		return
	}
	h.writeAttachment(w, "text/csv; charset=utf-8",
		fmt.Sprintf("audit-report-%s-%s.csv", report.Period.Start, report.Period.End), data)
}

func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request) (auditlog.Report, bool) {
	from, to, err := h.parseRange(r)
	if err != nil {
		h.handleFilterError(w, err)
		return auditlog.Report{}, false
	}
	val, err, _ := singleflightReport(r.Context(), "report:"+from+":"+to, func(ctx context.Context) (interface{}, error) {
		return h.analyzer.GenerateReport(ctx, from, to)
	})
	if err != nil {
		h.handleServerError(w, "generate report", err)
		return auditlog.Report{}, false
	}
	return val.(auditlog.Report), true
}

func (h *Handler) writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("write export", slog.Any("error", err))
	}
}

func (h *Handler) parseDay(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return h.now().UTC().Format(auditlog.DateLayout), nil
	}
	if _, err := auditlog.ParseDate(value); err != nil {
		return "", validationError{field: "date"}
	}
	return value, nil
}

// parseRange resolves from/to, defaulting to the seven days ending today.
func (h *Handler) parseRange(r *http.Request) (string, string, error) {
	toStr := strings.TrimSpace(r.URL.Query().Get("to"))
	if toStr == "" {
		toStr = h.now().UTC().Format(auditlog.DateLayout)
	}
	toTime, err := auditlog.ParseDate(toStr)
	if err != nil {
		return "", "", validationError{field: "to"}
	}
	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format(auditlog.DateLayout)
	}
	fromTime, err := auditlog.ParseDate(fromStr)
	if err != nil {
		return "", "", validationError{field: "from"}
	}
	if fromTime.After(toTime) {
		return "", "", validationError{field: "range"}
	}
	if toTime.Sub(fromTime) > maxDateRange {
		return "", "", validationError{field: "range"}
	}
	return fromStr, toStr, nil
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationError{field: "id"}
	}
	return id, nil
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var v validationError
	if errors.As(err, &v) {
		httpx.ValidationProblem(w, map[string]string{v.field: "invalid"})
		return
	}
	h.handleServerError(w, "validate filters", err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.logger.Warn(message, slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Request Cancelled", "")
		return
	}
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, err)
}

type validationError struct {
	field string
}

func (validationError) Error() string {
	return "validation failed"
}
