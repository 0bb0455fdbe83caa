package auditlog

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrInvalidConfiguration indicates an unusable log directory.
	ErrInvalidConfiguration = errors.New("auditlog: invalid configuration")
	// ErrInvalidDate indicates a date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("auditlog: invalid date")
)

// Level is the severity tag of a log line.
type Level string

// Levels written by the application.
const (
	LevelDebug   Level = "DEBUG"
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// IsFailure reports whether the level marks a failed or rejected operation.
func (l Level) IsFailure() bool {
	return l == LevelWarning || l == LevelError
}

// Context keys read by the analyzer.
const (
	KeyActorUserID     = "actor_user_id"
	KeyActorUsername   = "actor_username"
	KeyAction          = "action"
	KeyTargetUserID    = "target_user_id"
	KeyTargetEmail     = "target_email"
	KeyTargetName      = "target_name"
	KeyTargetRole      = "target_role"
	KeyOldEmail        = "old_email"
	KeyOldName         = "old_name"
	KeyOldRole         = "old_role"
	KeyPasswordChanged = "password_changed"
	KeyIPAddress       = "ip_address"
	KeyUserAgent       = "user_agent"
	KeyTimestamp       = "timestamp"
)

// Actions recorded for user management.
const (
	ActionUserCreated = "USER_CREATED"
	ActionUserUpdated = "USER_UPDATED"
	ActionUserDeleted = "USER_DELETED"
	ActionLogin       = "LOGIN"
	ActionLogout      = "LOGOUT"
)

// Context is the JSON object at the end of a log line.
type Context map[string]any

// Has reports whether key is present with a non-null value.
func (c Context) Has(key string) bool {
	v, ok := c[key]
	return ok && v != nil
}

// String renders the value under key, or "" when absent.
func (c Context) String(key string) string {
	switch v := c[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Int64 returns the integer under key. Numeric strings are accepted since
// some writers quote ids.
func (c Context) Int64(key string) (int64, bool) {
	switch v := c[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Event is one parsed log line.
type Event struct {
	Timestamp string  `json:"timestamp"`
	Level     Level   `json:"level"`
	Message   string  `json:"message"`
	Context   Context `json:"context"`
}

// Action returns the action tag, or "" for lines without one.
func (e Event) Action() string {
	return e.Context.String(KeyAction)
}

// Completed reports whether the event records a successful operation.
func (e Event) Completed() bool {
	return e.Context.Has(KeyAction)
}

// FailedAttempt reports whether the event records a rejected operation.
func (e Event) FailedAttempt() bool {
	return e.Level.IsFailure() && !e.Context.Has(KeyAction)
}

// Period is the inclusive date range a report covers.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// UserActivity is the running tally for one actor.
type UserActivity struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	Count        int    `json:"count"`
	LastActivity string `json:"lastActivity"`
}

// RecentEvent is a flattened completed operation for display.
type RecentEvent struct {
	Timestamp string `json:"timestamp"`
	UserID    string `json:"userId"`
	Action    string `json:"action"`
	Target    string `json:"target"`
	Success   bool   `json:"success"`
}

// Report aggregates audit events over a date range.
type Report struct {
	Period         Period                  `json:"period"`
	TotalEvents    int                     `json:"totalEvents"`
	UniqueUsers    int                     `json:"uniqueUsers"`
	Modifications  int                     `json:"modifications"`
	FailedAttempts int                     `json:"failedAttempts"`
	TopUsers       []UserActivity          `json:"topUsers"`
	RecentEvents   []RecentEvent           `json:"recentEvents"`
	ByAction       map[string]int          `json:"byAction"`
	ByUser         map[string]UserActivity `json:"byUser"`
}
