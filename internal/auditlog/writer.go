package auditlog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// TimestampLayout is the timestamp format written at the head of each line.
const TimestampLayout = "2006-01-02 15:04:05"

// MaxFieldBytes caps the message and every string context value. Longer
// values are cut on a rune boundary.
const MaxFieldBytes = 1024

// Writer appends audit events to one file per UTC calendar date. Each event
// is a single write call so readers never observe a partial line.
type Writer struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterClock overrides the time source.
func WithWriterClock(clock func() time.Time) WriterOption {
	return func(w *Writer) {
		if clock != nil {
			w.now = clock
		}
	}
}

// NewWriter returns a writer rooted at dir, creating it when missing.
func NewWriter(dir string, opts ...WriterOption) (*Writer, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	w := &Writer{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Info records a completed operation or informational event.
func (w *Writer) Info(ctx context.Context, message string, fields Context) error {
	return w.Record(ctx, LevelInfo, message, fields)
}

// Warning records a rejected or suspicious event.
func (w *Writer) Warning(ctx context.Context, message string, fields Context) error {
	return w.Record(ctx, LevelWarning, message, fields)
}

// Record appends one event line.
func (w *Writer) Record(ctx context.Context, level Level, message string, fields Context) error {
	if w == nil {
		return fmt.Errorf("auditlog: writer not initialised")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := w.now().UTC()
	payload := make(Context, len(fields)+1)
	for k, v := range fields {
		if str, ok := v.(string); ok {
			v = clampField(str)
		}
		payload[k] = v
	}
	if !payload.Has(KeyTimestamp) {
		payload[KeyTimestamp] = now.Format(time.RFC3339)
	}
	line, err := FormatLine(now.Format(TimestampLayout), level, clampField(message), payload)
	if err != nil {
		return fmt.Errorf("auditlog: encode context: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(PathFor(w.dir, now.Format(DateLayout)), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("auditlog: open: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("auditlog: write: %w", err)
	}
	return f.Close()
}

func clampField(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= MaxFieldBytes {
		return s
	}
	cut := MaxFieldBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
