package auditlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// SuspiciousThreshold is the number of failed lines per IP and day that
	// must be exceeded before the IP is reported.
	SuspiciousThreshold = 5
	// DefaultHistoryWindow is how far back TargetUserHistory looks when no
	// start date is given.
	DefaultHistoryWindow = 7 * 24 * time.Hour

	maxLineBytes = 1 << 20
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the time source used for default dates.
func WithClock(clock func() time.Time) Option {
	return func(a *Analyzer) {
		if clock != nil {
			a.now = clock
		}
	}
}

// WithLogger sets the logger used for unreadable files.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Analyzer answers audit queries over date-partitioned log files. Every call
// is a fresh read of the files it needs; it keeps no state between calls.
type Analyzer struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewAnalyzer returns an analyzer rooted at dir, creating it when missing.
func NewAnalyzer(dir string, opts ...Option) (*Analyzer, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	a := &Analyzer{dir: dir, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: log directory not set", ErrInvalidConfiguration)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidConfiguration, dir)
	}
	return nil
}

// PathFor maps a date to its log file.
func PathFor(dir, date string) string {
	return filepath.Join(dir, date+".log")
}

func (a *Analyzer) today() time.Time {
	now := a.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// resolveDate parses date, or returns today when it is empty.
func (a *Analyzer) resolveDate(date string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return a.today(), nil
	}
	return ParseDate(date)
}

// UserActions returns the events initiated by actorUserID on date (today
// when empty), in file order.
func (a *Analyzer) UserActions(ctx context.Context, actorUserID int64, date string) ([]Event, error) {
	day, err := a.resolveDate(date)
	if err != nil {
		return nil, err
	}
	events := []Event{}
	err = a.scanDay(ctx, day.Format(DateLayout), func(ev Event) {
		if id, ok := ev.Context.Int64(KeyActorUserID); ok && id == actorUserID {
			events = append(events, ev)
		}
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// TargetUserHistory returns the events whose target is targetUserID across
// the inclusive range, in chronological file order. An empty end means
// today; an empty start means seven days before end.
func (a *Analyzer) TargetUserHistory(ctx context.Context, targetUserID int64, start, end string) ([]Event, error) {
	endDay, err := a.resolveDate(end)
	if err != nil {
		return nil, err
	}
	startDay := endDay.Add(-DefaultHistoryWindow)
	if strings.TrimSpace(start) != "" {
		if startDay, err = ParseDate(start); err != nil {
			return nil, err
		}
	}
	events := []Event{}
	for _, date := range DateRange(startDay, endDay) {
		err := a.scanDay(ctx, date, func(ev Event) {
			if id, ok := ev.Context.Int64(KeyTargetUserID); ok && id == targetUserID {
				events = append(events, ev)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}

// DetectSuspiciousActivity counts WARNING and ERROR lines per ip_address on
// date (today when empty) and returns the IPs above SuspiciousThreshold.
func (a *Analyzer) DetectSuspiciousActivity(ctx context.Context, date string) (map[string]int, error) {
	day, err := a.resolveDate(date)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	err = a.scanDay(ctx, day.Format(DateLayout), func(ev Event) {
		if !ev.Level.IsFailure() {
			return
		}
		ip := ev.Context.String(KeyIPAddress)
		if ip == "" {
			return
		}
		counts[ip]++
	})
	if err != nil {
		return nil, err
	}
	flagged := make(map[string]int)
	for ip, n := range counts {
		if n > SuspiciousThreshold {
			flagged[ip] = n
		}
	}
	return flagged, nil
}

// scanDay feeds every parsed line of the date's file to fn. Missing and
// unreadable files yield nothing.
func (a *Analyzer) scanDay(ctx context.Context, date string, fn func(Event)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := PathFor(a.dir, date)
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn("audit log unreadable", slog.String("path", path), slog.Any("error", err))
		}
		return nil
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)
	var (
		line     []byte
		skipping bool
		dropped  int
	)
	for {
		chunk, err := reader.ReadSlice('\n')
		if !skipping {
			if len(line)+len(chunk) > maxLineBytes {
				skipping = true
				dropped++
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if !skipping && len(line) > 0 {
			if ev, ok := ParseLine(strings.TrimRight(string(line), "\r\n")); ok {
				fn(ev)
			}
		}
		line = line[:0]
		skipping = false
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.logger.Warn("audit log read failed", slog.String("path", path), slog.Any("error", err))
			}
			break
		}
	}
	if dropped > 0 {
		a.logger.Warn("audit log lines over size limit skipped", slog.String("path", path), slog.Int("count", dropped))
	}
	return nil
}
