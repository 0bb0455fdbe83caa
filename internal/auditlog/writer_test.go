package auditlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriterFeedsAnalyzer(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2025, 10, 6, 10, 0, 0, 0, time.UTC) }
	w, err := NewWriter(dir, WithWriterClock(clock))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, w.Info(ctx, "User created", Context{KeyActorUserID: int64(1), KeyAction: ActionUserCreated, KeyTargetUserID: int64(2)}))
	require.NoError(t, w.Warning(ctx, "Login failed", Context{KeyIPAddress: "10.1.1.1"}))
	require.NoError(t, w.Record(ctx, LevelError, "Delete failed", Context{KeyActorUserID: int64(1), KeyIPAddress: "10.1.1.1"}))

	data, err := os.ReadFile(filepath.Join(dir, "2025-10-06.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "[2025-10-06 10:00:00] [INFO] User created {"))

	a, err := NewAnalyzer(dir, WithClock(clock))
	require.NoError(t, err)
	events, err := a.UserActions(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "2025-10-06T10:00:00Z", events[0].Context.String(KeyTimestamp))

	report, err := a.GenerateReport(ctx, "2025-10-06", "2025-10-06")
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalEvents)
	require.Equal(t, 2, report.FailedAttempts)
}

func TestWriterConcurrentAppends(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, WithWriterClock(func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = w.Info(context.Background(), fmt.Sprintf("event %d", i), Context{KeyAction: "PING", "n": i})
		}(i)
	}
	wg.Wait()

	a, err := NewAnalyzer(dir)
	require.NoError(t, err)
	report, err := a.GenerateReport(context.Background(), "2025-01-02", "2025-01-02")
	require.NoError(t, err)
	require.Equal(t, 50, report.TotalEvents)
	require.Equal(t, 50, report.ByAction["PING"])
}

func TestNilWriter(t *testing.T) {
	var w *Writer
	require.Error(t, w.Info(context.Background(), "x", nil))
}

func TestWriterClampsOversizedFields(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2025, 10, 6, 10, 0, 0, 0, time.UTC) }
	w, err := NewWriter(dir, WithWriterClock(clock))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, w.Warning(ctx, "Login failed", Context{
		KeyActorUserID: int64(7),
		KeyIPAddress:   "10.9.9.9",
		KeyUserAgent:   strings.Repeat("a", 2<<20),
	}))
	require.NoError(t, w.Warning(ctx, "Login failed", Context{
		KeyActorUserID: int64(7),
		KeyUserAgent:   "bad\xff\xfeagent",
	}))

	data, err := os.ReadFile(filepath.Join(dir, "2025-10-06.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Less(t, len(lines[0]), 2*MaxFieldBytes)

	a, err := NewAnalyzer(dir, WithClock(clock))
	require.NoError(t, err)
	events, err := a.UserActions(ctx, 7, "2025-10-06")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Len(t, events[0].Context.String(KeyUserAgent), MaxFieldBytes)
	require.Equal(t, "bad\uFFFDagent", events[1].Context.String(KeyUserAgent))
}

func TestClampFieldKeepsRuneBoundaries(t *testing.T) {
	s := strings.Repeat("a", MaxFieldBytes-1) + "é"
	got := clampField(s)
	require.Equal(t, strings.Repeat("a", MaxFieldBytes-1), got)
	require.Equal(t, "short", clampField("short"))
}
