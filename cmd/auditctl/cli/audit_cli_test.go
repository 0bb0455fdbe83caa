package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/facturia/facturia/internal/auditlog"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func newTestCLI(t *testing.T) *AuditCLI {
	t.Helper()
	dir := t.TempDir()
	day14 := `[2024-03-14 09:00:00] [INFO] User created {"action":"USER_CREATED","actor_user_id":1,"actor_username":"admin","target_user_id":5}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-03-14.log"), []byte(day14), 0o600))

	lines := []string{
		`[2024-03-15 08:00:00] [INFO] User updated {"action":"USER_UPDATED","actor_user_id":1,"actor_username":"admin","target_user_id":5}`,
	}
	for i := 0; i < 6; i++ {
		lines = append(lines, fmt.Sprintf(`[2024-03-15 08:0%d:00] [WARNING] Login failed {"ip_address":"203.0.113.9"}`, i))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-03-15.log"), []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	analyzer, err := auditlog.NewAnalyzer(dir, auditlog.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	cli, err := NewAuditCLI(analyzer, auditlog.NewExporter())
	require.NoError(t, err)
	cli.now = func() time.Time { return fixedNow }
	return cli
}

func TestReportCommandJSON(t *testing.T) {
	cli := newTestCLI(t)
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	exitCode := cli.ReportCommand(context.Background(), ReportOptions{Format: ReportFormatJSON, Stdout: stdout, Stderr: stderr})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var report auditlog.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	require.Equal(t, auditlog.Period{Start: "2024-03-08", End: "2024-03-15"}, report.Period)
	require.Equal(t, 2, report.TotalEvents)
	require.Equal(t, 6, report.FailedAttempts)
	require.Equal(t, 1, report.Modifications)
}

func TestReportCommandText(t *testing.T) {
	cli := newTestCLI(t)
	stdout := new(bytes.Buffer)

	exitCode := cli.ReportCommand(context.Background(), ReportOptions{From: "2024-03-14", To: "2024-03-15", Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, exitCode)
	require.Contains(t, stdout.String(), "2024-03-14 to 2024-03-15")
	require.Contains(t, stdout.String(), "USER_CREATED")
}

func TestReportCommandXLSXFile(t *testing.T) {
	cli := newTestCLI(t)
	output := filepath.Join(t.TempDir(), "report.xlsx")
	stdout := new(bytes.Buffer)

	exitCode := cli.ReportCommand(context.Background(), ReportOptions{
		From: "2024-03-14", To: "2024-03-15", Format: ReportFormatXLSX, Output: output,
		Stdout: stdout, Stderr: new(bytes.Buffer),
	})
	require.Zero(t, exitCode)
	require.Contains(t, stdout.String(), output)

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()
	require.Contains(t, f.GetSheetList(), "Recent Events")
}

func TestReportCommandCSVStdout(t *testing.T) {
	cli := newTestCLI(t)
	stdout := new(bytes.Buffer)
	exitCode := cli.ReportCommand(context.Background(), ReportOptions{Format: "CSV", Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, exitCode)
	require.Contains(t, stdout.String(), "USER_UPDATED")
}

func TestReportCommandInvalidInput(t *testing.T) {
	cli := newTestCLI(t)
	for _, opts := range []ReportOptions{
		{From: "2024-03-16", To: "2024-03-15"},
		{To: "15-03-2024"},
		{Format: "pdf"},
	} {
		stderr := new(bytes.Buffer)
		opts.Stdout = new(bytes.Buffer)
		opts.Stderr = stderr
		require.Equal(t, 1, cli.ReportCommand(context.Background(), opts))
		require.Contains(t, stderr.String(), "audit report:")
	}
}

func TestSuspiciousCommandFlagsIPs(t *testing.T) {
	cli := newTestCLI(t)
	stdout := new(bytes.Buffer)

	exitCode := cli.SuspiciousCommand(context.Background(), SuspiciousOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, ExitSuspicious, exitCode)

	var summary SuspiciousSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, "2024-03-15", summary.Date)
	require.Equal(t, map[string]int{"203.0.113.9": 6}, summary.IPs)
}

func TestSuspiciousCommandCleanDay(t *testing.T) {
	cli := newTestCLI(t)
	stdout := new(bytes.Buffer)

	exitCode := cli.SuspiciousCommand(context.Background(), SuspiciousOptions{Date: "2024-03-14", Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, exitCode)
	require.Contains(t, stdout.String(), "no suspicious activity on 2024-03-14")
}

func TestActionsAndHistoryCommands(t *testing.T) {
	cli := newTestCLI(t)

	stdout := new(bytes.Buffer)
	exitCode := cli.ActionsCommand(context.Background(), EventsOptions{UserID: 1, Date: "2024-03-14", JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, exitCode)
	var events []auditlog.Event
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &events))
	require.Len(t, events, 1)
	require.Equal(t, auditlog.ActionUserCreated, events[0].Action())

	stdout.Reset()
	exitCode = cli.HistoryCommand(context.Background(), EventsOptions{UserID: 5, From: "2024-03-14", To: "2024-03-15", Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, exitCode)
	require.Contains(t, stdout.String(), "USER_CREATED")
	require.Contains(t, stdout.String(), "USER_UPDATED")

	stderr := new(bytes.Buffer)
	require.Equal(t, 1, cli.ActionsCommand(context.Background(), EventsOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "--user is required")
}

func TestRolesCommandJSON(t *testing.T) {
	stdout := new(bytes.Buffer)
	require.Zero(t, RolesCommand(RolesOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)}))

	var rows []struct {
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
		Assignable  []string `json:"assignable"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rows))
	require.Equal(t, "admin", rows[0].Role)
	require.NotEmpty(t, rows[0].Assignable)
	for _, row := range rows[1:] {
		require.Empty(t, row.Assignable, row.Role)
	}
}

func TestRolesCommandPermissionFilter(t *testing.T) {
	stdout := new(bytes.Buffer)
	require.Zero(t, RolesCommand(RolesOptions{JSONOutput: true, Permission: " Manage_Inventory ", Stdout: stdout, Stderr: new(bytes.Buffer)}))

	var rows []struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rows))
	roles := make([]string, len(rows))
	for i, row := range rows {
		roles[i] = row.Role
	}
	require.Equal(t, []string{"admin", "bodeguero"}, roles)
}

func TestRolesCommandUnknownPermission(t *testing.T) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	require.Equal(t, 1, RolesCommand(RolesOptions{Permission: "fly", Stdout: stdout, Stderr: stderr}))
	require.Contains(t, stderr.String(), `unknown permission "fly"`)
	require.Empty(t, stdout.String())
}

func TestJobsCLIWithoutClient(t *testing.T) {
	var c *JobsCLI
	_, err := c.TriggerSuspiciousScan(context.Background(), "")
	require.Error(t, err)
	_, err = (&JobsCLI{}).InspectQueue(context.Background())
	require.Error(t, err)
}

func TestNewAuditCLIRequiresAnalyzer(t *testing.T) {
	_, err := NewAuditCLI(nil, nil)
	require.Error(t, err)
}
