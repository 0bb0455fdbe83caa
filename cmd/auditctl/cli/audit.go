package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/facturia/facturia/internal/auditlog"
)

// ExitSuspicious is returned by the suspicious command when at least one IP
// crossed the threshold.
const ExitSuspicious = 10

// Analyzer is the read side of the audit log used by the commands.
type Analyzer interface {
	UserActions(ctx context.Context, actorUserID int64, date string) ([]auditlog.Event, error)
	TargetUserHistory(ctx context.Context, targetUserID int64, start, end string) ([]auditlog.Event, error)
	DetectSuspiciousActivity(ctx context.Context, date string) (map[string]int, error)
	GenerateReport(ctx context.Context, start, end string) (auditlog.Report, error)
}

// Exporter renders a report into a file format.
type Exporter interface {
	WriteCSV(report auditlog.Report) ([]byte, error)
	WriteXLSX(report auditlog.Report) ([]byte, error)
}

// AuditCLI runs audit log queries from the command line.
type AuditCLI struct {
	analyzer Analyzer
	exporter Exporter
	now      func() time.Time
}

// NewAuditCLI constructs the helper. A nil exporter disables file output.
func NewAuditCLI(analyzer Analyzer, exporter Exporter) (*AuditCLI, error) {
	if analyzer == nil {
		return nil, errors.New("audit cli: analyzer required")
	}
	return &AuditCLI{analyzer: analyzer, exporter: exporter, now: time.Now}, nil
}

// ReportFormat selects how ReportCommand renders.
type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// ReportOptions configures ReportCommand.
type ReportOptions struct {
	From   string
	To     string
	Format ReportFormat
	// Output is the destination file for csv and xlsx. Empty writes csv to
	// Stdout and derives a file name for xlsx.
	Output string
	Stdout io.Writer
	Stderr io.Writer
}

// ReportCommand prints the aggregated report for a date range.
func (c *AuditCLI) ReportCommand(ctx context.Context, opts ReportOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	from, to, err := c.resolveRange(opts.From, opts.To)
	if err != nil {
		fmt.Fprintf(stderr, "audit report: %v\n", err)
		return 1
	}
	format := ReportFormat(strings.ToLower(string(opts.Format)))
	if format == "" {
		format = ReportFormatText
	}
	switch format {
	case ReportFormatText, ReportFormatJSON, ReportFormatCSV, ReportFormatXLSX:
	default:
		fmt.Fprintf(stderr, "audit report: invalid format %q (expected text, json, csv or xlsx)\n", opts.Format)
		return 1
	}
	if (format == ReportFormatCSV || format == ReportFormatXLSX) && c.exporter == nil {
		fmt.Fprintln(stderr, "audit report: exporter not configured")
		return 1
	}

	report, err := c.analyzer.GenerateReport(ctx, from, to)
	if err != nil {
		fmt.Fprintf(stderr, "audit report: %v\n", err)
		return 1
	}

	switch format {
	case ReportFormatJSON:
		err = writeJSON(stdout, report)
	case ReportFormatCSV:
		var data []byte
		if data, err = c.exporter.WriteCSV(report); err == nil {
			err = writeExport(stdout, opts.Output, data)
		}
	case ReportFormatXLSX:
		var data []byte
		if data, err = c.exporter.WriteXLSX(report); err == nil {
			output := opts.Output
			if output == "" {
				output = fmt.Sprintf("audit-report-%s-%s.xlsx", from, to)
			}
			if err = writeExport(stdout, output, data); err == nil {
				fmt.Fprintf(stdout, "wrote %s\n", output)
			}
		}
	default:
		err = writeReportText(stdout, report)
	}
	if err != nil {
		fmt.Fprintf(stderr, "audit report: %v\n", err)
		return 1
	}
	return 0
}

// SuspiciousOptions configures SuspiciousCommand.
type SuspiciousOptions struct {
	Date       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// SuspiciousSummary is the structured output of SuspiciousCommand.
type SuspiciousSummary struct {
	Date      string         `json:"date"`
	Threshold int            `json:"threshold"`
	IPs       map[string]int `json:"ips"`
}

// SuspiciousCommand lists IPs with too many failed attempts on one day.
func (c *AuditCLI) SuspiciousCommand(ctx context.Context, opts SuspiciousOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	date, err := c.resolveDay(opts.Date)
	if err != nil {
		fmt.Fprintf(stderr, "audit suspicious: %v\n", err)
		return 1
	}
	flagged, err := c.analyzer.DetectSuspiciousActivity(ctx, date)
	if err != nil {
		fmt.Fprintf(stderr, "audit suspicious: %v\n", err)
		return 1
	}
	summary := SuspiciousSummary{Date: date, Threshold: auditlog.SuspiciousThreshold, IPs: flagged}
	if opts.JSONOutput {
		err = writeJSON(stdout, summary)
	} else {
		err = writeSuspiciousText(stdout, summary)
	}
	if err != nil {
		fmt.Fprintf(stderr, "audit suspicious: %v\n", err)
		return 1
	}
	if len(flagged) > 0 {
		return ExitSuspicious
	}
	return 0
}

// EventsOptions configures ActionsCommand and HistoryCommand.
type EventsOptions struct {
	UserID     int64
	Date       string
	From       string
	To         string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ActionsCommand prints what a user did on one day.
func (c *AuditCLI) ActionsCommand(ctx context.Context, opts EventsOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	if opts.UserID <= 0 {
		fmt.Fprintln(stderr, "audit actions: --user is required")
		return 1
	}
	date, err := c.resolveDay(opts.Date)
	if err != nil {
		fmt.Fprintf(stderr, "audit actions: %v\n", err)
		return 1
	}
	events, err := c.analyzer.UserActions(ctx, opts.UserID, date)
	if err != nil {
		fmt.Fprintf(stderr, "audit actions: %v\n", err)
		return 1
	}
	if err := writeEvents(stdout, events, opts.JSONOutput); err != nil {
		fmt.Fprintf(stderr, "audit actions: %v\n", err)
		return 1
	}
	return 0
}

// HistoryCommand prints everything done to a user over a date range.
func (c *AuditCLI) HistoryCommand(ctx context.Context, opts EventsOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	if opts.UserID <= 0 {
		fmt.Fprintln(stderr, "audit history: --user is required")
		return 1
	}
	from, to, err := c.resolveRange(opts.From, opts.To)
	if err != nil {
		fmt.Fprintf(stderr, "audit history: %v\n", err)
		return 1
	}
	events, err := c.analyzer.TargetUserHistory(ctx, opts.UserID, from, to)
	if err != nil {
		fmt.Fprintf(stderr, "audit history: %v\n", err)
		return 1
	}
	if err := writeEvents(stdout, events, opts.JSONOutput); err != nil {
		fmt.Fprintf(stderr, "audit history: %v\n", err)
		return 1
	}
	return 0
}

func (c *AuditCLI) today() string {
	return c.now().UTC().Format(auditlog.DateLayout)
}

func (c *AuditCLI) resolveDay(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return c.today(), nil
	}
	if _, err := auditlog.ParseDate(value); err != nil {
		return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", value)
	}
	return value, nil
}

// resolveRange defaults to the seven days ending today.
func (c *AuditCLI) resolveRange(fromStr, toStr string) (string, string, error) {
	toStr = strings.TrimSpace(toStr)
	if toStr == "" {
		toStr = c.today()
	}
	to, err := auditlog.ParseDate(toStr)
	if err != nil {
		return "", "", fmt.Errorf("invalid --to %q (expected YYYY-MM-DD)", toStr)
	}
	fromStr = strings.TrimSpace(fromStr)
	if fromStr == "" {
		fromStr = to.AddDate(0, 0, -7).Format(auditlog.DateLayout)
	}
	from, err := auditlog.ParseDate(fromStr)
	if err != nil {
		return "", "", fmt.Errorf("invalid --from %q (expected YYYY-MM-DD)", fromStr)
	}
	if from.After(to) {
		return "", "", errors.New("--from must not be later than --to")
	}
	return fromStr, toStr, nil
}

func streams(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeExport(stdout io.Writer, output string, data []byte) error {
	if output == "" || output == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(output, data, 0o644)
}

func writeReportText(w io.Writer, report auditlog.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Period\t%s to %s\n", report.Period.Start, report.Period.End)
	fmt.Fprintf(tw, "Total events\t%d\n", report.TotalEvents)
	fmt.Fprintf(tw, "Unique users\t%d\n", report.UniqueUsers)
	fmt.Fprintf(tw, "Modifications\t%d\n", report.Modifications)
	fmt.Fprintf(tw, "Failed attempts\t%d\n", report.FailedAttempts)
	if len(report.ByAction) > 0 {
		fmt.Fprintln(tw, "\nACTION\tCOUNT")
		actions := make([]string, 0, len(report.ByAction))
		for action := range report.ByAction {
			actions = append(actions, action)
		}
		sort.Strings(actions)
		for _, action := range actions {
			fmt.Fprintf(tw, "%s\t%d\n", action, report.ByAction[action])
		}
	}
	if len(report.TopUsers) > 0 {
		fmt.Fprintln(tw, "\nUSER ID\tUSERNAME\tCOUNT\tLAST ACTIVITY")
		for _, u := range report.TopUsers {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", u.UserID, u.Username, u.Count, u.LastActivity)
		}
	}
	return tw.Flush()
}

func writeSuspiciousText(w io.Writer, summary SuspiciousSummary) error {
	if len(summary.IPs) == 0 {
		_, err := fmt.Fprintf(w, "no suspicious activity on %s\n", summary.Date)
		return err
	}
	ips := make([]string, 0, len(summary.IPs))
	for ip := range summary.IPs {
		ips = append(ips, ip)
	}
	sort.Strings(ips)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IP ADDRESS\tFAILURES")
	for _, ip := range ips {
		fmt.Fprintf(tw, "%s\t%d\n", ip, summary.IPs[ip])
	}
	return tw.Flush()
}

func writeEvents(w io.Writer, events []auditlog.Event, asJSON bool) error {
	if asJSON {
		return writeJSON(w, events)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tLEVEL\tACTION\tMESSAGE")
	for _, ev := range events {
		action := ev.Action()
		if action == "" {
			action = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.Timestamp, ev.Level, action, ev.Message)
	}
	return tw.Flush()
}
