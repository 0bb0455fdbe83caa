package auditlog

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Exporter renders reports into downloadable files.
type Exporter struct{}

// NewExporter returns an Exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// WriteCSV writes the recent events of a report as CSV.
func (e *Exporter) WriteCSV(report Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "user", "action", "target", "success"}); err != nil {
		return nil, err
	}
	for _, ev := range report.RecentEvents {
		if err := w.Write([]string{ev.Timestamp, ev.UserID, ev.Action, ev.Target, strconv.FormatBool(ev.Success)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteXLSX renders the report as a workbook with one sheet per section.
func (e *Exporter) WriteXLSX(report Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Period start", report.Period.Start},
		{"Period end", report.Period.End},
		{"Total events", report.TotalEvents},
		{"Unique users", report.UniqueUsers},
		{"Modifications", report.Modifications},
		{"Failed attempts", report.FailedAttempts},
	}
	if err := writeSheet(f, "Summary", []string{"Metric", "Value"}, summary, headerStyle); err != nil {
		return nil, err
	}

	top := make([][]any, 0, len(report.TopUsers))
	for _, u := range report.TopUsers {
		top = append(top, []any{u.UserID, u.Username, u.Count, u.LastActivity})
	}
	if err := writeSheet(f, "Top Users", []string{"User ID", "Username", "Actions", "Last activity"}, top, headerStyle); err != nil {
		return nil, err
	}

	recent := make([][]any, 0, len(report.RecentEvents))
	for _, ev := range report.RecentEvents {
		recent = append(recent, []any{ev.Timestamp, ev.UserID, ev.Action, ev.Target, ev.Success})
	}
	if err := writeSheet(f, "Recent Events", []string{"Timestamp", "User", "Action", "Target", "Success"}, recent, headerStyle); err != nil {
		return nil, err
	}

	actions := make([]string, 0, len(report.ByAction))
	for action := range report.ByAction {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	byAction := make([][]any, 0, len(actions))
	for _, action := range actions {
		byAction = append(byAction, []any{action, report.ByAction[action]})
	}
	if err := writeSheet(f, "By Action", []string{"Action", "Count"}, byAction, headerStyle); err != nil {
		return nil, err
	}

	// NewFile starts with Sheet1; everything lives on named sheets.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex("Summary"); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, name string, header []string, rows [][]any, headerStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	for i, col := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, col); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}
