package analytics

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/tealeg/xlsx"
	"go.uber.org/zap"

	"github.com/dmlat/STT-Telegram/internal/app/model"
)

const (
	usersSheet = "Users"
	jobsSheet  = "VoiceMessages"
)

var usersHeader = []string{
	"User ID", "Reg Date", "Last Activity", "Total Msgs",
	"Msgs 30d", "Msgs 7d", "Avg Length (sec)", "Avg Chars",
}

var jobsHeader = []string{
	"Date", "User ID", "Process Speed (sec)", "Length (sec)", "Length (chars)",
}

// Workbook mirrors analytics into a local xlsx file with the same layout
// as the reporting spreadsheet: a Users sheet updated in place per user
// and an append-only VoiceMessages sheet. Failed jobs are not mirrored,
// only the stats row moves.
type Workbook struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewWorkbook(path string, logger *zap.Logger) *Workbook {
	return &Workbook{path: path, logger: logger}
}

func (w *Workbook) Emit(e Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.apply(e); err != nil {
		w.logger.Warn("analytics workbook update failed",
			zap.String("kind", string(e.Kind)),
			zap.String("path", w.path),
			zap.Error(err))
	}
}

func (w *Workbook) apply(e Event) error {
	file, err := w.load()
	if err != nil {
		return err
	}

	switch e.Kind {
	case EventUserStats:
		if e.Stats == nil {
			return nil
		}
		if err := upsertUserRow(file, e.Stats); err != nil {
			return err
		}
	case EventJobCompleted:
		if e.Job == nil {
			return nil
		}
		if err := appendJobRow(file, e); err != nil {
			return err
		}
	default:
		return nil
	}

	return file.Save(w.path)
}

// load opens the workbook, creating it with both sheets and headers on
// first use.
func (w *Workbook) load() (*xlsx.File, error) {
	if _, err := os.Stat(w.path); err == nil {
		file, err := xlsx.OpenFile(w.path)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		return file, nil
	}

	file := xlsx.NewFile()
	users, err := file.AddSheet(usersSheet)
	if err != nil {
		return nil, fmt.Errorf("create %s sheet: %w", usersSheet, err)
	}
	headerRow := users.AddRow()
	for _, h := range usersHeader {
		headerRow.AddCell().Value = h
	}

	jobs, err := file.AddSheet(jobsSheet)
	if err != nil {
		return nil, fmt.Errorf("create %s sheet: %w", jobsSheet, err)
	}
	headerRow = jobs.AddRow()
	for _, h := range jobsHeader {
		headerRow.AddCell().Value = h
	}
	return file, nil
}

func upsertUserRow(file *xlsx.File, stats *model.UserStats) error {
	sheet, ok := file.Sheet[usersSheet]
	if !ok {
		return fmt.Errorf("workbook has no %s sheet", usersSheet)
	}

	values := userRowValues(stats)
	key := values[0]
	for i, row := range sheet.Rows {
		if i == 0 || len(row.Cells) == 0 {
			continue
		}
		if row.Cells[0].Value != key {
			continue
		}
		for len(row.Cells) < len(values) {
			row.AddCell()
		}
		for j, v := range values {
			row.Cells[j].Value = v
		}
		return nil
	}

	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
	return nil
}

func appendJobRow(file *xlsx.File, e Event) error {
	sheet, ok := file.Sheet[jobsSheet]
	if !ok {
		return fmt.Errorf("workbook has no %s sheet", jobsSheet)
	}

	row := sheet.AddRow()
	row.AddCell().Value = e.At.UTC().Format(time.RFC3339)
	row.AddCell().Value = strconv.FormatInt(e.Job.UserID, 10)
	row.AddCell().Value = fmt.Sprintf("%.2f", e.Job.ProcessingSeconds)
	row.AddCell().Value = fmt.Sprintf("%.2f", e.Job.DurationSeconds)
	row.AddCell().Value = strconv.FormatInt(e.Job.TranscriptionChars, 10)
	return nil
}

func userRowValues(stats *model.UserStats) []string {
	return []string{
		strconv.FormatInt(stats.UserID, 10),
		formatTime(stats.RegisteredAt),
		formatTime(stats.LastActivityAt),
		strconv.FormatInt(stats.TotalJobs, 10),
		strconv.FormatInt(stats.Jobs30d, 10),
		strconv.FormatInt(stats.Jobs7d, 10),
		fmt.Sprintf("%.2f", stats.AvgDurationSeconds),
		fmt.Sprintf("%.2f", stats.AvgChars),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
