package export

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/tealeg/xlsx"

	"github.com/dmlat/STT-Telegram/internal/app/model"
)

// ToExcel writes the given job records to an xlsx workbook with one row
// per job plus a summary sheet. bar may be nil when no progress display
// is wanted.
func ToExcel(jobs []model.JobRecord, outputFilePath string, bar *ProgressBar) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Jobs")
	if err != nil {
		return fmt.Errorf("add jobs sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	headerRow.AddCell().Value = "Job ID"
	headerRow.AddCell().Value = "User ID"
	headerRow.AddCell().Value = "Status"
	headerRow.AddCell().Value = "Created At"
	headerRow.AddCell().Value = "Audio Duration"
	headerRow.AddCell().Value = "Processing Time"
	headerRow.AddCell().Value = "Characters"
	headerRow.AddCell().Value = "Transcription"
	headerRow.AddCell().Value = "Error Reason"

	for _, j := range jobs {
		row := sheet.AddRow()
		row.AddCell().Value = fmt.Sprint(j.ID)
		row.AddCell().Value = fmt.Sprint(j.UserID)
		row.AddCell().Value = string(j.Status)
		row.AddCell().Value = j.CreatedAt.Format(time.RFC3339)
		row.AddCell().Value = fmt.Sprintf("%.2f", j.DurationSeconds)
		row.AddCell().Value = floatCell(j.ProcessingSeconds)
		row.AddCell().Value = intCell(j.TranscriptionChars)
		row.AddCell().Value = stringCell(j.TranscriptionText)
		row.AddCell().Value = stringCell(j.ErrorReason)
		if bar != nil {
			bar.Increment()
		}
	}

	if err := addSummarySheet(file, jobs); err != nil {
		return err
	}

	if err := file.Save(outputFilePath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func addSummarySheet(file *xlsx.File, jobs []model.JobRecord) error {
	sheet, err := file.AddSheet("Summary")
	if err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}

	counts := lo.CountValuesBy(jobs, func(j model.JobRecord) model.JobStatus {
		return j.Status
	})
	totalDuration := lo.SumBy(jobs, func(j model.JobRecord) float64 {
		return j.DurationSeconds
	})

	addPair := func(label, value string) {
		row := sheet.AddRow()
		row.AddCell().Value = label
		row.AddCell().Value = value
	}

	addPair("Total Jobs", fmt.Sprint(len(jobs)))
	addPair("Succeeded", fmt.Sprint(counts[model.JobSuccess]))
	addPair("Failed", fmt.Sprint(counts[model.JobFailed]))
	addPair("Total Audio Duration", fmt.Sprintf("%.2f", totalDuration))
	return nil
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

func intCell(v *int64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

func stringCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
