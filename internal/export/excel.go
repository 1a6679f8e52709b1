// Package export writes ranked shortlists to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/resume-ranker/internal/normalize"
	"github.com/spigell/resume-ranker/internal/records"
)

const (
	summarySheet   = "Summary"
	shortlistSheet = "Shortlist"
)

var shortlistHeaders = []string{
	"Rank", "Resume ID", "Name", "Email", "Country", "AI Score", "Similarity",
	"Common Keys", "Valid Experience", "Recommendation", "Key Match Points",
}

// WriteShortlist renders result as an XLSX workbook into w.
func WriteShortlist(w io.Writer, result *records.RankedResult) error {
	f, err := build(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveShortlist writes the workbook to path, adding the .xlsx extension when missing.
func SaveShortlist(path string, result *records.RankedResult) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f, err := build(result)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func build(result *records.RankedResult) (*excelize.File, error) {
	if result == nil || result.JobDescription == nil {
		return nil, fmt.Errorf("ranked result has no job description")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(shortlistSheet); err != nil {
		f.Close()
		return nil, err
	}

	if err := writeSummary(f, result); err != nil {
		f.Close()
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeShortlist(f, result.Matches); err != nil {
		f.Close()
		return nil, fmt.Errorf("shortlist sheet: %w", err)
	}
	return f, nil
}

func writeSummary(f *excelize.File, result *records.RankedResult) error {
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 80); err != nil {
		return err
	}

	job := result.JobDescription
	rows := [][2]any{
		{"Job ID", job.JobID},
		{"Job Description", job.JobDescription},
		{"Keywords", strings.Join(job.StructuredQuery.Keywords, ", ")},
		{"Candidates", len(result.Matches)},
	}
	for i, row := range rows {
		label, _ := excelize.CoordinatesToCellName(1, i+1)
		value, _ := excelize.CoordinatesToCellName(2, i+1)
		if err := f.SetCellValue(summarySheet, label, row[0]); err != nil {
			return err
		}
		if err := f.SetCellStyle(summarySheet, label, label, labelStyle); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, value, row[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeShortlist(f *excelize.File, matches []records.RankedMatch) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	if err := f.SetColWidth(shortlistSheet, "A", "K", 18); err != nil {
		return err
	}

	for col, header := range shortlistHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(shortlistSheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(shortlistSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for i, m := range matches {
		row := []any{
			m.Rank,
			m.ResumeID,
			m.Name,
			m.Email,
			m.Country,
			scoreCell(m.Assessment),
			m.SimilarityScore,
			strings.Join(m.CommonKeys, ", "),
			normalize.ValidExperience(m.CommonExperiences),
			m.HiringRecommendation,
			strings.Join(m.KeyMatchPoints, "; "),
		}
		start, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(shortlistSheet, start, &row); err != nil {
			return err
		}
	}
	return nil
}

func scoreCell(a records.Assessment) any {
	if !a.Scored() {
		return ""
	}
	return a.Score()
}
