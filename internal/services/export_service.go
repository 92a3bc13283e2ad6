package services

import (
	"bytes"
	"cmp"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/xuri/excelize/v2"
)

type ExportFormat string

const (
	ExportExcel ExportFormat = "xlsx"
	ExportCSV   ExportFormat = "csv"
)

var resultHeaders = []string{
	"Attempt ID", "User ID", "Status", "Score", "Percentage", "Total Marks",
	"Rank", "Percentile", "Started At", "Finished At",
}

type exportService struct {
	serviceBase
}

// ExportExamResults renders one row per terminal attempt, best rank first.
func (s *exportService) ExportExamResults(ctx context.Context, actor models.Actor, examID uint, format ExportFormat) (data []byte, err error) {
	ctx, op := s.log.WithOperation(ctx, "export.exam_results", actor.UserID, examID)
	defer func() { op.LogResult(examID, err) }()

	if err := requireStaff(actor, "exam results", "export"); err != nil {
		return nil, err
	}
	exam, err := s.getExam(ctx, nil, examID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, exam.CreatedBy) {
		return nil, NewPermissionError(actor.UserID, examID, "exam results", "export", "exam is managed by another teacher")
	}

	attempts, err := s.repo.Attempt().ListTerminalByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	sortByRank(attempts)

	rows := make([][]interface{}, len(attempts))
	for i, a := range attempts {
		rows[i] = resultRow(a)
	}

	switch format {
	case ExportCSV:
		return writeCSV(rows)
	case ExportExcel, "":
		return writeExcel(rows)
	default:
		return nil, ValidationErrors{}.Add("format", "must be xlsx or csv", string(format))
	}
}

func writeExcel(rows [][]interface{}) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Results"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for i, header := range resultHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	for rowIndex, row := range rows {
		for colIndex, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCSV(rows [][]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(resultHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func resultRow(a *models.Attempt) []interface{} {
	rank, percentile := "", ""
	if a.Rank != nil {
		rank = strconv.Itoa(*a.Rank)
	}
	if a.Percentile != nil {
		percentile = strconv.FormatFloat(*a.Percentile, 'f', 2, 64)
	}
	finished := ""
	if a.FinishedAt != nil {
		finished = a.FinishedAt.UTC().Format(time.RFC3339)
	}
	return []interface{}{
		a.ID, a.UserID, string(a.Status), a.TotalScore, a.Percentage, a.TotalMarks,
		rank, percentile, a.StartedAt.UTC().Format(time.RFC3339), finished,
	}
}

// sortByRank puts unranked attempts last, by id.
func sortByRank(attempts []*models.Attempt) {
	rankOf := func(a *models.Attempt) int {
		if a.Rank == nil {
			return math.MaxInt
		}
		return *a.Rank
	}
	slices.SortFunc(attempts, func(a, b *models.Attempt) int {
		if c := cmp.Compare(rankOf(a), rankOf(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
