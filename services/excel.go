package services

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Mustafaygtbs/CertificateManagement/models"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Students"

var exportHeader = []any{"FirstName", "LastName", "Email", "Phone", "HasCompleted", "CourseName"}

type StudentRow struct {
	FirstName    string
	LastName     string
	Email        string
	PhoneNumber  string
	HasCompleted bool
}

// ParseStudentSheet reads the first worksheet. Row one is a header. Columns
// are first name, last name, email, phone and completion flag; rows missing a
// first name or email are counted as skipped.
func ParseStudentSheet(r io.Reader) ([]StudentRow, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, 0, fmt.Errorf("read rows: %w", err)
	}

	var (
		out     []StudentRow
		skipped int
	)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		sr := StudentRow{
			FirstName:    cell(row, 0),
			LastName:     cell(row, 1),
			Email:        cell(row, 2),
			PhoneNumber:  cell(row, 3),
			HasCompleted: parseFlag(cell(row, 4)),
		}
		if sr.FirstName == "" && sr.LastName == "" && sr.Email == "" && sr.PhoneNumber == "" {
			continue
		}
		if sr.FirstName == "" || sr.Email == "" {
			skipped++
			continue
		}
		out = append(out, sr)
	}
	return out, skipped, nil
}

// BuildStudentSheet writes the roster export with a bold header row.
func BuildStudentSheet(students []models.Student, courseName string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", "F1", bold); err != nil {
		return nil, err
	}

	for i, s := range students {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{s.FirstName, s.LastName, s.Email, s.PhoneNumber, s.HasCompletedCourse, courseName}
		if err := f.SetSheetRow(exportSheet, cellRef, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "F", 22); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFlag(v string) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "yes", "y", "x":
		return true
	}
	return false
}
