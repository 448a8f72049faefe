package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	"github.com/smallbiznis/crewbill/internal/timeentry/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	columnDate        = "date"
	columnProjectID   = "project_id"
	columnWorkerEmail = "personnel_email"
	columnHours       = "hours"
	columnDescription = "description"
)

var headerAliases = map[string]string{
	"date":            columnDate,
	"entry date":      columnDate,
	"entry_date":      columnDate,
	"project":         columnProjectID,
	"project id":      columnProjectID,
	"project_id":      columnProjectID,
	"email":           columnWorkerEmail,
	"worker email":    columnWorkerEmail,
	"personnel email": columnWorkerEmail,
	"personnel_email": columnWorkerEmail,
	"hours":           columnHours,
	"description":     columnDescription,
	"notes":           columnDescription,
}

var entryDateFormats = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
	time.RFC3339,
}

// Import reads the first worksheet of an xlsx workbook and stores every valid
// row as a time entry. Invalid rows are reported and skipped.
func (s *Service) Import(ctx context.Context, r io.Reader) (domain.ImportResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ImportResult{}, domain.ErrInvalidOrganization
	}

	rows, err := readWorksheetRows(r)
	if err != nil {
		return domain.ImportResult{}, err
	}

	columns, err := mapColumns(rows[0])
	if err != nil {
		return domain.ImportResult{}, err
	}

	result := domain.ImportResult{}
	projects := map[snowflake.ID]bool{}
	workers := map[string]*snowflake.ID{}
	entries := make([]domain.TimeEntry, 0, len(rows)-1)
	now := time.Now().UTC()

	for i, row := range rows[1:] {
		rowNumber := i + 2
		if isBlankRow(row) {
			continue
		}

		entry, rowErr := s.parseImportRow(ctx, orgID, row, columns, projects, workers)
		if rowErr != nil && !isRowError(rowErr) {
			return domain.ImportResult{}, rowErr
		}
		if rowErr != nil {
			result.Skipped = append(result.Skipped, domain.ImportRowError{
				Row:     rowNumber,
				Code:    rowErr.Error(),
				Message: fmt.Sprintf("row %d: %s", rowNumber, rowErr.Error()),
			})
			continue
		}
		entry.ID = s.genID.Generate()
		entry.OrgID = orgID
		entry.CreatedAt = now
		entry.UpdatedAt = now
		entries = append(entries, entry)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.BatchInsert(ctx, tx, entries)
	})
	if err != nil {
		return domain.ImportResult{}, err
	}

	result.Imported = len(entries)
	s.log.Info("time entries imported",
		zap.String("org_id", orgID.String()),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (s *Service) parseImportRow(
	ctx context.Context,
	orgID snowflake.ID,
	row []string,
	columns map[string]int,
	projects map[snowflake.ID]bool,
	workers map[string]*snowflake.ID,
) (domain.TimeEntry, error) {
	projectID, err := parseID(cellValue(row, columns[columnProjectID]))
	if err != nil {
		return domain.TimeEntry{}, domain.ErrInvalidProject
	}
	known, seen := projects[projectID]
	if !seen {
		err := s.ensureProject(ctx, orgID, projectID)
		if err != nil && !errors.Is(err, domain.ErrInvalidProject) {
			return domain.TimeEntry{}, err
		}
		known = err == nil
		projects[projectID] = known
	}
	if !known {
		return domain.TimeEntry{}, domain.ErrInvalidProject
	}

	var personnelID *snowflake.ID
	if idx, ok := columns[columnWorkerEmail]; ok {
		email := strings.ToLower(cellValue(row, idx))
		if email != "" {
			id, cached := workers[email]
			if !cached {
				worker, err := s.personnelRepo.FindByEmail(ctx, s.db, orgID, email)
				if err != nil {
					return domain.TimeEntry{}, err
				}
				if worker != nil {
					id = &worker.ID
				}
				workers[email] = id
			}
			if id == nil {
				return domain.TimeEntry{}, domain.ErrInvalidPersonnel
			}
			personnelID = id
		}
	}

	hours, err := strconv.ParseFloat(cellValue(row, columns[columnHours]), 64)
	if err != nil {
		return domain.TimeEntry{}, domain.ErrInvalidHours
	}
	if err := validateHours(hours); err != nil {
		return domain.TimeEntry{}, err
	}

	entryDate, ok := parseEntryDate(cellValue(row, columns[columnDate]))
	if !ok {
		return domain.TimeEntry{}, domain.ErrInvalidEntryDate
	}

	entry := domain.TimeEntry{
		ProjectID:   projectID,
		PersonnelID: personnelID,
		Hours:       hours,
		EntryDate:   entryDate,
	}
	if idx, ok := columns[columnDescription]; ok {
		entry.Description = cellValue(row, idx)
	}
	return entry, nil
}

func isRowError(err error) bool {
	return errors.Is(err, domain.ErrInvalidProject) ||
		errors.Is(err, domain.ErrInvalidPersonnel) ||
		errors.Is(err, domain.ErrInvalidHours) ||
		errors.Is(err, domain.ErrInvalidEntryDate)
}

func readWorksheetRows(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWorkbook, err)
	}
	defer func() { _ = file.Close() }()

	sheetName := file.GetSheetName(0)
	if sheetName == "" {
		return nil, domain.ErrInvalidWorkbook
	}
	rows, err := file.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWorkbook, err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrInvalidWorkbook
	}
	return rows, nil
}

func mapColumns(header []string) (map[string]int, error) {
	columns := map[string]int{}
	for idx, raw := range header {
		name, ok := headerAliases[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			continue
		}
		if _, dup := columns[name]; !dup {
			columns[name] = idx
		}
	}
	for _, required := range []string{columnDate, columnProjectID, columnHours} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, required)
		}
	}
	return columns, nil
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseEntryDate accepts common date layouts and Excel serial dates and
// returns the calendar date at UTC midnight.
func parseEntryDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		if serial >= 20000 && serial <= 80000 {
			if parsed, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return truncateDate(parsed), true
			}
		}
		return time.Time{}, false
	}

	for _, layout := range entryDateFormats {
		if parsed, err := time.Parse(layout, value); err == nil {
			return truncateDate(parsed), true
		}
	}
	return time.Time{}, false
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
