package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	"github.com/xuri/excelize/v2"
)

const resultsSheet = "Results"

var resultsHeader = []any{
	"Customer", "Status", "Invoice Number", "Total", "Linked Entries", "Failed Step", "Error",
}

// ExportResults renders a submitted session's results as a workbook.
func (s *Service) ExportResults(ctx context.Context, id string) (domain.Export, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return domain.Export{}, err
	}
	entry.mu.Lock()
	session := snapshot(entry.session)
	entry.mu.Unlock()

	if session.Stage != domain.StageResults {
		return domain.Export{}, domain.ErrNoResults
	}

	content, err := renderResults(session.Results)
	if err != nil {
		return domain.Export{}, fmt.Errorf("render results: %w", err)
	}
	return domain.Export{
		Filename: resultsFilename(session),
		Content:  content,
	}, nil
}

func renderResults(results []domain.InvoiceResult) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, err
	}
	if err := file.SetSheetRow(resultsSheet, "A1", &resultsHeader); err != nil {
		return nil, err
	}

	for i, result := range results {
		status := "failed"
		if result.Success {
			status = "created"
		}
		row := []any{
			result.CustomerName,
			status,
			result.InvoiceNumber,
			result.Total,
			result.LinkedEntries,
			result.FailedStep,
			result.Error,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := file.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resultsFilename(session domain.Session) string {
	return slug.Make(fmt.Sprintf("bulk invoices %s %s", session.UpdatedAt.Format("2006-01-02"), session.ID)) + ".xlsx"
}
