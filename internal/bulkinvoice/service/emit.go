package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/saga"
	invoicedomain "github.com/smallbiznis/crewbill/internal/invoice/domain"
	obscontext "github.com/smallbiznis/crewbill/internal/observability/context"
	obslogger "github.com/smallbiznis/crewbill/internal/observability/logger"
	"github.com/smallbiznis/crewbill/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	stepLock            = "lock_customer"
	stepAllocateNumber  = "allocate_number"
	stepInsertInvoice   = "insert_invoice"
	stepInsertLineItems = "insert_line_items"
	stepLinkEntries     = "link_entries"
)

var tracer = otel.Tracer("crewbill/bulkinvoice")

// emitAll processes billable customers one at a time. A failed customer is
// recorded and the rest still run.
func (s *Service) emitAll(ctx context.Context, session domain.Session) []domain.InvoiceResult {
	ctx = obscontext.WithSessionID(ctx, session.ID)
	ctx, span := tracer.Start(ctx, "bulkinvoice.submit")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("bulk_session_id", session.ID),
		attribute.Int("customer_count", len(session.Customers)),
	)...)

	results := make([]domain.InvoiceResult, 0, len(session.Customers))
	for _, group := range session.Customers {
		if !group.Billable() {
			continue
		}
		result := s.emit(ctx, session, group)
		results = append(results, result)
	}
	return results
}

func (s *Service) emit(ctx context.Context, session domain.Session, group domain.CustomerGroup) domain.InvoiceResult {
	ctx, span := tracer.Start(ctx, "bulkinvoice.emit")
	defer span.End()

	log := obslogger.WithContext(ctx, s.log).With(zap.String("customer_id", group.CustomerID))
	result := domain.InvoiceResult{
		CustomerID:   group.CustomerID,
		CustomerName: group.CustomerName,
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, group.CustomerID)
		if err != nil {
			return s.fail(ctx, log, session, result, stepLock, err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release customer lock failed", zap.Error(err))
			}
		}()
	}

	items := group.SelectedItems()
	var cents int64
	brackets := make(map[string]struct{}, len(items))
	for _, item := range items {
		cents += invoicedomain.ToCents(item.Total)
		brackets[item.BracketID] = struct{}{}
	}
	subtotal := float64(cents) / 100
	entryIDs := linkableEntries(group, brackets)

	var (
		number  string
		created domain.CreatedInvoice
	)
	run := saga.New(log,
		saga.Step{
			Name: stepAllocateNumber,
			Action: func(ctx context.Context) error {
				var err error
				number, err = s.numbers.Next(ctx)
				return err
			},
		},
		saga.Step{
			Name: stepInsertInvoice,
			Action: func(ctx context.Context) error {
				var err error
				created, err = s.invoices.InsertInvoice(ctx, s.draft(session, group, number, subtotal))
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.invoices.DeleteInvoice(ctx, created.ID)
			},
		},
		saga.Step{
			Name: stepInsertLineItems,
			Action: func(ctx context.Context) error {
				return s.invoices.InsertLineItems(ctx, created.ID, items)
			},
			Compensate: func(ctx context.Context) error {
				return s.invoices.DeleteLineItems(ctx, created.ID)
			},
		},
		saga.Step{
			Name: stepLinkEntries,
			Action: func(ctx context.Context) error {
				conflicts, err := s.linker.LinkEntries(ctx, entryIDs, created.ID, s.clock.Now())
				if err != nil {
					return err
				}
				if len(conflicts) > 0 {
					result.ConflictingEntryIDs = conflicts
					s.metrics.RecordLinkConflicts(ctx, session.OrgID, len(conflicts))
					return fmt.Errorf("%w: %d of %d entries", domain.ErrEntriesAlreadyInvoiced, len(conflicts), len(entryIDs))
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.linker.UnlinkEntries(ctx, created.ID)
			},
		},
	)

	if err := run.Run(ctx); err != nil {
		step := ""
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) {
			step = stepErr.Step
		}
		return s.fail(ctx, log, session, result, step, err)
	}

	result.Success = true
	result.InvoiceID = created.ID
	result.InvoiceNumber = created.Number
	if result.InvoiceNumber == "" {
		result.InvoiceNumber = number
	}
	result.Total = subtotal
	result.LinkedEntries = len(entryIDs)

	s.metrics.RecordInvoiceEmitted(ctx, session.OrgID, cents)
	s.audit(ctx, auditdomain.ActionInvoiceCreated, auditdomain.TargetInvoice, created.ID, map[string]any{
		"invoice_number": result.InvoiceNumber,
		"customer_id":    group.CustomerID,
		"total":          subtotal,
		"linked_entries": result.LinkedEntries,
	})
	log.Info("invoice emitted",
		zap.String("invoice_id", created.ID),
		zap.String("invoice_number", result.InvoiceNumber),
		zap.Int("linked_entries", result.LinkedEntries),
	)
	return result
}

func (s *Service) fail(ctx context.Context, log *zap.Logger, session domain.Session, result domain.InvoiceResult, step string, err error) domain.InvoiceResult {
	result.Success = false
	result.FailedStep = step
	result.Error = err.Error()
	span := trace.SpanFromContext(ctx)
	span.RecordError(tracing.SafeError(err))
	span.SetStatus(codes.Error, step)
	s.metrics.RecordEmissionFailure(ctx, session.OrgID, step)
	s.audit(ctx, auditdomain.ActionInvoiceEmissionFailed, auditdomain.TargetCustomer, result.CustomerID, map[string]any{
		"step":  step,
		"error": result.Error,
	})
	log.Warn("invoice emission failed", zap.String("step", step), zap.Error(err))
	return result
}

func (s *Service) draft(session domain.Session, group domain.CustomerGroup, number string, subtotal float64) domain.InvoiceDraft {
	draft := domain.InvoiceDraft{
		Number:       number,
		CustomerID:   group.CustomerID,
		CustomerName: group.CustomerName,
		IssueDate:    s.clock.Now(),
		DueDate:      session.DueDate,
		Subtotal:     subtotal,
		Total:        subtotal,
		Metadata: map[string]any{
			"source":          "bulk_invoice_builder",
			"bulk_session_id": session.ID,
			"week_label":      group.WeekLabel,
			"overtime_policy": session.OvertimePolicy,
		},
	}
	if len(group.Projects) > 0 {
		draft.ProjectID = group.Projects[0].ID
		names := make([]string, 0, len(group.Projects))
		for _, project := range group.Projects {
			names = append(names, project.Name)
		}
		draft.ProjectName = strings.Join(names, ", ")
	}
	return draft
}

func (s *Service) audit(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Event{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// linkableEntries returns the group's entries billed under one of brackets.
func linkableEntries(group domain.CustomerGroup, brackets map[string]struct{}) []string {
	ids := make([]string, 0, len(group.Entries))
	for _, entry := range group.Entries {
		bracket, ok := group.EntryBrackets[entry.ID]
		if !ok {
			continue
		}
		if _, ok := brackets[bracket.ID]; ok {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}
