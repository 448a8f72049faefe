package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/pipeline"
	"github.com/smallbiznis/crewbill/internal/cache"
	"github.com/smallbiznis/crewbill/internal/clock"
	"github.com/smallbiznis/crewbill/internal/config"
	"github.com/smallbiznis/crewbill/internal/observability/metrics"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Settings *config.BuilderConfigHolder
	Metrics  *metrics.Metrics    `optional:"true"`
	AuditSvc auditdomain.Service `optional:"true"`

	Assignments domain.AssignmentLookup
	Entries     domain.EntrySource
	Numbers     domain.InvoiceNumberer
	Invoices    domain.InvoiceWriter
	Linker      domain.EntryLinker
	Locker      domain.CustomerLocker `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	settings *config.BuilderConfigHolder
	metrics  *metrics.Metrics
	auditSvc auditdomain.Service

	assignments domain.AssignmentLookup
	entries     domain.EntrySource
	numbers     domain.InvoiceNumberer
	invoices    domain.InvoiceWriter
	linker      domain.EntryLinker
	locker      domain.CustomerLocker

	sessions *sessionStore
}

func New(p Params) domain.Service {
	svc := &Service{
		log:         p.Log.Named("bulkinvoice.service"),
		clock:       p.Clock,
		settings:    p.Settings,
		metrics:     p.Metrics,
		auditSvc:    p.AuditSvc,
		assignments: p.Assignments,
		entries:     p.Entries,
		numbers:     p.Numbers,
		invoices:    p.Invoices,
		linker:      p.Linker,
		locker:      p.Locker,
	}
	svc.sessions = newSessionStore(
		cache.NewTTLCacheWithClock[string, *sessionEntry](p.Clock.Now),
		func() time.Duration { return svc.settings.Get().SessionTTL },
	)
	return svc
}

func (s *Service) Create(ctx context.Context) (domain.Session, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return domain.Session{}, err
	}

	cfg := s.settings.Get()
	now := s.clock.Now()
	entry := s.sessions.create(domain.Session{
		OrgID:          orgID,
		Stage:          domain.StageConfigure,
		Threshold:      cfg.WeeklyOvertimeThreshold,
		OvertimePolicy: cfg.OvertimePolicy,
		DueDate:        dueDate(now, cfg.DueDays),
		CreatedAt:      now,
		UpdatedAt:      now,
	})

	entry.mu.Lock()
	defer entry.mu.Unlock()
	s.log.Info("bulk invoice session created",
		zap.String("session_id", entry.session.ID),
		zap.String("org_id", orgID),
	)
	return snapshot(entry.session), nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Session, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return snapshot(entry.session), nil
}

// Build loads candidate entries and runs the pipeline. A failure keeps the
// session in configure with no customers.
func (s *Service) Build(ctx context.Context, id string, req domain.BuildRequest) (domain.Session, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := &entry.session
	if !domain.CanTransition(session.Stage, domain.StageReview) {
		return domain.Session{}, domain.ErrInvalidTransition
	}

	cfg := s.settings.Get()
	threshold := cfg.WeeklyOvertimeThreshold
	if req.Threshold != nil {
		if *req.Threshold <= 0 {
			return domain.Session{}, domain.ErrInvalidThreshold
		}
		threshold = *req.Threshold
	}
	policyName := strings.TrimSpace(req.OvertimePolicy)
	if policyName == "" {
		policyName = cfg.OvertimePolicy
	}
	policy, err := pipeline.PolicyByName(policyName)
	if err != nil {
		return domain.Session{}, domain.ErrInvalidOvertimePolicy
	}
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return domain.Session{}, domain.ErrInvalidDateRange
	}
	due := session.DueDate
	if req.DueDate != nil {
		if req.DueDate.IsZero() || req.DueDate.Before(dueDate(s.clock.Now(), 0)) {
			return domain.Session{}, domain.ErrInvalidDueDate
		}
		due = req.DueDate.UTC()
	}

	session.Threshold = threshold
	session.OvertimePolicy = policy.Name()
	session.ProjectIDs = normalizeIDs(req.ProjectIDs)
	session.From = req.From
	session.To = req.To
	session.DueDate = due
	session.Customers = nil
	session.Excluded = domain.ExclusionCounts{}
	session.UpdatedAt = s.clock.Now()

	groups, excluded, err := s.build(ctx, *session, cfg.DefaultOvertimeMultiplier, policy)
	if err != nil {
		s.metrics.RecordBuild(ctx, session.OrgID, "failed")
		s.log.Error("bulk invoice build failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
		return domain.Session{}, err
	}

	session.Customers = groups
	session.Excluded = excluded
	session.Stage = domain.StageReview
	s.metrics.RecordBuild(ctx, session.OrgID, "success")
	s.log.Info("bulk invoice built",
		zap.String("session_id", session.ID),
		zap.Int("customers", len(groups)),
		zap.Int("already_invoiced", excluded.AlreadyInvoiced),
		zap.Int("missing_customer", excluded.MissingCustomer),
		zap.String("overtime_policy", policy.Name()),
	)
	return snapshot(*session), nil
}

func (s *Service) build(ctx context.Context, session domain.Session, defaultMultiplier float64, policy pipeline.OvertimePolicy) ([]domain.CustomerGroup, domain.ExclusionCounts, error) {
	entries, err := s.entries.ListCandidateEntries(ctx, domain.EntryFilter{
		ProjectIDs: session.ProjectIDs,
		From:       session.From,
		To:         session.To,
	})
	if err != nil {
		return nil, domain.ExclusionCounts{}, fmt.Errorf("list candidate entries: %w", err)
	}

	billable := make([]domain.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.InvoiceID == "" && entry.CustomerID != "" {
			billable = append(billable, entry)
		}
	}

	var rows []domain.AssignmentRow
	projectIDs, workerIDs := pipeline.DistinctPairs(billable)
	if len(projectIDs) > 0 && len(workerIDs) > 0 {
		rows, err = s.assignments.ListActiveAssignments(ctx, projectIDs, workerIDs)
		if err != nil {
			return nil, domain.ExclusionCounts{}, fmt.Errorf("list active assignments: %w", err)
		}
	}

	lookup := pipeline.BuildLookup(rows, defaultMultiplier)
	groups, excluded := pipeline.Build(entries, lookup, session.Threshold, policy)
	return groups, excluded, nil
}

func (s *Service) SelectCustomer(ctx context.Context, id, customerID string, selected bool) (domain.Session, error) {
	return s.editGroup(ctx, id, customerID, func(group domain.CustomerGroup) (domain.CustomerGroup, error) {
		return pipeline.ToggleCustomer(group, selected)
	})
}

func (s *Service) UpdateLineItem(ctx context.Context, id, customerID, itemID string, req domain.UpdateLineItemRequest) (domain.Session, error) {
	return s.editGroup(ctx, id, customerID, func(group domain.CustomerGroup) (domain.CustomerGroup, error) {
		var err error
		if req.Description != nil {
			group, err = pipeline.EditLineItemDescription(group, itemID, *req.Description)
			if err != nil {
				return group, err
			}
		}
		if req.Selected != nil {
			group, err = pipeline.ToggleLineItem(group, itemID, *req.Selected)
			if err != nil {
				return group, err
			}
		}
		return group, nil
	})
}

func (s *Service) editGroup(ctx context.Context, id, customerID string, edit func(domain.CustomerGroup) (domain.CustomerGroup, error)) (domain.Session, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := &entry.session
	if session.Stage != domain.StageReview {
		return domain.Session{}, domain.ErrInvalidTransition
	}

	idx := -1
	for i := range session.Customers {
		if session.Customers[i].CustomerID == customerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Session{}, domain.ErrCustomerNotFound
	}

	updated, err := edit(session.Customers[idx])
	if err != nil {
		return domain.Session{}, err
	}

	customers := append([]domain.CustomerGroup(nil), session.Customers...)
	customers[idx] = updated
	session.Customers = customers
	session.UpdatedAt = s.clock.Now()
	return snapshot(*session), nil
}

func (s *Service) Back(ctx context.Context, id string) (domain.Session, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := &entry.session
	if session.Stage != domain.StageReview {
		return domain.Session{}, domain.ErrInvalidTransition
	}
	session.Stage = domain.StageConfigure
	session.Customers = nil
	session.Excluded = domain.ExclusionCounts{}
	session.UpdatedAt = s.clock.Now()
	return snapshot(*session), nil
}

// Submit emits one invoice per billable customer. Submit holds the session
// lock until every customer is processed.
func (s *Service) Submit(ctx context.Context, id string) (domain.Session, error) {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := &entry.session
	if !domain.CanTransition(session.Stage, domain.StageResults) {
		return domain.Session{}, domain.ErrInvalidTransition
	}

	started := time.Now()
	results := s.emitAll(ctx, *session)
	session.Results = results
	session.Stage = domain.StageResults
	session.UpdatedAt = s.clock.Now()

	succeeded := 0
	for _, result := range results {
		if result.Success {
			succeeded++
		}
	}
	s.metrics.RecordSubmit(ctx, session.OrgID, len(results), succeeded, time.Since(started))
	s.log.Info("bulk invoice submitted",
		zap.String("session_id", session.ID),
		zap.Int("attempted", len(results)),
		zap.Int("succeeded", succeeded),
	)
	return snapshot(*session), nil
}

func (s *Service) Close(ctx context.Context, id string) error {
	entry, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !domain.CanTransition(entry.session.Stage, domain.StageClosed) {
		return domain.ErrInvalidTransition
	}
	entry.session.Stage = domain.StageClosed
	s.sessions.remove(id)
	return nil
}

func (s *Service) lookup(ctx context.Context, id string) (*sessionEntry, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := s.sessions.get(orgID, strings.TrimSpace(id))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return entry, nil
}

func orgIDFromContext(ctx context.Context) (string, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return "", domain.ErrInvalidOrganization
	}
	return orgID.String(), nil
}

func dueDate(now time.Time, days int) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, days)
}

func normalizeIDs(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
