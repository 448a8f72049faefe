// Package pipeline turns candidate time entries into per-customer invoice
// drafts. Every stage is a pure function returning fresh groups.
package pipeline

import (
	"sort"
	"strings"

	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
)

// GroupEntries keeps unbilled entries with a resolvable customer and groups
// them by customer then project. Customers come back sorted by name.
func GroupEntries(entries []domain.Entry) ([]domain.CustomerGroup, domain.ExclusionCounts) {
	var excluded domain.ExclusionCounts
	groups := make([]domain.CustomerGroup, 0)
	index := make(map[string]int)

	for _, entry := range entries {
		if entry.InvoiceID != "" {
			excluded.AlreadyInvoiced++
			continue
		}
		if entry.CustomerID == "" {
			excluded.MissingCustomer++
			continue
		}

		pos, ok := index[entry.CustomerID]
		if !ok {
			pos = len(groups)
			index[entry.CustomerID] = pos
			groups = append(groups, domain.CustomerGroup{
				CustomerID:   entry.CustomerID,
				CustomerName: entry.CustomerName,
				Selected:     true,
			})
		}

		group := &groups[pos]
		group.Entries = append(group.Entries, entry)
		group.TotalHours += entry.Hours
		group.Projects = addProjectHours(group.Projects, entry)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		left := strings.ToLower(groups[i].CustomerName)
		right := strings.ToLower(groups[j].CustomerName)
		if left != right {
			return left < right
		}
		return groups[i].CustomerID < groups[j].CustomerID
	})
	return groups, excluded
}

func addProjectHours(projects []domain.ProjectSummary, entry domain.Entry) []domain.ProjectSummary {
	for i := range projects {
		if projects[i].ID == entry.ProjectID {
			projects[i].TotalHours += entry.Hours
			return projects
		}
	}
	return append(projects, domain.ProjectSummary{
		ID:         entry.ProjectID,
		Name:       entry.ProjectName,
		TotalHours: entry.Hours,
	})
}

// cloneGroup copies the slices and maps a stage may rewrite.
func cloneGroup(group domain.CustomerGroup) domain.CustomerGroup {
	out := group
	out.Projects = append([]domain.ProjectSummary(nil), group.Projects...)
	out.Entries = append([]domain.Entry(nil), group.Entries...)
	out.LineItems = append([]domain.LineItem(nil), group.LineItems...)
	out.Brackets = append([]domain.BracketTotal(nil), group.Brackets...)
	out.PersonnelWithoutBrackets = append([]domain.Worker(nil), group.PersonnelWithoutBrackets...)
	if group.EntryBrackets != nil {
		out.EntryBrackets = make(map[string]domain.RateBracket, len(group.EntryBrackets))
		for id, bracket := range group.EntryBrackets {
			out.EntryBrackets[id] = bracket
		}
	}
	return out
}
