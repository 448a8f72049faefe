package pipeline

import (
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
)

const unassignedWorkerName = "Unassigned"

// BuildLookup turns active assignment rows into a rate lookup. Rows arrive
// oldest first so a later row for the same pair replaces an earlier one.
// Rows without a bracket leave the pair unresolved.
func BuildLookup(rows []domain.AssignmentRow, defaultMultiplier float64) domain.RateLookup {
	lookup := make(domain.RateLookup, len(rows))
	for _, row := range rows {
		key := domain.LookupKey(row.ProjectID, row.PersonnelID)
		if row.Bracket == nil {
			delete(lookup, key)
			continue
		}
		multiplier := defaultMultiplier
		if row.Bracket.OvertimeMultiplier != nil {
			multiplier = *row.Bracket.OvertimeMultiplier
		}
		lookup[key] = domain.RateBracket{
			ID:                 row.Bracket.ID,
			Name:               row.Bracket.Name,
			BillRate:           row.Bracket.BillRate,
			OvertimeMultiplier: multiplier,
		}
	}
	return lookup
}

// DistinctPairs returns the project and worker ids referenced by entries.
func DistinctPairs(entries []domain.Entry) (projectIDs, workerIDs []string) {
	seenProjects := make(map[string]struct{})
	seenWorkers := make(map[string]struct{})
	for _, entry := range entries {
		if _, ok := seenProjects[entry.ProjectID]; !ok && entry.ProjectID != "" {
			seenProjects[entry.ProjectID] = struct{}{}
			projectIDs = append(projectIDs, entry.ProjectID)
		}
		if _, ok := seenWorkers[entry.WorkerID]; !ok && entry.WorkerID != "" {
			seenWorkers[entry.WorkerID] = struct{}{}
			workerIDs = append(workerIDs, entry.WorkerID)
		}
	}
	return projectIDs, workerIDs
}

// ResolveRates attaches a bracket to every entry whose (project, worker)
// pair resolves. Workers with any unresolved entry are flagged on the group.
func ResolveRates(groups []domain.CustomerGroup, lookup domain.RateLookup) []domain.CustomerGroup {
	out := make([]domain.CustomerGroup, 0, len(groups))
	for _, group := range groups {
		resolved := cloneGroup(group)
		resolved.EntryBrackets = make(map[string]domain.RateBracket, len(group.Entries))
		resolved.PersonnelWithoutBrackets = nil
		resolved.HasRateBracketIssues = false

		flagged := make(map[string]struct{})
		for _, entry := range group.Entries {
			if entry.WorkerID != "" {
				if bracket, ok := lookup[domain.LookupKey(entry.ProjectID, entry.WorkerID)]; ok {
					resolved.EntryBrackets[entry.ID] = bracket
					continue
				}
			}

			resolved.HasRateBracketIssues = true
			if _, ok := flagged[entry.WorkerID]; ok {
				continue
			}
			flagged[entry.WorkerID] = struct{}{}
			name := entry.WorkerName
			switch {
			case entry.WorkerID == "":
				name = unassignedWorkerName
			case name == "":
				name = entry.WorkerID
			}
			resolved.PersonnelWithoutBrackets = append(resolved.PersonnelWithoutBrackets, domain.Worker{
				ID:   entry.WorkerID,
				Name: name,
			})
		}
		out = append(out, resolved)
	}
	return out
}
