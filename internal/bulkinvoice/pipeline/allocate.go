package pipeline

import (
	"sort"

	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
)

// AllocateHours splits each worker's resolved hours with policy and
// aggregates the shares per (customer, bracket). Unresolved entries
// contribute nothing.
func AllocateHours(groups []domain.CustomerGroup, threshold float64, policy OvertimePolicy) []domain.CustomerGroup {
	if policy == nil {
		policy = WholeRangeOvertimePolicy{}
	}

	out := make([]domain.CustomerGroup, 0, len(groups))
	for _, group := range groups {
		allocated := cloneGroup(group)

		workerOrder := make([]string, 0)
		byWorker := make(map[string][]domain.Entry)
		for _, entry := range group.Entries {
			if _, ok := group.EntryBrackets[entry.ID]; !ok {
				continue
			}
			if _, ok := byWorker[entry.WorkerID]; !ok {
				workerOrder = append(workerOrder, entry.WorkerID)
			}
			byWorker[entry.WorkerID] = append(byWorker[entry.WorkerID], entry)
		}

		totals := make(map[string]*domain.BracketTotal)
		bracketOrder := make([]string, 0)
		for _, workerID := range workerOrder {
			entries := byWorker[workerID]
			worked := make([]WorkedEntry, 0, len(entries))
			for _, entry := range entries {
				worked = append(worked, WorkedEntry{EntryID: entry.ID, Date: entry.Date, Hours: entry.Hours})
			}
			sortWorked(worked)

			for _, split := range policy.Split(worked, threshold) {
				bracket := group.EntryBrackets[split.EntryID]
				total, ok := totals[bracket.ID]
				if !ok {
					total = &domain.BracketTotal{
						BracketID:          bracket.ID,
						BracketName:        bracket.Name,
						BillRate:           bracket.BillRate,
						OvertimeMultiplier: bracket.OvertimeMultiplier,
					}
					totals[bracket.ID] = total
					bracketOrder = append(bracketOrder, bracket.ID)
				}
				total.RegularHours += split.Regular
				total.OvertimeHours += split.Overtime
			}
		}

		allocated.Brackets = make([]domain.BracketTotal, 0, len(bracketOrder))
		allocated.RegularHours = 0
		allocated.OvertimeHours = 0
		allocated.TotalBillable = 0
		for _, id := range bracketOrder {
			total := *totals[id]
			total.Total = total.RegularHours*total.BillRate +
				total.OvertimeHours*total.BillRate*total.OvertimeMultiplier
			allocated.RegularHours += total.RegularHours
			allocated.OvertimeHours += total.OvertimeHours
			allocated.TotalBillable += total.Total
			allocated.Brackets = append(allocated.Brackets, total)
		}
		sort.SliceStable(allocated.Brackets, func(i, j int) bool {
			return allocated.Brackets[i].BracketName < allocated.Brackets[j].BracketName
		})

		out = append(out, allocated)
	}
	return out
}
