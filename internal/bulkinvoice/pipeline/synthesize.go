package pipeline

import (
	"fmt"
	"math"
	"strconv"

	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
)

// SynthesizeLineItems emits a regular item per bracket with regular hours
// and an overtime item per bracket with overtime hours. A group without
// items is left unselected.
func SynthesizeLineItems(groups []domain.CustomerGroup) []domain.CustomerGroup {
	out := make([]domain.CustomerGroup, 0, len(groups))
	for _, group := range groups {
		synthesized := cloneGroup(group)
		synthesized.WeekLabel = WeekRangeLabel(group.Entries)
		synthesized.LineItems = make([]domain.LineItem, 0, len(group.Brackets)*2)

		for _, bracket := range group.Brackets {
			if bracket.RegularHours > 0 {
				synthesized.LineItems = append(synthesized.LineItems, regularItem(bracket, synthesized.WeekLabel))
			}
			if bracket.OvertimeHours > 0 {
				synthesized.LineItems = append(synthesized.LineItems, overtimeItem(bracket, synthesized.WeekLabel))
			}
		}

		out = append(out, recompute(synthesized))
	}
	return out
}

func regularItem(bracket domain.BracketTotal, weekLabel string) domain.LineItem {
	rate := roundCents(bracket.BillRate)
	return domain.LineItem{
		ID:          bracket.BracketID + "-regular",
		Kind:        domain.LineItemRegular,
		BracketID:   bracket.BracketID,
		BracketName: bracket.BracketName,
		ProductName: bracket.BracketName + " (Regular)",
		Description: fmt.Sprintf("%s - %s: %.1f hrs @ $%.2f/hr",
			bracket.BracketName, weekLabel, bracket.RegularHours, rate),
		Hours:    bracket.RegularHours,
		Rate:     rate,
		Total:    lineTotal(bracket.RegularHours, rate),
		Selected: true,
	}
}

func overtimeItem(bracket domain.BracketTotal, weekLabel string) domain.LineItem {
	rate := roundCents(bracket.BillRate * bracket.OvertimeMultiplier)
	return domain.LineItem{
		ID:          bracket.BracketID + "-overtime",
		Kind:        domain.LineItemOvertime,
		BracketID:   bracket.BracketID,
		BracketName: bracket.BracketName,
		ProductName: bracket.BracketName + " (Overtime)",
		Description: fmt.Sprintf("%s Overtime (%sx) - %s: %.1f hrs @ $%.2f/hr",
			bracket.BracketName, strconv.FormatFloat(bracket.OvertimeMultiplier, 'f', -1, 64),
			weekLabel, bracket.OvertimeHours, rate),
		Hours:    bracket.OvertimeHours,
		Rate:     rate,
		Total:    lineTotal(bracket.OvertimeHours, rate),
		Selected: true,
	}
}

// WeekRangeLabel spans the Monday of the earliest entry's week to the
// Sunday of the latest entry's week.
func WeekRangeLabel(entries []domain.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	earliest, latest := entries[0].Date, entries[0].Date
	for _, entry := range entries[1:] {
		if entry.Date.Before(earliest) {
			earliest = entry.Date
		}
		if entry.Date.After(latest) {
			latest = entry.Date
		}
	}
	start := WeekStart(earliest)
	end := WeekStart(latest).AddDate(0, 0, 6)
	return fmt.Sprintf("Week of %s - %s", start.Format(labelLayout), end.Format(labelLayout))
}

const labelLayout = "Jan 2, 2006"

// Line item rates and totals are whole cents. A total is hours times the
// rate in cents, rounded once.
func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func lineTotal(hours, rate float64) float64 {
	return math.Round(hours*math.Round(rate*100)) / 100
}

// recompute derives TotalBillable from the selected items and drops the
// selection of a group with nothing left to bill.
func recompute(group domain.CustomerGroup) domain.CustomerGroup {
	var cents int64
	selected := 0
	for _, item := range group.LineItems {
		if item.Selected {
			cents += int64(math.Round(item.Total * 100))
			selected++
		}
	}
	group.TotalBillable = float64(cents) / 100
	if selected == 0 {
		group.Selected = false
	}
	return group
}

// Build runs the full pipeline.
func Build(entries []domain.Entry, lookup domain.RateLookup, threshold float64, policy OvertimePolicy) ([]domain.CustomerGroup, domain.ExclusionCounts) {
	groups, excluded := GroupEntries(entries)
	groups = ResolveRates(groups, lookup)
	groups = AllocateHours(groups, threshold, policy)
	groups = SynthesizeLineItems(groups)
	return groups, excluded
}
