package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
)

// WorkedEntry is one resolved entry of a single worker.
type WorkedEntry struct {
	EntryID string
	Date    time.Time
	Hours   float64
}

// Split is the regular and overtime share of one entry.
type Split struct {
	EntryID  string
	Regular  float64
	Overtime float64
}

// OvertimePolicy splits one worker's hours into regular and overtime.
// Entries are passed in (date, id) order.
type OvertimePolicy interface {
	Name() string
	Split(entries []WorkedEntry, threshold float64) []Split
}

// WholeRangeOvertimePolicy applies the threshold once to the worker's total
// across the whole entry range, however many weeks it spans.
type WholeRangeOvertimePolicy struct{}

func (WholeRangeOvertimePolicy) Name() string { return "whole_range" }

func (WholeRangeOvertimePolicy) Split(entries []WorkedEntry, threshold float64) []Split {
	return capSplit(entries, threshold, func(WorkedEntry) string { return "" })
}

// PerWeekOvertimePolicy applies the threshold separately to each
// Monday-start week.
type PerWeekOvertimePolicy struct{}

func (PerWeekOvertimePolicy) Name() string { return "per_week" }

func (PerWeekOvertimePolicy) Split(entries []WorkedEntry, threshold float64) []Split {
	return capSplit(entries, threshold, func(e WorkedEntry) string {
		return WeekStart(e.Date).Format(time.DateOnly)
	})
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (OvertimePolicy, error) {
	switch name {
	case "", WholeRangeOvertimePolicy{}.Name():
		return WholeRangeOvertimePolicy{}, nil
	case PerWeekOvertimePolicy{}.Name():
		return PerWeekOvertimePolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidOvertimePolicy, name)
	}
}

// capSplit fills each bucket up to threshold in order, so a bucket's regular
// hours are min(total, threshold) and the rest is overtime.
func capSplit(entries []WorkedEntry, threshold float64, bucket func(WorkedEntry) string) []Split {
	used := make(map[string]float64)
	splits := make([]Split, 0, len(entries))
	for _, entry := range entries {
		key := bucket(entry)
		remaining := threshold - used[key]
		if remaining < 0 {
			remaining = 0
		}
		regular := entry.Hours
		if regular > remaining {
			regular = remaining
		}
		used[key] += regular
		splits = append(splits, Split{
			EntryID:  entry.EntryID,
			Regular:  regular,
			Overtime: entry.Hours - regular,
		})
	}
	return splits
}

// WeekStart returns midnight UTC of the Monday starting t's week.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func sortWorked(entries []WorkedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].EntryID < entries[j].EntryID
	})
}
