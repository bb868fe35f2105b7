package core

import (
	"errors"
	"fmt"
	"sort"
)

var ErrNotInGroup = errors.New("installment not found in its type group")

// GroupKey identifies a type-group: all installments of one item type on one
// financial record.
type GroupKey struct {
	RecordID string
	ItemType ItemType
}

func (k GroupKey) String() string {
	return k.RecordID + "/" + string(k.ItemType)
}

// KeyOf returns the type-group an installment belongs to.
func KeyOf(i Installment) GroupKey {
	return GroupKey{RecordID: i.RecordID, ItemType: i.ItemType}
}

// GroupOf returns a sorted copy of the installments in all that share the
// target's record and item type. Order is by due date, then id.
func GroupOf(target Installment, all []Installment) []Installment {
	key := KeyOf(target)
	group := make([]Installment, 0, len(all))
	for _, inst := range all {
		if KeyOf(inst) == key {
			group = append(group, inst)
		}
	}
	SortByDueDate(group)
	return group
}

// SortByDueDate orders installments in place by (due date, id).
func SortByDueDate(list []Installment) {
	sort.SliceStable(list, func(a, b int) bool {
		if c := list[a].DueDate.Compare(list[b].DueDate); c != 0 {
			return c < 0
		}
		return list[a].ID < list[b].ID
	})
}

// SequenceNumberForType returns the 1-based position of target within its
// type-group. Ties on due date are broken by id, so the numbering is a total
// order no matter how all is ordered. all is not modified.
func SequenceNumberForType(target Installment, all []Installment) (int, error) {
	for i, inst := range GroupOf(target, all) {
		if inst.ID == target.ID {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("installment %d in %s: %w", target.ID, KeyOf(target), ErrNotInGroup)
}

// SequenceNumbers numbers every installment in all within its own group.
func SequenceNumbers(all []Installment) map[InstallmentID]int {
	groups := make(map[GroupKey][]Installment)
	for _, inst := range all {
		k := KeyOf(inst)
		groups[k] = append(groups[k], inst)
	}

	seq := make(map[InstallmentID]int, len(all))
	for _, group := range groups {
		SortByDueDate(group)
		for i, inst := range group {
			seq[inst.ID] = i + 1
		}
	}
	return seq
}

// IsLastInGroup reports whether target is the final installment of its group.
func IsLastInGroup(target Installment, all []Installment) bool {
	group := GroupOf(target, all)
	return len(group) > 0 && group[len(group)-1].ID == target.ID
}

// AwaitingRenewal reports whether last, the final installment of its group,
// leaves the group waiting for its next installment.
func AwaitingRenewal(last Installment) bool {
	return last.ItemType.Renewable() && last.IsPaid()
}

// Anchor returns the first due date of a group, the date that fixes the
// day-of-month for every later installment.
func Anchor(group []Installment) (Date, bool) {
	if len(group) == 0 {
		return Date{}, false
	}
	anchor := group[0].DueDate
	for _, inst := range group[1:] {
		if inst.DueDate.Before(anchor) {
			anchor = inst.DueDate
		}
	}
	return anchor, true
}

// NextDueDate projects the due date after lastPaid, counted from anchor
// rather than from lastPaid. A schedule anchored on the 31st therefore comes
// back to the 31st after a 30-day month instead of drifting to the 30th.
func NextDueDate(anchor, lastPaid Date) string {
	return FormatISODate(NextDueDateOf(anchor, lastPaid))
}

// NextDueDateOf is NextDueDate returning a Date.
func NextDueDateOf(anchor, lastPaid Date) Date {
	return AddMonthsSafe(anchor, MonthsBetween(anchor, lastPaid)+1)
}

// NextDueDateChecked is NextDueDateOf that fails with ErrOutOfRangeDate
// instead of leaving the four-digit year range.
func NextDueDateChecked(anchor, lastPaid Date) (Date, error) {
	return AddMonthsChecked(anchor, MonthsBetween(anchor, lastPaid)+1)
}

// NextDueDateFromISO is NextDueDate over ISO strings.
func NextDueDateFromISO(anchor, lastPaid string) (string, error) {
	a, err := ParseISODate(anchor)
	if err != nil {
		return "", fmt.Errorf("anchor: %w", err)
	}
	p, err := ParseISODate(lastPaid)
	if err != nil {
		return "", fmt.Errorf("last paid: %w", err)
	}
	return NextDueDate(a, p), nil
}

// Schedule returns count monthly due dates starting at anchor.
func Schedule(anchor Date, count int) []Date {
	if count <= 0 {
		return nil
	}
	dates := make([]Date, count)
	for i := range dates {
		dates[i] = AddMonthsSafe(anchor, i)
	}
	return dates
}
