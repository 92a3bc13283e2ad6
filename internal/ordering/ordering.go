// Package ordering renumbers the questions of an exam. Every function
// returns a new slice and never mutates its input.
package ordering

import (
	"cmp"
	"fmt"
	"slices"
)

// Item is one question link and its current position.
type Item struct {
	QuestionID uint
	Order      int
}

// UnknownQuestionsError lists requested ids that are not linked to the exam.
type UnknownQuestionsError struct {
	QuestionIDs []uint
}

func (e *UnknownQuestionsError) Error() string {
	return fmt.Sprintf("questions not in exam: %v", e.QuestionIDs)
}

// DuplicateQuestionError is returned when a requested order repeats an id.
type DuplicateQuestionError struct {
	QuestionID uint
}

func (e *DuplicateQuestionError) Error() string {
	return fmt.Sprintf("question %d listed more than once", e.QuestionID)
}

// Sorted returns items ordered by current position, ties by question id.
func Sorted(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Item) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.QuestionID, b.QuestionID)
	})
	return out
}

// Compact renumbers items to 1..N keeping their relative order.
func Compact(items []Item) []Item {
	out := Sorted(items)
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// Reorder places the requested ids first in the given sequence, then the
// remaining items in their current order, numbered 1..N.
func Reorder(current []Item, requested []uint) ([]Item, error) {
	known := make(map[uint]struct{}, len(current))
	for _, it := range current {
		known[it.QuestionID] = struct{}{}
	}

	seen := make(map[uint]struct{}, len(requested))
	var unknown []uint
	for _, id := range requested {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, &DuplicateQuestionError{QuestionID: id}
		}
		seen[id] = struct{}{}
	}
	if len(unknown) > 0 {
		return nil, &UnknownQuestionsError{QuestionIDs: unknown}
	}

	out := make([]Item, 0, len(current))
	for _, id := range requested {
		out = append(out, Item{QuestionID: id})
	}
	for _, it := range Sorted(current) {
		if _, ok := seen[it.QuestionID]; !ok {
			out = append(out, Item{QuestionID: it.QuestionID})
		}
	}
	for i := range out {
		out[i].Order = i + 1
	}
	return out, nil
}

// Append adds a question at position N+1 after compaction.
func Append(current []Item, questionID uint) []Item {
	out := Compact(current)
	return append(out, Item{QuestionID: questionID, Order: len(out) + 1})
}

// Remove drops a question and compacts the rest.
func Remove(current []Item, questionID uint) []Item {
	kept := make([]Item, 0, len(current))
	for _, it := range current {
		if it.QuestionID != questionID {
			kept = append(kept, it)
		}
	}
	return Compact(kept)
}

// Changes maps question id to new order for items whose order moved.
func Changes(before, after []Item) map[uint]int {
	prev := make(map[uint]int, len(before))
	for _, it := range before {
		prev[it.QuestionID] = it.Order
	}
	changes := make(map[uint]int)
	for _, it := range after {
		if old, ok := prev[it.QuestionID]; !ok || old != it.Order {
			changes[it.QuestionID] = it.Order
		}
	}
	return changes
}
