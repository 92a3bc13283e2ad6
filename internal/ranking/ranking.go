// Package ranking derives rank and percentile across the terminal attempts
// of one exam.
package ranking

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Entry is one terminal attempt.
type Entry struct {
	AttemptID  uint
	Score      float64
	FinishedAt time.Time
}

// Standing is the computed position of an attempt.
type Standing struct {
	AttemptID  uint
	Rank       int
	Percentile float64
}

// Compute orders entries by score (desc), finish time (asc) then id (asc)
// and assigns 1-based ranks. Percentile is the share of attempts with a
// strictly lower score.
func Compute(entries []Entry) []Standing {
	n := len(entries)
	if n == 0 {
		return nil
	}

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := a.FinishedAt.Compare(b.FinishedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.AttemptID, b.AttemptID)
	})

	standings := make([]Standing, n)
	for i := 0; i < n; {
		// [i, j) share the same score
		j := i + 1
		for j < n && sorted[j].Score == sorted[i].Score {
			j++
		}
		lower := n - j
		percentile := math.Round(10000*float64(lower)/float64(n)) / 100
		for k := i; k < j; k++ {
			standings[k] = Standing{
				AttemptID:  sorted[k].AttemptID,
				Rank:       k + 1,
				Percentile: percentile,
			}
		}
		i = j
	}
	return standings
}

// Current is the stored standing of an attempt, nil when never ranked.
type Current struct {
	AttemptID  uint
	Rank       *int
	Percentile *float64
}

// Diff returns only the standings that differ from what is stored.
func Diff(current []Current, next []Standing) []Standing {
	stored := make(map[uint]Current, len(current))
	for _, c := range current {
		stored[c.AttemptID] = c
	}

	var changed []Standing
	for _, s := range next {
		c, ok := stored[s.AttemptID]
		if ok && c.Rank != nil && c.Percentile != nil && *c.Rank == s.Rank && *c.Percentile == s.Percentile {
			continue
		}
		changed = append(changed, s)
	}
	return changed
}
