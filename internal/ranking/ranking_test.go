package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func byID(standings []Standing) map[uint]Standing {
	m := make(map[uint]Standing, len(standings))
	for _, s := range standings {
		m[s.AttemptID] = s
	}
	return m
}

func TestCompute_DistinctScores(t *testing.T) {
	entries := []Entry{
		{AttemptID: 1, Score: 4, FinishedAt: base},
		{AttemptID: 2, Score: 10, FinishedAt: base},
		{AttemptID: 3, Score: 7, FinishedAt: base},
		{AttemptID: 4, Score: 1, FinishedAt: base},
	}

	got := Compute(entries)
	require.Len(t, got, 4)

	ranks := make([]int, 0, len(got))
	for _, s := range got {
		ranks = append(ranks, s.Rank)
	}
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, ranks)

	m := byID(got)
	assert.Equal(t, 1, m[2].Rank)
	assert.Equal(t, 75.0, m[2].Percentile)
	assert.Equal(t, 4, m[4].Rank)
	assert.Equal(t, 0.0, m[4].Percentile)

	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i].Percentile, got[i-1].Percentile)
	}
}

func TestCompute_UniqueTopScorerOfTwo(t *testing.T) {
	got := byID(Compute([]Entry{
		{AttemptID: 1, Score: 10, FinishedAt: base},
		{AttemptID: 2, Score: 5, FinishedAt: base},
	}))
	assert.Equal(t, 50.0, got[1].Percentile)
	assert.Equal(t, 0.0, got[2].Percentile)
}

func TestCompute_TieBreakByFinishTime(t *testing.T) {
	got := byID(Compute([]Entry{
		{AttemptID: 1, Score: 8, FinishedAt: base.Add(time.Minute)},
		{AttemptID: 2, Score: 8, FinishedAt: base},
		{AttemptID: 3, Score: 2, FinishedAt: base},
	}))

	assert.Equal(t, 1, got[2].Rank)
	assert.Equal(t, 2, got[1].Rank)
	assert.Equal(t, got[1].Percentile, got[2].Percentile, "ties share a percentile")
	assert.InDelta(t, 33.33, got[1].Percentile, 0.001)
}

func TestCompute_Empty(t *testing.T) {
	assert.Nil(t, Compute(nil))
}

func TestDiff_SkipsUnchanged(t *testing.T) {
	rank1, rank2 := 1, 2
	p50, p0 := 50.0, 0.0
	current := []Current{
		{AttemptID: 1, Rank: &rank1, Percentile: &p50},
		{AttemptID: 2, Rank: &rank1, Percentile: &p0},
		{AttemptID: 3},
	}
	next := []Standing{
		{AttemptID: 1, Rank: 1, Percentile: 50},
		{AttemptID: 2, Rank: rank2, Percentile: 0},
		{AttemptID: 3, Rank: 3, Percentile: 0},
	}

	changed := Diff(current, next)
	require.Len(t, changed, 2)
	assert.Equal(t, uint(2), changed[0].AttemptID)
	assert.Equal(t, uint(3), changed[1].AttemptID)
}

