package meek

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func ballotsOf(weight int64, count int, ranking ...int64) []Ballot {
	out := make([]Ballot, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, Ballot{Weight: weight, Ranking: append([]int64(nil), ranking...)})
	}
	return out
}

func candidates(ids ...int64) []Candidate {
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, Candidate{ID: id, TiebreakID: decimal.NewFromInt(id).String()})
	}
	return out
}

func TestTallySeatsEqualCandidatesElectsEveryone(t *testing.T) {
	ballots := []Ballot{
		{Weight: 1, Ranking: []int64{10, 12}},
		{Weight: 1, Ranking: []int64{11, 10}},
		{Weight: 1, Ranking: []int64{12, 11}},
		{Weight: 1, Ranking: []int64{11, 12, 10}},
	}
	result, err := Tally(Input{
		Ballots:    ballots,
		Candidates: candidates(10, 11, 12, 13),
		Seats:      4,
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{10, 11, 12, 13}, result.Elected)
	require.Empty(t, result.Eliminated)
	require.Empty(t, result.ForcedExcluded)
	require.Len(t, result.Rounds, 1)
	require.Equal(t, ActionElectedToFill, result.Rounds[0].Action)
}

func TestTallyDroopQuotaAndSurplusOnlyTransfer(t *testing.T) {
	var ballots []Ballot
	ballots = append(ballots, ballotsOf(1, 9, 1, 2)...)
	ballots = append(ballots, ballotsOf(1, 3, 3)...)
	ballots = append(ballots, ballotsOf(1, 2, 4)...)
	ballots = append(ballots, ballotsOf(1, 1, 5)...)

	result, err := Tally(Input{
		Ballots:    ballots,
		Candidates: candidates(1, 2, 3, 4, 5),
		Seats:      2,
	})
	require.NoError(t, err)

	// Total weight 15, seats 2: the first-round quota is 15/3.
	require.Equal(t, "5", result.Rounds[0].Quota)
	require.Equal(t, ActionElected, result.Rounds[0].Action)
	require.Equal(t, []int64{1}, result.Rounds[0].Elected)

	// After candidate 1 is elected, candidate 2 holds only the surplus
	// (9 - quota = 4), never candidate 1's full support.
	second := result.Rounds[1]
	var cand2 CandidateRound
	for _, row := range second.Candidates {
		if row.ID == 2 {
			cand2 = row
		}
	}
	votes2, parseErr := decimal.NewFromString(cand2.Votes)
	require.NoError(t, parseErr)
	diff := votes2.Sub(decimal.NewFromInt(4)).Abs()
	require.True(t, diff.Cmp(decimal.New(1, -6)) < 0, "candidate 2 should hold ~4 votes, got %s", cand2.Votes)

	require.Equal(t, []int64{1, 2}, result.Elected)
	require.Equal(t, []int64{5, 4}, result.Eliminated)
	last, ok := result.LastEliminated()
	require.True(t, ok)
	require.Equal(t, int64(4), last)
}

func TestTallyExclusionGroupCap(t *testing.T) {
	var ballots []Ballot
	ballots = append(ballots, ballotsOf(1, 5, 1, 2)...)
	ballots = append(ballots, ballotsOf(1, 4, 2)...)
	ballots = append(ballots, ballotsOf(1, 3, 3)...)

	result, err := Tally(Input{
		Ballots:    ballots,
		Candidates: candidates(1, 2, 3),
		Seats:      2,
		ExclusionGroups: []ExclusionGroup{
			{Name: "board-region", MaxElected: 1, CandidateIDs: []int64{1, 2}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, result.Elected)
	require.Equal(t, []int64{2}, result.ForcedExcluded)
	require.Empty(t, result.Eliminated)

	var forced []ForcedExclusion
	for _, round := range result.Rounds {
		forced = append(forced, round.ForcedExcluded...)
	}
	require.Len(t, forced, 1)
	require.Equal(t, int64(2), forced[0].CandidateID)
	require.Equal(t, int64(1), forced[0].TriggeredBy)
	require.Equal(t, "board-region", forced[0].Group)
}

func TestTallyCapMakesFullFillInfeasible(t *testing.T) {
	result, err := Tally(Input{
		Ballots:    ballotsOf(1, 4, 1, 2),
		Candidates: candidates(1, 2),
		Seats:      2,
		ExclusionGroups: []ExclusionGroup{
			{Name: "chapter", MaxElected: 1, CandidateIDs: []int64{1, 2}},
		},
	})
	require.NoError(t, err)
	// Two seats, but the cap allows only one group member: the maximum
	// feasible count is elected.
	require.Equal(t, []int64{1}, result.Elected)
	require.Equal(t, []int64{2}, result.ForcedExcluded)
}

func TestTallyTieBrokenByStableID(t *testing.T) {
	var ballots []Ballot
	ballots = append(ballots, ballotsOf(1, 2, 1)...)
	ballots = append(ballots, ballotsOf(1, 2, 2)...)
	ballots = append(ballots, ballotsOf(1, 1, 3)...)

	cands := []Candidate{
		{ID: 1, TiebreakID: "b7f2"},
		{ID: 2, TiebreakID: "a391"},
		{ID: 3, TiebreakID: "c always loses here"},
	}
	result, err := Tally(Input{Ballots: ballots, Candidates: cands, Seats: 1})
	require.NoError(t, err)
	require.Equal(t, []int64{3}, result.Eliminated)
	require.Equal(t, []int64{2}, result.Elected, "equal totals must resolve by tiebreak id")
}

func TestTallyElectsExactlySeats(t *testing.T) {
	var ballots []Ballot
	ballots = append(ballots, ballotsOf(2, 6, 1, 2, 3)...)
	ballots = append(ballots, ballotsOf(1, 5, 4, 5, 6)...)
	ballots = append(ballots, ballotsOf(3, 4, 2, 6)...)
	ballots = append(ballots, ballotsOf(1, 3, 5, 1)...)

	result, err := Tally(Input{
		Ballots:    ballots,
		Candidates: candidates(1, 2, 3, 4, 5, 6),
		Seats:      3,
	})
	require.NoError(t, err)
	require.Len(t, result.Elected, 3)
	seen := make(map[int64]bool)
	for _, id := range result.Elected {
		require.False(t, seen[id], "candidate %d elected twice", id)
		seen[id] = true
	}
}

func TestTallyDeterministic(t *testing.T) {
	var ballots []Ballot
	ballots = append(ballots, ballotsOf(2, 40, 1, 3, 5)...)
	ballots = append(ballots, ballotsOf(1, 35, 2, 4)...)
	ballots = append(ballots, ballotsOf(1, 25, 3, 1, 2)...)
	ballots = append(ballots, ballotsOf(4, 10, 5, 4, 3, 2, 1)...)
	ballots = append(ballots, ballotsOf(1, 5, 4)...)

	in := Input{
		Ballots:    ballots,
		Candidates: candidates(1, 2, 3, 4, 5),
		Seats:      3,
		ExclusionGroups: []ExclusionGroup{
			{Name: "region-a", MaxElected: 2, CandidateIDs: []int64{1, 3, 5}},
		},
	}

	first, err := Tally(in)
	require.NoError(t, err)
	second, err := Tally(in)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, firstJSON, secondJSON, "identical input must produce byte-identical output")
}

func TestTallyIgnoresUnknownAndRepeatedRankingEntries(t *testing.T) {
	result, err := Tally(Input{
		Ballots: []Ballot{
			{Weight: 1, Ranking: []int64{1, 99, 1, 2}},
			{Weight: 0, Ranking: []int64{2}},
			{Weight: 1, Ranking: nil},
		},
		Candidates: candidates(1, 2),
		Seats:      1,
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, result.Elected)
}

func TestTallyRejectsNonPositiveSeats(t *testing.T) {
	_, err := Tally(Input{Candidates: candidates(1), Seats: 0})
	require.ErrorIs(t, err, ErrSeatsNotPositive)
}

func TestTallyThousandsOfBallotsFast(t *testing.T) {
	var ballots []Ballot
	for i := 0; i < 5000; i++ {
		switch i % 4 {
		case 0:
			ballots = append(ballots, Ballot{Weight: 1, Ranking: []int64{1, 2, 3}})
		case 1:
			ballots = append(ballots, Ballot{Weight: 2, Ranking: []int64{4, 5}})
		case 2:
			ballots = append(ballots, Ballot{Weight: 1, Ranking: []int64{6, 7, 8, 9}})
		default:
			ballots = append(ballots, Ballot{Weight: 1, Ranking: []int64{10, 1, 4}})
		}
	}
	start := time.Now()
	result, err := Tally(Input{
		Ballots:    ballots,
		Candidates: candidates(1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
		Seats:      4,
	})
	require.NoError(t, err)
	require.Len(t, result.Elected, 4)
	require.Less(t, time.Since(start), 5*time.Second)
}
