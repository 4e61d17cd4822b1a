package meek

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	defaultMaxIterations = 500

	// divPrecision is the fixed number of fractional digits used for every
	// division. Binary floating point is never used, so two counts of the
	// same ballots produce identical trails on any platform.
	divPrecision = 28
)

var (
	ErrSeatsNotPositive = errors.New("seats must be positive")

	// ErrNotConverged means the keep-factor fixed point did not stabilize
	// within the iteration cap. The count is fatally failed; callers must
	// not publish a partial result.
	ErrNotConverged = errors.New("meek keep factors did not converge within the iteration cap")
)

func defaultEpsilon() decimal.Decimal { return decimal.New(1, -12) }

type candState struct {
	id       int64
	tiebreak string
	status   CandidateStatus
	keep     decimal.Decimal
}

type weightedBallot struct {
	weight  decimal.Decimal
	ranking []int64
}

type counter struct {
	seats   int
	epsilon decimal.Decimal
	maxIter int

	ballots []weightedBallot
	total   decimal.Decimal
	states  map[int64]*candState
	order   []int64
	groups  []ExclusionGroup

	elected    []int64
	eliminated []int64
	forced     []ForcedExclusion
	rounds     []Round
	quota      decimal.Decimal
}

// Tally runs a Meek STV count. It is a pure function: identical input yields
// a byte-identical Result, independent of map ordering or wall-clock state.
func Tally(in Input) (Result, error) {
	if in.Seats <= 0 {
		return Result{}, ErrSeatsNotPositive
	}

	c := &counter{
		seats:   in.Seats,
		epsilon: in.Epsilon,
		maxIter: in.MaxIterations,
		states:  make(map[int64]*candState, len(in.Candidates)),
		groups:  in.ExclusionGroups,
		total:   decimal.Zero,
		quota:   decimal.Zero,
	}
	if c.epsilon.Sign() <= 0 {
		c.epsilon = defaultEpsilon()
	}
	if c.maxIter <= 0 {
		c.maxIter = defaultMaxIterations
	}

	for _, cand := range in.Candidates {
		if _, ok := c.states[cand.ID]; ok {
			continue
		}
		c.states[cand.ID] = &candState{
			id:       cand.ID,
			tiebreak: cand.TiebreakID,
			status:   StatusHopeful,
			keep:     decimal.NewFromInt(1),
		}
		c.order = append(c.order, cand.ID)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })

	for _, b := range in.Ballots {
		if b.Weight <= 0 {
			continue
		}
		ranking := make([]int64, 0, len(b.Ranking))
		seen := make(map[int64]bool, len(b.Ranking))
		for _, cid := range b.Ranking {
			if _, ok := c.states[cid]; !ok || seen[cid] {
				continue
			}
			seen[cid] = true
			ranking = append(ranking, cid)
		}
		if len(ranking) == 0 {
			continue
		}
		weight := decimal.NewFromInt(b.Weight)
		c.ballots = append(c.ballots, weightedBallot{weight: weight, ranking: ranking})
		c.total = c.total.Add(weight)
	}

	if err := c.run(); err != nil {
		return Result{}, err
	}

	forcedIDs := make([]int64, 0, len(c.forced))
	for _, fx := range c.forced {
		forcedIDs = append(forcedIDs, fx.CandidateID)
	}

	return Result{
		Elected:        c.elected,
		Eliminated:     c.eliminated,
		ForcedExcluded: forcedIDs,
		Quota:          c.quota,
		Seats:          c.seats,
		Rounds:         c.rounds,
	}, nil
}

func (c *counter) run() error {
	for len(c.elected) < c.seats {
		hopefuls := c.hopefuls()
		if len(hopefuls) == 0 {
			break
		}

		if len(c.elected)+len(hopefuls) <= c.seats {
			c.electRemaining(hopefuls)
			continue
		}

		_, retained, exhausted, quota, iters, err := c.converge()
		if err != nil {
			return err
		}
		c.quota = quota

		winners := make([]int64, 0, len(hopefuls))
		if quota.Sign() > 0 {
			for _, id := range hopefuls {
				if retainedOf(retained, id).Cmp(quota) >= 0 {
					winners = append(winners, id)
				}
			}
		}

		if len(winners) > 0 {
			c.sortByVotesDesc(winners, retained)
			var roundElected []int64
			var events []ForcedExclusion
			for _, id := range winners {
				if c.states[id].status != StatusHopeful {
					// A cap triggered by an earlier election this round
					// already forced this candidate out.
					continue
				}
				if len(c.elected) >= c.seats {
					break
				}
				c.states[id].status = StatusElected
				c.elected = append(c.elected, id)
				roundElected = append(roundElected, id)
				events = append(events, c.applyExclusions(id)...)
			}
			c.record(Round{
				Action:          ActionElected,
				Quota:           quota.String(),
				Iterations:      iters,
				Elected:         roundElected,
				ForcedExcluded:  events,
				Candidates:      c.snapshot(retained),
				ExhaustedWeight: exhausted.String(),
			})
			continue
		}

		loser := c.lowestHopeful(hopefuls, retained)
		c.states[loser].status = StatusEliminated
		c.states[loser].keep = decimal.Zero
		c.eliminated = append(c.eliminated, loser)
		c.record(Round{
			Action:          ActionEliminated,
			Quota:           quota.String(),
			Iterations:      iters,
			Eliminated:      loser,
			Candidates:      c.snapshot(retained),
			ExhaustedWeight: exhausted.String(),
		})
	}
	return nil
}

// electRemaining handles the terminal rule-based fill: the remaining
// hopefuls fit (or underfill) the remaining seats, so each is elected unless
// an exclusion cap triggered along the way forces it out first.
func (c *counter) electRemaining(hopefuls []int64) {
	_, retained, exhausted := c.distribute()
	active := c.total.Sub(exhausted)
	quota := active.DivRound(decimal.NewFromInt(int64(c.seats+1)), divPrecision)
	c.quota = quota

	ordered := append([]int64(nil), hopefuls...)
	c.sortByVotesDesc(ordered, retained)

	var roundElected []int64
	var events []ForcedExclusion
	for _, id := range ordered {
		if c.states[id].status != StatusHopeful {
			continue
		}
		if len(c.elected) >= c.seats {
			break
		}
		c.states[id].status = StatusElected
		c.elected = append(c.elected, id)
		roundElected = append(roundElected, id)
		events = append(events, c.applyExclusions(id)...)
	}

	c.record(Round{
		Action:          ActionElectedToFill,
		Quota:           quota.String(),
		Iterations:      0,
		Elected:         roundElected,
		ForcedExcluded:  events,
		Candidates:      c.snapshot(retained),
		ExhaustedWeight: exhausted.String(),
	})
}

// converge runs the keep-factor fixed point for the current candidate
// states. The quota is recomputed every iteration from the non-exhausted
// weight (Droop-style over seats+1), so it shrinks as ballots exhaust.
func (c *counter) converge() (incoming, retained map[int64]decimal.Decimal, exhausted, quota decimal.Decimal, iterations int, err error) {
	seatsPlusOne := decimal.NewFromInt(int64(c.seats + 1))
	for i := 1; i <= c.maxIter; i++ {
		incoming, retained, exhausted = c.distribute()
		active := c.total.Sub(exhausted)
		quota = active.DivRound(seatsPlusOne, divPrecision)

		maxDelta := decimal.Zero
		for _, id := range c.order {
			st := c.states[id]
			if st.status != StatusElected {
				continue
			}
			in := retainedOf(incoming, id)
			if in.Sign() <= 0 {
				continue
			}
			next := quota.DivRound(in, divPrecision)
			if next.Cmp(decimal.NewFromInt(1)) > 0 {
				next = decimal.NewFromInt(1)
			}
			if next.Sign() < 0 {
				next = decimal.Zero
			}
			delta := next.Sub(st.keep).Abs()
			if delta.Cmp(maxDelta) > 0 {
				maxDelta = delta
			}
			st.keep = next
		}

		if maxDelta.Cmp(c.epsilon) < 0 {
			return incoming, retained, exhausted, quota, i, nil
		}
	}
	return nil, nil, decimal.Zero, decimal.Zero, c.maxIter, ErrNotConverged
}

// distribute pushes every ballot down its ranking. A candidate receives the
// ballot's remaining weight, keeps weight*keep, and passes the rest onward;
// eliminated and excluded candidates are skipped entirely. Whatever runs off
// the end of a ranking is exhausted.
func (c *counter) distribute() (incoming, retained map[int64]decimal.Decimal, exhausted decimal.Decimal) {
	incoming = make(map[int64]decimal.Decimal, len(c.order))
	retained = make(map[int64]decimal.Decimal, len(c.order))
	exhausted = decimal.Zero

	for _, b := range c.ballots {
		remaining := b.weight
		for _, cid := range b.ranking {
			st := c.states[cid]
			if st.status == StatusEliminated || st.status == StatusExcluded {
				continue
			}
			if st.keep.Sign() <= 0 {
				continue
			}
			incoming[cid] = retainedOf(incoming, cid).Add(remaining)
			portion := remaining.Mul(st.keep)
			retained[cid] = retainedOf(retained, cid).Add(portion)
			remaining = remaining.Sub(portion)
			if remaining.Sign() <= 0 {
				break
			}
		}
		if remaining.Sign() > 0 {
			exhausted = exhausted.Add(remaining)
		}
	}
	return incoming, retained, exhausted
}

// applyExclusions enforces group caps after an election. Once a group hits
// its cap every remaining hopeful member is forced out, with keep factor
// zero so its votes flow onward immediately.
func (c *counter) applyExclusions(triggeredBy int64) []ForcedExclusion {
	var events []ForcedExclusion
	electedSet := make(map[int64]bool, len(c.elected))
	for _, id := range c.elected {
		electedSet[id] = true
	}

	for _, group := range c.groups {
		if group.MaxElected <= 0 {
			continue
		}
		count := 0
		for _, cid := range group.CandidateIDs {
			if electedSet[cid] {
				count++
			}
		}
		if count < group.MaxElected {
			continue
		}

		members := append([]int64(nil), group.CandidateIDs...)
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		for _, cid := range members {
			st, ok := c.states[cid]
			if !ok || st.status != StatusHopeful {
				continue
			}
			st.status = StatusExcluded
			st.keep = decimal.Zero
			event := ForcedExclusion{
				CandidateID: cid,
				Group:       group.Name,
				TriggeredBy: triggeredBy,
			}
			events = append(events, event)
			c.forced = append(c.forced, event)
		}
	}
	return events
}

func (c *counter) hopefuls() []int64 {
	ids := make([]int64, 0, len(c.order))
	for _, id := range c.order {
		if c.states[id].status == StatusHopeful {
			ids = append(ids, id)
		}
	}
	return ids
}

// sortByVotesDesc is the explicit total-order comparator: votes descending,
// then tiebreak id ascending, then candidate id. Nothing here depends on
// iteration order or randomness.
func (c *counter) sortByVotesDesc(ids []int64, retained map[int64]decimal.Decimal) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		cmp := retainedOf(retained, a).Cmp(retainedOf(retained, b))
		if cmp != 0 {
			return cmp > 0
		}
		if c.states[a].tiebreak != c.states[b].tiebreak {
			return c.states[a].tiebreak < c.states[b].tiebreak
		}
		return a < b
	})
}

func (c *counter) lowestHopeful(hopefuls []int64, retained map[int64]decimal.Decimal) int64 {
	lowest := hopefuls[0]
	for _, id := range hopefuls[1:] {
		cmp := retainedOf(retained, id).Cmp(retainedOf(retained, lowest))
		switch {
		case cmp < 0:
			lowest = id
		case cmp == 0:
			if c.states[id].tiebreak < c.states[lowest].tiebreak ||
				(c.states[id].tiebreak == c.states[lowest].tiebreak && id < lowest) {
				lowest = id
			}
		}
	}
	return lowest
}

func (c *counter) snapshot(retained map[int64]decimal.Decimal) []CandidateRound {
	rows := make([]CandidateRound, 0, len(c.order))
	for _, id := range c.order {
		st := c.states[id]
		rows = append(rows, CandidateRound{
			ID:         id,
			Votes:      retainedOf(retained, id).String(),
			KeepFactor: st.keep.String(),
			Status:     st.status,
		})
	}
	return rows
}

func (c *counter) record(round Round) {
	round.Number = len(c.rounds) + 1
	c.rounds = append(c.rounds, round)
}

func retainedOf(m map[int64]decimal.Decimal, id int64) decimal.Decimal {
	if v, ok := m[id]; ok {
		return v
	}
	return decimal.Zero
}
