package entities

import "time"

// Vote is one accepted ballot. Votes are immutable once appended to the
// ledger; Position is the ledger position assigned at append time.
type Vote struct {
	VoteID   string
	PollID   string
	OptionID string
	VoterID  string
	Position int64
	CastAt   time.Time
}

// Tally is the running per-option vote count for a poll. Counts may omit
// options that have not received a vote yet.
type Tally struct {
	PollID string
	Counts map[string]int64
	Total  int64
}

func NewTally(pollID string) Tally {
	return Tally{
		PollID: pollID,
		Counts: make(map[string]int64),
	}
}

func (t Tally) Copy() Tally {
	counts := make(map[string]int64, len(t.Counts))
	for optionID, count := range t.Counts {
		counts[optionID] = count
	}
	return Tally{
		PollID: t.PollID,
		Counts: counts,
		Total:  t.Total,
	}
}

// TallyFromVotes recomputes a tally from replayed ledger votes.
func TallyFromVotes(pollID string, votes []Vote) Tally {
	tally := NewTally(pollID)
	for _, vote := range votes {
		tally.Counts[vote.OptionID]++
		tally.Total++
	}
	return tally
}

// Equal reports whether two tallies carry identical counts and totals.
func (t Tally) Equal(other Tally) bool {
	if t.Total != other.Total {
		return false
	}
	for optionID, count := range t.Counts {
		if count != other.Counts[optionID] {
			return false
		}
	}
	for optionID, count := range other.Counts {
		if count != t.Counts[optionID] {
			return false
		}
	}
	return true
}
