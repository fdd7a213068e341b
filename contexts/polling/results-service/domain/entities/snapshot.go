package entities

import (
	"math"
	"time"
)

// OptionResult is one option's aggregated standing inside a snapshot.
type OptionResult struct {
	OptionID   string
	Label      string
	Position   int
	VoteCount  int64
	Percentage float64
}

// ResultSnapshot is a self-contained view of one poll's results. Snapshots
// carry every option of the poll, including zero-vote ones. A Final snapshot
// belongs to a closed poll and never changes again; Stale marks a snapshot
// served while fresher numbers were unreachable.
type ResultSnapshot struct {
	PollID     string
	PollTitle  string
	TotalVotes int64
	Options    []OptionResult
	ComputedAt time.Time
	Stale      bool
	Final      bool
}

func (s ResultSnapshot) Copy() ResultSnapshot {
	options := make([]OptionResult, len(s.Options))
	copy(options, s.Options)
	s.Options = options
	return s
}

// WithVote returns a copy with one more vote on the given option and every
// percentage recomputed. The second return is false when the snapshot is
// final or does not carry the option, in which case the receiver is returned
// unchanged.
func (s ResultSnapshot) WithVote(optionID string, computedAt time.Time) (ResultSnapshot, bool) {
	if s.Final {
		return s, false
	}
	index := -1
	for i := range s.Options {
		if s.Options[i].OptionID == optionID {
			index = i
			break
		}
	}
	if index < 0 {
		return s, false
	}

	updated := s.Copy()
	updated.Options[index].VoteCount++
	updated.TotalVotes++
	for i := range updated.Options {
		updated.Options[i].Percentage = Percentage(updated.Options[i].VoteCount, updated.TotalVotes)
	}
	updated.ComputedAt = computedAt.UTC()
	updated.Stale = false
	return updated, true
}

// Percentage is the option share rounded to two decimals. A zero total maps
// every option to 0, not NaN.
func Percentage(count int64, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*100*100) / 100
}
