package v1

import "time"

// Event types published on the polling topics. Consumers match on these
// strings, so renaming one is a breaking schema change.
const (
	EventTypePollCreated  = "polling.poll.created"
	EventTypePollClosed   = "polling.poll.closed"
	EventTypeVoteAccepted = "polling.vote.accepted"
)

// PollCreatedData is the payload carried by polling.poll.created.
type PollCreatedData struct {
	PollID      string     `json:"poll_id"`
	Title       string     `json:"title"`
	CreatedBy   string     `json:"created_by"`
	OptionCount int        `json:"option_count"`
	ClosesAt    *time.Time `json:"closes_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PollClosedData is the payload carried by polling.poll.closed.
type PollClosedData struct {
	PollID   string    `json:"poll_id"`
	ClosedBy string    `json:"closed_by"`
	ClosedAt time.Time `json:"closed_at"`
}

// VoteAcceptedData is the payload carried by polling.vote.accepted.
type VoteAcceptedData struct {
	VoteID   string    `json:"vote_id"`
	PollID   string    `json:"poll_id"`
	OptionID string    `json:"option_id"`
	VoterID  string    `json:"voter_id"`
	Position int64     `json:"position"`
	CastAt   time.Time `json:"cast_at"`
}
