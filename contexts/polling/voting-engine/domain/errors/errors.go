package errors

import "errors"

var (
	ErrInvalidVoteInput   = errors.New("invalid vote input")
	ErrPollNotFound       = errors.New("poll not found")
	ErrPollClosed         = errors.New("poll is closed")
	ErrOptionNotInPoll    = errors.New("option does not belong to poll")
	ErrDuplicateVote      = errors.New("voter already voted in this poll")
	ErrVoteNotFound       = errors.New("vote not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTallyDrift         = errors.New("tally drift detected")
)
