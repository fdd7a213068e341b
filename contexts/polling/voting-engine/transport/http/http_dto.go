package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CastVoteRequest struct {
	OptionID string `json:"option_id"`
}

type VoteDTO struct {
	VoteID   string `json:"vote_id"`
	PollID   string `json:"poll_id"`
	OptionID string `json:"option_id"`
	VoterID  string `json:"voter_id"`
	Position int64  `json:"position"`
	CastAt   string `json:"cast_at"`
}

type CastVoteResponse struct {
	Vote VoteDTO `json:"vote"`
}

type TallyDTO struct {
	PollID string           `json:"poll_id"`
	Counts map[string]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

type GetTallyResponse struct {
	Tally TallyDTO `json:"tally"`
}

type ListVotesResponse struct {
	Items []VoteDTO `json:"items"`
}

type RebuildTallyResponse struct {
	PollID    string `json:"poll_id"`
	Total     int64  `json:"total"`
	Corrected bool   `json:"corrected"`
}
