package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type OptionResultDTO struct {
	OptionID   string  `json:"option_id"`
	Label      string  `json:"label"`
	Position   int     `json:"position"`
	VoteCount  int64   `json:"vote_count"`
	Percentage float64 `json:"percentage"`
}

type ResultSnapshotDTO struct {
	PollID     string            `json:"poll_id"`
	PollTitle  string            `json:"poll_title"`
	TotalVotes int64             `json:"total_votes"`
	Options    []OptionResultDTO `json:"options"`
	ComputedAt string            `json:"computed_at"`
	Stale      bool              `json:"stale"`
	Final      bool              `json:"final"`
}

type GetResultsResponse struct {
	Results ResultSnapshotDTO `json:"results"`
}

type RefreshResultsResponse struct {
	Results   ResultSnapshotDTO `json:"results"`
	Refreshed bool              `json:"refreshed"`
}

type InvalidateResultsResponse struct {
	PollID      string `json:"poll_id"`
	Invalidated bool   `json:"invalidated"`
}
