package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePollRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
	ClosesAt    string   `json:"closes_at"`
}

type PollOptionDTO struct {
	OptionID string `json:"option_id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

type PollDTO struct {
	PollID      string          `json:"poll_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	CreatedBy   string          `json:"created_by"`
	Options     []PollOptionDTO `json:"options"`
	Status      string          `json:"status"`
	ClosesAt    string          `json:"closes_at,omitempty"`
	ClosedAt    string          `json:"closed_at,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type CreatePollResponse struct {
	Poll     PollDTO `json:"poll"`
	Replayed bool    `json:"replayed"`
}

type GetPollResponse struct {
	Poll PollDTO `json:"poll"`
}

type ListPollsResponse struct {
	Items []PollDTO `json:"items"`
}

type ClosePollResponse struct {
	Poll PollDTO `json:"poll"`
}
