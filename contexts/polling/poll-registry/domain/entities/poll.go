package entities

import (
	"strings"
	"time"
)

type PollStatus string

const (
	PollStatusOpen   PollStatus = "open"
	PollStatusClosed PollStatus = "closed"
)

type Option struct {
	OptionID string
	PollID   string
	Label    string
	Position int
}

type Poll struct {
	PollID      string
	Title       string
	Description string
	CreatedBy   string
	Options     []Option
	Status      PollStatus
	ClosesAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// AcceptingVotes reports whether a ballot cast at the given instant would be
// admissible. A poll past its scheduled close is treated as closed even if
// the expiry sweep has not transitioned it yet.
func (p Poll) AcceptingVotes(now time.Time) bool {
	if p.Status != PollStatusOpen {
		return false
	}
	if p.ClosesAt != nil && !p.ClosesAt.UTC().After(now.UTC()) {
		return false
	}
	return true
}

func (p Poll) HasOption(optionID string) bool {
	target := strings.TrimSpace(optionID)
	for _, option := range p.Options {
		if option.OptionID == target {
			return true
		}
	}
	return false
}

func (p Poll) ValidateBasics(now time.Time) bool {
	title := strings.TrimSpace(p.Title)
	description := strings.TrimSpace(p.Description)

	return title != "" &&
		len(title) >= 3 &&
		len(title) <= 200 &&
		len(description) <= 2000 &&
		len(p.Options) >= 2 &&
		len(p.Options) <= 20 &&
		AllValidLabels(p.Options) &&
		UniqueLabels(p.Options) &&
		ClosesInFuture(p.ClosesAt, now)
}

func AllValidLabels(options []Option) bool {
	for _, option := range options {
		label := strings.TrimSpace(option.Label)
		if label == "" || len(label) > 200 {
			return false
		}
	}
	return true
}

func UniqueLabels(options []Option) bool {
	seen := make(map[string]struct{}, len(options))
	for _, option := range options {
		key := strings.ToLower(strings.TrimSpace(option.Label))
		if _, exists := seen[key]; exists {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}

func ClosesInFuture(closesAt *time.Time, now time.Time) bool {
	if closesAt == nil {
		return true
	}
	return closesAt.UTC().After(now.UTC())
}
