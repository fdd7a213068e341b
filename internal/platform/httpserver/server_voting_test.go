package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	votingports "agora/contexts/polling/voting-engine/ports"
	votinghttp "agora/contexts/polling/voting-engine/transport/http"
)

func seedVotingPoll(server *Server, pollID string, status string, optionIDs ...string) {
	server.voting.Store.SetPollState(votingports.PollState{
		PollID:    pollID,
		Status:    status,
		OptionIDs: optionIDs,
	})
}

func castVote(t *testing.T, server *Server, pollID string, voterID string, optionID string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls/"+pollID+"/votes", strings.NewReader(`{"option_id":"`+optionID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	if voterID != "" {
		req.Header.Set("X-Voter-Id", voterID)
	}

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func TestCastVoteRecordsBallot(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "open", "option-a", "option-b")

	rr := castVote(t, server, "poll-1", "voter-1", "option-a")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp votinghttp.CastVoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode cast vote response: %v", err)
	}
	if resp.Vote.PollID != "poll-1" || resp.Vote.OptionID != "option-a" {
		t.Fatalf("unexpected vote: %+v", resp.Vote)
	}
	if resp.Vote.VoterID != "voter-1" {
		t.Fatalf("expected header voter id, got %q", resp.Vote.VoterID)
	}
	if resp.Vote.VoteID == "" {
		t.Fatal("expected a vote id")
	}
	if resp.Vote.Position != 1 {
		t.Fatalf("expected first ballot at position 1, got %d", resp.Vote.Position)
	}
}

func TestCastVoteSecondBallotConflicts(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "open", "option-a", "option-b")

	if rr := castVote(t, server, "poll-1", "voter-1", "option-a"); rr.Code != http.StatusCreated {
		t.Fatalf("first ballot failed: %d body=%s", rr.Code, rr.Body.String())
	}

	rr := castVote(t, server, "poll-1", "voter-1", "option-b")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}

	var errResp votinghttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "duplicate_vote" {
		t.Fatalf("expected duplicate_vote, got %q", errResp.Code)
	}
}

func TestCastVoteClosedPollForbidden(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "closed", "option-a")

	rr := castVote(t, server, "poll-1", "voter-1", "option-a")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCastVoteOptionNotInPoll(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "open", "option-a")

	rr := castVote(t, server, "poll-1", "voter-1", "option-z")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}

	var errResp votinghttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "option_not_found" {
		t.Fatalf("expected option_not_found, got %q", errResp.Code)
	}
}

func TestCastVoteUnknownPoll(t *testing.T) {
	server := newTestServer()

	rr := castVote(t, server, "poll-missing", "voter-1", "option-a")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}

	var errResp votinghttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "poll_not_found" {
		t.Fatalf("expected poll_not_found, got %q", errResp.Code)
	}
}

func TestCastVoteRejectsMalformedJSON(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "open", "option-a")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls/poll-1/votes", strings.NewReader(`{"option_id":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Voter-Id", "voter-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetTallyCountsBallots(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "open", "option-a", "option-b")
	for _, cast := range []struct{ voter, option string }{
		{"voter-1", "option-a"},
		{"voter-2", "option-a"},
		{"voter-3", "option-b"},
	} {
		if rr := castVote(t, server, "poll-1", cast.voter, cast.option); rr.Code != http.StatusCreated {
			t.Fatalf("cast by %s failed: %d body=%s", cast.voter, rr.Code, rr.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/polls/poll-1/tally", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp votinghttp.GetTallyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode tally response: %v", err)
	}
	if resp.Tally.Total != 3 {
		t.Fatalf("expected total 3, got %d", resp.Tally.Total)
	}
	if resp.Tally.Counts["option-a"] != 2 || resp.Tally.Counts["option-b"] != 1 {
		t.Fatalf("unexpected counts: %+v", resp.Tally.Counts)
	}
}

func TestListVotesKeepsLedgerOrder(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "open", "option-a", "option-b")
	for _, cast := range []struct{ voter, option string }{
		{"voter-1", "option-a"},
		{"voter-2", "option-b"},
	} {
		if rr := castVote(t, server, "poll-1", cast.voter, cast.option); rr.Code != http.StatusCreated {
			t.Fatalf("cast by %s failed: %d body=%s", cast.voter, rr.Code, rr.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/polls/poll-1/votes", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp votinghttp.ListVotesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list votes response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 votes, got %d", len(resp.Items))
	}
	for i := 1; i < len(resp.Items); i++ {
		if resp.Items[i].Position <= resp.Items[i-1].Position {
			t.Fatalf("positions out of order: %+v", resp.Items)
		}
	}
}

func TestRebuildTallyRepairsDriftOverHTTP(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "open", "option-a", "option-b")
	if rr := castVote(t, server, "poll-1", "voter-1", "option-a"); rr.Code != http.StatusCreated {
		t.Fatalf("cast failed: %d body=%s", rr.Code, rr.Body.String())
	}
	if err := server.voting.Store.IncrementOption(context.Background(), "poll-1", "option-a"); err != nil {
		t.Fatalf("inject drift: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls/poll-1/tally/rebuild", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp votinghttp.RebuildTallyResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode rebuild response: %v", err)
	}
	if !resp.Corrected {
		t.Fatal("expected rebuild to report a correction")
	}
	if resp.Total != 1 {
		t.Fatalf("expected total 1 after rebuild, got %d", resp.Total)
	}
}

func TestAnonymousVoterFingerprintIsStablePerAgent(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "open", "option-a", "option-b")

	first := httptest.NewRequest(http.MethodPost, "/api/v1/polls/poll-1/votes", strings.NewReader(`{"option_id":"option-a"}`))
	first.Header.Set("Content-Type", "application/json")
	first.Header.Set("User-Agent", "agent-one")
	firstRR := httptest.NewRecorder()
	server.mux.ServeHTTP(firstRR, first)
	if firstRR.Code != http.StatusCreated {
		t.Fatalf("first anonymous ballot failed: %d body=%s", firstRR.Code, firstRR.Body.String())
	}

	var resp votinghttp.CastVoteResponse
	if err := json.Unmarshal(firstRR.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode cast vote response: %v", err)
	}
	if !strings.HasPrefix(resp.Vote.VoterID, "anon-") {
		t.Fatalf("expected derived anonymous voter id, got %q", resp.Vote.VoterID)
	}

	repeat := httptest.NewRequest(http.MethodPost, "/api/v1/polls/poll-1/votes", strings.NewReader(`{"option_id":"option-b"}`))
	repeat.Header.Set("Content-Type", "application/json")
	repeat.Header.Set("User-Agent", "agent-one")
	repeatRR := httptest.NewRecorder()
	server.mux.ServeHTTP(repeatRR, repeat)
	if repeatRR.Code != http.StatusConflict {
		t.Fatalf("expected 409 for repeat anonymous ballot, got %d body=%s", repeatRR.Code, repeatRR.Body.String())
	}

	other := httptest.NewRequest(http.MethodPost, "/api/v1/polls/poll-1/votes", strings.NewReader(`{"option_id":"option-b"}`))
	other.Header.Set("Content-Type", "application/json")
	other.Header.Set("User-Agent", "agent-two")
	otherRR := httptest.NewRecorder()
	server.mux.ServeHTTP(otherRR, other)
	if otherRR.Code != http.StatusCreated {
		t.Fatalf("expected distinct agent to get its own ballot, got %d body=%s", otherRR.Code, otherRR.Body.String())
	}
}

func TestAnonymousVoterUsesForwardedForAddress(t *testing.T) {
	server := newTestServer()
	seedVotingPoll(server, "poll-1", "open", "option-a", "option-b")

	first := httptest.NewRequest(http.MethodPost, "/api/v1/polls/poll-1/votes", strings.NewReader(`{"option_id":"option-a"}`))
	first.Header.Set("Content-Type", "application/json")
	first.Header.Set("User-Agent", "agent-one")
	first.Header.Set("X-Forwarded-For", "203.0.113.7, 198.51.100.2")
	firstRR := httptest.NewRecorder()
	server.mux.ServeHTTP(firstRR, first)
	if firstRR.Code != http.StatusCreated {
		t.Fatalf("first ballot failed: %d body=%s", firstRR.Code, firstRR.Body.String())
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/polls/poll-1/votes", strings.NewReader(`{"option_id":"option-b"}`))
	second.Header.Set("Content-Type", "application/json")
	second.Header.Set("User-Agent", "agent-one")
	second.Header.Set("X-Forwarded-For", "203.0.113.8, 198.51.100.2")
	secondRR := httptest.NewRecorder()
	server.mux.ServeHTTP(secondRR, second)
	if secondRR.Code != http.StatusCreated {
		t.Fatalf("expected distinct forwarded address to get its own ballot, got %d body=%s", secondRR.Code, secondRR.Body.String())
	}
}
