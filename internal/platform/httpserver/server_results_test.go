package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	resultsports "agora/contexts/polling/results-service/ports"
	resultshttp "agora/contexts/polling/results-service/transport/http"
)

func seedResultsPoll(server *Server, status string, counts map[string]int64, total int64) {
	server.results.Store.SetPollSummary(resultsports.PollSummary{
		PollID: "poll-1",
		Title:  "Team lunch venue",
		Status: status,
		Options: []resultsports.PollOptionSummary{
			{OptionID: "option-a", Label: "Tacos", Position: 0},
			{OptionID: "option-b", Label: "Sushi", Position: 1},
		},
	})
	server.results.Store.SetTally(resultsports.TallySummary{
		PollID: "poll-1",
		Counts: counts,
		Total:  total,
	})
}

func getResults(t *testing.T, server *Server, path string) resultshttp.GetResultsResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp resultshttp.GetResultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode results response: %v", err)
	}
	return resp
}

func TestGetResultsReturnsShares(t *testing.T) {
	server := newTestServer()
	seedResultsPoll(server, "open", map[string]int64{"option-a": 3, "option-b": 1}, 4)

	resp := getResults(t, server, "/api/v1/polls/poll-1/results")
	if resp.Results.PollID != "poll-1" || resp.Results.PollTitle != "Team lunch venue" {
		t.Fatalf("unexpected snapshot header: %+v", resp.Results)
	}
	if resp.Results.TotalVotes != 4 {
		t.Fatalf("expected 4 total votes, got %d", resp.Results.TotalVotes)
	}
	if len(resp.Results.Options) != 2 {
		t.Fatalf("expected 2 option rows, got %d", len(resp.Results.Options))
	}
	if resp.Results.Options[0].VoteCount != 3 || resp.Results.Options[0].Percentage != 75 {
		t.Fatalf("unexpected leading option: %+v", resp.Results.Options[0])
	}
	if resp.Results.Options[1].VoteCount != 1 || resp.Results.Options[1].Percentage != 25 {
		t.Fatalf("unexpected trailing option: %+v", resp.Results.Options[1])
	}
	if resp.Results.Stale || resp.Results.Final {
		t.Fatalf("open poll snapshot must be live: %+v", resp.Results)
	}
	if resp.Results.ComputedAt == "" {
		t.Fatal("expected computed_at to be set")
	}
}

func TestGetResultsUnknownPoll(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/polls/poll-missing/results", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}

	var errResp resultshttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "poll_not_found" {
		t.Fatalf("expected poll_not_found, got %q", errResp.Code)
	}
}

func TestRefreshResultsForceFinalizesClosedPoll(t *testing.T) {
	server := newTestServer()
	seedResultsPoll(server, "closed", map[string]int64{"option-a": 3, "option-b": 1}, 4)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls/poll-1/results/refresh?force=true", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp resultshttp.RefreshResultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode refresh response: %v", err)
	}
	if !resp.Refreshed {
		t.Fatal("expected forced refresh to recompute")
	}
	if !resp.Results.Final {
		t.Fatalf("expected closed poll snapshot to be final: %+v", resp.Results)
	}
	if resp.Results.TotalVotes != 4 {
		t.Fatalf("expected 4 total votes, got %d", resp.Results.TotalVotes)
	}
}

func TestInvalidateResultsDropsCachedSnapshot(t *testing.T) {
	server := newTestServer()
	seedResultsPoll(server, "open", map[string]int64{"option-a": 3, "option-b": 1}, 4)

	if resp := getResults(t, server, "/api/v1/polls/poll-1/results"); resp.Results.TotalVotes != 4 {
		t.Fatalf("warmup returned %d votes", resp.Results.TotalVotes)
	}

	// A cached snapshot keeps serving even after the tally moves on.
	server.results.Store.SetTally(resultsports.TallySummary{
		PollID: "poll-1",
		Counts: map[string]int64{"option-a": 4, "option-b": 1},
		Total:  5,
	})
	if resp := getResults(t, server, "/api/v1/polls/poll-1/results"); resp.Results.TotalVotes != 4 {
		t.Fatalf("expected cached snapshot with 4 votes, got %d", resp.Results.TotalVotes)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls/poll-1/results/invalidate", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp resultshttp.InvalidateResultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode invalidate response: %v", err)
	}
	if !resp.Invalidated || resp.PollID != "poll-1" {
		t.Fatalf("unexpected invalidate response: %+v", resp)
	}

	if after := getResults(t, server, "/api/v1/polls/poll-1/results"); after.Results.TotalVotes != 5 {
		t.Fatalf("expected recompute with 5 votes after invalidate, got %d", after.Results.TotalVotes)
	}
}

func TestLegacyResultsRoute(t *testing.T) {
	server := newTestServer()
	seedResultsPoll(server, "open", map[string]int64{"option-a": 1, "option-b": 1}, 2)

	resp := getResults(t, server, "/polls/poll-1/results")
	if resp.Results.TotalVotes != 2 {
		t.Fatalf("expected 2 total votes on legacy route, got %d", resp.Results.TotalVotes)
	}
	if resp.Results.Options[0].Percentage != 50 || resp.Results.Options[1].Percentage != 50 {
		t.Fatalf("unexpected shares: %+v", resp.Results.Options)
	}
}
