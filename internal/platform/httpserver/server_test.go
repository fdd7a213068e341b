package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pollregistry "agora/contexts/polling/poll-registry"
	registryhttp "agora/contexts/polling/poll-registry/transport/http"
	resultsservice "agora/contexts/polling/results-service"
	votingengine "agora/contexts/polling/voting-engine"
)

func newTestServer() *Server {
	return New(
		pollregistry.NewInMemoryModule(nil, slog.Default()),
		votingengine.NewInMemoryModule(nil, slog.Default()),
		resultsservice.NewInMemoryModule(nil, slog.Default()),
		slog.Default(),
		":0",
		"test-voter-salt",
	)
}

func createPoll(t *testing.T, server *Server, idemKey string, body string) registryhttp.CreatePollResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("Idempotency-Key", idemKey)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp registryhttp.CreatePollResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create poll response: %v", err)
	}
	return resp
}

func TestCreatePollReturnsPollWithOptionIDs(t *testing.T) {
	server := newTestServer()
	resp := createPoll(t, server, "idem-1", `{"title":"Team lunch venue","options":["Tacos","Sushi"]}`)

	if resp.Poll.PollID == "" {
		t.Fatal("expected a poll id")
	}
	if resp.Poll.Status != "open" {
		t.Fatalf("expected open status, got %q", resp.Poll.Status)
	}
	if resp.Replayed {
		t.Fatal("fresh create must not be marked replayed")
	}
	if len(resp.Poll.Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(resp.Poll.Options))
	}
	for i, option := range resp.Poll.Options {
		if option.OptionID == "" {
			t.Fatalf("option %d has no id", i)
		}
	}
	if resp.Poll.Options[0].Label != "Tacos" || resp.Poll.Options[1].Label != "Sushi" {
		t.Fatalf("options out of submission order: %+v", resp.Poll.Options)
	}
}

func TestCreatePollRequiresUserHeader(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls", strings.NewReader(`{"title":"Team lunch venue","options":["Tacos","Sushi"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "idem-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePollRequiresIdempotencyKey(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls", strings.NewReader(`{"title":"Team lunch venue","options":["Tacos","Sushi"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}

	var errResp registryhttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "idempotency_key_required" {
		t.Fatalf("expected idempotency_key_required, got %q", errResp.Code)
	}
}

func TestCreatePollRejectsMalformedJSON(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls", strings.NewReader(`{"title":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("Idempotency-Key", "idem-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePollReplayedRequestReturnsOK(t *testing.T) {
	server := newTestServer()
	body := `{"title":"Team lunch venue","options":["Tacos","Sushi"]}`
	first := createPoll(t, server, "idem-replay", body)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("Idempotency-Key", "idem-replay")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var second registryhttp.CreatePollResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode replay response: %v", err)
	}
	if !second.Replayed {
		t.Fatal("expected replayed flag on repeated create")
	}
	if second.Poll.PollID != first.Poll.PollID {
		t.Fatalf("replay returned a different poll: %s vs %s", second.Poll.PollID, first.Poll.PollID)
	}
}

func TestCreatePollIdempotencyKeyConflict(t *testing.T) {
	server := newTestServer()
	createPoll(t, server, "idem-conflict", `{"title":"Team lunch venue","options":["Tacos","Sushi"]}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/polls", strings.NewReader(`{"title":"Team offsite city","options":["Lisbon","Prague"]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("Idempotency-Key", "idem-conflict")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}

	var errResp registryhttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "idempotency_conflict" {
		t.Fatalf("expected idempotency_conflict, got %q", errResp.Code)
	}
}

func TestGetPollRoundTrip(t *testing.T) {
	server := newTestServer()
	created := createPoll(t, server, "idem-get", `{"title":"Team lunch venue","options":["Tacos","Sushi"]}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/polls/"+created.Poll.PollID, nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp registryhttp.GetPollResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode get poll response: %v", err)
	}
	if resp.Poll.Title != "Team lunch venue" {
		t.Fatalf("unexpected poll title %q", resp.Poll.Title)
	}
	if resp.Poll.CreatedBy != "user-1" {
		t.Fatalf("unexpected creator %q", resp.Poll.CreatedBy)
	}
}

func TestGetPollUnknownID(t *testing.T) {
	server := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/polls/poll-missing", nil)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestClosePollLifecycle(t *testing.T) {
	server := newTestServer()
	created := createPoll(t, server, "idem-close", `{"title":"Team lunch venue","options":["Tacos","Sushi"]}`)
	closePath := "/api/v1/polls/" + created.Poll.PollID + "/close"

	anon := httptest.NewRequest(http.MethodPost, closePath, nil)
	anonRR := httptest.NewRecorder()
	server.mux.ServeHTTP(anonRR, anon)
	if anonRR.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user header, got %d body=%s", anonRR.Code, anonRR.Body.String())
	}

	stranger := httptest.NewRequest(http.MethodPost, closePath, nil)
	stranger.Header.Set("X-User-Id", "user-2")
	strangerRR := httptest.NewRecorder()
	server.mux.ServeHTTP(strangerRR, stranger)
	if strangerRR.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-creator, got %d body=%s", strangerRR.Code, strangerRR.Body.String())
	}

	creator := httptest.NewRequest(http.MethodPost, closePath, nil)
	creator.Header.Set("X-User-Id", "user-1")
	creatorRR := httptest.NewRecorder()
	server.mux.ServeHTTP(creatorRR, creator)
	if creatorRR.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", creatorRR.Code, creatorRR.Body.String())
	}

	var resp registryhttp.ClosePollResponse
	if err := json.Unmarshal(creatorRR.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode close poll response: %v", err)
	}
	if resp.Poll.Status != "closed" {
		t.Fatalf("expected closed status, got %q", resp.Poll.Status)
	}
	if resp.Poll.ClosedAt == "" {
		t.Fatal("expected closed_at to be set")
	}

	again := httptest.NewRequest(http.MethodPost, closePath, nil)
	again.Header.Set("X-User-Id", "user-1")
	againRR := httptest.NewRecorder()
	server.mux.ServeHTTP(againRR, again)
	if againRR.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second close, got %d body=%s", againRR.Code, againRR.Body.String())
	}
}

func TestListPollsFiltersByStatus(t *testing.T) {
	server := newTestServer()
	first := createPoll(t, server, "idem-list-1", `{"title":"Team lunch venue","options":["Tacos","Sushi"]}`)
	createPoll(t, server, "idem-list-2", `{"title":"Team offsite city","options":["Lisbon","Prague"]}`)

	closeReq := httptest.NewRequest(http.MethodPost, "/api/v1/polls/"+first.Poll.PollID+"/close", nil)
	closeReq.Header.Set("X-User-Id", "user-1")
	closeRR := httptest.NewRecorder()
	server.mux.ServeHTTP(closeRR, closeReq)
	if closeRR.Code != http.StatusOK {
		t.Fatalf("close failed: %d body=%s", closeRR.Code, closeRR.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/polls?status=open", nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp registryhttp.ListPollsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list polls response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 open poll, got %d", len(resp.Items))
	}
	if resp.Items[0].Title != "Team offsite city" {
		t.Fatalf("unexpected open poll: %+v", resp.Items[0])
	}
}

func TestLegacyPollRoutesServeSameModule(t *testing.T) {
	server := newTestServer()
	created := createPoll(t, server, "idem-legacy", `{"title":"Team lunch venue","options":["Tacos","Sushi"]}`)

	req := httptest.NewRequest(http.MethodGet, "/polls/"+created.Poll.PollID, nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on legacy route, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp registryhttp.GetPollResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode get poll response: %v", err)
	}
	if resp.Poll.PollID != created.Poll.PollID {
		t.Fatalf("legacy route returned a different poll: %s vs %s", resp.Poll.PollID, created.Poll.PollID)
	}
}
