package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	pollregistry "agora/contexts/polling/poll-registry"
	registryerrors "agora/contexts/polling/poll-registry/domain/errors"
	registryhttp "agora/contexts/polling/poll-registry/transport/http"
	resultsservice "agora/contexts/polling/results-service"
	votingengine "agora/contexts/polling/voting-engine"
	_ "agora/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	voterSalt string
	registry  pollregistry.Module
	voting    votingengine.Module
	results   resultsservice.Module
}

func New(
	registry pollregistry.Module,
	voting votingengine.Module,
	results resultsservice.Module,
	logger *slog.Logger,
	addr string,
	voterSalt string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		voterSalt: voterSalt,
		registry:  registry,
		voting:    voting,
		results:   results,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /polls", s.handleCreatePoll)
	s.mux.HandleFunc("GET /polls", s.handleListPolls)
	s.mux.HandleFunc("GET /polls/{poll_id}", s.handleGetPoll)
	s.mux.HandleFunc("POST /polls/{poll_id}/close", s.handleClosePoll)
	s.mux.HandleFunc("POST /polls/{poll_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /polls/{poll_id}/votes", s.handleListVotes)
	s.mux.HandleFunc("GET /polls/{poll_id}/results", s.handleGetResults)

	s.mux.HandleFunc("POST /api/v1/polls", s.handleCreatePoll)
	s.mux.HandleFunc("GET /api/v1/polls", s.handleListPolls)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}", s.handleGetPoll)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/close", s.handleClosePoll)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}/votes", s.handleListVotes)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}/tally", s.handleGetTally)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/tally/rebuild", s.handleRebuildTally)
	s.mux.HandleFunc("GET /api/v1/polls/{poll_id}/results", s.handleGetResults)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/results/refresh", s.handleRefreshResults)
	s.mux.HandleFunc("POST /api/v1/polls/{poll_id}/results/invalidate", s.handleInvalidateResults)
}

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeRegistryError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req registryhttp.CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRegistryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.registry.Handler.CreatePollHandler(
		r.Context(),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListPolls(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.registry.Handler.ListPollsHandler(
		r.Context(),
		query.Get("created_by"),
		query.Get("status"),
	)
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.registry.Handler.GetPollHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClosePoll(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeRegistryError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.registry.Handler.ClosePollHandler(r.Context(), userID, r.PathValue("poll_id"))
	if err != nil {
		writeRegistryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRegistryDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registryerrors.ErrInvalidPollInput):
		writeRegistryError(w, http.StatusBadRequest, "invalid_poll_input", err.Error())
	case errors.Is(err, registryerrors.ErrIdempotencyKeyRequired):
		writeRegistryError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, registryerrors.ErrPollNotFound):
		writeRegistryError(w, http.StatusNotFound, "poll_not_found", err.Error())
	case errors.Is(err, registryerrors.ErrPollAlreadyClosed):
		writeRegistryError(w, http.StatusConflict, "poll_already_closed", err.Error())
	case errors.Is(err, registryerrors.ErrIdempotencyKeyConflict):
		writeRegistryError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	default:
		writeRegistryError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRegistryError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, registryhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
