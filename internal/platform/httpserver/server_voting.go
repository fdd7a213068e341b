package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	votingerrors "agora/contexts/polling/voting-engine/domain/errors"
	votinghttp "agora/contexts/polling/voting-engine/transport/http"
)

func writeVotingError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, votinghttp.ErrorResponse{Code: code, Message: message})
}

func writeVotingDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, votingerrors.ErrInvalidVoteInput):
		writeVotingError(w, http.StatusBadRequest, "invalid_vote_input", err.Error())
	case errors.Is(err, votingerrors.ErrPollNotFound):
		writeVotingError(w, http.StatusNotFound, "poll_not_found", err.Error())
	case errors.Is(err, votingerrors.ErrOptionNotInPoll):
		writeVotingError(w, http.StatusNotFound, "option_not_found", err.Error())
	case errors.Is(err, votingerrors.ErrPollClosed):
		writeVotingError(w, http.StatusForbidden, "poll_closed", err.Error())
	case errors.Is(err, votingerrors.ErrDuplicateVote):
		writeVotingError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, votingerrors.ErrStorageUnavailable):
		writeVotingError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
	case errors.Is(err, votingerrors.ErrTallyDrift):
		writeVotingError(w, http.StatusInternalServerError, "tally_drift", err.Error())
	default:
		writeVotingError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req votinghttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotingError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.voting.Handler.CastVoteHandler(
		r.Context(),
		s.resolveVoterID(r),
		r.PathValue("poll_id"),
		req,
	)
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetTally(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.GetTallyHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.ListVotesHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRebuildTally(w http.ResponseWriter, r *http.Request) {
	resp, err := s.voting.Handler.RebuildTallyHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writeVotingDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
