package httpserver

import (
	"errors"
	"net/http"
	"strings"

	resultserrors "agora/contexts/polling/results-service/domain/errors"
	resultshttp "agora/contexts/polling/results-service/transport/http"
)

func writeResultsError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, resultshttp.ErrorResponse{Code: code, Message: message})
}

func writeResultsDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resultserrors.ErrInvalidResultsInput):
		writeResultsError(w, http.StatusBadRequest, "invalid_results_input", err.Error())
	case errors.Is(err, resultserrors.ErrPollNotFound):
		writeResultsError(w, http.StatusNotFound, "poll_not_found", err.Error())
	default:
		writeResultsError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.results.Handler.GetResultsHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writeResultsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefreshResults(w http.ResponseWriter, r *http.Request) {
	force := strings.EqualFold(r.URL.Query().Get("force"), "true")
	resp, err := s.results.Handler.RefreshResultsHandler(r.Context(), r.PathValue("poll_id"), force)
	if err != nil {
		writeResultsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInvalidateResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.results.Handler.InvalidateResultsHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writeResultsDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
