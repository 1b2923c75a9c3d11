package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	ledgererrors "pollledger/contexts/polling/voting-ledger/domain/errors"
	ledgerhttp "pollledger/contexts/polling/voting-ledger/transport/http"
)

const maxLedgerBodyBytes = 64 << 10

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req ledgerhttp.CreatePollRequest
	if !decodeLedgerBody(w, r, &req) {
		return
	}

	resp, err := s.ledger.Handler.CreatePollHandler(r.Context(), req)
	if err != nil {
		s.logLedgerFailure(r, "http_create_poll_failed", err)
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parseLedgerPollID(w, r)
	if !ok {
		return
	}

	resp, err := s.ledger.Handler.GetPollHandler(r.Context(), pollID)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parseLedgerPollID(w, r)
	if !ok {
		return
	}
	var req ledgerhttp.CreateCandidateRequest
	if !decodeLedgerBody(w, r, &req) {
		return
	}

	resp, err := s.ledger.Handler.CreateCandidateHandler(r.Context(), pollID, req)
	if err != nil {
		s.logLedgerFailure(r, "http_create_candidate_failed", err)
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parseLedgerPollID(w, r)
	if !ok {
		return
	}

	resp, err := s.ledger.Handler.ListCandidatesHandler(r.Context(), pollID)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parseLedgerPollID(w, r)
	if !ok {
		return
	}

	resp, err := s.ledger.Handler.GetCandidateHandler(r.Context(), pollID, r.PathValue("candidate_name"))
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parseLedgerPollID(w, r)
	if !ok {
		return
	}

	resp, err := s.ledger.Handler.VoteHandler(
		r.Context(),
		pollID,
		r.PathValue("candidate_name"),
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		s.logLedgerFailure(r, "http_vote_failed", err)
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) logLedgerFailure(r *http.Request, event string, err error) {
	s.logger.Warn("ledger request failed",
		"event", event,
		"module", "internal/platform/httpserver",
		"layer", "transport",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err.Error(),
	)
}

func parseLedgerPollID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := strings.TrimSpace(r.PathValue("poll_id"))
	pollID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_poll_id", "poll_id must be an unsigned 64-bit integer")
		return 0, false
	}
	return pollID, true
}

func decodeLedgerBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLedgerBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeLedgerError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeLedgerDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledgererrors.ErrInvalidDescription):
		writeLedgerError(w, http.StatusBadRequest, "invalid_description", err.Error())
	case errors.Is(err, ledgererrors.ErrInvalidCandidateName):
		writeLedgerError(w, http.StatusBadRequest, "invalid_candidate_name", err.Error())
	case errors.Is(err, ledgererrors.ErrInvalidTimestamp):
		writeLedgerError(w, http.StatusBadRequest, "invalid_timestamp", err.Error())
	case errors.Is(err, ledgererrors.ErrPollEndInPast):
		writeLedgerError(w, http.StatusBadRequest, "poll_end_in_past", err.Error())
	case errors.Is(err, ledgererrors.ErrInvalidWindow):
		writeLedgerError(w, http.StatusBadRequest, "invalid_window", err.Error())
	case errors.Is(err, ledgererrors.ErrPollNotFound):
		writeLedgerError(w, http.StatusNotFound, "poll_not_found", err.Error())
	case errors.Is(err, ledgererrors.ErrCandidateNotFound):
		writeLedgerError(w, http.StatusNotFound, "candidate_not_found", err.Error())
	case errors.Is(err, ledgererrors.ErrPollAlreadyExists):
		writeLedgerError(w, http.StatusConflict, "poll_already_exists", err.Error())
	case errors.Is(err, ledgererrors.ErrCandidateAlreadyExists):
		writeLedgerError(w, http.StatusConflict, "candidate_already_exists", err.Error())
	case errors.Is(err, ledgererrors.ErrPollNotStarted):
		writeLedgerError(w, http.StatusConflict, "poll_not_started", err.Error())
	case errors.Is(err, ledgererrors.ErrPollEnded):
		writeLedgerError(w, http.StatusConflict, "poll_ended", err.Error())
	case errors.Is(err, ledgererrors.ErrIdempotencyConflict):
		writeLedgerError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, ledgererrors.ErrConflict):
		writeLedgerError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeLedgerError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
