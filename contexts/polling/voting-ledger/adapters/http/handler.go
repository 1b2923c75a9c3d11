package httpadapter

import (
	"context"
	"log/slog"

	application "pollledger/contexts/polling/voting-ledger/application"
	"pollledger/contexts/polling/voting-ledger/application/commands"
	"pollledger/contexts/polling/voting-ledger/application/queries"
	"pollledger/contexts/polling/voting-ledger/domain/entities"
	httptransport "pollledger/contexts/polling/voting-ledger/transport/http"
)

type Handler struct {
	Polls      commands.PollManager
	Candidates commands.CandidateLedger
	Queries    queries.LedgerQueries
	Logger     *slog.Logger
}

// CreatePollHandler godoc
// @Summary Create a poll
// @Description Creates a poll with a voting window. Timestamps are Unix seconds; poll_end must be in the future and after poll_start.
// @Tags voting-ledger
// @Accept json
// @Produce json
// @Param request body httptransport.CreatePollRequest true "Poll"
// @Success 201 {object} httptransport.PollResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/polls [post]
func (h Handler) CreatePollHandler(ctx context.Context, req httptransport.CreatePollRequest) (httptransport.PollResponse, error) {
	result, err := h.Polls.CreatePoll(ctx, commands.CreatePollCommand{
		PollID:      req.PollID,
		Description: req.Description,
		PollStart:   req.PollStart,
		PollEnd:     req.PollEnd,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapPoll(result.Poll), nil
}

// GetPollHandler godoc
// @Summary Get a poll
// @Description Returns the stored poll and its state derived from the current time.
// @Tags voting-ledger
// @Produce json
// @Param poll_id path int true "Poll id"
// @Success 200 {object} httptransport.PollResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/polls/{poll_id} [get]
func (h Handler) GetPollHandler(ctx context.Context, pollID uint64) (httptransport.PollResponse, error) {
	view, err := h.Queries.GetPoll(ctx, pollID)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	resp := mapPoll(view.Poll)
	resp.State = string(view.State)
	resp.AsOf = view.AsOf
	return resp, nil
}

// CreateCandidateHandler godoc
// @Summary Register a candidate
// @Description Registers a zero-vote candidate under an existing poll.
// @Tags voting-ledger
// @Accept json
// @Produce json
// @Param poll_id path int true "Poll id"
// @Param request body httptransport.CreateCandidateRequest true "Candidate"
// @Success 201 {object} httptransport.CreateCandidateResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/polls/{poll_id}/candidates [post]
func (h Handler) CreateCandidateHandler(
	ctx context.Context,
	pollID uint64,
	req httptransport.CreateCandidateRequest,
) (httptransport.CreateCandidateResponse, error) {
	result, err := h.Candidates.CreateCandidate(ctx, commands.CreateCandidateCommand{
		PollID:        pollID,
		CandidateName: req.CandidateName,
	})
	if err != nil {
		return httptransport.CreateCandidateResponse{}, err
	}
	return httptransport.CreateCandidateResponse{
		Candidate:       mapCandidate(result.Candidate),
		CandidateAmount: result.CandidateAmount,
	}, nil
}

// ListCandidatesHandler godoc
// @Summary List candidates
// @Description Returns every candidate of a poll with its raw vote counter.
// @Tags voting-ledger
// @Produce json
// @Param poll_id path int true "Poll id"
// @Success 200 {object} httptransport.ListCandidatesResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/polls/{poll_id}/candidates [get]
func (h Handler) ListCandidatesHandler(ctx context.Context, pollID uint64) (httptransport.ListCandidatesResponse, error) {
	items, err := h.Queries.ListCandidates(ctx, pollID)
	if err != nil {
		return httptransport.ListCandidatesResponse{}, err
	}
	resp := httptransport.ListCandidatesResponse{
		PollID: pollID,
		Items:  make([]httptransport.CandidateResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, mapCandidate(item))
	}
	return resp, nil
}

// GetCandidateHandler godoc
// @Summary Get a candidate
// @Tags voting-ledger
// @Produce json
// @Param poll_id path int true "Poll id"
// @Param candidate_name path string true "Candidate name"
// @Success 200 {object} httptransport.CandidateResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/polls/{poll_id}/candidates/{candidate_name} [get]
func (h Handler) GetCandidateHandler(ctx context.Context, pollID uint64, candidateName string) (httptransport.CandidateResponse, error) {
	candidate, err := h.Queries.GetCandidate(ctx, pollID, candidateName)
	if err != nil {
		return httptransport.CandidateResponse{}, err
	}
	return mapCandidate(candidate), nil
}

// VoteHandler godoc
// @Summary Cast a vote
// @Description Adds one vote to the candidate while the poll window is open.
// @Tags voting-ledger
// @Produce json
// @Param poll_id path int true "Poll id"
// @Param candidate_name path string true "Candidate name"
// @Param Idempotency-Key header string false "Retry key; a repeated key replays the first result"
// @Success 200 {object} httptransport.VoteResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/polls/{poll_id}/candidates/{candidate_name}/votes [post]
func (h Handler) VoteHandler(
	ctx context.Context,
	pollID uint64,
	candidateName string,
	idempotencyKey string,
) (httptransport.VoteResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Debug("vote request received",
		"event", "http_vote_received",
		"module", application.ModuleName,
		"layer", "transport",
		"poll_id", pollID,
		"candidate_name", candidateName,
		"has_idempotency_key", idempotencyKey != "",
	)
	result, err := h.Candidates.Vote(ctx, commands.VoteCommand{
		PollID:         pollID,
		CandidateName:  candidateName,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		PollID:         result.Candidate.PollID,
		CandidateName:  result.Candidate.CandidateName,
		CandidateVotes: result.Candidate.CandidateVotes,
		Replayed:       result.Replayed,
	}, nil
}

func mapPoll(poll entities.Poll) httptransport.PollResponse {
	return httptransport.PollResponse{
		PollID:          poll.PollID,
		PollKey:         poll.Key().String(),
		Description:     poll.Description,
		PollStart:       poll.PollStart,
		PollEnd:         poll.PollEnd,
		CandidateAmount: poll.CandidateAmount,
	}
}

func mapCandidate(candidate entities.Candidate) httptransport.CandidateResponse {
	return httptransport.CandidateResponse{
		PollID:         candidate.PollID,
		CandidateName:  candidate.CandidateName,
		CandidateKey:   candidate.Key().String(),
		CandidateVotes: candidate.CandidateVotes,
	}
}
