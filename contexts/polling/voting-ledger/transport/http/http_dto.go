package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatePollRequest carries Unix-second timestamps.
type CreatePollRequest struct {
	PollID      uint64 `json:"poll_id"`
	Description string `json:"description"`
	PollStart   uint64 `json:"poll_start"`
	PollEnd     uint64 `json:"poll_end"`
}

type PollResponse struct {
	PollID          uint64 `json:"poll_id"`
	PollKey         string `json:"poll_key"`
	Description     string `json:"description"`
	PollStart       uint64 `json:"poll_start"`
	PollEnd         uint64 `json:"poll_end"`
	CandidateAmount uint64 `json:"candidate_amount"`
	State           string `json:"state,omitempty"`
	AsOf            uint64 `json:"as_of,omitempty"`
}

type CreateCandidateRequest struct {
	CandidateName string `json:"candidate_name"`
}

type CandidateResponse struct {
	PollID         uint64 `json:"poll_id"`
	CandidateName  string `json:"candidate_name"`
	CandidateKey   string `json:"candidate_key"`
	CandidateVotes uint64 `json:"candidate_votes"`
}

type CreateCandidateResponse struct {
	Candidate       CandidateResponse `json:"candidate"`
	CandidateAmount uint64            `json:"candidate_amount"`
}

type ListCandidatesResponse struct {
	PollID uint64              `json:"poll_id"`
	Items  []CandidateResponse `json:"items"`
}

type VoteResponse struct {
	PollID         uint64 `json:"poll_id"`
	CandidateName  string `json:"candidate_name"`
	CandidateVotes uint64 `json:"candidate_votes"`
	Replayed       bool   `json:"replayed"`
}
