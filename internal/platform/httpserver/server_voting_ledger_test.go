package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	votingledger "pollledger/contexts/polling/voting-ledger"
	ledgerhttp "pollledger/contexts/polling/voting-ledger/transport/http"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

const testNow = 1_700_000_000

func newTestServer() (*Server, *testClock) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &testClock{now: time.Unix(testNow, 0).UTC()}
	module := votingledger.NewInMemoryModule(logger)
	module.Store.UseClock(clock)
	return New(module, logger, ":0"), clock
}

func doJSON(t *testing.T, server *Server, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v body=%s", err, rr.Body.String())
	}
}

func createTestPoll(t *testing.T, server *Server, pollID uint64) {
	t.Helper()
	rr := doJSON(t, server, http.MethodPost, "/v1/polls", ledgerhttp.CreatePollRequest{
		PollID:      pollID,
		Description: "Favorite color",
		PollStart:   testNow + 10,
		PollEnd:     testNow + 100,
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLedgerHTTPFlow(t *testing.T) {
	server, clock := newTestServer()
	createTestPoll(t, server, 1)

	for _, name := range []string{"Pink", "Blue"} {
		rr := doJSON(t, server, http.MethodPost, "/v1/polls/1/candidates", ledgerhttp.CreateCandidateRequest{CandidateName: name}, nil)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201 for %s, got %d body=%s", name, rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, server, http.MethodPost, "/v1/polls/1/candidates/Pink/votes", nil, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 before start, got %d body=%s", rr.Code, rr.Body.String())
	}
	var errResp ledgerhttp.ErrorResponse
	decodeInto(t, rr, &errResp)
	if errResp.Code != "poll_not_started" {
		t.Fatalf("expected poll_not_started, got %s", errResp.Code)
	}

	clock.Set(time.Unix(testNow+10, 0).UTC())
	rr = doJSON(t, server, http.MethodPost, "/v1/polls/1/candidates/Pink/votes", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var vote ledgerhttp.VoteResponse
	decodeInto(t, rr, &vote)
	if vote.CandidateVotes != 1 || vote.Replayed {
		t.Fatalf("unexpected vote response %+v", vote)
	}

	rr = doJSON(t, server, http.MethodGet, "/v1/polls/1", nil, nil)
	var poll ledgerhttp.PollResponse
	decodeInto(t, rr, &poll)
	if poll.State != "open" || poll.CandidateAmount != 2 || poll.PollKey != "0100000000000000" {
		t.Fatalf("unexpected poll response %+v", poll)
	}

	rr = doJSON(t, server, http.MethodGet, "/v1/polls/1/candidates", nil, nil)
	var list ledgerhttp.ListCandidatesResponse
	decodeInto(t, rr, &list)
	if len(list.Items) != 2 || list.Items[0].CandidateName != "Pink" || list.Items[0].CandidateVotes != 1 {
		t.Fatalf("unexpected candidate list %+v", list)
	}

	clock.Set(time.Unix(testNow+101, 0).UTC())
	rr = doJSON(t, server, http.MethodPost, "/v1/polls/1/candidates/Blue/votes", nil, nil)
	decodeInto(t, rr, &errResp)
	if rr.Code != http.StatusConflict || errResp.Code != "poll_ended" {
		t.Fatalf("expected poll_ended, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLedgerHTTPErrorMapping(t *testing.T) {
	server, _ := newTestServer()
	createTestPoll(t, server, 7)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"bad poll id", http.MethodGet, "/v1/polls/abc", nil, http.StatusBadRequest, "invalid_poll_id"},
		{"negative poll id", http.MethodGet, "/v1/polls/-1", nil, http.StatusBadRequest, "invalid_poll_id"},
		{"unknown poll", http.MethodGet, "/v1/polls/8", nil, http.StatusNotFound, "poll_not_found"},
		{"duplicate poll", http.MethodPost, "/v1/polls", ledgerhttp.CreatePollRequest{
			PollID: 7, Description: "again", PollStart: testNow + 10, PollEnd: testNow + 100,
		}, http.StatusConflict, "poll_already_exists"},
		{"end in past", http.MethodPost, "/v1/polls", ledgerhttp.CreatePollRequest{
			PollID: 9, Description: "late", PollStart: testNow - 100, PollEnd: testNow - 10,
		}, http.StatusBadRequest, "poll_end_in_past"},
		{"candidate on unknown poll", http.MethodPost, "/v1/polls/8/candidates",
			ledgerhttp.CreateCandidateRequest{CandidateName: "Pink"}, http.StatusNotFound, "poll_not_found"},
		{"empty candidate name", http.MethodPost, "/v1/polls/7/candidates",
			ledgerhttp.CreateCandidateRequest{CandidateName: ""}, http.StatusBadRequest, "invalid_candidate_name"},
		{"unknown candidate", http.MethodGet, "/v1/polls/7/candidates/Green", nil, http.StatusNotFound, "candidate_not_found"},
		{"list on unknown poll", http.MethodGet, "/v1/polls/8/candidates", nil, http.StatusNotFound, "poll_not_found"},
	}
	for _, tc := range cases {
		rr := doJSON(t, server, tc.method, tc.path, tc.body, nil)
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d body=%s", tc.name, tc.status, rr.Code, rr.Body.String())
		}
		var resp ledgerhttp.ErrorResponse
		decodeInto(t, rr, &resp)
		if resp.Code != tc.code {
			t.Fatalf("%s: expected code %s, got %s", tc.name, tc.code, resp.Code)
		}
	}
}

func TestLedgerHTTPRejectsMalformedBody(t *testing.T) {
	server, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/polls", bytes.NewBufferString(`{"poll_id":`))
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLedgerHTTPVoteIdempotencyKey(t *testing.T) {
	server, clock := newTestServer()
	createTestPoll(t, server, 3)
	rr := doJSON(t, server, http.MethodPost, "/v1/polls/3/candidates", ledgerhttp.CreateCandidateRequest{CandidateName: "Pink"}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	clock.Set(time.Unix(testNow+50, 0).UTC())

	headers := map[string]string{"Idempotency-Key": "vote-1"}
	for attempt := 0; attempt < 3; attempt++ {
		rr = doJSON(t, server, http.MethodPost, "/v1/polls/3/candidates/Pink/votes", nil, headers)
		if rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d body=%s", attempt, rr.Code, rr.Body.String())
		}
		var vote ledgerhttp.VoteResponse
		decodeInto(t, rr, &vote)
		if vote.CandidateVotes != 1 {
			t.Fatalf("attempt %d: expected replayed count 1, got %d", attempt, vote.CandidateVotes)
		}
		if attempt > 0 && !vote.Replayed {
			t.Fatalf("attempt %d: expected replayed response", attempt)
		}
	}

	rr = doJSON(t, server, http.MethodGet, "/v1/polls/3/candidates/Pink", nil, nil)
	var candidate ledgerhttp.CandidateResponse
	decodeInto(t, rr, &candidate)
	if candidate.CandidateVotes != 1 {
		t.Fatalf("expected one stored vote, got %d", candidate.CandidateVotes)
	}
}

func TestLedgerHTTPConcurrentVotes(t *testing.T) {
	server, clock := newTestServer()
	createTestPoll(t, server, 4)
	rr := doJSON(t, server, http.MethodPost, "/v1/polls/4/candidates", ledgerhttp.CreateCandidateRequest{CandidateName: "Pink"}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	clock.Set(time.Unix(testNow+50, 0).UTC())

	const voters = 32
	var wg sync.WaitGroup
	failures := make(chan string, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/v1/polls/4/candidates/Pink/votes", nil)
			rec := httptest.NewRecorder()
			server.mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				failures <- fmt.Sprintf("status %d body=%s", rec.Code, rec.Body.String())
			}
		}()
	}
	wg.Wait()
	close(failures)
	for failure := range failures {
		t.Fatalf("vote failed: %s", failure)
	}

	rr = doJSON(t, server, http.MethodGet, "/v1/polls/4/candidates/Pink", nil, nil)
	var candidate ledgerhttp.CandidateResponse
	decodeInto(t, rr, &candidate)
	if candidate.CandidateVotes != voters {
		t.Fatalf("expected %d votes, got %d", voters, candidate.CandidateVotes)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer()
	rr := doJSON(t, server, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
