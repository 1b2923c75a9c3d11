package entities

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxDescriptionBytes bounds the poll description buffer.
	MaxDescriptionBytes = 280
	// MaxCandidateNameBytes bounds a candidate name, which is also a key seed.
	MaxCandidateNameBytes = 32
	// MinPlausibleUnixTimestamp separates real Unix timestamps (2001-09-09 and
	// later) from small integers that look like durations.
	MinPlausibleUnixTimestamp uint64 = 1_000_000_000
)

type PollState string

const (
	PollStateCreated PollState = "created"
	PollStateOpen    PollState = "open"
	PollStateClosed  PollState = "closed"
)

type Poll struct {
	PollID          uint64
	Description     string
	PollStart       uint64
	PollEnd         uint64
	CandidateAmount uint64
}

// StateAt derives the temporal state of the poll. The window is inclusive on
// both ends.
func (p Poll) StateAt(now uint64) PollState {
	switch {
	case now < p.PollStart:
		return PollStateCreated
	case now > p.PollEnd:
		return PollStateClosed
	default:
		return PollStateOpen
	}
}

func (p Poll) AcceptsVotesAt(now uint64) bool {
	return p.StateAt(now) == PollStateOpen
}

func (p Poll) Key() RecordKey {
	return PollKey(p.PollID)
}

type Candidate struct {
	PollID         uint64
	CandidateName  string
	CandidateVotes uint64
}

func (c Candidate) Key() RecordKey {
	return CandidateKey(c.PollID, c.CandidateName)
}

func ValidDescription(description string) bool {
	return strings.TrimSpace(description) != "" &&
		len(description) <= MaxDescriptionBytes &&
		utf8.ValidString(description)
}

func ValidCandidateName(name string) bool {
	return strings.TrimSpace(name) != "" &&
		len(name) <= MaxCandidateNameBytes &&
		utf8.ValidString(name)
}
