package workers

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	topicPollCreated         = "poll.created"
	topicCandidateRegistered = "candidate.registered"
	topicVoteCast            = "vote.cast"
)

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
