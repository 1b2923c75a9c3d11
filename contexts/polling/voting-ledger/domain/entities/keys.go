package entities

import (
	"encoding/binary"
	"encoding/hex"
)

// RecordKey addresses one record in the storage substrate.
type RecordKey string

func (k RecordKey) String() string {
	return string(k)
}

// PollKey is the hex form of the 8-byte little-endian poll id.
func PollKey(pollID uint64) RecordKey {
	return RecordKey(hex.EncodeToString(pollSeed(pollID)))
}

// CandidateKey appends the raw name bytes to the poll seed. The poll seed has
// a fixed width, so two distinct (poll, name) pairs never share a key.
func CandidateKey(pollID uint64, candidateName string) RecordKey {
	seed := append(pollSeed(pollID), candidateName...)
	return RecordKey(hex.EncodeToString(seed))
}

func pollSeed(pollID uint64) []byte {
	seed := make([]byte, 8, 8+MaxCandidateNameBytes)
	binary.LittleEndian.PutUint64(seed, pollID)
	return seed
}
