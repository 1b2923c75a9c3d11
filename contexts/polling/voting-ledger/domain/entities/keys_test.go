package entities

import "testing"

func TestPollKeyIsLittleEndianSeed(t *testing.T) {
	if got := PollKey(1); got != "0100000000000000" {
		t.Fatalf("expected little-endian poll key, got %s", got)
	}
	if PollKey(1) != PollKey(1) {
		t.Fatalf("expected poll key derivation to be deterministic")
	}
	if PollKey(1) == PollKey(256) {
		t.Fatalf("expected distinct poll ids to derive distinct keys")
	}
}

func TestCandidateKeyScopesNameUnderPoll(t *testing.T) {
	pink := CandidateKey(1, "Pink")
	if pink != "0100000000000000"+"50696e6b" {
		t.Fatalf("unexpected candidate key %s", pink)
	}
	if pink == CandidateKey(1, "Blue") {
		t.Fatalf("expected distinct names to derive distinct keys")
	}
	if pink == CandidateKey(2, "Pink") {
		t.Fatalf("expected same name under distinct polls to derive distinct keys")
	}
	if CandidateKey(1, "ab") == CandidateKey(1, "a") {
		t.Fatalf("expected prefix names to derive distinct keys")
	}
}
