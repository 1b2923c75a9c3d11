package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeGoFile(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCollectViolationsFlagsLayerLeaks(t *testing.T) {
	root := filepath.Join(t.TempDir(), "contexts")
	writeGoFile(t, filepath.Join(root, "polling", "ledger", "domain", "entities", "poll.go"),
		"package entities\nimport _ \"github.com/google/uuid\"\n")
	writeGoFile(t, filepath.Join(root, "polling", "ledger", "application", "commands", "poll.go"),
		"package commands\nimport _ \"pollledger/contexts/polling/ledger/adapters/memory\"\n")
	writeGoFile(t, filepath.Join(root, "polling", "ledger", "ports", "ports.go"),
		"package ports\nimport (\n_ \"pollledger/contexts/polling/ledger/domain/entities\"\n_ \"pollledger/internal/shared/events\"\n)\n")
	writeGoFile(t, filepath.Join(root, "polling", "ledger", "adapters", "memory", "store.go"),
		"package memory\nimport (\n_ \"github.com/google/uuid\"\n_ \"pollledger/contexts/polling/other/domain\"\n)\n")

	violations := collectViolations(root)
	if len(violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %+v", len(violations), violations)
	}
	rules := map[string]bool{}
	for _, v := range violations {
		rules[v.Rule] = true
	}
	for _, want := range []string{
		"domain must not import third-party packages",
		"application must not import adapters",
		"cross-module imports are forbidden",
	} {
		if !rules[want] {
			t.Fatalf("expected rule %q in %+v", want, violations)
		}
	}
}

func TestCollectViolationsAcceptsLedgerLayout(t *testing.T) {
	violations := collectViolations(filepath.Join("..", "contexts"))
	if len(violations) != 0 {
		t.Fatalf("expected clean boundaries, got %+v", violations)
	}
}
