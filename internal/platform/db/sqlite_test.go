package db

import (
	"path/filepath"
	"testing"
)

func TestConnectSQLiteOpensFileDatabase(t *testing.T) {
	database, err := ConnectSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("connect sqlite failed: %v", err)
	}
	defer database.Close()

	var one int
	if err := database.DB.Raw("SELECT 1").Scan(&one).Error; err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if one != 1 {
		t.Fatalf("expected 1, got %d", one)
	}
}

func TestConnectRequiresTarget(t *testing.T) {
	if _, err := Connect(""); err == nil {
		t.Fatalf("expected error for empty postgres dsn")
	}
	if _, err := ConnectSQLite("  "); err == nil {
		t.Fatalf("expected error for empty sqlite path")
	}
}
