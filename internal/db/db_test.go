package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/sift/internal/config"
	"github.com/hpungsan/sift/internal/errors"
)

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	dbPath := filepath.Join(tmpDir, FileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	for _, table := range []string{"memory_info", "memory_entries"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestInit_CreatesDirectories(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "nested", "path", ".sift")

	db, err := Init(baseDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		t.Errorf("base directory not created at %s", baseDir)
	}
}

func TestUserVersion(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version after Init = %d, want %d", version, CurrentSchemaVersion)
	}

	if err := SetUserVersion(db, 99); err != nil {
		t.Fatalf("SetUserVersion() error = %v", err)
	}
	version, err = GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != 99 {
		t.Errorf("user_version = %d, want 99", version)
	}
}

func TestInit_MigrationIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	db1, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	db1.Close()

	// Second Init on same DB should succeed (migrations skip if already applied)
	db2, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer db2.Close()

	version, err := GetUserVersion(db2)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version after second Init = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestInit_RejectsNewerSchema(t *testing.T) {
	tmpDir := t.TempDir()

	db1, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	if err := SetUserVersion(db1, CurrentSchemaVersion+1); err != nil {
		t.Fatalf("SetUserVersion() error = %v", err)
	}
	db1.Close()

	db2, err := Init(tmpDir)
	if err == nil {
		db2.Close()
		t.Fatal("Init() on a newer schema should fail")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("Init() error = %v, want newer-schema error", err)
	}
}

func TestConfigurePool(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	ConfigurePool(db, nil)
	ConfigurePool(db, &config.Config{DBMaxOpenConns: 3})

	if got := db.Stats().MaxOpenConnections; got != 3 {
		t.Errorf("MaxOpenConnections = %d, want 3", got)
	}
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4e38}
	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatalf("DecodeVector() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}

	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("DecodeVector(3 bytes) expected error, got nil")
	}
}

func TestLoadMemory_Empty(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	_, rows, found, err := LoadMemory(context.Background(), db)
	if err != nil {
		t.Fatalf("LoadMemory() error = %v", err)
	}
	if found {
		t.Error("found = true, want false on a fresh database")
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

func TestReplaceMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	rows := []MemoryRow{
		{Position: 0, ID: "01A", Vector: []float32{1, 0}, URL: "https://a", TextSnippet: "a", PredictedCategory: "x", Confidence: 0.9, AddedAt: 10},
		{Position: 1, ID: "01B", Vector: []float32{0, 1}, TextSnippet: "b", PredictedCategory: "y", Confidence: 0.5, AddedAt: 11, Extra: []byte{0x80}},
	}
	if err := ReplaceMemory(ctx, db, 2, rows); err != nil {
		t.Fatalf("ReplaceMemory() error = %v", err)
	}

	dim, got, found, err := LoadMemory(ctx, db)
	if err != nil {
		t.Fatalf("LoadMemory() error = %v", err)
	}
	if !found || dim != 2 {
		t.Fatalf("found = %v, dim = %d; want true, 2", found, dim)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if got[0].URL != "https://a" || got[1].URL != "" {
		t.Errorf("URLs = %q, %q", got[0].URL, got[1].URL)
	}
	if got[1].Vector[1] != 1 || got[1].PredictedCategory != "y" {
		t.Errorf("row 1 = %+v", got[1])
	}

	// Second replace drops earlier rows.
	if err := ReplaceMemory(ctx, db, 2, rows[:1]); err != nil {
		t.Fatalf("ReplaceMemory() error = %v", err)
	}
	n, err := CountMemory(ctx, db)
	if err != nil {
		t.Fatalf("CountMemory() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountMemory() = %d, want 1", n)
	}
}

func TestReplaceMemory_DimensionMismatchRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	good := []MemoryRow{{Position: 0, ID: "01A", Vector: []float32{1, 0}, TextSnippet: "a", PredictedCategory: "x"}}
	if err := ReplaceMemory(ctx, db, 2, good); err != nil {
		t.Fatalf("ReplaceMemory() error = %v", err)
	}

	bad := []MemoryRow{{Position: 0, ID: "01C", Vector: []float32{1, 0, 0}, TextSnippet: "c", PredictedCategory: "z"}}
	err = ReplaceMemory(ctx, db, 2, bad)
	if !errors.Is(err, errors.ErrMalformedVector) {
		t.Fatalf("ReplaceMemory() error = %v, want MALFORMED_VECTOR", err)
	}

	_, rows, _, err := LoadMemory(ctx, db)
	if err != nil {
		t.Fatalf("LoadMemory() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "01A" {
		t.Errorf("rows after failed replace = %+v, want original row", rows)
	}
}

func TestLoadMemory_PositionGap(t *testing.T) {
	ctx := context.Background()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	rows := []MemoryRow{{Position: 3, ID: "01A", Vector: []float32{1}, TextSnippet: "a", PredictedCategory: "x"}}
	if err := ReplaceMemory(ctx, db, 1, rows); err != nil {
		t.Fatalf("ReplaceMemory() error = %v", err)
	}

	_, _, _, err = LoadMemory(ctx, db)
	if !errors.Is(err, errors.ErrCorruptStore) {
		t.Errorf("LoadMemory() error = %v, want CORRUPT_STORE", err)
	}
}
