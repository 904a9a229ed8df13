package registry

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

const testToken = "owner-secret"

func openTestRegistry(t *testing.T, token string) *Registry {
	t.Helper()
	reg, err := Open(filepath.Join(t.TempDir(), "registry.db"), token)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestUpdateAndGet(t *testing.T) {
	reg := openTestRegistry(t, testToken)
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	reg.WithClock(func() time.Time { return fixed })

	if err := reg.Update(testToken, "alice", 42); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	entry, err := reg.Get("alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if entry.Score != 42 {
		t.Errorf("Score = %d, want 42", entry.Score)
	}
	if !entry.LastUpdated.Equal(fixed) {
		t.Errorf("LastUpdated = %v, want %v", entry.LastUpdated, fixed)
	}
}

func TestUpdateUnauthorized(t *testing.T) {
	reg := openTestRegistry(t, testToken)

	if err := reg.Update("wrong-token", "alice", 10); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestEmptyOwnerTokenDisablesWrites(t *testing.T) {
	reg := openTestRegistry(t, "")

	if err := reg.Update("", "alice", 10); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized with empty owner token, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	reg := openTestRegistry(t, testToken)

	if _, err := reg.Get("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBatchUpdateAndBatchGet(t *testing.T) {
	reg := openTestRegistry(t, testToken)
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	reg.WithClock(func() time.Time { return fixed })

	ids := []string{"a", "b", "c"}
	scores := []uint8{10, 50, 90}
	if err := reg.BatchUpdate(testToken, ids, scores); err != nil {
		t.Fatalf("BatchUpdate returned error: %v", err)
	}

	entries, err := reg.BatchGet([]string{"a", "b", "c", "missing"})
	if err != nil {
		t.Fatalf("BatchGet returned error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("BatchGet returned %d entries, want 3", len(entries))
	}
	for i, id := range ids {
		entry := entries[id]
		if entry.Score != scores[i] {
			t.Errorf("entry %s score = %d, want %d", id, entry.Score, scores[i])
		}
		if !entry.LastUpdated.Equal(fixed) {
			t.Errorf("entry %s LastUpdated = %v, want shared %v", id, entry.LastUpdated, fixed)
		}
	}

	count, err := reg.Count()
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}
}

func TestBatchUpdateLengthMismatch(t *testing.T) {
	reg := openTestRegistry(t, testToken)

	err := reg.BatchUpdate(testToken, []string{"a", "b"}, []uint8{1})
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestScoreClamped(t *testing.T) {
	reg := openTestRegistry(t, testToken)

	if err := reg.Update(testToken, "alice", 250); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	entry, err := reg.Get("alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if entry.Score != 100 {
		t.Errorf("Score = %d, want clamp at 100", entry.Score)
	}
}

func TestIsHighRisk(t *testing.T) {
	reg := openTestRegistry(t, testToken)
	if err := reg.BatchUpdate(testToken, []string{"low", "edge", "high"}, []uint8{29, 30, 80}); err != nil {
		t.Fatalf("BatchUpdate returned error: %v", err)
	}

	cases := []struct {
		id   string
		want bool
	}{
		{"low", false},
		{"edge", true},
		{"high", true},
	}
	for _, tc := range cases {
		got, err := reg.IsHighRisk(tc.id)
		if err != nil {
			t.Fatalf("IsHighRisk(%s) returned error: %v", tc.id, err)
		}
		if got != tc.want {
			t.Errorf("IsHighRisk(%s) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestLevelForScore(t *testing.T) {
	cases := []struct {
		score uint8
		want  Level
	}{
		{0, LevelMinimal},
		{9, LevelMinimal},
		{10, LevelLow},
		{29, LevelLow},
		{30, LevelMedium},
		{49, LevelMedium},
		{50, LevelHigh},
		{69, LevelHigh},
		{70, LevelCritical},
		{100, LevelCritical},
	}
	for _, tc := range cases {
		if got := LevelForScore(tc.score); got != tc.want {
			t.Errorf("LevelForScore(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestLevelOf(t *testing.T) {
	reg := openTestRegistry(t, testToken)
	if err := reg.Update(testToken, "alice", 55); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	level, err := reg.LevelOf("alice")
	if err != nil {
		t.Fatalf("LevelOf returned error: %v", err)
	}
	if level != LevelHigh {
		t.Errorf("LevelOf = %s, want %s", level, LevelHigh)
	}

	if _, err := reg.LevelOf("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOverwriteKeepsLatest(t *testing.T) {
	reg := openTestRegistry(t, testToken)

	if err := reg.Update(testToken, "alice", 20); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if err := reg.Update(testToken, "alice", 60); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	entry, err := reg.Get("alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if entry.Score != 60 {
		t.Errorf("Score = %d, want 60 after overwrite", entry.Score)
	}
}
