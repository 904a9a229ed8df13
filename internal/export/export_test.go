package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/vouchwatch/backend/internal/domain"
)

func sampleScores() []domain.RiskScore {
	return []domain.RiskScore{
		{
			ParticipantID: "alice",
			TotalScore:    62.75,
			RiskLevel:     domain.RiskHigh,
			Breakdown:     domain.Breakdown{Ring: 100, Cluster: 75, Burst: 0, Stake: 30, Reciprocity: 0},
			Flags:         []string{domain.FlagRingMember, domain.FlagIsolatedCluster},
		},
		{
			ParticipantID: "bob",
			TotalScore:    30.0,
			RiskLevel:     domain.RiskModerate,
			Breakdown:     domain.Breakdown{Burst: 60},
			Flags:         []string{domain.FlagVouchBurst},
		},
		{
			ParticipantID: "carol",
			TotalScore:    12.5,
			RiskLevel:     domain.RiskLow,
		},
	}
}

func TestForRegistryParallelArrays(t *testing.T) {
	payload := ForRegistry(sampleScores(), 30)

	if len(payload.IDs) != 2 {
		t.Fatalf("IDs = %v, want alice and bob only", payload.IDs)
	}
	for _, lengths := range [][]int{
		{len(payload.Scores)},
		{len(payload.RingMember)},
		{len(payload.IsolatedCluster)},
		{len(payload.VouchBurst)},
		{len(payload.LowStakes)},
		{len(payload.FarmingPattern)},
	} {
		if lengths[0] != len(payload.IDs) {
			t.Fatalf("parallel arrays misaligned: %+v", payload)
		}
	}

	if payload.IDs[0] != "alice" || payload.Scores[0] != 62 {
		t.Errorf("alice entry = %s/%d, want alice/62 (truncated)", payload.IDs[0], payload.Scores[0])
	}
	if !payload.RingMember[0] || !payload.IsolatedCluster[0] || payload.VouchBurst[0] {
		t.Errorf("alice flags misencoded: %+v", payload)
	}
	if payload.IDs[1] != "bob" || !payload.VouchBurst[1] || payload.RingMember[1] {
		t.Errorf("bob entry misencoded: %+v", payload)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   float64
		want uint8
	}{
		{0, 0},
		{-3, 0},
		{42.99, 42},
		{100, 100},
		{250, 100},
	}
	for _, tc := range cases {
		if got := truncate(tc.in); got != tc.want {
			t.Errorf("truncate(%f) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var sb strings.Builder
	if err := WriteCSV(&sb, sampleScores()); err != nil {
		t.Fatalf("WriteCSV returned error: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	if err != nil {
		t.Fatalf("parsing emitted csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "participant_id" || rows[0][2] != "risk_level" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "alice" || rows[1][1] != "62.75" || rows[1][2] != "HIGH" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[3][1] != "12.50" {
		t.Errorf("scores not formatted to two decimals: %v", rows[3])
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	report := domain.AnalysisReport{
		RunID:  "test-run",
		Scores: sampleScores(),
		Rings:  []domain.Ring{{"1", "2", "3"}},
	}

	files, err := WriteAll(report, dir, 30)
	if err != nil {
		t.Fatalf("WriteAll returned error: %v", err)
	}

	for _, path := range []string{
		files.AllScores, files.HighRisk, files.CSV,
		files.Summary, files.Rings, files.RegistryPayload,
	} {
		if !strings.Contains(path, "test-run") {
			t.Errorf("artifact path missing run ID: %s", path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact not written: %v", err)
		}
	}

	data, err := os.ReadFile(files.HighRisk)
	if err != nil {
		t.Fatalf("reading high risk export: %v", err)
	}
	var high []domain.RiskScore
	if err := json.Unmarshal(data, &high); err != nil {
		t.Fatalf("decoding high risk export: %v", err)
	}
	if len(high) != 2 {
		t.Errorf("high risk export holds %d scores, want 2", len(high))
	}

	data, err = os.ReadFile(files.RegistryPayload)
	if err != nil {
		t.Fatalf("reading registry payload: %v", err)
	}
	var payload RegistryPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decoding registry payload: %v", err)
	}
	if len(payload.IDs) != 2 || payload.IDs[0] != "alice" {
		t.Errorf("unexpected registry payload: %+v", payload)
	}
}
