package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vouchwatch/backend/internal/domain"
	"github.com/vouchwatch/backend/internal/scorer"
)

// Rings written to the ring export file are capped; beyond this the list adds
// bulk without adding signal.
const maxExportedRings = 1000

// RegistryPayload is the batch-write shape for the external score registry:
// parallel arrays of ids, integer-truncated scores, and per-flag booleans.
type RegistryPayload struct {
	IDs             []string `json:"ids"`
	Scores          []uint8  `json:"scores"`
	RingMember      []bool   `json:"ringMember"`
	IsolatedCluster []bool   `json:"isolatedCluster"`
	VouchBurst      []bool   `json:"vouchBurst"`
	LowStakes       []bool   `json:"lowStakes"`
	FarmingPattern  []bool   `json:"farmingPattern"`
}

// ForRegistry converts scores at or above the threshold into the registry
// batch-write payload. Scores are truncated, not rounded, matching the uint8
// the registry stores.
func ForRegistry(scores []domain.RiskScore, threshold float64) RegistryPayload {
	high := scorer.HighRisk(scores, threshold)
	payload := RegistryPayload{
		IDs:             make([]string, 0, len(high)),
		Scores:          make([]uint8, 0, len(high)),
		RingMember:      make([]bool, 0, len(high)),
		IsolatedCluster: make([]bool, 0, len(high)),
		VouchBurst:      make([]bool, 0, len(high)),
		LowStakes:       make([]bool, 0, len(high)),
		FarmingPattern:  make([]bool, 0, len(high)),
	}
	for _, s := range high {
		payload.IDs = append(payload.IDs, s.ParticipantID)
		payload.Scores = append(payload.Scores, truncate(s.TotalScore))
		payload.RingMember = append(payload.RingMember, hasFlag(s, domain.FlagRingMember))
		payload.IsolatedCluster = append(payload.IsolatedCluster, hasFlag(s, domain.FlagIsolatedCluster))
		payload.VouchBurst = append(payload.VouchBurst, hasFlag(s, domain.FlagVouchBurst))
		payload.LowStakes = append(payload.LowStakes, hasFlag(s, domain.FlagLowStakes))
		payload.FarmingPattern = append(payload.FarmingPattern, hasFlag(s, domain.FlagFarmingPattern))
	}
	return payload
}

func truncate(score float64) uint8 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return uint8(score)
}

func hasFlag(s domain.RiskScore, flag string) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Files lists the artifacts written for one run.
type Files struct {
	AllScores       string
	HighRisk        string
	CSV             string
	Summary         string
	Rings           string
	RegistryPayload string
}

// WriteAll writes the full artifact set for a report under dir, suffixed with
// the run ID.
func WriteAll(report domain.AnalysisReport, dir string, highRiskThreshold float64) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create output dir: %w", err)
	}

	files := Files{
		AllScores:       filepath.Join(dir, fmt.Sprintf("all_scores_%s.json", report.RunID)),
		HighRisk:        filepath.Join(dir, fmt.Sprintf("high_risk_%s.json", report.RunID)),
		CSV:             filepath.Join(dir, fmt.Sprintf("risk_scores_%s.csv", report.RunID)),
		Summary:         filepath.Join(dir, fmt.Sprintf("summary_%s.json", report.RunID)),
		Rings:           filepath.Join(dir, fmt.Sprintf("rings_%s.json", report.RunID)),
		RegistryPayload: filepath.Join(dir, fmt.Sprintf("registry_payload_%s.json", report.RunID)),
	}

	if err := writeJSON(files.AllScores, report.Scores); err != nil {
		return Files{}, err
	}
	if err := writeJSON(files.HighRisk, scorer.HighRisk(report.Scores, highRiskThreshold)); err != nil {
		return Files{}, err
	}

	csvFile, err := os.Create(files.CSV)
	if err != nil {
		return Files{}, fmt.Errorf("open %s: %w", files.CSV, err)
	}
	if err := WriteCSV(csvFile, report.Scores); err != nil {
		csvFile.Close()
		return Files{}, err
	}
	if err := csvFile.Close(); err != nil {
		return Files{}, err
	}

	if err := writeJSON(files.Summary, runSummary(report)); err != nil {
		return Files{}, err
	}

	rings := report.Rings
	if len(rings) > maxExportedRings {
		rings = rings[:maxExportedRings]
	}
	if err := writeJSON(files.Rings, rings); err != nil {
		return Files{}, err
	}

	if err := writeJSON(files.RegistryPayload, ForRegistry(report.Scores, highRiskThreshold)); err != nil {
		return Files{}, err
	}

	return files, nil
}

// WriteCSV writes scores as a flat spreadsheet.
func WriteCSV(w io.Writer, scores []domain.RiskScore) error {
	cw := csv.NewWriter(w)
	header := []string{
		"participant_id", "total_score", "risk_level",
		"ring_score", "cluster_score", "burst_score", "stake_score", "reciprocity_score",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, s := range scores {
		row := []string{
			s.ParticipantID,
			formatScore(s.TotalScore),
			string(s.RiskLevel),
			formatScore(s.Breakdown.Ring),
			formatScore(s.Breakdown.Cluster),
			formatScore(s.Breakdown.Burst),
			formatScore(s.Breakdown.Stake),
			formatScore(s.Breakdown.Reciprocity),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", s.ParticipantID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// runSummary is the summary artifact: everything from the report except the
// per-participant bulk.
func runSummary(report domain.AnalysisReport) map[string]any {
	return map[string]any{
		"runId":                 report.RunID,
		"startedAt":             report.StartedAt,
		"completedAt":           report.CompletedAt,
		"recordStats":           report.RecordStats,
		"graphStats":            report.GraphStats,
		"ringStats":             report.RingStats,
		"isolatedClustersCount": len(report.IsolatedClusters),
		"networkSummary":        report.Summary,
		"failures":              report.Failures,
	}
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}
