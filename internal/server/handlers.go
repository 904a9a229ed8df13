package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vouchwatch/backend/internal/domain"
	"github.com/vouchwatch/backend/internal/registry"
	"github.com/vouchwatch/backend/internal/service"
)

// ScoreReader is the read surface of the score registry used by the API.
type ScoreReader interface {
	Get(participantID string) (registry.Entry, error)
	BatchGet(ids []string) (map[string]registry.Entry, error)
	IsHighRisk(participantID string) (bool, error)
	LevelOf(participantID string) (registry.Level, error)
}

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger   *slog.Logger
	scores   ScoreReader
	analysis *service.AnalysisService

	mu         sync.Mutex
	analyzing  bool
	lastReport *domain.AnalysisReport
}

// NewAPIHandlers constructs an APIHandlers instance. The analysis service may
// be nil for read-only deployments.
func NewAPIHandlers(logger *slog.Logger, scores ScoreReader, analysis *service.AnalysisService) *APIHandlers {
	return &APIHandlers{
		logger:   logger,
		scores:   scores,
		analysis: analysis,
	}
}

type scoreResponse struct {
	ParticipantID string         `json:"participantId"`
	Score         uint8          `json:"score"`
	Level         registry.Level `json:"level"`
	HighRisk      bool           `json:"highRisk"`
	LastUpdated   string         `json:"lastUpdated"`
}

// handleScore serves GET /scores/{participantId}.
func (h *APIHandlers) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/scores/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "participant ID is required")
		return
	}

	entry, err := h.scores.Get(id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "participant not scored")
			return
		}
		h.logger.Error("failed to read score", "error", err, "participantId", id)
		writeError(w, http.StatusInternalServerError, "failed to read score")
		return
	}

	respondJSON(w, http.StatusOK, toScoreResponse(id, entry))
}

// handleScoresBatch serves GET /scores?ids=a,b,c.
func (h *APIHandlers) handleScoresBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	raw := r.URL.Query().Get("ids")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	entries, err := h.scores.BatchGet(ids)
	if err != nil {
		h.logger.Error("failed to batch read scores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read scores")
		return
	}

	responses := make([]scoreResponse, 0, len(ids))
	for _, id := range ids {
		if entry, ok := entries[id]; ok {
			responses = append(responses, toScoreResponse(id, entry))
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"scores": responses})
}

// handleAnalyze serves POST /analyze: runs the full pipeline and publishes
// high-risk scores to the registry. Only one run at a time.
func (h *APIHandlers) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if h.analysis == nil {
		writeError(w, http.StatusNotImplemented, "analysis is not enabled on this deployment")
		return
	}

	h.mu.Lock()
	if h.analyzing {
		h.mu.Unlock()
		writeError(w, http.StatusConflict, "an analysis run is already in progress")
		return
	}
	h.analyzing = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.analyzing = false
		h.mu.Unlock()
	}()

	report, err := h.analysis.Analyze(r.Context())
	if err != nil {
		h.logger.Error("analysis run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "analysis run failed")
		return
	}

	written, err := h.analysis.PublishScores(report)
	if err != nil {
		h.logger.Error("publishing scores failed", "error", err, "runId", report.RunID)
		writeError(w, http.StatusInternalServerError, "publishing scores failed")
		return
	}

	h.mu.Lock()
	h.lastReport = &report
	h.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"runId":     report.RunID,
		"scored":    len(report.Scores),
		"failed":    len(report.Failures),
		"published": written,
		"summary":   report.Summary,
	})
}

// handleLatestAnalysis serves GET /analysis/latest with the last run's
// summary-level view.
func (h *APIHandlers) handleLatestAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	h.mu.Lock()
	report := h.lastReport
	h.mu.Unlock()

	if report == nil {
		writeError(w, http.StatusNotFound, "no analysis has run yet")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"runId":            report.RunID,
		"startedAt":        report.StartedAt,
		"completedAt":      report.CompletedAt,
		"recordStats":      report.RecordStats,
		"graphStats":       report.GraphStats,
		"ringStats":        report.RingStats,
		"isolatedClusters": report.IsolatedClusters,
		"summary":          report.Summary,
		"failures":         report.Failures,
	})
}

func toScoreResponse(id string, entry registry.Entry) scoreResponse {
	return scoreResponse{
		ParticipantID: id,
		Score:         entry.Score,
		Level:         registry.LevelForScore(entry.Score),
		HighRisk:      entry.Score >= registry.HighRiskCutoff,
		LastUpdated:   entry.LastUpdated.UTC().Format(time.RFC3339),
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
