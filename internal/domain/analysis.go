package domain

import "time"

// Ring is an ordered sequence of at least three distinct participants forming
// a directed cycle. Rings are discovered per run, never stored.
type Ring []string

// Community is a disjoint set of participants produced by partitioning the
// undirected projection of the vouch graph.
type Community []string

// IsolatedCluster describes a community whose insularity crossed the report
// threshold.
type IsolatedCluster struct {
	Members    []string `json:"members"`
	Size       int      `json:"size"`
	Insularity float64  `json:"insularity"`
}

// RingStats aggregates discovered rings for reporting.
type RingStats struct {
	TotalRings          int         `json:"totalRings"`
	RingsBySize         map[int]int `json:"ringsBySize"`
	ParticipantsInRings int         `json:"participantsInRings"`
	PctInRings          float64     `json:"pctParticipantsInRings"`
}

// ScoreFailure records a participant that could not be scored during a batch run.
type ScoreFailure struct {
	ParticipantID string `json:"participantId"`
	Reason        string `json:"reason"`
}

// LevelDistribution counts scored participants per risk level.
type LevelDistribution map[RiskLevel]int

// NetworkSummary captures run-level statistics for a batch analysis.
type NetworkSummary struct {
	TotalParticipants int                   `json:"totalParticipants"`
	TotalEdges        int                   `json:"totalEdges"`
	Distribution      LevelDistribution     `json:"riskDistribution"`
	Percentages       map[RiskLevel]float64 `json:"riskPercentages"`
	TopRisky          []RiskScore           `json:"topRiskyParticipants"`
	AvgScore          float64               `json:"avgRiskScore"`
}

// AnalysisReport is the complete output of one analysis run.
type AnalysisReport struct {
	RunID            string            `json:"runId"`
	StartedAt        time.Time         `json:"startedAt"`
	CompletedAt      time.Time         `json:"completedAt"`
	RecordStats      EndorsementStats  `json:"recordStats"`
	GraphStats       GraphStats        `json:"graphStats"`
	RingStats        RingStats         `json:"ringStats"`
	IsolatedClusters []IsolatedCluster `json:"isolatedClusters"`
	Rings            []Ring            `json:"rings"`
	Scores           []RiskScore       `json:"scores"`
	Failures         []ScoreFailure    `json:"failures"`
	Summary          NetworkSummary    `json:"summary"`
}

// GraphStats summarizes the built vouch graph.
type GraphStats struct {
	Nodes        int     `json:"nodes"`
	Edges        int     `json:"edges"`
	Density      float64 `json:"density"`
	AvgInDegree  float64 `json:"avgInDegree"`
	AvgOutDegree float64 `json:"avgOutDegree"`
}
