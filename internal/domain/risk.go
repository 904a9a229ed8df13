package domain

// RiskLevel categorizes a composite score.
type RiskLevel string

// Risk levels ordered by severity. Band lower edges are inclusive: a score of
// exactly 40 is ELEVATED, not MODERATE.
const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskElevated RiskLevel = "ELEVATED"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Flag labels emitted when an individual detector's raw score crosses its
// reporting threshold.
const (
	FlagRingMember      = "RING_MEMBER"
	FlagIsolatedCluster = "ISOLATED_CLUSTER"
	FlagVouchBurst      = "VOUCH_BURST"
	FlagLowStakes       = "LOW_STAKES"
	FlagFarmingPattern  = "FARMING_PATTERN"
)

// Breakdown holds the five per-detector component scores, each in [0,100].
type Breakdown struct {
	Ring        float64 `json:"ring"`
	Cluster     float64 `json:"cluster"`
	Burst       float64 `json:"burst"`
	Stake       float64 `json:"stake"`
	Reciprocity float64 `json:"reciprocity"`
}

// RiskScore is the composite scoring result for one participant. It is derived
// from a graph+record snapshot and recomputed wholesale on every run.
type RiskScore struct {
	ParticipantID string    `json:"participantId"`
	TotalScore    float64   `json:"totalScore"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	Breakdown     Breakdown `json:"breakdown"`
	Flags         []string  `json:"flags"`
}
