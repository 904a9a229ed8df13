package domain

import "time"

// Endorsement models a single vouch: one participant staking value on another.
// The stake is kept as the raw smallest-unit integer string; conversion to
// decimal units happens when the graph is built.
type Endorsement struct {
	From      string
	To        string
	Stake     string
	Timestamp *time.Time
	FromInfo  *ParticipantInfo
	ToInfo    *ParticipantInfo
}

// ParticipantInfo carries optional display attributes supplied alongside a
// record. Carried through for presentation, never consulted by detectors.
type ParticipantInfo struct {
	DisplayName     string
	ReputationScore float64
}

// EndorsementStats summarizes a loaded record set.
type EndorsementStats struct {
	TotalEndorsements  int `json:"totalEndorsements"`
	UniqueVouchers     int `json:"uniqueVouchers"`
	UniqueSubjects     int `json:"uniqueSubjects"`
	UniqueParticipants int `json:"uniqueParticipants"`
}
