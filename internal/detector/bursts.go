package detector

import (
	"math"
	"time"

	"github.com/vouchwatch/backend/internal/domain"
)

// Sample-size floors below which no burst verdict is attempted.
const (
	burstMinRecords = 10
	burstMinWindows = 3
)

// BurstDetector flags statistically anomalous spikes in the endorsements a
// participant receives. It consumes the raw record list rather than the graph,
// since merged edges lose the individual timestamps.
type BurstDetector struct {
	Window     time.Duration
	ZThreshold float64
}

// NewBurstDetector builds a detector with the given fixed window width and a
// z-score threshold of 3.
func NewBurstDetector(window time.Duration) *BurstDetector {
	return &BurstDetector{Window: window, ZThreshold: 3.0}
}

// BurstResult reports whether a burst was found and the size of the largest
// window.
type BurstResult struct {
	Detected  bool
	MaxWindow int
}

// Detect buckets the participant's received endorsements into fixed-width
// windows and tests the fullest window against the per-window mean. Records
// without a parseable timestamp are excluded from windowing entirely.
func (d *BurstDetector) Detect(records []domain.Endorsement, participant string) BurstResult {
	received := 0
	windows := make(map[int64]int)
	windowSec := int64(d.Window / time.Second)
	if windowSec <= 0 {
		windowSec = 1
	}

	for _, rec := range records {
		if rec.To != participant {
			continue
		}
		received++
		if rec.Timestamp == nil {
			continue
		}
		windows[rec.Timestamp.Unix()/windowSec]++
	}

	if received < burstMinRecords || len(windows) < burstMinWindows {
		return BurstResult{}
	}

	counts := make([]int, 0, len(windows))
	sum := 0
	maxCount := 0
	for _, c := range windows {
		counts = append(counts, c)
		sum += c
		if c > maxCount {
			maxCount = c
		}
	}

	mean := float64(sum) / float64(len(counts))
	variance := 0.0
	for _, c := range counts {
		dev := float64(c) - mean
		variance += dev * dev
	}
	std := math.Sqrt(variance / float64(len(counts)))
	if std == 0 {
		// Perfectly uniform arrivals cannot spike.
		return BurstResult{}
	}

	z := (float64(maxCount) - mean) / std
	return BurstResult{Detected: z > d.ZThreshold, MaxWindow: maxCount}
}

// Score maps burst magnitude onto fixed bands. The lowest band is reachable
// only when mean and deviation are both small, since detection already
// requires the window to exceed mean + 3*std.
func (d *BurstDetector) Score(records []domain.Endorsement, participant string) float64 {
	result := d.Detect(records, participant)
	if !result.Detected {
		return 0
	}
	switch {
	case result.MaxWindow >= 50:
		return 100
	case result.MaxWindow >= 30:
		return 80
	case result.MaxWindow >= 20:
		return 60
	case result.MaxWindow >= 10:
		return 40
	default:
		return 20
	}
}
