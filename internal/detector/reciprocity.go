package detector

import (
	"github.com/vouchwatch/backend/internal/vouchgraph"
)

// Minimum received endorsements before the flow ratio is judged.
const reciprocityMinReceived = 5

// ReciprocityDetector compares endorsements given against endorsements
// received. A participant who receives heavily but gives almost nothing fits
// a farming pattern; the inverse, over-giving, is treated as far less severe.
type ReciprocityDetector struct{}

// Ratio is out-degree over in-degree. A participant who has received nothing
// gets the neutral ratio 1.0 rather than a division fault.
func (ReciprocityDetector) Ratio(g *vouchgraph.Graph, id string) float64 {
	received := g.InDegree(id)
	if received == 0 {
		return 1.0
	}
	return float64(g.OutDegree(id)) / float64(received)
}

// Score bands the ratio. Farming escalates with in-degree; boosting scores a
// flat 20.
func (d ReciprocityDetector) Score(g *vouchgraph.Graph, id string) float64 {
	received := g.InDegree(id)
	if received < reciprocityMinReceived {
		return 0
	}

	ratio := d.Ratio(g, id)
	switch {
	case ratio < 0.05 && received > 20:
		return 80
	case ratio < 0.1 && received > 10:
		return 60
	case ratio < 0.2:
		return 40
	}

	if ratio > 10 {
		return 20
	}
	return 0
}
