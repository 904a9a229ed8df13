package generator

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

// Record mirrors the JSON shape the loader accepts.
type Record struct {
	From      string       `json:"from"`
	To        string       `json:"to"`
	Stake     string       `json:"stake"`
	Timestamp string       `json:"timestamp,omitempty"`
	FromUser  *UserPayload `json:"fromUser,omitempty"`
	ToUser    *UserPayload `json:"toUser,omitempty"`
}

// UserPayload is the optional embedded profile blob.
type UserPayload struct {
	DisplayName     string  `json:"displayName"`
	ReputationScore float64 `json:"reputationScore"`
}

// Dataset is the generator output.
type Dataset struct {
	Endorsements []Record `json:"endorsements"`

	// Planted pattern members, kept so callers can assert detection.
	RingMembers    []string `json:"-"`
	CliqueMembers  []string `json:"-"`
	BurstTargets   []string `json:"-"`
	FarmingTargets []string `json:"-"`
}

// Generator produces a synthetic endorsement network with planted
// manipulation patterns on top of an organic background.
type Generator struct {
	cfg Config
	rng *rand.Rand
	now time.Time
}

func New(cfg Config) *Generator {
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (g *Generator) Generate(ctx context.Context) (*Dataset, error) {
	participants := make([]string, g.cfg.NumParticipants)
	for i := range participants {
		participants[i] = fmt.Sprintf("p%05d", i)
	}

	ds := &Dataset{}

	if err := g.organicBackground(ctx, ds, participants); err != nil {
		return nil, err
	}

	next := g.cfg.NumParticipants
	for i := 0; i < g.cfg.PlantedRings; i++ {
		next = g.plantRing(ds, next)
	}
	for i := 0; i < g.cfg.PlantedCliques; i++ {
		next = g.plantClique(ds, next)
	}
	for i := 0; i < g.cfg.BurstTargets; i++ {
		g.plantBurst(ds, participants)
	}
	for i := 0; i < g.cfg.FarmingTargets; i++ {
		g.plantFarming(ds, participants)
	}

	return ds, nil
}

func (g *Generator) organicBackground(ctx context.Context, ds *Dataset, participants []string) error {
	for i := 0; i < g.cfg.NumEndorsements; i++ {
		if i%5000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		from := participants[g.rng.Intn(len(participants))]
		to := participants[g.rng.Intn(len(participants))]
		if from == to {
			continue
		}
		ds.Endorsements = append(ds.Endorsements, g.record(from, to, g.organicStake(), g.organicTime()))
	}
	return nil
}

// plantRing adds a fresh cycle of participants vouching for each other
// with small stakes.
func (g *Generator) plantRing(ds *Dataset, next int) int {
	size := g.cfg.RingSize
	if size < 3 {
		size = 3
	}
	members := make([]string, size)
	for i := range members {
		members[i] = fmt.Sprintf("ring%05d", next)
		next++
	}
	base := g.organicTime()
	for i, from := range members {
		to := members[(i+1)%size]
		ts := base.Add(time.Duration(g.rng.Intn(3600)) * time.Second)
		ds.Endorsements = append(ds.Endorsements, g.record(from, to, tinyStake(g.rng), ts))
	}
	ds.RingMembers = append(ds.RingMembers, members...)
	return next
}

// plantClique adds a dense group whose members vouch almost exclusively
// inside the group.
func (g *Generator) plantClique(ds *Dataset, next int) int {
	size := g.cfg.CliqueSize
	if size < 3 {
		size = 3
	}
	members := make([]string, size)
	for i := range members {
		members[i] = fmt.Sprintf("cluster%05d", next)
		next++
	}
	for i, from := range members {
		for j, to := range members {
			if i == j {
				continue
			}
			ds.Endorsements = append(ds.Endorsements, g.record(from, to, g.organicStake(), g.organicTime()))
		}
	}
	ds.CliqueMembers = append(ds.CliqueMembers, members...)
	return next
}

// plantBurst concentrates BurstSize vouches on one target inside a
// single day, on top of a thin trickle spread over earlier weeks.
func (g *Generator) plantBurst(ds *Dataset, participants []string) {
	target := participants[g.rng.Intn(len(participants))]
	for i := 0; i < 12; i++ {
		from := participants[g.rng.Intn(len(participants))]
		if from == target {
			continue
		}
		ts := g.now.Add(-time.Duration(30+g.rng.Intn(120)) * 24 * time.Hour)
		ds.Endorsements = append(ds.Endorsements, g.record(from, target, g.organicStake(), ts))
	}
	burstDay := g.now.Add(-time.Duration(1+g.rng.Intn(10)) * 24 * time.Hour)
	for i := 0; i < g.cfg.BurstSize; i++ {
		from := participants[g.rng.Intn(len(participants))]
		if from == target {
			continue
		}
		ts := burstDay.Add(time.Duration(g.rng.Intn(86400)) * time.Second)
		ds.Endorsements = append(ds.Endorsements, g.record(from, target, g.organicStake(), ts))
	}
	ds.BurstTargets = append(ds.BurstTargets, target)
}

// plantFarming gives a target many incoming vouches and none outgoing.
func (g *Generator) plantFarming(ds *Dataset, participants []string) {
	target := fmt.Sprintf("farm%05d", len(ds.FarmingTargets))
	for i := 0; i < g.cfg.FarmingIncoming; i++ {
		from := participants[g.rng.Intn(len(participants))]
		ds.Endorsements = append(ds.Endorsements, g.record(from, target, tinyStake(g.rng), g.organicTime()))
	}
	ds.FarmingTargets = append(ds.FarmingTargets, target)
}

func (g *Generator) record(from, to, stake string, ts time.Time) Record {
	rec := Record{From: from, To: to, Stake: stake}
	if g.rng.Float64() >= g.cfg.MissingTimestamp {
		rec.Timestamp = ts.UTC().Format(time.RFC3339)
	}
	if g.rng.Float64() < 0.3 {
		rec.FromUser = &UserPayload{
			DisplayName:     "user " + from,
			ReputationScore: float64(g.rng.Intn(100)),
		}
	}
	return rec
}

// organicStake returns a stake between 0.05 and 5 units, expressed in
// base units of 1e18.
func (g *Generator) organicStake() string {
	milli := 50 + g.rng.Int63n(4950)
	if g.rng.Float64() < g.cfg.TinyStakeChance {
		return tinyStake(g.rng)
	}
	return strconv.FormatInt(milli, 10) + "000000000000000"
}

// tinyStake returns a stake well under 0.01 units.
func tinyStake(rng *rand.Rand) string {
	micro := 1 + rng.Int63n(900)
	return strconv.FormatInt(micro, 10) + "000000000000"
}

func (g *Generator) organicTime() time.Time {
	days := g.rng.Intn(180)
	secs := g.rng.Intn(86400)
	return g.now.Add(-time.Duration(days)*24*time.Hour - time.Duration(secs)*time.Second)
}
