package generator

// Config drives the synthetic endorsement generator.
type Config struct {
	NumParticipants  int
	NumEndorsements  int // organic background records
	PlantedRings     int
	RingSize         int
	PlantedCliques   int
	CliqueSize       int
	BurstTargets     int
	BurstSize        int
	FarmingTargets   int
	FarmingIncoming  int
	TinyStakeChance  float64
	MissingTimestamp float64 // fraction of records emitted without a timestamp
	Seed             int64
}

// DefaultConfig returns baseline settings producing a network where every
// detector has something to find.
func DefaultConfig() Config {
	return Config{
		NumParticipants:  2000,
		NumEndorsements:  20000,
		PlantedRings:     12,
		RingSize:         4,
		PlantedCliques:   4,
		CliqueSize:       6,
		BurstTargets:     5,
		BurstSize:        35,
		FarmingTargets:   3,
		FarmingIncoming:  40,
		TinyStakeChance:  0.1,
		MissingTimestamp: 0.02,
		Seed:             42,
	}
}
