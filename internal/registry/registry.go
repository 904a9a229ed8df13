package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// The registry is a key-value score store: owner-gated writes, public reads,
// values clamped to 0..100. It mirrors the on-ledger registry interface so the
// export payloads round-trip through the same read surface.

var (
	// ErrUnauthorized rejects writes from anything but the configured owner.
	ErrUnauthorized = errors.New("registry: caller is not the owner")
	// ErrNotFound indicates no score is stored for the participant.
	ErrNotFound = errors.New("registry: participant not found")
	// ErrLengthMismatch rejects batch writes with misaligned arrays.
	ErrLengthMismatch = errors.New("registry: ids and scores length mismatch")
)

// Cutoffs of the registry's coarse read interface. These are the external
// contract of the registry and deliberately differ from the scorer's own
// level taxonomy.
const (
	// HighRiskCutoff is the fixed threshold of the boolean high-risk read.
	HighRiskCutoff = 30

	lowCutoff      = 10
	mediumCutoff   = 30
	highCutoff     = 50
	criticalCutoff = 70
	maxScore       = 100
)

// Level is the registry's five-way categorical risk read.
type Level string

const (
	LevelMinimal  Level = "minimal"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Entry is the stored value per participant.
type Entry struct {
	Score       uint8     `json:"score"`
	LastUpdated time.Time `json:"lastUpdated"`
}

var bucketScores = []byte("scores")

// Registry is a bbolt-backed score store.
type Registry struct {
	db         *bbolt.DB
	ownerToken string
	nowFn      func() time.Time
}

// Open creates or opens the registry database at path. The owner token gates
// all writes; an empty token disables writing entirely.
func Open(path, ownerToken string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketScores)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create registry bucket: %w", err)
	}

	return &Registry{db: db, ownerToken: ownerToken, nowFn: time.Now}, nil
}

// Close releases the underlying database.
func (r *Registry) Close() error { return r.db.Close() }

// WithClock overrides the time provider (used primarily in tests).
func (r *Registry) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		r.nowFn = nowFn
	}
}

func (r *Registry) authorize(token string) error {
	if r.ownerToken == "" || token != r.ownerToken {
		return ErrUnauthorized
	}
	return nil
}

// Update stores one participant's score, clamped to 0..100.
func (r *Registry) Update(token, participantID string, score uint8) error {
	return r.BatchUpdate(token, []string{participantID}, []uint8{score})
}

// BatchUpdate stores scores for the parallel id/score arrays in one
// transaction. All writes land with the same lastUpdated timestamp.
func (r *Registry) BatchUpdate(token string, ids []string, scores []uint8) error {
	if err := r.authorize(token); err != nil {
		return err
	}
	if len(ids) != len(scores) {
		return ErrLengthMismatch
	}

	now := r.nowFn().UTC()
	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketScores)
		for i, id := range ids {
			score := scores[i]
			if score > maxScore {
				score = maxScore
			}
			data, err := json.Marshal(Entry{Score: score, LastUpdated: now})
			if err != nil {
				return fmt.Errorf("marshal entry for %s: %w", id, err)
			}
			if err := bucket.Put([]byte(id), data); err != nil {
				return fmt.Errorf("put %s: %w", id, err)
			}
		}
		return nil
	})
}

// Get returns the stored entry for a participant.
func (r *Registry) Get(participantID string) (Entry, error) {
	var entry Entry
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketScores).Get([]byte(participantID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// BatchGet reads entries for the given ids; absent participants are omitted.
func (r *Registry) BatchGet(ids []string) (map[string]Entry, error) {
	entries := make(map[string]Entry, len(ids))
	err := r.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketScores)
		for _, id := range ids {
			data := bucket.Get([]byte(id))
			if data == nil {
				continue
			}
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				return fmt.Errorf("unmarshal %s: %w", id, err)
			}
			entries[id] = entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of stored participants.
func (r *Registry) Count() (int, error) {
	count := 0
	err := r.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketScores).Stats().KeyN
		return nil
	})
	return count, err
}

// IsHighRisk reports whether the stored score reaches the fixed cutoff of 30.
func (r *Registry) IsHighRisk(participantID string) (bool, error) {
	entry, err := r.Get(participantID)
	if err != nil {
		return false, err
	}
	return entry.Score >= HighRiskCutoff, nil
}

// LevelOf returns the coarse categorical level for the stored score.
func (r *Registry) LevelOf(participantID string) (Level, error) {
	entry, err := r.Get(participantID)
	if err != nil {
		return "", err
	}
	return LevelForScore(entry.Score), nil
}

// LevelForScore maps a stored score onto the registry's coarse taxonomy.
func LevelForScore(score uint8) Level {
	switch {
	case score < lowCutoff:
		return LevelMinimal
	case score < mediumCutoff:
		return LevelLow
	case score < highCutoff:
		return LevelMedium
	case score < criticalCutoff:
		return LevelHigh
	default:
		return LevelCritical
	}
}
