package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vouchwatch/backend/internal/domain"
)

// Repository persists endorsements as a property graph: Participant nodes
// joined by one VOUCHED relationship per raw record. Analysis never queries
// the store incrementally; it pulls the full snapshot and works in memory.
type Repository struct {
	client Client
}

// NewRepository instantiates a Repository backed by the supplied client.
func NewRepository(client Client) *Repository {
	return &Repository{client: client}
}

const upsertEndorsementCypher = `
MERGE (a:Participant {id: $from})
ON CREATE SET a.displayName = $fromName, a.reputationScore = $fromReputation
MERGE (b:Participant {id: $to})
ON CREATE SET b.displayName = $toName, b.reputationScore = $toReputation
CREATE (a)-[:VOUCHED {stake: $stake, timestamp: $timestamp}]->(b)
`

const fetchEndorsementsCypher = `
MATCH (a:Participant)-[v:VOUCHED]->(b:Participant)
RETURN a.id AS from, b.id AS to, v.stake AS stake, v.timestamp AS timestamp,
       a.displayName AS fromName, a.reputationScore AS fromReputation,
       b.displayName AS toName, b.reputationScore AS toReputation
ORDER BY from, to, timestamp
`

const countEndorsementsCypher = `
MATCH (:Participant)-[v:VOUCHED]->(:Participant)
RETURN count(v) AS total
`

// UpsertEndorsement stores one raw endorsement record. Participants are merged
// by ID; every record becomes its own VOUCHED relationship so parallel
// endorsements survive until the in-memory graph merges them.
func (r *Repository) UpsertEndorsement(ctx context.Context, e domain.Endorsement) error {
	if e.From == "" || e.To == "" {
		return errors.New("endorsement requires both from and to participant IDs")
	}

	params := map[string]any{
		"from":           e.From,
		"to":             e.To,
		"stake":          e.Stake,
		"timestamp":      timestampParam(e.Timestamp),
		"fromName":       infoName(e.FromInfo),
		"fromReputation": infoReputation(e.FromInfo),
		"toName":         infoName(e.ToInfo),
		"toReputation":   infoReputation(e.ToInfo),
	}

	if _, err := r.client.ExecuteWrite(ctx, upsertEndorsementCypher, params); err != nil {
		return fmt.Errorf("upsert endorsement %s->%s: %w", e.From, e.To, err)
	}
	return nil
}

// BulkUpsert stores records concurrently with bounded parallelism.
func (r *Repository) BulkUpsert(ctx context.Context, records []domain.Endorsement, workers int) error {
	if workers <= 0 {
		workers = 4
	}
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	for _, rec := range records {
		rec := rec
		grp.Go(func() error {
			return r.UpsertEndorsement(grpCtx, rec)
		})
	}
	return grp.Wait()
}

// FetchAll returns the complete endorsement snapshot for analysis.
func (r *Repository) FetchAll(ctx context.Context) ([]domain.Endorsement, error) {
	res, err := r.client.ExecuteRead(ctx, fetchEndorsementsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch endorsements: %w", err)
	}

	records := make([]domain.Endorsement, 0, len(res.Records))
	for _, rec := range res.Records {
		e := domain.Endorsement{
			From:      stringValue(rec["from"]),
			To:        stringValue(rec["to"]),
			Stake:     stringValue(rec["stake"]),
			Timestamp: timeValue(rec["timestamp"]),
		}
		if name := stringValue(rec["fromName"]); name != "" {
			e.FromInfo = &domain.ParticipantInfo{
				DisplayName:     name,
				ReputationScore: floatValue(rec["fromReputation"]),
			}
		}
		if name := stringValue(rec["toName"]); name != "" {
			e.ToInfo = &domain.ParticipantInfo{
				DisplayName:     name,
				ReputationScore: floatValue(rec["toReputation"]),
			}
		}
		records = append(records, e)
	}
	return records, nil
}

// CountEndorsements returns the total stored record count.
func (r *Repository) CountEndorsements(ctx context.Context) (int64, error) {
	res, err := r.client.ExecuteRead(ctx, countEndorsementsCypher, nil)
	if err != nil {
		return 0, fmt.Errorf("count endorsements: %w", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	return intValue(res.Records[0]["total"]), nil
}

func timestampParam(ts *time.Time) any {
	if ts == nil {
		return nil
	}
	return ts.UTC().Format(time.RFC3339)
}

func infoName(info *domain.ParticipantInfo) string {
	if info == nil {
		return ""
	}
	return info.DisplayName
}

func infoReputation(info *domain.ParticipantInfo) float64 {
	if info == nil {
		return 0
	}
	return info.ReputationScore
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func intValue(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func timeValue(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
