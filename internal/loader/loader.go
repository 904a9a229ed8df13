package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vouchwatch/backend/internal/domain"
)

// Envelope keys under which upstream exports nest the record array.
var envelopeKeys = []string{"endorsements", "vouches", "records"}

// MalformedRecordError reports a record missing required fields. Loading
// aborts on the first such record; skipping it would silently understate the
// participant's connectivity in the graph.
type MalformedRecordError struct {
	Index   int
	Missing []string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d is missing required fields: %s", e.Index, strings.Join(e.Missing, ", "))
}

// LoadFile reads and extracts endorsement records from a JSON file.
func LoadFile(path string) ([]domain.Endorsement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load extracts the flat endorsement list from a JSON document. The document
// is either a top-level array of records or an envelope object nesting the
// array under a known key.
func Load(r io.Reader) ([]domain.Endorsement, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	raw, err := recordArray(doc)
	if err != nil {
		return nil, err
	}

	records := make([]domain.Endorsement, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, &MalformedRecordError{Index: i, Missing: []string{"from", "to", "stake"}}
		}
		rec, err := parseRecord(i, obj)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func recordArray(doc any) ([]any, error) {
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range envelopeKeys {
			if inner, ok := v[key]; ok {
				arr, ok := inner.([]any)
				if !ok {
					return nil, fmt.Errorf("envelope key %q does not hold an array", key)
				}
				return arr, nil
			}
		}
		return nil, fmt.Errorf("document is an object without a known record key (%s)", strings.Join(envelopeKeys, ", "))
	default:
		return nil, fmt.Errorf("document is neither an array nor an envelope object")
	}
}

func parseRecord(idx int, obj map[string]any) (domain.Endorsement, error) {
	var missing []string

	from, ok := identifier(obj["from"])
	if !ok {
		missing = append(missing, "from")
	}
	to, ok := identifier(obj["to"])
	if !ok {
		missing = append(missing, "to")
	}
	stake, ok := stakeString(obj["stake"])
	if !ok {
		missing = append(missing, "stake")
	}

	if len(missing) > 0 {
		return domain.Endorsement{}, &MalformedRecordError{Index: idx, Missing: missing}
	}

	rec := domain.Endorsement{
		From:      from,
		To:        to,
		Stake:     stake,
		Timestamp: parseTimestamp(obj["timestamp"]),
		FromInfo:  participantInfo(obj["fromUser"]),
		ToInfo:    participantInfo(obj["toUser"]),
	}
	return rec, nil
}

// identifier accepts string or numeric participant IDs and canonicalizes
// them to strings.
func identifier(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case json.Number:
		return id.String(), true
	default:
		return "", false
	}
}

func stakeString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		if s == "" {
			return "", false
		}
		return s, true
	case json.Number:
		return s.String(), true
	default:
		return "", false
	}
}

// parseTimestamp handles ISO-8601 strings and Unix epoch numbers (seconds,
// or milliseconds for values past 1e12). Anything unparseable yields nil;
// such records are later excluded from burst windowing rather than bucketed.
func parseTimestamp(v any) *time.Time {
	switch ts := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, ts); err == nil {
				t = t.UTC()
				return &t
			}
		}
		return nil
	case json.Number:
		n, err := ts.Int64()
		if err != nil {
			if f, ferr := ts.Float64(); ferr == nil {
				n = int64(f)
			} else {
				return nil
			}
		}
		var t time.Time
		if n > 1e12 {
			t = time.UnixMilli(n).UTC()
		} else {
			t = time.Unix(n, 0).UTC()
		}
		return &t
	default:
		return nil
	}
}

func participantInfo(v any) *domain.ParticipantInfo {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	info := &domain.ParticipantInfo{}
	if name, ok := obj["displayName"].(string); ok {
		info.DisplayName = name
	}
	if score, ok := obj["reputationScore"].(json.Number); ok {
		if f, err := score.Float64(); err == nil {
			info.ReputationScore = f
		}
	}
	if info.DisplayName == "" && info.ReputationScore == 0 {
		return nil
	}
	return info
}

// Stats computes summary counts over a loaded record set.
func Stats(records []domain.Endorsement) domain.EndorsementStats {
	vouchers := make(map[string]struct{})
	subjects := make(map[string]struct{})
	all := make(map[string]struct{})
	for _, rec := range records {
		vouchers[rec.From] = struct{}{}
		subjects[rec.To] = struct{}{}
		all[rec.From] = struct{}{}
		all[rec.To] = struct{}{}
	}
	return domain.EndorsementStats{
		TotalEndorsements:  len(records),
		UniqueVouchers:     len(vouchers),
		UniqueSubjects:     len(subjects),
		UniqueParticipants: len(all),
	}
}
