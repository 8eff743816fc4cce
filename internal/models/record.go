package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// legacyTextLocalFilenameKey is the misspelled field older cta-txt-loc
// sidecars carry. It is accepted on read and never written.
const legacyTextLocalFilenameKey = "original_loc_filenam"

// pythonISOLayout matches datetime.isoformat() output without a zone.
const pythonISOLayout = "2006-01-02T15:04:05.999999"

// Record is one persisted analysis of one asset. Its JSON form depends on
// Kind; see MarshalJSON and DecodeRecord.
type Record struct {
	Kind             AnalysisKind `json:"-"`
	OriginalFilename string       `json:"-"`
	// Score is nil when the asset was checked but had nothing to score.
	Score      *float64  `json:"-"`
	Response   string    `json:"-"`
	AnalyzedAt time.Time `json:"-"`
	Checked    bool      `json:"-"`
	Error      string    `json:"-"`
}

// ScoreValue returns the score, or 0 when there is none.
func (r *Record) ScoreValue() float64 {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}

// HasScore reports whether the record carries a score.
func (r *Record) HasScore() bool {
	return r.Score != nil
}

// Validate checks that the record is complete and its score is in range.
func (r *Record) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("invalid analysis kind %q", r.Kind)
	}
	if r.OriginalFilename == "" {
		return errors.New("original filename must not be empty")
	}
	if r.Score == nil {
		if !r.Checked {
			return errors.New("record without score must be marked checked")
		}
		if !r.Kind.WritesCheckedRecords() {
			return fmt.Errorf("kind %s does not support checked records", r.Kind)
		}
		return nil
	}
	s := *r.Score
	if s < 0.0 || s > 1.0 {
		return errors.New("score must be between 0.0 and 1.0")
	}
	if math.Abs(s*10-math.Round(s*10)) > 1e-9 {
		return errors.New("score must have at most one decimal digit")
	}
	return nil
}

// MarshalJSON writes the record using its kind's field names.
func (r Record) MarshalJSON() ([]byte, error) {
	def, ok := kindDefs[r.Kind]
	if !ok {
		return nil, fmt.Errorf("cannot encode record of unknown kind %q", r.Kind)
	}
	f := def.fields

	out := map[string]any{
		f.filename: r.OriginalFilename,
	}
	if r.Score != nil {
		out[f.score] = *r.Score
		out[f.response] = r.Response
	}
	if f.date != "" && !r.AnalyzedAt.IsZero() {
		out[f.date] = r.AnalyzedAt.Format(time.RFC3339)
	}
	if f.checked {
		out["checked"] = r.Checked
		if r.Error != "" {
			out["error"] = r.Error
		}
	}
	return json.Marshal(out)
}

// DecodeRecord parses sidecar content written for kind. Legacy field names
// are accepted. An error means the sidecar exists but cannot be used.
func DecodeRecord(kind AnalysisKind, data []byte) (*Record, error) {
	def, ok := kindDefs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown analysis kind %q", kind)
	}
	f := def.fields

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode sidecar: %w", err)
	}

	rec := &Record{Kind: kind}

	if err := decodeField(raw, f.filename, &rec.OriginalFilename); err != nil {
		return nil, err
	}
	if rec.OriginalFilename == "" && kind == KindTextLocal {
		if err := decodeField(raw, legacyTextLocalFilenameKey, &rec.OriginalFilename); err != nil {
			return nil, err
		}
	}

	if msg, ok := raw[f.score]; ok && string(msg) != "null" {
		var s float64
		if err := json.Unmarshal(msg, &s); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f.score, err)
		}
		rec.Score = &s
	}
	if err := decodeField(raw, f.response, &rec.Response); err != nil {
		return nil, err
	}

	if f.date != "" {
		var ts string
		if err := decodeField(raw, f.date, &ts); err != nil {
			return nil, err
		}
		rec.AnalyzedAt = parseTimestamp(ts)
	}
	if f.checked {
		if err := decodeField(raw, "checked", &rec.Checked); err != nil {
			return nil, err
		}
		if err := decodeField(raw, "error", &rec.Error); err != nil {
			return nil, err
		}
	}

	if rec.Score == nil && !rec.Checked {
		return nil, fmt.Errorf("sidecar has no %s field", f.score)
	}
	return rec, nil
}

func decodeField(raw map[string]json.RawMessage, key string, dest any) error {
	msg, ok := raw[key]
	if !ok || string(msg) == "null" {
		return nil
	}
	if err := json.Unmarshal(msg, dest); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// parseTimestamp accepts RFC 3339 and Python isoformat timestamps. Anything
// else yields the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(pythonISOLayout, s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
