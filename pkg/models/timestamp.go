package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// secondsCutoff separates epoch seconds from epoch milliseconds. Anything
// below it is treated as seconds.
const secondsCutoff = 100000000000

// Timestamp decodes the TS field, which the API sends as epoch seconds,
// epoch milliseconds, or an ISO 8601 string depending on the event source.
type Timestamp struct {
	time.Time
}

// FromEpoch converts a number using the same seconds/milliseconds rule as TS.
func FromEpoch(v float64) Timestamp {
	if v < secondsCutoff {
		return Timestamp{time.UnixMilli(int64(v * 1000)).UTC()}
	}
	return Timestamp{time.UnixMilli(int64(v)).UTC()}
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if b[0] != '"' {
		v, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("invalid TS %s: %w", b, err)
		}
		*t = FromEpoch(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*t = FromEpoch(v)
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid TS %q", s)
}

// MarshalJSON emits epoch seconds, the most common form on the wire.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.Unix(), 10)), nil
}
