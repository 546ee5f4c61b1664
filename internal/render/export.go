package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

// DefaultLogoBaseURL is the public bucket holding channel logos.
const DefaultLogoBaseURL = "https://apm-logo-bucket.s3.ap-south-1.amazonaws.com"

var (
	ErrNothingToExport = errors.New("nothing to export")
	ErrUnknownKind     = errors.New("kind must be logo or audio")
)

// Kind selects which detection table is exported.
type Kind string

const (
	KindLogo  Kind = "logo"
	KindAudio Kind = "audio"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindLogo:
		return KindLogo, nil
	case KindAudio:
		return KindAudio, nil
	}
	return "", ErrUnknownKind
}

// EventType is the API type code holding this kind of detection.
func (k Kind) EventType() int {
	if k == KindAudio {
		return models.TypeAudio
	}
	return models.TypeLogo
}

// Filename is the download name, e.g. logo_detection_2024-10-29.csv.
func Filename(kind Kind, now time.Time) string {
	return fmt.Sprintf("%s_detection_%s.csv", kind, now.UTC().Format("2006-01-02"))
}

// Select keeps the events whose _id is in ids. An empty selection, or one
// matching nothing, exports every event.
func Select(events []models.Event, ids []string) []models.Event {
	if len(ids) == 0 {
		return events
	}
	picked := lo.Filter(events, func(e models.Event, _ int) bool {
		return lo.Contains(ids, e.ObjectID)
	})
	if len(picked) == 0 {
		return events
	}
	return picked
}

// excluded columns never reach the CSV
var excluded = []string{"__v", "_id", "TS", "ID"}

type cell struct {
	key string
	raw json.RawMessage
}

// CSV writes events as CSV. Details objects are flattened into their own
// columns; the header is every column in the order first seen.
func CSV(w io.Writer, events []models.Event) error {
	if len(events) == 0 {
		return ErrNothingToExport
	}

	rows := make([]map[string]json.RawMessage, 0, len(events))
	headers := []string{}
	for _, e := range events {
		cells, err := flatten(e)
		if err != nil {
			return err
		}
		row := make(map[string]json.RawMessage, len(cells))
		for _, c := range cells {
			if lo.Contains(excluded, c.key) {
				continue
			}
			if !lo.Contains(headers, c.key) {
				headers = append(headers, c.key)
			}
			row[c.key] = c.raw
		}
		rows = append(rows, row)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(headers))
		for i, h := range headers {
			record[i] = csvValue(h, row[h])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// flatten walks the marshalled event keeping key order and splices the
// Details object keys in place of the Details column.
func flatten(e models.Event) ([]cell, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	top, err := orderedObject(raw)
	if err != nil {
		return nil, err
	}

	out := make([]cell, 0, len(top))
	for _, c := range top {
		if c.key == "Details" {
			if inner, err := orderedObject(c.raw); err == nil {
				out = append(out, inner...)
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// orderedObject decodes a JSON object into its members in document order.
func orderedObject(raw json.RawMessage) ([]cell, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("not an object")
	}

	var out []cell
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, cell{key: key, raw: v})
	}
	return out, nil
}

func csvValue(key string, raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	default:
		if key == "accuracy" {
			if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
				return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
			}
		}
	}
	return string(raw)
}

// LogoURL is the image of a channel logo in the bucket at base.
func LogoURL(base, channelID string) string {
	if base == "" {
		base = DefaultLogoBaseURL
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimSpace(channelID) + ".png"
}
