package timezone

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Default is the display zone used when nothing is configured.
const Default = "Indian Time"

// DisplayLayout renders like en-US toLocaleString with 2-digit 12 hour time.
const DisplayLayout = "Jan 2, 2006, 03:04:05 PM"

// ISOLayout is the UTC millisecond form the events API expects for date filters.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the form used by date inputs and --from/--to flags.
const DateLayout = "2006-01-02"

var ErrRangeOrder = errors.New("Start date cannot be after end date")

// offsets in hours east of UTC
var offsets = map[string]float64{
	"Nepal Time":   5.75,
	"Indian Time":  5.5,
	"Russian Time": 3,
	"UTC":          0,
	"EST":          -5,
}

// Names lists the selectable zones, east to west.
func Names() []string {
	names := make([]string, 0, len(offsets))
	for n := range offsets {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if offsets[names[i]] == offsets[names[j]] {
			return names[i] < names[j]
		}
		return offsets[names[i]] > offsets[names[j]]
	})
	return names
}

func Known(name string) bool {
	_, ok := offsets[name]
	return ok
}

// Location returns a fixed zone for name. Unknown names fall back to UTC.
func Location(name string) *time.Location {
	off, ok := offsets[name]
	if !ok {
		return time.UTC
	}
	return time.FixedZone(name, int(off*3600))
}

// Format renders t in the named zone. The zero time renders as "Never".
func Format(t time.Time, zone string) string {
	if t.IsZero() {
		return "Never"
	}
	return t.In(Location(zone)).Format(DisplayLayout)
}

// DayRange turns inclusive calendar dates into the API's startDate/endDate
// values: start of the first day and 23:59:59.999 of the last day in zone.
// Either bound may be empty, in which case the matching return is "".
func DayRange(start, end, zone string) (string, string, error) {
	loc := Location(zone)
	var from, to time.Time

	if start != "" {
		d, err := time.ParseInLocation(DateLayout, start, loc)
		if err != nil {
			return "", "", fmt.Errorf("invalid start date %q: %w", start, err)
		}
		from = d
	}
	if end != "" {
		d, err := time.ParseInLocation(DateLayout, end, loc)
		if err != nil {
			return "", "", fmt.Errorf("invalid end date %q: %w", end, err)
		}
		to = d.Add(24*time.Hour - time.Millisecond)
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return "", "", ErrRangeOrder
	}

	var fromStr, toStr string
	if !from.IsZero() {
		fromStr = from.UTC().Format(ISOLayout)
	}
	if !to.IsZero() {
		toStr = to.UTC().Format(ISOLayout)
	}
	return fromStr, toStr, nil
}
