package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

// Sort keys accepted by SortEvents
const (
	SortByTime       = "TS"
	SortByConfidence = "confidence"
)

// SortState is the active column and direction of a detection table.
type SortState struct {
	Key  string `json:"key"`
	Desc bool   `json:"desc"`
}

// Toggle flips the direction when key is already active and switches to
// ascending order on a new key.
func (s SortState) Toggle(key string) SortState {
	key = NormalizeSortKey(key)
	if s.Key == key {
		return SortState{Key: key, Desc: !s.Desc}
	}
	return SortState{Key: key}
}

// NormalizeSortKey maps the aliases used by links and flags onto a key.
func NormalizeSortKey(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "confidence", "accuracy", "details.accuracy":
		return SortByConfidence
	case "", "ts", "time", "timestamp":
		return SortByTime
	}
	return SortByTime
}

// SortEvents orders events in place. Confidence sorting reads the logo
// accuracy; events without one sort as zero.
func SortEvents(events []models.Event, s SortState) {
	less := func(a, b models.Event) bool { return a.TS.Before(b.TS.Time) }
	if NormalizeSortKey(s.Key) == SortByConfidence {
		less = func(a, b models.Event) bool { return confidence(a) < confidence(b) }
	}
	sort.SliceStable(events, func(i, j int) bool {
		if s.Desc {
			return less(events[j], events[i])
		}
		return less(events[i], events[j])
	})
}

func confidence(e models.Event) float64 {
	d, err := e.Logo()
	if err != nil {
		return 0
	}
	return d.Accuracy
}

// Confidence tiers drive the colour of the accuracy badge.
const (
	TierLow    = "low"
	TierMedium = "medium"
	TierHigh   = "high"
)

func Tier(accuracy float64) string {
	switch {
	case accuracy < 0.5:
		return TierLow
	case accuracy > 0.75:
		return TierHigh
	}
	return TierMedium
}

// Percent renders an accuracy in [0,1] as "87.5%".
func Percent(accuracy float64) string {
	return fmt.Sprintf("%.1f%%", accuracy*100)
}
