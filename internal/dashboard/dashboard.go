package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

var (
	ErrNoDeviceID = errors.New("enter a device id")
	ErrNoData     = errors.New("No data found for this device ID.")

	// ErrFetch wraps every API or transport failure of a fetch.
	ErrFetch = errors.New("error fetching data")
)

// DefaultLimit is the page size of every table.
const DefaultLimit = 10

// API is the slice of the REST client the dashboard needs.
type API interface {
	SearchEvents(ctx context.Context, q client.EventQuery) (client.EventPage, error)
	DeviceEvents(ctx context.Context, deviceID string, eventType, page, limit int) (client.EventPage, error)
	LatestEvent(ctx context.Context, deviceID string, eventType int) (*models.Event, error)
	Metrics(ctx context.Context, types []int) (models.MetricsResponse, error)
	LogoDetectionStats(ctx context.Context) (models.LogoDetectionStats, error)
}

type Dashboard struct {
	api API
	now func() time.Time
}

func New(api API) *Dashboard {
	return &Dashboard{api: api, now: time.Now}
}

// DevicePage selects the logo and audio pages independently.
type DevicePage struct {
	LogoPage   int
	LogoLimit  int
	AudioPage  int
	AudioLimit int
}

func (p DevicePage) normalized() DevicePage {
	if p.LogoPage < 1 {
		p.LogoPage = 1
	}
	if p.AudioPage < 1 {
		p.AudioPage = 1
	}
	if p.LogoLimit < 1 {
		p.LogoLimit = DefaultLimit
	}
	if p.AudioLimit < 1 {
		p.AudioLimit = DefaultLimit
	}
	return p
}

// DeviceSnapshot is everything the device page shows for one id.
type DeviceSnapshot struct {
	DeviceID    string          `json:"deviceId"`
	Logo        []models.Event  `json:"logo"`
	LogoPager   Pager           `json:"logoPager"`
	Audio       []models.Event  `json:"audio"`
	AudioPager  Pager           `json:"audioPager"`
	MemberGuest *models.Event   `json:"memberGuest,omitempty"`
	Members     []models.Member `json:"members"`
	Shutdown    *models.Event   `json:"shutdown,omitempty"`
	FetchedAt   time.Time       `json:"fetchedAt"`
}

// Empty reports whether the device returned nothing at all.
func (s DeviceSnapshot) Empty() bool {
	return len(s.Logo) == 0 && len(s.Audio) == 0 && s.MemberGuest == nil && s.Shutdown == nil
}

// FetchDevice loads the four device panels concurrently. When every panel
// is empty the snapshot is still returned together with ErrNoData.
func (d *Dashboard) FetchDevice(ctx context.Context, deviceID string, page DevicePage) (DeviceSnapshot, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return DeviceSnapshot{}, ErrNoDeviceID
	}
	page = page.normalized()

	snap := DeviceSnapshot{DeviceID: deviceID}
	var logo, audio client.EventPage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		logo, err = d.api.DeviceEvents(gctx, deviceID, models.TypeLogo, page.LogoPage, page.LogoLimit)
		return err
	})
	g.Go(func() error {
		var err error
		audio, err = d.api.DeviceEvents(gctx, deviceID, models.TypeAudio, page.AudioPage, page.AudioLimit)
		return err
	})
	g.Go(func() error {
		var err error
		snap.MemberGuest, err = d.api.LatestEvent(gctx, deviceID, models.TypeMemberGuest)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Shutdown, err = d.api.LatestEvent(gctx, deviceID, models.TypeShutdown)
		return err
	})
	if err := g.Wait(); err != nil {
		return DeviceSnapshot{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	snap.Logo = logo.Events
	snap.LogoPager = Pager{Page: page.LogoPage, Limit: page.LogoLimit, Total: logo.Total}
	snap.Audio = audio.Events
	snap.AudioPager = Pager{Page: page.AudioPage, Limit: page.AudioLimit, Total: audio.Total}
	snap.Members = []models.Member{}
	if snap.MemberGuest != nil {
		if details, err := snap.MemberGuest.MemberGuest(); err == nil {
			snap.Members = details.Members()
		}
	}
	snap.FetchedAt = d.now()

	if snap.Empty() {
		return snap, ErrNoData
	}
	return snap, nil
}

// EventsSnapshot is one page of the event log.
type EventsSnapshot struct {
	Query     client.EventQuery `json:"query"`
	Events    []models.Event    `json:"events"`
	Pager     Pager             `json:"pager"`
	Shutdown  *models.Event     `json:"shutdown,omitempty"` // only when a device is selected
	FetchedAt time.Time         `json:"fetchedAt"`
}

// FetchEvents loads a page of the event log. With a device selected the
// latest shutdown is loaded alongside for the stats panel.
func (d *Dashboard) FetchEvents(ctx context.Context, q client.EventQuery) (EventsSnapshot, error) {
	q.DeviceID = strings.TrimSpace(q.DeviceID)
	if q.Page < 1 {
		q.Page = 1
	}
	if err := q.Validate(); err != nil {
		return EventsSnapshot{}, err
	}

	snap := EventsSnapshot{Query: q}
	var page client.EventPage

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = d.api.SearchEvents(gctx, q)
		return err
	})
	if q.DeviceID != "" {
		g.Go(func() error {
			var err error
			snap.Shutdown, err = d.api.LatestEvent(gctx, q.DeviceID, models.TypeShutdown)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return EventsSnapshot{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	snap.Events = page.Events
	snap.Pager = Pager{Page: q.Page, Limit: q.Limit, Total: page.Total}
	snap.FetchedAt = d.now()
	return snap, nil
}

// Share is one slice of a distribution chart.
type Share struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// FleetSnapshot backs the charts page and the exporter.
type FleetSnapshot struct {
	TotalDevices      int                   `json:"totalDevices"`
	TotalEvents       int                   `json:"totalEvents"`
	Distribution      []Share               `json:"distribution"`
	DetectionTypes    []Share               `json:"detectionTypes"`
	Channels          []models.ChannelCount `json:"channels"`
	MostActiveChannel models.ChannelCount   `json:"mostActiveChannel"`
	LogoLeadPercent   int                   `json:"logoLeadPercent"`
	TVLeadPercent     int                   `json:"tvLeadPercent"`
	FetchedAt         time.Time             `json:"fetchedAt"`
}

// FetchFleet loads the metrics and logo statistics concurrently.
func (d *Dashboard) FetchFleet(ctx context.Context) (FleetSnapshot, error) {
	var (
		metrics models.MetricsResponse
		logos   models.LogoDetectionStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		metrics, err = d.api.Metrics(gctx, models.FleetTypes)
		return err
	})
	g.Go(func() error {
		var err error
		logos, err = d.api.LogoDetectionStats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return FleetSnapshot{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	snap := BuildFleet(metrics, logos)
	snap.FetchedAt = d.now()
	return snap, nil
}

// BuildFleet derives the chart figures from the raw API answers.
func BuildFleet(metrics models.MetricsResponse, logos models.LogoDetectionStats) FleetSnapshot {
	snap := FleetSnapshot{
		TotalDevices:      metrics.Metrics.TotalUniqueDevices,
		MostActiveChannel: models.ChannelCount{ChannelID: "N/A"},
		Channels:          logos.Statistics.Channels,
	}
	if snap.Channels == nil {
		snap.Channels = []models.ChannelCount{}
	}

	logoCount := 0
	for _, e := range metrics.Metrics.EventsByType {
		snap.TotalEvents += e.Count
		if e.EventName == models.EventLogo {
			logoCount = e.Count
		}
	}
	snap.Distribution = make([]Share, 0, len(metrics.Metrics.EventsByType))
	for _, e := range metrics.Metrics.EventsByType {
		snap.Distribution = append(snap.Distribution, Share{Name: e.EventName, Count: e.Count, Percent: percent(e.Count, snap.TotalEvents)})
	}
	snap.LogoLeadPercent = roundPercent(logoCount, snap.TotalEvents)

	detections, tv := 0, 0
	for _, t := range logos.Statistics.DetectionTypes {
		detections += t.Count
		if t.Type == "tv" {
			tv = t.Count
		}
	}
	snap.DetectionTypes = make([]Share, 0, len(logos.Statistics.DetectionTypes))
	for _, t := range logos.Statistics.DetectionTypes {
		snap.DetectionTypes = append(snap.DetectionTypes, Share{Name: t.Type, Count: t.Count, Percent: percent(t.Count, detections)})
	}
	snap.TVLeadPercent = roundPercent(tv, detections)

	// first channel wins ties
	for i, ch := range logos.Statistics.Channels {
		if i == 0 || ch.Count > snap.MostActiveChannel.Count {
			snap.MostActiveChannel = ch
		}
	}
	return snap
}

// TopChannels returns the n busiest channels, busiest first.
func (s FleetSnapshot) TopChannels(n int) []models.ChannelCount {
	out := append([]models.ChannelCount(nil), s.Channels...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func roundPercent(part, total int) int {
	return int(math.Round(percent(part, total)))
}
