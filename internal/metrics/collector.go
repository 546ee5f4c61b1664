package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
)

// FleetSource produces the fleet snapshot scraped on every collection.
type FleetSource interface {
	FetchFleet(ctx context.Context) (dashboard.FleetSnapshot, error)
}

var (
	upDesc = prometheus.NewDesc(
		"apm_up", "Was the last scrape of the events API successful.", nil, nil,
	)
	scrapeDurationDesc = prometheus.NewDesc(
		"apm_scrape_duration_seconds", "Time taken to scrape the events API.", nil, nil,
	)
	devicesDesc = prometheus.NewDesc(
		"apm_devices_total", "Number of unique devices that reported events.", nil, nil,
	)
	eventsDesc = prometheus.NewDesc(
		"apm_events_total", "Events recorded, grouped by event name.", []string{"event"}, nil,
	)
	logoTypesDesc = prometheus.NewDesc(
		"apm_logo_detections_total", "Logo detections grouped by detection type.", []string{"type"}, nil,
	)
	channelDesc = prometheus.NewDesc(
		"apm_channel_detections_total", "Logo detections grouped by channel.", []string{"channel"}, nil,
	)
)

// Collector exposes the fleet metrics of the events API. A scrape that
// fails on an expired token logs in again and retries once.
type Collector struct {
	Source  FleetSource
	Relogin func(ctx context.Context) error
	Timeout time.Duration
	Log     zerolog.Logger

	mu sync.Mutex
}

func NewCollector(source FleetSource, relogin func(ctx context.Context) error, log zerolog.Logger) *Collector {
	return &Collector{Source: source, Relogin: relogin, Timeout: 30 * time.Second, Log: log}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- upDesc
	ch <- scrapeDurationDesc
	ch <- devicesDesc
	ch <- eventsDesc
	ch <- logoTypesDesc
	ch <- channelDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	success := 1.0
	snap, err := c.fetchWithRetry(ctx)
	if err != nil {
		success = 0.0
		c.Log.Error().Err(err).Msg("error scraping fleet metrics")
	} else {
		ch <- prometheus.MustNewConstMetric(devicesDesc, prometheus.GaugeValue, float64(snap.TotalDevices))
		for _, s := range snap.Distribution {
			ch <- prometheus.MustNewConstMetric(eventsDesc, prometheus.GaugeValue, float64(s.Count), s.Name)
		}
		for _, s := range snap.DetectionTypes {
			ch <- prometheus.MustNewConstMetric(logoTypesDesc, prometheus.GaugeValue, float64(s.Count), s.Name)
		}
		for _, chn := range snap.Channels {
			ch <- prometheus.MustNewConstMetric(channelDesc, prometheus.GaugeValue, float64(chn.Count), chn.ChannelID)
		}
	}

	ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, success)
	ch <- prometheus.MustNewConstMetric(scrapeDurationDesc, prometheus.GaugeValue, time.Since(start).Seconds())
}

func (c *Collector) fetchWithRetry(ctx context.Context) (dashboard.FleetSnapshot, error) {
	snap, err := c.Source.FetchFleet(ctx)
	if err == nil {
		return snap, nil
	}
	if client.IsAuthError(err) && c.Relogin != nil {
		if e := c.Relogin(ctx); e == nil {
			c.Log.Info().Msg("re-authenticated after auth error")
			return c.Source.FetchFleet(ctx)
		}
	}
	return dashboard.FleetSnapshot{}, err
}
