package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

type fakeSource struct {
	snaps []dashboard.FleetSnapshot
	errs  []error
	calls int
}

func (f *fakeSource) FetchFleet(ctx context.Context) (dashboard.FleetSnapshot, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return dashboard.FleetSnapshot{}, err
	}
	return f.snaps[0], nil
}

func fleet() dashboard.FleetSnapshot {
	return dashboard.FleetSnapshot{
		TotalDevices: 12,
		Distribution: []dashboard.Share{{Name: models.EventLogo, Count: 40}, {Name: models.EventShutdown, Count: 2}},
		DetectionTypes: []dashboard.Share{
			{Name: "tv", Count: 30},
		},
		Channels: []models.ChannelCount{{ChannelID: "zee", Count: 9}},
	}
}

func TestCollect(t *testing.T) {
	c := NewCollector(&fakeSource{snaps: []dashboard.FleetSnapshot{fleet()}}, nil, zerolog.Nop())

	expected := `
# HELP apm_devices_total Number of unique devices that reported events.
# TYPE apm_devices_total gauge
apm_devices_total 12
# HELP apm_events_total Events recorded, grouped by event name.
# TYPE apm_events_total gauge
apm_events_total{event="LOGO_DETECTED"} 40
apm_events_total{event="SHUT_DOWN"} 2
# HELP apm_logo_detections_total Logo detections grouped by detection type.
# TYPE apm_logo_detections_total gauge
apm_logo_detections_total{type="tv"} 30
# HELP apm_channel_detections_total Logo detections grouped by channel.
# TYPE apm_channel_detections_total gauge
apm_channel_detections_total{channel="zee"} 9
# HELP apm_up Was the last scrape of the events API successful.
# TYPE apm_up gauge
apm_up 1
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"apm_devices_total", "apm_events_total", "apm_logo_detections_total", "apm_channel_detections_total", "apm_up")
	require.NoError(t, err)
}

func TestCollectRelogin(t *testing.T) {
	authErr := &client.APIError{Op: "get event metrics", Status: http.StatusUnauthorized}
	src := &fakeSource{snaps: []dashboard.FleetSnapshot{fleet()}, errs: []error{authErr}}
	relogins := 0
	c := NewCollector(src, func(ctx context.Context) error {
		relogins++
		return nil
	}, zerolog.Nop())

	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 1, relogins)
	assert.Equal(t, 2, src.calls)
	for _, mf := range families {
		if mf.GetName() == "apm_up" {
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
}

func TestCollectFailure(t *testing.T) {
	src := &fakeSource{errs: []error{errors.New("connection refused")}}
	c := NewCollector(src, func(ctx context.Context) error {
		t.Fatal("relogin on a non-auth error")
		return nil
	}, zerolog.Nop())

	// only up and scrape duration are emitted
	assert.Equal(t, 2, testutil.CollectAndCount(c))
	src.calls = 0
	err := testutil.CollectAndCompare(c, strings.NewReader(`
# HELP apm_up Was the last scrape of the events API successful.
# TYPE apm_up gauge
apm_up 0
`), "apm_up")
	assert.NoError(t, err)
}
