package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

const chartsTopic = "charts"

// chartsCache holds the fleet snapshot shared by every viewer of the charts
// page. The cron job refreshes it with the token of the last viewer.
type chartsCache struct {
	s *Server

	mu    sync.Mutex
	snap  dashboard.FleetSnapshot
	ok    bool
	token string
}

func newChartsCache(s *Server) *chartsCache {
	return &chartsCache{s: s}
}

// get returns the cached snapshot when it is younger than the charts
// interval, fetching a new one otherwise.
func (cc *chartsCache) get(ctx context.Context, token string) (dashboard.FleetSnapshot, error) {
	cc.mu.Lock()
	cc.token = token
	if cc.ok && cc.s.now().Sub(cc.snap.FetchedAt) < cc.s.opts.ChartsInterval {
		snap := cc.snap
		cc.mu.Unlock()
		return snap, nil
	}
	cc.mu.Unlock()
	return cc.fetch(ctx, token)
}

func (cc *chartsCache) fetch(ctx context.Context, token string) (dashboard.FleetSnapshot, error) {
	snap, err := cc.s.dashboard(token).FetchFleet(ctx)
	if err != nil {
		if client.IsAuthError(err) {
			cc.mu.Lock()
			if cc.token == token {
				cc.token = ""
			}
			cc.mu.Unlock()
		}
		return dashboard.FleetSnapshot{}, err
	}

	cc.mu.Lock()
	cc.snap, cc.ok = snap, true
	cc.mu.Unlock()
	return snap, nil
}

// refresh is the cron job. It pushes the new charts to live viewers.
func (cc *chartsCache) refresh() {
	cc.mu.Lock()
	token := cc.token
	cc.mu.Unlock()
	if token == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := cc.fetch(ctx, token)
	if err != nil {
		cc.s.log.Warn().Err(err).Msg("charts refresh failed")
		return
	}
	if cc.s.hub.Count() == 0 {
		return
	}
	html, err := cc.s.fragment("charts_live", chartsPageData(snap))
	if err != nil {
		cc.s.log.Error().Err(err).Msg("failed to render charts")
		return
	}
	cc.s.hub.Broadcast(chartsTopic, liveMessage{Type: "update", HTML: html, LastUpdated: snap.FetchedAt.Format(time.RFC3339)})
}

type channelBar struct {
	models.ChannelCount
	Percent float64
}

type chartsView struct {
	Snapshot dashboard.FleetSnapshot
	Channels []channelBar
}

func chartsPageData(snap dashboard.FleetSnapshot) page {
	view := chartsView{Snapshot: snap}
	top := snap.TopChannels(10)
	max := 0
	if len(top) > 0 {
		max = top[0].Count
	}
	for _, ch := range top {
		bar := channelBar{ChannelCount: ch}
		if max > 0 {
			bar.Percent = float64(ch.Count) / float64(max) * 100
		}
		view.Channels = append(view.Channels, bar)
	}
	return page{Data: view}
}

func (s *Server) chartsPage(c *gin.Context) {
	p := s.newPage(c, "Charts", "charts")
	sess := currentSession(c)

	snap, err := s.charts.get(c.Request.Context(), sess.Token)
	if err != nil {
		if s.failed(c, &p, err) {
			return
		}
	} else {
		p.Data = chartsPageData(snap).Data
		p.LiveURL = "/ws/charts"
	}
	if p.Data == nil {
		p.Data = chartsView{}
	}

	p.Recent = s.recent(c.Request.Context(), sess)
	c.HTML(http.StatusOK, "charts.html", p)
}
