package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/ankurauti1234/Events-Dashboard/internal/auth"
	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/render"
	"github.com/ankurauti1234/Events-Dashboard/internal/store"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

const emailNotVerifiedMessage = "Please verify your email before logging in"

// refreshChoices are the auto-refresh periods offered in the UI, in seconds.
var refreshChoices = []int{10, 30, 60, 300, 600}

// page is the data every template receives.
type page struct {
	Title     string
	Active    string
	Session   auth.Session
	Zone      string
	Zones     []string
	Theme     string
	Themes    []string
	Refresh   time.Duration
	Intervals []int
	Recent    []string
	Error     string
	Notice    string
	LiveURL   string
	Data      interface{}
}

func (s *Server) newPage(c *gin.Context, title, active string) page {
	p := s.prefs(c)
	return page{
		Title:     title,
		Active:    active,
		Session:   currentSession(c),
		Zone:      p.Zone,
		Zones:     timezone.Names(),
		Theme:     p.Theme,
		Themes:    themes,
		Refresh:   p.Refresh,
		Intervals: refreshChoices,
	}
}

// failed handles a fetch error. An auth error ends the session and
// redirects; it returns true when the response is already written.
func (s *Server) failed(c *gin.Context, p *page, err error) bool {
	if client.IsAuthError(err) {
		s.clearSession(c)
		c.Redirect(http.StatusSeeOther, "/login?expired=1")
		return true
	}
	s.log.Warn().Err(err).Str("request_id", c.GetString("requestID")).Msg("fetch failed")
	p.Error = "Error fetching data"
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		p.Error += ": " + apiErr.Message
	}
	return false
}

func (s *Server) recent(ctx context.Context, sess auth.Session) []string {
	if s.opts.Store == nil {
		return nil
	}
	ids, err := s.opts.Store.List(ctx, sess.Owner(), store.DefaultSuggestions)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to list recent devices")
	}
	return ids
}

func (s *Server) remember(ctx context.Context, sess auth.Session, id string) {
	if s.opts.Store == nil || strings.TrimSpace(id) == "" {
		return
	}
	if err := s.opts.Store.Remember(ctx, sess.Owner(), id); err != nil {
		s.log.Warn().Err(err).Str("device", id).Msg("failed to remember device")
	}
}

// back is the local page the request came from, "/" otherwise.
func back(c *gin.Context) string {
	ref, err := url.Parse(c.Request.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != c.Request.Host) {
		return "/"
	}
	return ref.RequestURI()
}

func withParam(vals url.Values, key string, value int) string {
	out := url.Values{}
	for k, v := range vals {
		out[k] = append([]string(nil), v...)
	}
	out.Set(key, strconv.Itoa(value))
	return "?" + out.Encode()
}

// --- login ---

type loginForm struct {
	EmailOrName string `form:"emailOrname" binding:"required"`
	Password    string `form:"password" binding:"required"`
}

type loginView struct {
	Expired     bool
	EmailOrName string
}

func (s *Server) loginPage(c *gin.Context) {
	if readSession(c).Valid(s.now()) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	p := s.newPage(c, "Log in", "login")
	p.Data = loginView{Expired: c.Query("expired") != ""}
	c.HTML(http.StatusOK, "login.html", p)
}

func (s *Server) login(c *gin.Context) {
	p := s.newPage(c, "Log in", "login")

	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		p.Error = "Please enter your email or username and password"
		p.Data = loginView{EmailOrName: form.EmailOrName}
		c.HTML(http.StatusBadRequest, "login.html", p)
		return
	}

	sess, err := s.client("").Login(c.Request.Context(), strings.TrimSpace(form.EmailOrName), form.Password)
	if err != nil {
		var apiErr *client.APIError
		switch {
		case errors.Is(err, client.ErrEmailNotVerified):
			p.Error = emailNotVerifiedMessage
		case errors.As(err, &apiErr):
			p.Error = apiErr.Message
		default:
			p.Error = "An error occurred"
		}
		s.log.Info().Str("user", form.EmailOrName).Err(err).Msg("login failed")
		p.Data = loginView{EmailOrName: form.EmailOrName}
		c.HTML(http.StatusUnauthorized, "login.html", p)
		return
	}

	s.writeSession(c, sess)
	s.log.Info().Str("user", sess.Owner()).Msg("logged in")
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) logout(c *gin.Context) {
	s.clearSession(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

// --- events ---

type eventsForm struct {
	DeviceID  string `form:"deviceId" binding:"omitempty,max=64"`
	StartDate string `form:"startDate" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" binding:"omitempty,datetime=2006-01-02"`
	Type      int    `form:"type" binding:"omitempty,oneof=3 28 29 68 69"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     string `form:"limit"`
	Auto      string `form:"auto"`
}

func (f eventsForm) limit() (int, error) {
	return dashboard.ParseLimit(f.Limit)
}

func (f eventsForm) query(zone string) (client.EventQuery, error) {
	limit, err := f.limit()
	if err != nil {
		return client.EventQuery{}, err
	}
	from, to, err := timezone.DayRange(f.StartDate, f.EndDate, zone)
	if err != nil {
		return client.EventQuery{}, err
	}
	return client.EventQuery{
		DeviceID:  strings.TrimSpace(f.DeviceID),
		Page:      f.Page,
		Limit:     limit,
		Type:      f.Type,
		StartDate: from,
		EndDate:   to,
	}, nil
}

func (f eventsForm) autoRefresh() bool {
	return f.Auto != "0" && f.Auto != "false"
}

type eventsView struct {
	Form     eventsForm
	Snapshot dashboard.EventsSnapshot
	Auto     bool
	PrevURL  string
	NextURL  string
}

func (s *Server) loadEvents(ctx context.Context, sess auth.Session, form eventsForm, vals url.Values, zone string) (eventsView, error) {
	view := eventsView{Form: form, Auto: form.autoRefresh()}
	q, err := form.query(zone)
	if err != nil {
		return view, err
	}
	snap, err := s.dashboard(sess.Token).FetchEvents(ctx, q)
	if err != nil {
		return view, err
	}
	view.Snapshot = snap
	view.PrevURL = withParam(vals, "page", snap.Pager.Prev())
	view.NextURL = withParam(vals, "page", snap.Pager.Next())
	return view, nil
}

func (s *Server) eventsPage(c *gin.Context) {
	p := s.newPage(c, "Events", "events")
	sess := currentSession(c)

	var form eventsForm
	if err := c.ShouldBindQuery(&form); err != nil {
		p.Error = "Invalid filters: " + err.Error()
		p.Data = eventsView{Form: form}
		p.Recent = s.recent(c.Request.Context(), sess)
		c.HTML(http.StatusBadRequest, "events.html", p)
		return
	}

	view, err := s.loadEvents(c.Request.Context(), sess, form, c.Request.URL.Query(), p.Zone)
	if err != nil {
		if !errors.Is(err, dashboard.ErrFetch) {
			p.Error = err.Error()
		} else if s.failed(c, &p, err) {
			return
		}
	} else {
		p.LiveURL = "/ws/events?" + c.Request.URL.RawQuery
		s.remember(c.Request.Context(), sess, form.DeviceID)
	}

	p.Recent = s.recent(c.Request.Context(), sess)
	p.Data = view
	c.HTML(http.StatusOK, "events.html", p)
}

// --- device ---

type deviceForm struct {
	LogoPage   int    `form:"logoPage" binding:"omitempty,min=1"`
	LogoLimit  int    `form:"logoLimit" binding:"omitempty,min=1,max=100"`
	AudioPage  int    `form:"audioPage" binding:"omitempty,min=1"`
	AudioLimit int    `form:"audioLimit" binding:"omitempty,min=1,max=100"`
	Sort       string `form:"sort"`
	Desc       bool   `form:"desc"`
	Auto       string `form:"auto"`
}

type logoRow struct {
	ID       string
	Time     time.Time
	Channel  string
	Accuracy float64
	Details  string
}

type audioRow struct {
	ID      string
	Time    time.Time
	Channel string
	Details string
}

type sortLink struct {
	Label  string
	URL    string
	Active bool
	Desc   bool
}

type deviceView struct {
	ID           string
	Snapshot     dashboard.DeviceSnapshot
	NoData       bool
	Auto         bool
	Logo         []logoRow
	Audio        []audioRow
	ActiveCount  int
	SortLinks    []sortLink
	LogoPrevURL  string
	LogoNextURL  string
	AudioPrevURL string
	AudioNextURL string
	LogoExport   string
	AudioExport  string
}

func (s *Server) loadDevice(ctx context.Context, sess auth.Session, id string, form deviceForm, vals url.Values) (deviceView, error) {
	view := deviceView{ID: id, Auto: form.Auto != "0" && form.Auto != "false"}
	snap, err := s.dashboard(sess.Token).FetchDevice(ctx, id, dashboard.DevicePage{
		LogoPage:   form.LogoPage,
		LogoLimit:  form.LogoLimit,
		AudioPage:  form.AudioPage,
		AudioLimit: form.AudioLimit,
	})
	if errors.Is(err, dashboard.ErrNoData) {
		view.NoData = true
		err = nil
	}
	if err != nil {
		return view, err
	}

	state := dashboard.SortState{Key: dashboard.NormalizeSortKey(form.Sort), Desc: form.Desc}
	logos := append([]models.Event(nil), snap.Logo...)
	dashboard.SortEvents(logos, state)
	for _, e := range logos {
		d, _ := e.Logo()
		view.Logo = append(view.Logo, logoRow{ID: e.ObjectID, Time: e.TS.Time, Channel: d.ChannelID, Accuracy: d.Accuracy, Details: e.DetailsIndented()})
	}
	for _, e := range snap.Audio {
		d, _ := e.Audio()
		view.Audio = append(view.Audio, audioRow{ID: e.ObjectID, Time: e.TS.Time, Channel: d.ChannelID, Details: e.DetailsIndented()})
	}
	for _, m := range snap.Members {
		if m.Active {
			view.ActiveCount++
		}
	}

	for _, key := range []string{dashboard.SortByTime, dashboard.SortByConfidence} {
		next := state.Toggle(key)
		out := url.Values{}
		for k, v := range vals {
			out[k] = v
		}
		out.Set("sort", next.Key)
		out.Set("desc", strconv.FormatBool(next.Desc))
		label := "Time"
		if key == dashboard.SortByConfidence {
			label = "Confidence"
		}
		view.SortLinks = append(view.SortLinks, sortLink{Label: label, URL: "?" + out.Encode(), Active: state.Key == key, Desc: state.Desc})
	}

	view.Snapshot = snap
	view.LogoPrevURL = withParam(vals, "logoPage", snap.LogoPager.Prev())
	view.LogoNextURL = withParam(vals, "logoPage", snap.LogoPager.Next())
	view.AudioPrevURL = withParam(vals, "audioPage", snap.AudioPager.Prev())
	view.AudioNextURL = withParam(vals, "audioPage", snap.AudioPager.Next())
	export := url.Values{
		"logoPage":   {strconv.Itoa(snap.LogoPager.Page)},
		"logoLimit":  {strconv.Itoa(snap.LogoPager.Limit)},
		"audioPage":  {strconv.Itoa(snap.AudioPager.Page)},
		"audioLimit": {strconv.Itoa(snap.AudioPager.Limit)},
	}
	base := "/device/" + url.PathEscape(id) + "/export.csv?"
	export.Set("kind", string(render.KindLogo))
	view.LogoExport = base + export.Encode()
	export.Set("kind", string(render.KindAudio))
	view.AudioExport = base + export.Encode()
	return view, nil
}

func (s *Server) deviceSearch(c *gin.Context) {
	id := strings.TrimSpace(c.Query("deviceId"))
	if id == "" {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.Redirect(http.StatusSeeOther, "/device/"+url.PathEscape(id))
}

func (s *Server) devicePage(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	p := s.newPage(c, "Device "+id, "device")
	sess := currentSession(c)

	var form deviceForm
	if err := c.ShouldBindQuery(&form); err != nil {
		p.Error = "Invalid parameters: " + err.Error()
		p.Data = deviceView{ID: id}
		p.Recent = s.recent(c.Request.Context(), sess)
		c.HTML(http.StatusBadRequest, "device.html", p)
		return
	}

	view, err := s.loadDevice(c.Request.Context(), sess, id, form, c.Request.URL.Query())
	if err != nil {
		if s.failed(c, &p, err) {
			return
		}
	} else {
		s.remember(c.Request.Context(), sess, id)
		p.LiveURL = "/ws/device/" + url.PathEscape(id) + "?" + c.Request.URL.RawQuery
	}

	p.Recent = s.recent(c.Request.Context(), sess)
	p.Data = view
	c.HTML(http.StatusOK, "device.html", p)
}

func (s *Server) exportCSV(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	kind, err := render.ParseKind(c.DefaultQuery("kind", string(render.KindLogo)))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	pageKey, limitKey := "logoPage", "logoLimit"
	if kind == render.KindAudio {
		pageKey, limitKey = "audioPage", "audioLimit"
	}
	page, _ := strconv.Atoi(c.Query(pageKey))
	limit, _ := strconv.Atoi(c.Query(limitKey))

	events, err := s.client(currentSession(c).Token).DeviceEvents(c.Request.Context(), id, kind.EventType(), page, limit)
	if err != nil {
		if client.IsAuthError(err) {
			c.String(http.StatusUnauthorized, err.Error())
			return
		}
		c.String(http.StatusBadGateway, "Error fetching data: "+err.Error())
		return
	}

	// ids come as repeated checkbox values or one comma separated list
	ids := lo.FilterMap(strings.Split(strings.Join(c.QueryArray("ids"), ","), ","), func(v string, _ int) (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	})
	var buf bytes.Buffer
	if err := render.CSV(&buf, render.Select(events.Events, ids)); err != nil {
		if errors.Is(err, render.ErrNothingToExport) {
			c.String(http.StatusNotFound, "No data to export")
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+render.Filename(kind, s.now())+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// --- recent and settings ---

func (s *Server) deleteRecent(c *gin.Context) {
	if s.opts.Store != nil {
		if err := s.opts.Store.Forget(c.Request.Context(), currentSession(c).Owner(), c.Param("id")); err != nil {
			s.log.Warn().Err(err).Msg("failed to forget device")
		}
	}
	c.Redirect(http.StatusSeeOther, back(c))
}

type settingsForm struct {
	Timezone string `form:"timezone"`
	Theme    string `form:"theme"`
	Refresh  int    `form:"refresh" binding:"omitempty,min=1,max=86400"`
}

func (s *Server) saveSettings(c *gin.Context) {
	var form settingsForm
	if err := c.ShouldBind(&form); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	s.writePrefs(c, form.Timezone, form.Theme, form.Refresh)
	c.Redirect(http.StatusSeeOther, back(c))
}
