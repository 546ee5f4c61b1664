package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankurauti1234/Events-Dashboard/internal/logging"
	"github.com/ankurauti1234/Events-Dashboard/internal/store"
)

const (
	testDevice = "100"
	logoJSON   = `{"_id":"a1","DEVICE_ID":100,"TS":1700000000,"Type":29,"Event_Name":"LOGO_DETECTED","Details":{"channel_id":"star","accuracy":0.92,"type":"tv"}}`
	memberJSON = `{"_id":"m1","DEVICE_ID":100,"TS":1700000000,"Type":3,"Event_Name":"MEMBER_GUEST_DECLARATION","Details":{"state":[true,false],"gender":["m","f"],"age":[34,29]}}`
)

func init() {
	gin.SetMode(gin.TestMode)
	logging.SetOutput(io.Discard)
}

// fakeAPI answers the subset of the APM API the dashboard uses. Device
// "empty" has no data at all.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	reply := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			reply(w, http.StatusUnauthorized, `{"message":"Invalid credentials"}`)
			return
		}
		expiry := time.Now().Add(time.Hour).UnixMilli()
		reply(w, http.StatusOK, `{"token":"tok","name":"Ops","role":"admin","email":"ops@example.com","expiry":`+strconv.FormatInt(expiry, 10)+`}`)
	})
	mux.HandleFunc("/events/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			reply(w, http.StatusUnauthorized, `{"message":"Invalid token"}`)
			return
		}
		q := r.URL.Query()
		switch r.URL.Path {
		case "/events/latest":
			if q.Get("deviceId") == testDevice && q.Get("type") == "3" {
				reply(w, http.StatusOK, `{"event":`+memberJSON+`}`)
				return
			}
			reply(w, http.StatusNotFound, `{"message":"No event found"}`)
		case "/events/metrics":
			reply(w, http.StatusOK, `{"metrics":{"totalUniqueDevices":4,"eventsByType":[{"eventName":"LOGO_DETECTED","count":6},{"eventName":"AUDIO_FINGERPRINT","count":4}]}}`)
		case "/events/logo-detection":
			reply(w, http.StatusOK, `{"statistics":{"detectionTypes":[{"type":"tv","count":2},{"type":"ott","count":1}],"channels":[{"channelId":"star","count":5},{"channelId":"zee","count":2}]}}`)
		case "/events/" + testDevice:
			if q.Get("type") == "29" {
				reply(w, http.StatusOK, `{"events":[`+logoJSON+`],"total":1}`)
				return
			}
			reply(w, http.StatusNotFound, `{"message":"No events found"}`)
		default:
			reply(w, http.StatusNotFound, `{"message":"No events found"}`)
		}
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			reply(w, http.StatusUnauthorized, `{"message":"Invalid token"}`)
			return
		}
		reply(w, http.StatusOK, `{"events":[`+logoJSON+`],"total":1}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	opts := Options{APIURL: fakeAPI(t).URL, RefreshInterval: time.Hour}
	if withStore {
		st, err := store.Open(filepath.Join(t.TempDir(), "recent.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		opts.Store = st
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func testSessionCookies(expiry time.Time) []*http.Cookie {
	return []*http.Cookie{
		{Name: cookieToken, Value: "tok"},
		{Name: cookieName, Value: "Ops"},
		{Name: cookieEmail, Value: "ops@example.com"},
		{Name: cookieExpiry, Value: strconv.FormatInt(expiry.UnixMilli(), 10)},
	}
}

func do(s *Server, method, target string, body url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, false)
	w := do(s, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","clients":0}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequireSession(t *testing.T) {
	s := newTestServer(t, false)

	t.Run("no session", func(t *testing.T) {
		w := do(s, http.MethodGet, "/", nil, nil)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("expired session", func(t *testing.T) {
		w := do(s, http.MethodGet, "/charts", nil, testSessionCookies(time.Now().Add(-time.Minute)))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login?expired=1", w.Header().Get("Location"))
		token := responseCookie(w, cookieToken)
		require.NotNil(t, token)
		assert.Empty(t, token.Value)
		assert.Negative(t, token.MaxAge)
	})

	t.Run("api answers 401", func(t *testing.T) {
		w := do(s, http.MethodGet, "/api/events", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "not logged in")
	})

	t.Run("expired notice", func(t *testing.T) {
		w := do(s, http.MethodGet, "/login?expired=1", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Your session expired")
	})
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, false)

	t.Run("success", func(t *testing.T) {
		w := do(s, http.MethodPost, "/login", url.Values{"emailOrname": {"ops"}, "password": {"secret"}}, nil)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))

		token := responseCookie(w, cookieToken)
		require.NotNil(t, token)
		assert.Equal(t, "tok", token.Value)
		assert.True(t, token.HttpOnly)
		assert.Positive(t, token.MaxAge)
		require.NotNil(t, responseCookie(w, cookieEmail))
		assert.Equal(t, "ops@example.com", responseCookie(w, cookieEmail).Value)
	})

	t.Run("bad password", func(t *testing.T) {
		w := do(s, http.MethodPost, "/login", url.Values{"emailOrname": {"ops"}, "password": {"nope"}}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid credentials")
		assert.Nil(t, responseCookie(w, cookieToken))
	})

	t.Run("missing fields", func(t *testing.T) {
		w := do(s, http.MethodPost, "/login", url.Values{"emailOrname": {"ops"}}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("logout clears cookies", func(t *testing.T) {
		w := do(s, http.MethodPost, "/logout", url.Values{}, testSessionCookies(time.Now().Add(time.Hour)))
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		token := responseCookie(w, cookieToken)
		require.NotNil(t, token)
		assert.Empty(t, token.Value)
	})
}

func TestEventsPage(t *testing.T) {
	s := newTestServer(t, false)
	cookies := testSessionCookies(time.Now().Add(time.Hour))

	w := do(s, http.MethodGet, "/?deviceId=100", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "LOGO_DETECTED")
	assert.Contains(t, body, `href="/device/100"`)
	assert.Contains(t, body, `data-ws="/ws/events?deviceId=100"`)

	t.Run("invalid limit", func(t *testing.T) {
		w := do(s, http.MethodGet, "/?limit=abc", nil, cookies)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "limit must be a number")
	})

	t.Run("reversed dates", func(t *testing.T) {
		w := do(s, http.MethodGet, "/?startDate=2024-02-02&endDate=2024-02-01", nil, cookies)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Start date cannot be after end date")
	})

	t.Run("invalid type", func(t *testing.T) {
		w := do(s, http.MethodGet, "/?type=7", nil, cookies)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejected token ends session", func(t *testing.T) {
		bad := testSessionCookies(time.Now().Add(time.Hour))
		bad[0].Value = "stale"
		w := do(s, http.MethodGet, "/", nil, bad)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login?expired=1", w.Header().Get("Location"))
	})
}

func TestDevicePage(t *testing.T) {
	s := newTestServer(t, true)
	cookies := testSessionCookies(time.Now().Add(time.Hour))

	w := do(s, http.MethodGet, "/device/100", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Member 1")
	assert.Contains(t, body, "Not watching")
	assert.Contains(t, body, "92.0%")
	assert.Contains(t, body, `badge high`)
	assert.Contains(t, body, "No audio fingerprints.")

	t.Run("search redirects", func(t *testing.T) {
		w := do(s, http.MethodGet, "/device?deviceId=+100+", nil, cookies)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/device/100", w.Header().Get("Location"))
	})

	t.Run("no data", func(t *testing.T) {
		w := do(s, http.MethodGet, "/device/empty", nil, cookies)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "No data found for this device ID.")
	})

	t.Run("remembered", func(t *testing.T) {
		w := do(s, http.MethodGet, "/api/recent", nil, cookies)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `["empty","100"]`, w.Body.String())

		w = do(s, http.MethodDelete, "/api/recent/empty", nil, cookies)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = do(s, http.MethodGet, "/api/recent?q=1", nil, cookies)
		assert.JSONEq(t, `["100"]`, w.Body.String())
	})
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t, false)
	cookies := testSessionCookies(time.Now().Add(time.Hour))

	w := do(s, http.MethodGet, "/device/100/export.csv?kind=logo", nil, cookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="logo_detection_`)
	assert.True(t, strings.HasPrefix(w.Body.String(), "DEVICE_ID,Type,Event_Name,channel_id,accuracy,type\n"))
	assert.Contains(t, w.Body.String(), "92.0%")

	t.Run("nothing to export", func(t *testing.T) {
		w := do(s, http.MethodGet, "/device/100/export.csv?kind=audio", nil, cookies)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		w := do(s, http.MethodGet, "/device/100/export.csv?kind=video", nil, cookies)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChartsPage(t *testing.T) {
	s := newTestServer(t, false)
	w := do(s, http.MethodGet, "/charts", nil, testSessionCookies(time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Total devices")
	assert.Contains(t, body, "60% logo detections")
	assert.Contains(t, body, "width: 100.0%")
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, false)
	cookies := testSessionCookies(time.Now().Add(time.Hour))

	w := do(s, http.MethodPost, "/settings", url.Values{"timezone": {"UTC"}, "theme": {"dark"}, "refresh": {"60"}}, cookies)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	require.NotNil(t, responseCookie(w, cookieTimezone))
	assert.Equal(t, "UTC", responseCookie(w, cookieTimezone).Value)
	assert.Equal(t, "dark", responseCookie(w, cookieTheme).Value)
	assert.Equal(t, "60", responseCookie(w, cookieRefresh).Value)

	w = do(s, http.MethodPost, "/settings", url.Values{"timezone": {"Mars Time"}, "theme": {"neon"}}, cookies)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Nil(t, responseCookie(w, cookieTimezone))
	assert.Nil(t, responseCookie(w, cookieTheme))

	prefs := append(cookies, &http.Cookie{Name: cookieTheme, Value: "dark"})
	w = do(s, http.MethodGet, "/", nil, prefs)
	assert.Contains(t, w.Body.String(), `data-theme="dark"`)
}

func TestAPI(t *testing.T) {
	s := newTestServer(t, false)

	bearer := func(method, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		return w
	}

	w := bearer(http.MethodGet, "/api/events?deviceId=100")
	require.Equal(t, http.StatusOK, w.Code)
	var events struct {
		Events []json.RawMessage `json:"events"`
		Pager  struct {
			Total int `json:"total"`
		} `json:"pager"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events.Events, 1)

	w = bearer(http.MethodGet, "/api/fleet")
	require.Equal(t, http.StatusOK, w.Code)
	var fleet map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fleet))
	assert.EqualValues(t, 4, fleet["totalDevices"])
	assert.EqualValues(t, 67, fleet["tvLeadPercent"])

	w = bearer(http.MethodGet, "/api/devices/empty")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = bearer(http.MethodGet, "/api/recent")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestLiveEvents(t *testing.T) {
	s := newTestServer(t, false)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	header := http.Header{}
	for _, c := range testSessionCookies(time.Now().Add(time.Hour)) {
		header.Add("Cookie", c.String())
	}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?deviceId=100"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg liveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "update", msg.Type)
	assert.True(t, msg.AutoRefresh)
	assert.Contains(t, msg.HTML, "LOGO_DETECTED")
	assert.Equal(t, 3600, msg.Interval)

	require.NoError(t, conn.WriteJSON(controlMessage{Type: "refresh"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "update", msg.Type)
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub(logging.New("test"))
	charts := &liveConn{hub: h, send: make(chan []byte, 1), topic: chartsTopic}
	other := &liveConn{hub: h, send: make(chan []byte, 1), topic: "events"}
	h.register(charts)
	h.register(other)
	assert.Equal(t, 2, h.Count())

	h.Broadcast(chartsTopic, liveMessage{Type: "update", HTML: "first"})
	h.Broadcast(chartsTopic, liveMessage{Type: "update", HTML: "second"})

	var got liveMessage
	require.NoError(t, json.Unmarshal(<-charts.send, &got))
	assert.Equal(t, "second", got.HTML)
	assert.Empty(t, other.send)

	h.unregister(charts)
	_, open := <-charts.send
	assert.False(t, open)
	assert.Equal(t, 1, h.Count())
}
