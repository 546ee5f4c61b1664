package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankurauti1234/Events-Dashboard/internal/auth"
	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *APMClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(ClientConfig{BaseURL: srv.URL + "/"})
}

func TestLogin(t *testing.T) {
	t.Run("success injects token", func(t *testing.T) {
		var gotAuth string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/login":
				var p models.LoginPayload
				require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
				assert.Equal(t, "ops", p.EmailOrName)
				assert.Equal(t, "secret", p.Password)
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"token": "tok", "name": "Ops", "role": "admin", "email": "ops@example.com", "expiry": 1700000000000,
				})
			default:
				gotAuth = r.Header.Get("Authorization")
				writeJSON(w, http.StatusOK, map[string]interface{}{"events": []interface{}{}, "total": 0})
			}
		})

		s, err := c.Login(context.Background(), "ops", "secret")
		require.NoError(t, err)
		assert.Equal(t, auth.Session{Token: "tok", Name: "Ops", Role: "admin", Email: "ops@example.com", Expiry: 1700000000000}, s)

		_, err = c.SearchEvents(context.Background(), EventQuery{})
		require.NoError(t, err)
		assert.Equal(t, "Bearer tok", gotAuth)
	})

	t.Run("server message on failure", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
		})
		_, err := c.Login(context.Background(), "ops", "bad")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Invalid credentials", apiErr.Message)
		assert.True(t, IsAuthError(err))
	})

	t.Run("fallback message", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.Login(context.Background(), "ops", "x")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "An error occurred", apiErr.Message)
		assert.False(t, IsAuthError(err))
	})

	t.Run("email not verified", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": "Please verify your email before logging in"})
		})
		_, err := c.Login(context.Background(), "ops", "x")
		assert.ErrorIs(t, err, ErrEmailNotVerified)
	})

	t.Run("no token", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"name": "ops"})
		})
		_, err := c.Login(context.Background(), "ops", "x")
		assert.ErrorIs(t, err, ErrNoToken)
	})
}

func TestRelogin(t *testing.T) {
	c := New(ClientConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Relogin(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestSearchEvents(t *testing.T) {
	t.Run("query parameters", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/events", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "200001", q.Get("deviceId"))
			assert.Equal(t, "2", q.Get("page"))
			assert.Equal(t, "25", q.Get("limit"))
			assert.Equal(t, "29", q.Get("type"))
			assert.Equal(t, "2024-10-01T00:00:00.000Z", q.Get("startDate"))
			assert.Equal(t, "2024-10-02T23:59:59.999Z", q.Get("endDate"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"events": []map[string]interface{}{
					{"_id": "a", "DEVICE_ID": "200001", "TS": 1730196000, "Event_Name": "LOGO_DETECTED", "Details": map[string]interface{}{"channel_id": "x", "accuracy": 0.9}},
				},
				"total": 31,
			})
		})

		page, err := c.SearchEvents(context.Background(), EventQuery{
			DeviceID: " 200001 ", Page: 2, Limit: 25, Type: models.TypeLogo,
			StartDate: "2024-10-01T00:00:00.000Z", EndDate: "2024-10-02T23:59:59.999Z",
		})
		require.NoError(t, err)
		assert.Equal(t, 31, page.Total)
		require.Len(t, page.Events, 1)
		assert.Equal(t, models.EventLogo, page.Events[0].EventName)
	})

	t.Run("all omits limit", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, ok := r.URL.Query()["limit"]
			assert.False(t, ok)
			assert.Equal(t, "1", r.URL.Query().Get("page"))
			writeJSON(w, http.StatusOK, map[string]interface{}{"total": 0})
		})
		page, err := c.SearchEvents(context.Background(), EventQuery{})
		require.NoError(t, err)
		assert.NotNil(t, page.Events)
		assert.Empty(t, page.Events)
	})

	t.Run("no events message is empty", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "No events found with the specified criteria"})
		})
		page, err := c.SearchEvents(context.Background(), EventQuery{DeviceID: "1"})
		require.NoError(t, err)
		assert.Empty(t, page.Events)
		assert.Zero(t, page.Total)
	})

	t.Run("server error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "database offline"})
		})
		_, err := c.SearchEvents(context.Background(), EventQuery{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database offline")
	})

	t.Run("invalid query never hits the wire", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("unexpected request")
		})
		_, err := c.SearchEvents(context.Background(), EventQuery{Type: 7})
		assert.Error(t, err)
		_, err = c.SearchEvents(context.Background(), EventQuery{Limit: -1})
		assert.Error(t, err)
		_, err = c.SearchEvents(context.Background(), EventQuery{StartDate: "yesterday"})
		assert.Error(t, err)
	})
}

func TestDeviceEvents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/200001", r.URL.Path)
		assert.Equal(t, "28", r.URL.Query().Get("type"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"events": []map[string]interface{}{{"DEVICE_ID": "200001", "TS": 1, "Event_Name": "AUDIO_FINGERPRINT"}},
			"total":  1,
		})
	})

	page, err := c.DeviceEvents(context.Background(), "200001", models.TypeAudio, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Len(t, page.Events, 1)
}

func TestLatestEvent(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/events/latest", r.URL.Path)
			assert.Equal(t, "69", r.URL.Query().Get("type"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"event": map[string]interface{}{"DEVICE_ID": "9", "TS": 1730196000, "Event_Name": "SHUT_DOWN", "Details": "power"},
			})
		})
		ev, err := c.LatestEvent(context.Background(), "9", models.TypeShutdown)
		require.NoError(t, err)
		require.NotNil(t, ev)
		assert.Equal(t, "power", ev.DetailsText())
	})

	t.Run("missing", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "No event"})
		})
		ev, err := c.LatestEvent(context.Background(), "9", models.TypeShutdown)
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("null event", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"event": nil})
		})
		ev, err := c.MemberGuest(context.Background(), "9")
		require.NoError(t, err)
		assert.Nil(t, ev)
	})
}

func TestLegacyDetections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events/logo":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"data": []map[string]interface{}{{"TS": 1730196000, "channel_id": "zee", "accuracy": 0.4}},
			})
		default:
			writeJSON(w, http.StatusOK, map[string]interface{}{})
		}
	})

	logos, err := c.LogoDetections(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, logos, 1)
	assert.Equal(t, "zee", logos[0].ChannelID)

	audio, err := c.AudioDetections(context.Background(), "1")
	require.NoError(t, err)
	assert.NotNil(t, audio)
	assert.Empty(t, audio)
}

func TestMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events/metrics":
			assert.Equal(t, "3,28,29,68,69", r.URL.Query().Get("types"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"metrics": map[string]interface{}{
					"totalUniqueDevices": 12,
					"eventsByType":       []map[string]interface{}{{"eventName": "LOGO_DETECTED", "count": 40}},
				},
			})
		case "/events/logo-detection":
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
		}
	})

	m, err := c.Metrics(context.Background(), models.FleetTypes)
	require.NoError(t, err)
	assert.Equal(t, 12, m.Metrics.TotalUniqueDevices)
	require.Len(t, m.Metrics.EventsByType, 1)

	_, err = c.LogoDetectionStats(context.Background())
	assert.True(t, IsAuthError(err))
}
