package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/store"
)

// apiError maps an error to a JSON answer.
func (s *Server) apiError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case client.IsAuthError(err):
		status = http.StatusUnauthorized
	case errors.Is(err, dashboard.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, dashboard.ErrFetch):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.log.Warn().Err(err).Str("request_id", c.GetString("requestID")).Msg("api fetch failed")
	}
	c.JSON(status, gin.H{"message": err.Error()})
}

func (s *Server) apiEvents(c *gin.Context) {
	var form eventsForm
	if err := c.ShouldBindQuery(&form); err != nil {
		s.apiError(c, err)
		return
	}
	sess := currentSession(c)
	view, err := s.loadEvents(c.Request.Context(), sess, form, c.Request.URL.Query(), s.prefs(c).Zone)
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Snapshot)
}

func (s *Server) apiDevice(c *gin.Context) {
	var form deviceForm
	if err := c.ShouldBindQuery(&form); err != nil {
		s.apiError(c, err)
		return
	}
	snap, err := s.dashboard(currentSession(c).Token).FetchDevice(c.Request.Context(), c.Param("id"), dashboard.DevicePage{
		LogoPage:   form.LogoPage,
		LogoLimit:  form.LogoLimit,
		AudioPage:  form.AudioPage,
		AudioLimit: form.AudioLimit,
	})
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) apiFleet(c *gin.Context) {
	snap, err := s.charts.get(c.Request.Context(), currentSession(c).Token)
	if err != nil {
		s.apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) apiRecent(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusOK, []string{})
		return
	}
	ids, err := s.opts.Store.Suggest(c.Request.Context(), currentSession(c).Owner(), c.Query("q"), store.DefaultSuggestions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (s *Server) apiDeleteRecent(c *gin.Context) {
	if s.opts.Store != nil {
		if err := s.opts.Store.Forget(c.Request.Context(), currentSession(c).Owner(), strings.TrimSpace(c.Param("id"))); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
	}
	c.Status(http.StatusNoContent)
}
