package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/logging"
	"github.com/ankurauti1234/Events-Dashboard/internal/store"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
)

// Options configures the dashboard server.
type Options struct {
	APIURL          string
	LogoBaseURL     string
	Timezone        string        // default display zone, overridden per browser by cookie
	Theme           string        // default theme, overridden per browser by cookie
	RefreshInterval time.Duration // device and event pages
	ChartsInterval  time.Duration // fleet charts
	Store           *store.Store  // recent devices, optional
	EnablePprof     bool
	SecureCookies   bool
	Debug           bool
}

type Server struct {
	opts   Options
	engine *gin.Engine
	tmpl   *template.Template
	hub    *Hub
	charts *chartsCache
	cron   *cron.Cron
	log    zerolog.Logger
	now    func() time.Time
	http   *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = dashboard.DeviceRefresh
	}
	if opts.ChartsInterval <= 0 {
		opts.ChartsInterval = dashboard.ChartsRefresh
	}
	if !timezone.Known(opts.Timezone) {
		opts.Timezone = timezone.Default
	}
	if opts.Theme == "" {
		opts.Theme = "system"
	}

	s := &Server{
		opts: opts,
		log:  logging.New("web"),
		now:  time.Now,
		hub:  NewHub(logging.New("ws")),
	}

	tmpl, err := s.parseTemplates()
	if err != nil {
		return nil, err
	}
	s.tmpl = tmpl
	s.charts = newChartsCache(s)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every "+opts.ChartsInterval.String(), s.charts.refresh); err != nil {
		return nil, err
	}

	s.engine = s.newEngine()
	return s, nil
}

func (s *Server) newEngine() *gin.Engine {
	if !s.opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestID(), s.accessLog())
	engine.SetHTMLTemplate(s.tmpl)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.Count()})
	})

	engine.GET("/login", s.loginPage)
	engine.POST("/login", s.login)
	engine.POST("/logout", s.logout)

	pages := engine.Group("/", s.requireSession(false))
	{
		pages.GET("", s.eventsPage)
		pages.GET("device", s.deviceSearch)
		pages.GET("device/:id", s.devicePage)
		pages.GET("device/:id/export.csv", s.exportCSV)
		pages.GET("charts", s.chartsPage)
		pages.POST("recent/:id/delete", s.deleteRecent)
		pages.POST("settings", s.saveSettings)
		pages.GET("ws/events", s.liveEvents)
		pages.GET("ws/device/:id", s.liveDevice)
		pages.GET("ws/charts", s.liveCharts)
	}

	api := engine.Group("/api", cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "X-Request-ID"},
		AllowMethods:     []string{"GET", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}), s.requireSession(true))
	{
		api.GET("/events", s.apiEvents)
		api.GET("/devices/:id", s.apiDevice)
		api.GET("/fleet", s.apiFleet)
		api.GET("/recent", s.apiRecent)
		api.DELETE("/recent/:id", s.apiDeleteRecent)
	}

	if s.opts.EnablePprof {
		pprof.Register(engine)
	}
	return engine
}

// Handler exposes the engine, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	s.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("dashboard listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.cron.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Shutdown(ctx context.Context) error {
	<-s.cron.Stop().Done()
	s.hub.CloseAll()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// client builds an API client carrying the caller's token.
func (s *Server) client(token string) *client.APMClient {
	return client.New(client.ClientConfig{BaseURL: s.opts.APIURL, Token: token, Retries: 1})
}

func (s *Server) dashboard(token string) *dashboard.Dashboard {
	return dashboard.New(s.client(token))
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestID", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := s.log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("request_id", c.GetString("requestID")).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
