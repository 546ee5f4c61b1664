package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/ankurauti1234/Events-Dashboard/internal/auth"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
)

// Cookie names. The session ones mirror the fields of the login answer.
const (
	cookieToken    = "token"
	cookieName     = "name"
	cookieRole     = "role"
	cookieEmail    = "email"
	cookieExpiry   = "expiry"
	cookieTimezone = "timezone"
	cookieTheme    = "theme"
	cookieRefresh  = "refresh"

	sessionKey = "session"
	prefYear   = 365 * 24 * 60 * 60
)

var sessionCookies = []string{cookieToken, cookieName, cookieRole, cookieEmail, cookieExpiry}

var themes = []string{"light", "dark", "system"}

func cookie(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}

func readSession(c *gin.Context) auth.Session {
	s := auth.Session{
		Token:  cookie(c, cookieToken),
		Name:   cookie(c, cookieName),
		Role:   cookie(c, cookieRole),
		Email:  cookie(c, cookieEmail),
		Expiry: auth.ParseExpiry(cookie(c, cookieExpiry)),
	}
	if s.Token == "" {
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			s.Token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	return s
}

func (s *Server) writeSession(c *gin.Context, sess auth.Session) {
	maxAge := 0
	if exp := sess.ExpiresAt(); !exp.IsZero() {
		maxAge = int(time.Until(exp).Seconds())
		if maxAge <= 0 {
			maxAge = -1
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookieToken, sess.Token, maxAge, "/", "", s.opts.SecureCookies, true)
	c.SetCookie(cookieName, sess.Name, maxAge, "/", "", s.opts.SecureCookies, false)
	c.SetCookie(cookieRole, sess.Role, maxAge, "/", "", s.opts.SecureCookies, false)
	c.SetCookie(cookieEmail, sess.Email, maxAge, "/", "", s.opts.SecureCookies, false)
	c.SetCookie(cookieExpiry, strconv.FormatInt(sess.Expiry, 10), maxAge, "/", "", s.opts.SecureCookies, false)
}

func (s *Server) clearSession(c *gin.Context) {
	for _, name := range sessionCookies {
		c.SetCookie(name, "", -1, "/", "", s.opts.SecureCookies, name == cookieToken)
	}
}

// requireSession rejects requests without a usable session. Pages redirect
// to the login form, API calls get a 401.
func (s *Server) requireSession(api bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := readSession(c)
		if err := sess.Check(s.now()); err != nil {
			expired := sess.Expired(s.now())
			if expired {
				s.clearSession(c)
			}
			if api {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
				return
			}
			target := "/login"
			if expired {
				target += "?expired=1"
			}
			c.Redirect(http.StatusSeeOther, target)
			c.Abort()
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func currentSession(c *gin.Context) auth.Session {
	v, _ := c.Get(sessionKey)
	sess, _ := v.(auth.Session)
	return sess
}

// prefs are the per-browser display preferences.
type prefs struct {
	Zone    string
	Theme   string
	Refresh time.Duration
}

func (s *Server) prefs(c *gin.Context) prefs {
	p := prefs{Zone: s.opts.Timezone, Theme: s.opts.Theme, Refresh: s.opts.RefreshInterval}
	if z := cookie(c, cookieTimezone); timezone.Known(z) {
		p.Zone = z
	}
	if t := cookie(c, cookieTheme); lo.Contains(themes, t) {
		p.Theme = t
	}
	if secs, err := strconv.Atoi(cookie(c, cookieRefresh)); err == nil && secs > 0 {
		p.Refresh = time.Duration(secs) * time.Second
	}
	return p
}

func (s *Server) writePrefs(c *gin.Context, zone, theme string, refreshSeconds int) {
	c.SetSameSite(http.SameSiteLaxMode)
	if timezone.Known(zone) {
		c.SetCookie(cookieTimezone, zone, prefYear, "/", "", s.opts.SecureCookies, false)
	}
	if lo.Contains(themes, theme) {
		c.SetCookie(cookieTheme, theme, prefYear, "/", "", s.opts.SecureCookies, false)
	}
	if refreshSeconds > 0 {
		c.SetCookie(cookieRefresh, strconv.Itoa(refreshSeconds), prefYear, "/", "", s.opts.SecureCookies, false)
	}
}
