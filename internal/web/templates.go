package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/render"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
)

//go:embed templates/*.html
var templateFS embed.FS

func (s *Server) parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"fmtTime": func(t time.Time, zone string) string { return timezone.Format(t, zone) },
		"percent": dashboard.Percent,
		"tier":    dashboard.Tier,
		"logoURL": func(channel string) string { return render.LogoURL(s.opts.LogoBaseURL, channel) },
		"width": func(percent float64) template.CSS {
			return template.CSS(fmt.Sprintf("width: %.1f%%", percent))
		},
		"seconds": func(d time.Duration) int { return int(d.Seconds()) },
	}
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// fragment renders a named template to a string for live updates.
func (s *Server) fragment(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
