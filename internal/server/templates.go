package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/JET-SOUZA/Legacy.tv/internal/models"
	"github.com/JET-SOUZA/Legacy.tv/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "register", "channels", "player", "admin"}

// page is the value every template renders.
type page struct {
	Session *session.Session
	Notice  string
	Data    any
}

var templateFuncs = template.FuncMap{
	"fmtTime": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			return t.Local().Format("02/01/2006 15:04")
		case *time.Time:
			if t == nil {
				return ""
			}
			return t.Local().Format("02/01/2006 15:04")
		default:
			return ""
		}
	},
	"expired": func(u models.User) bool {
		return u.Expired(time.Now())
	},
}

func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// render executes the named page into a buffer and writes it with status.
// The pending notice, if any, is consumed.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	s.renderNotice(w, r, status, name, s.sessions.PopNotice(w, r), data)
}

// renderNotice is render with a notice produced by this request.
func (s *Server) renderNotice(w http.ResponseWriter, r *http.Request, status int, name, notice string, data any) {
	t, ok := s.templates[name]
	if !ok {
		s.logger.Error("unknown template", "name", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	p := page{
		Session: session.FromContext(r.Context()),
		Notice:  notice,
		Data:    data,
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		s.logger.Error("render", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
