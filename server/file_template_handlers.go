package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-elearning-portal/authz"
	"github.com/jrsteele09/go-elearning-portal/identity"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	layoutTemplate  = "layout.html"
	homeTemplate    = "home.html"
	coursesTemplate = "courses.html"
	adminTemplate   = "admin.html"
	errorTemplate   = "error.html"
)

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a template from the embedded filesystem
func ParseTemplate(name string) (*template.Template, error) {
	content, err := fs.ReadFile(TemplateFilesFS(), name)
	if err != nil {
		return nil, err
	}
	return template.New(name).Parse(string(content))
}

type layoutData struct {
	AppName string
	Title   string
	User    *identity.UserProfile
	Caps    authz.Capabilities
	Content template.HTML
}

// renderPage renders the content template into the layout. User and
// capabilities come from the request context when a session is present.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	var content bytes.Buffer
	if err := s.pages[page].Execute(&content, data); err != nil {
		logError(r.Method, r.URL.Path, err)
		http.Error(w, "Failed to render content", http.StatusInternalServerError)
		return
	}

	layout := layoutData{
		AppName: s.config.GetAppName(),
		Title:   title,
		Content: template.HTML(content.String()),
	}
	if user := userFrom(r.Context()); user != nil {
		layout.User = &user.Profile
		layout.Caps = capabilitiesOf(user)
	}

	var out bytes.Buffer
	if err := s.pages[layoutTemplate].Execute(&out, layout); err != nil {
		logError(r.Method, r.URL.Path, err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(out.Bytes())
}

type errorView struct {
	Title   string
	Message string
}

// renderError replaces the whole page with an error and a way back in.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, title string, err error) {
	log.Err(err).Str("request_id", requestIDFrom(r.Context())).Str("path", r.URL.Path).Int("status", status).Msg(title)
	s.renderPage(w, r, status, errorTemplate, title, errorView{Title: title, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
