// Package server is the read-only local status UI: it lists stored risk
// profiles and renders each profile's mirrored comment body as HTML. It
// never triggers hydration or remote calls.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/riskradar/riskradar/internal/comment"
	"github.com/riskradar/riskradar/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for browsing risk profiles.
type Server struct {
	db    *database.DB
	repos []string
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server over the given store and repository slugs.
func New(db *database.DB, repos []string) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"levelClass": levelClass,
		"score": func(f float64) int {
			return int(f + 0.5)
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "profile.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	normalized := make([]string, 0, len(repos))
	for _, repo := range repos {
		normalized = append(normalized, database.NormalizeRepo(repo))
	}

	s := &Server{db: db, repos: normalized, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/profile/", s.handleProfile)
}

// repoListing is one repository block on the index page.
type repoListing struct {
	Repository string
	Profiles   []*database.RiskProfile
	Coverage   *database.KeywordCoverage
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var listings []repoListing
	for _, repo := range s.repos {
		profiles, err := s.db.GetAllProfiles(repo)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		coverage, _ := s.db.GetKeywordCoverage(repo)
		listings = append(listings, repoListing{
			Repository: repo,
			Profiles:   profiles,
			Coverage:   coverage,
		})
	}

	s.render(w, "index.html", map[string]any{
		"Listings": listings,
	})
}

// handleProfile serves /profile/{owner}/{name}/{issue}.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/profile/")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		http.NotFound(w, r)
		return
	}
	repo := path[:idx]
	issueNumber, err := strconv.Atoi(path[idx+1:])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	profile, err := s.db.GetProfile(repo, issueNumber)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if profile == nil {
		http.NotFound(w, r)
		return
	}

	s.render(w, "profile.html", map[string]any{
		"Profile": profile,
		"Body":    comment.Render(profile),
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func levelClass(level database.RiskLevel) string {
	switch level {
	case database.RiskHigh:
		return "level-high"
	case database.RiskMedium:
		return "level-medium"
	default:
		return "level-low"
	}
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, repos []string, port int) error {
	srv, err := New(db, repos)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
