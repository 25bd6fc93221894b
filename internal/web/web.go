package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bcnelson/l2vpn-manager/internal/auth"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
)

//go:embed templates/* static/*
var content embed.FS

// DefaultWorkspaceTTL is how long an untouched editor is kept.
const DefaultWorkspaceTTL = 2 * time.Hour

// OIDCComponents holds the pieces needed for OIDC login. A nil value
// disables login and every request runs as the default user.
type OIDCComponents struct {
	Provider  *auth.OIDCProvider
	Sessions  *auth.SessionManager
	States    *auth.StateStore
	LogoutURL string
}

// Options configures NewRouter.
type Options struct {
	Client      provisioning.Client
	WorkgroupID int
	// DefaultUser is the email used when OIDC is disabled.
	DefaultUser string
	// ReadOnly marks non-admin users as unable to edit circuits.
	ReadOnly     bool
	Location     *time.Location
	WorkspaceTTL time.Duration
	Logger       logger.Logger
	OIDC         *OIDCComponents
}

// Server holds dependencies for web handlers.
type Server struct {
	client      provisioning.Client
	workgroupID int
	defaultUser string
	readOnly    bool
	loc         *time.Location
	log         logger.Logger
	oidc        *OIDCComponents

	workspaces *workspaces
	templates  map[string]*template.Template
}

// NewRouter creates the editor UI router.
func NewRouter(opts Options) (http.Handler, error) {
	s, err := newServer(opts)
	if err != nil {
		return nil, err
	}
	return s.routes(), nil
}

func newServer(opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	ttl := opts.WorkspaceTTL
	if ttl == 0 {
		ttl = DefaultWorkspaceTTL
	}

	s := &Server{
		client:      opts.Client,
		workgroupID: opts.WorkgroupID,
		defaultUser: opts.DefaultUser,
		readOnly:    opts.ReadOnly,
		loc:         loc,
		log:         log.With(logger.String("component", "web")),
		oidc:        opts.OIDC,
		workspaces:  newWorkspaces(opts.Client, ttl, log),
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s.templates = templates
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	staticFS, _ := fs.Sub(content, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	r.Get("/login", s.handleLoginPage)
	r.Get("/logout", s.handleLogout)
	r.Get("/auth/login", s.handleOIDCLogin)
	r.Get("/auth/callback", s.handleOIDCCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionAuth)

		r.Get("/", s.handleIndex)
		r.Get("/admin/users", s.handleUsers)

		r.Route("/l2vpn/{workspace}", func(r chi.Router) {
			r.Use(s.loadWorkspace)

			r.Get("/", s.handleEditor)
			r.Group(func(r chi.Router) {
				r.Use(s.requireEditable)

				r.Post("/form", s.handleFormUpdate)
				r.Post("/save", s.handleSave)
				r.Post("/cancel", s.handleCancel)
				r.Get("/endpoints/new", s.handleEndpointOpen)
				r.Get("/endpoints/{index}/edit", s.handleEndpointOpen)
				r.Post("/endpoints/{index}/delete", s.handleEndpointDelete)
				r.Post("/endpoints", s.handleEndpointSubmit)
				r.Post("/picker", s.handlePicker)
			})
		})
	})

	return r
}

// parseTemplates parses each page together with the base layout.
func parseTemplates() (map[string]*template.Template, error) {
	funcMap := template.FuncMap{
		"join":  strings.Join,
		"lower": strings.ToLower,
		"dict":  dict,
	}

	base, err := content.ReadFile("templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("reading base template: %w", err)
	}

	templates := make(map[string]*template.Template)
	pageFiles, _ := fs.Glob(content, "templates/pages/*.html")
	for _, pagePath := range pageFiles {
		pageName := strings.TrimSuffix(filepath.Base(pagePath), ".html")

		page, err := content.ReadFile(pagePath)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", pageName, err)
		}
		tmpl, err := template.New(pageName).Funcs(funcMap).Parse(string(base) + string(page))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", pageName, err)
		}
		templates[pageName] = tmpl
	}

	return templates, nil
}

// dict creates a map from key-value pairs for use in templates.
func dict(values ...any) map[string]any {
	if len(values)%2 != 0 {
		return nil
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		m[key] = values[i+1]
	}
	return m
}

// PageData holds common data passed to all page templates.
type PageData struct {
	Title   string
	Active  string // Current nav item
	User    *auth.Session
	IsAdmin bool
	Flash   *FlashMessage
	Content any
}

// FlashMessage represents a flash message.
type FlashMessage struct {
	Type    string // "success", "error", "info"
	Message string
}
