package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bcnelson/l2vpn-manager/internal/api/handler"
	"github.com/bcnelson/l2vpn-manager/internal/api/middleware"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
	"github.com/bcnelson/l2vpn-manager/internal/storage"
)

// Options configures NewRouter.
type Options struct {
	Store        storage.Storage
	Backend      provisioning.Client
	BootstrapKey string
	Logger       logger.Logger
	// UI is mounted at "/" when set.
	UI http.Handler
}

// NewRouter creates the HTTP router: health check, the provisioning JSON
// API under /api/v1 and, when given, the editor UI.
func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.UI != nil {
		r.Mount("/", opts.UI)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(opts.Store, opts.BootstrapKey, log))

		keyHandler := handler.NewAPIKeyHandler(opts.Store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		circuitHandler := handler.NewCircuitHandler(opts.Backend, log)
		r.Post("/circuits", circuitHandler.Save)
		r.Get("/workgroups/{workgroup_id}/circuits/{id}", circuitHandler.Get)

		dirHandler := handler.NewDirectoryHandler(opts.Backend)
		r.Get("/workgroups/{workgroup_id}/entities", dirHandler.Entities)
		r.Get("/workgroups/{workgroup_id}/connections", dirHandler.Connections)
		r.Get("/users", dirHandler.Users)
	})

	return r
}
