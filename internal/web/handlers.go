package web

import (
	"errors"
	"html"
	"net/http"
	"strconv"

	"github.com/bcnelson/l2vpn-manager/internal/circuit"
	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
)

// handleLoginPage renders the login page.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := PageData{
		Title:   "Login",
		Content: map[string]string{"ReturnTo": safeReturnTo(r.URL.Query().Get("return_to"))},
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		data.Flash = &FlashMessage{Type: "error", Message: msg}
	}

	s.render(w, "login", data)
}

// handleLogout clears the session and redirects to login.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.oidc.Sessions.Clear(w)
	if s.oidc.LogoutURL != "" {
		http.Redirect(w, r, s.oidc.LogoutURL, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleIndex dispatches on the action query parameter.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case circuit.ActionProvision:
		s.handleEditorPage(w, r, domain.NewCircuitID)
	case circuit.ActionModify:
		id, err := strconv.Atoi(r.URL.Query().Get("circuit_id"))
		if err != nil || id < 0 {
			s.renderError(w, "Invalid circuit id", http.StatusBadRequest)
			return
		}
		s.handleEditorPage(w, r, id)
	case circuit.ActionPhonebook:
		s.handlePhonebook(w, r)
	case "":
		s.handleHome(w, r)
	default:
		s.renderError(w, "Unknown action", http.StatusBadRequest)
	}
}

// HomeData holds data for the landing page.
type HomeData struct {
	Connections []domain.Connection
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	session := getSession(r.Context())
	conns, err := s.client.ListConnections(r.Context(), session.WorkgroupID)
	if err != nil {
		s.log.Error("listing connections", logger.Err(err))
		s.renderError(w, circuit.ErrorMessage(err), statusFor(err))
		return
	}

	s.render(w, "home", PageData{
		Title:   "L2VPNs",
		Active:  "home",
		User:    session,
		IsAdmin: session.IsAdmin,
		Content: HomeData{Connections: conns},
	})
}

// PhonebookData holds data for the phonebook page.
type PhonebookData struct {
	Entity      *domain.Entity
	Connections []domain.Connection
	Editable    bool
}

// handlePhonebook shows one directory entity with its children,
// interfaces, contacts and the connections they can be added to.
func (s *Server) handlePhonebook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := getSession(ctx)

	var entityID *int
	if v := r.URL.Query().Get("entity_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			s.renderError(w, "Invalid entity id", http.StatusBadRequest)
			return
		}
		entityID = &id
	}

	entity, err := s.client.ListEntities(ctx, session.WorkgroupID, entityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.renderError(w, "Entity not found", http.StatusNotFound)
			return
		}
		s.log.Error("loading entity", logger.Err(err))
		s.renderError(w, circuit.ErrorMessage(err), statusFor(err))
		return
	}

	conns, err := s.client.ListConnections(ctx, session.WorkgroupID)
	if err != nil {
		s.log.Warn("listing connections", logger.Err(err))
	}

	s.render(w, "phonebook", PageData{
		Title:   entity.Name,
		Active:  "phonebook",
		User:    session,
		IsAdmin: session.IsAdmin,
		Content: PhonebookData{Entity: entity, Connections: conns, Editable: session.Editable()},
	})
}

// handleUsers lists users for administrators.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	session := getSession(r.Context())
	if !session.IsAdmin {
		s.renderError(w, "Administrators only", http.StatusForbidden)
		return
	}

	users, err := s.client.ListUsers(r.Context())
	if err != nil {
		s.log.Error("listing users", logger.Err(err))
		s.renderError(w, circuit.ErrorMessage(err), statusFor(err))
		return
	}

	s.render(w, "users", PageData{
		Title:   "Users",
		Active:  "users",
		User:    session,
		IsAdmin: true,
		Content: users,
	})
}

// render renders a full page.
func (s *Server) render(w http.ResponseWriter, page string, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	tmpl, ok := s.templates[page]
	if !ok {
		http.Error(w, "Template not found: "+page, http.StatusInternalServerError)
		return
	}

	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.log.Error("rendering page", logger.String("page", page), logger.Err(err))
	}
}

// renderFragment renders just the content block for htmx requests.
func (s *Server) renderFragment(w http.ResponseWriter, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	tmpl, ok := s.templates[page]
	if !ok {
		http.Error(w, "Template not found: "+page, http.StatusInternalServerError)
		return
	}

	if err := tmpl.ExecuteTemplate(w, "content", data); err != nil {
		s.log.Error("rendering fragment", logger.String("page", page), logger.Err(err))
	}
}

// renderError renders an error message.
func (s *Server) renderError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<div class="flash flash-error">` + html.EscapeString(message) + `</div>`))
}

// redirect sends the browser to nav, through htmx when the request came
// from it.
func redirect(w http.ResponseWriter, r *http.Request, nav circuit.Navigation) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", nav.String())
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, nav.String(), http.StatusSeeOther)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case provisioning.IsTransport(err):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// safeReturnTo only allows local paths.
func safeReturnTo(p string) string {
	if len(p) < 1 || p[0] != '/' || (len(p) > 1 && (p[1] == '/' || p[1] == '\\')) {
		return "/"
	}
	return p
}
