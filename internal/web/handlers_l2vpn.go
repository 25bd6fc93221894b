package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bcnelson/l2vpn-manager/internal/circuit"
	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/editor"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
	"github.com/bcnelson/l2vpn-manager/internal/validation"
	"github.com/bcnelson/l2vpn-manager/internal/view"
)

// EditorPageData holds data for the L2VPN editor page.
type EditorPageData struct {
	Editor any
}

// handleEditorPage opens a new workspace on circuit id, or on a blank
// circuit for domain.NewCircuitID.
func (s *Server) handleEditorPage(w http.ResponseWriter, r *http.Request, id int) {
	session := getSession(r.Context())
	ws, err := s.workspaces.create(session.Email, session.WorkgroupID, view.Options{
		Editable: session.Editable(),
		Location: s.loc,
	})
	if err != nil {
		s.log.Error("opening editor", logger.Err(err))
		s.renderError(w, "Failed to open the editor", http.StatusInternalServerError)
		return
	}

	ctx := provisioning.WithActor(r.Context(), session.Email)
	if err := ws.state.SelectCircuit(ctx, id); err != nil {
		// The editor shows the failure; keep the page.
		s.log.Warn("loading circuit", logger.Int("circuit_id", id), logger.Err(err))
	}

	html, err := ws.view.HTML()
	if err != nil {
		s.log.Error("rendering editor", logger.Err(err))
		s.renderError(w, "Failed to render the editor", http.StatusInternalServerError)
		return
	}

	title := "New L2VPN"
	if id != domain.NewCircuitID {
		title = "L2VPN " + strconv.Itoa(id)
	}
	s.render(w, "l2vpn", PageData{
		Title:   title,
		Active:  "l2vpn",
		User:    session,
		IsAdmin: session.IsAdmin,
		Content: EditorPageData{Editor: html},
	})
}

// handleEditor returns the current editor markup.
func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	s.writeEditor(w, getWorkspace(r.Context()))
}

func (s *Server) writeEditor(w http.ResponseWriter, ws *workspace) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := ws.view.WriteTo(w); err != nil {
		s.log.Error("writing editor", logger.Err(err))
	}
}

// formErrors shows errs above the circuit form without replacing the editor.
func (s *Server) formErrors(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("HX-Retarget", "#form-errors")
	w.Header().Set("HX-Reswap", "innerHTML")
	s.renderError(w, msg, status)
}

// handleFormUpdate records form edits as they happen.
func (s *Server) handleFormUpdate(w http.ResponseWriter, r *http.Request) {
	ws := getWorkspace(r.Context())
	f, errs := parseCircuitForm(r, s.loc)
	if errs.HasErrors() {
		s.formErrors(w, errs.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := ws.state.UpdateForm(f); err != nil {
		s.formErrors(w, circuit.ErrorMessage(err), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSave submits the circuit. On success the browser is sent to the
// saved circuit; otherwise the editor comes back with the reason.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	ws := getWorkspace(r.Context())
	session := getSession(r.Context())

	f, errs := parseCircuitForm(r, s.loc)
	if errs.HasErrors() {
		s.formErrors(w, "Please correct the form: "+errs.Error(), http.StatusUnprocessableEntity)
		return
	}

	ctx := provisioning.WithActor(r.Context(), session.Email)
	nav, err := ws.state.Save(ctx, f)
	switch {
	case err == nil:
		s.workspaces.remove(ws.id)
		redirect(w, r, nav)
	case errors.Is(err, domain.ErrDiscarded):
		redirect(w, r, circuit.Home)
	case errors.Is(err, domain.ErrSaveInProgress), errors.Is(err, domain.ErrLoadInProgress):
		s.formErrors(w, circuit.ErrorMessage(err), http.StatusConflict)
	default:
		s.writeEditor(w, ws)
	}
}

// handleCancel discards the circuit once the user confirmed the prompt.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ws := getWorkspace(r.Context())
	confirmed := r.FormValue("confirmed") == "1"

	nav, ok := ws.state.Discard(func(string) bool { return confirmed })
	if !ok && confirmed {
		s.formErrors(w, circuit.ErrorMessage(domain.ErrSaveInProgress), http.StatusConflict)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.workspaces.remove(ws.id)
	redirect(w, r, nav)
}

// PickerData holds data for the endpoint picker fragment.
type PickerData struct {
	BasePath string
	Heading  string
	Target   string
	Form     *editor.Form
	Errors   validation.ValidationErrors
}

func (s *Server) renderPicker(w http.ResponseWriter, ws *workspace, f *editor.Form, errs validation.ValidationErrors) {
	heading := "New Endpoint"
	if i, ok := f.Target.Index(); ok {
		heading = "Edit Endpoint " + strconv.Itoa(i+1)
	}
	s.renderFragment(w, "endpoint_picker", PageData{Content: PickerData{
		BasePath: ws.basePath(),
		Heading:  heading,
		Target:   f.Target.String(),
		Form:     f,
		Errors:   errs,
	}})
}

// handleEndpointOpen opens the picker for a new or existing endpoint.
func (s *Server) handleEndpointOpen(w http.ResponseWriter, r *http.Request) {
	ws := getWorkspace(r.Context())

	target := circuit.Append()
	if idx := chi.URLParam(r, "index"); idx != "" {
		t, err := circuit.ParseTarget(idx)
		if err != nil {
			s.renderError(w, "Invalid endpoint", http.StatusBadRequest)
			return
		}
		target = t
	}

	_, unlock := ws.lockForm()
	defer unlock()

	f, err := ws.editor.Open(r.Context(), target)
	if err != nil {
		s.log.Warn("opening endpoint", logger.String("target", target.String()), logger.Err(err))
		if errors.Is(err, domain.ErrEndpointIndex) {
			s.renderError(w, "That endpoint no longer exists.", http.StatusNotFound)
			return
		}
		s.renderError(w, circuit.ErrorMessage(err), statusFor(err))
		return
	}
	ws.form = f
	s.renderPicker(w, ws, f, nil)
}

// handlePicker moves the picker to another entity, keeping the entered
// fields.
func (s *Server) handlePicker(w http.ResponseWriter, r *http.Request) {
	ws := getWorkspace(r.Context())
	f, unlock := ws.lockForm()
	defer unlock()
	if f == nil {
		s.renderError(w, "No endpoint is being edited.", http.StatusConflict)
		return
	}

	s.applyPickerForm(r, ws, f)

	var entityID *int
	if v := r.FormValue("entity_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			s.renderError(w, "Invalid entity", http.StatusBadRequest)
			return
		}
		entityID = &id
	}
	if err := ws.editor.SelectEntity(r.Context(), f, entityID); err != nil {
		s.renderPicker(w, ws, f, validation.ValidationErrors{
			validation.NewValidationError("entity", r.FormValue("entity_id"), circuit.ErrorMessage(err)),
		})
		return
	}
	s.renderPicker(w, ws, f, nil)
}

// handleEndpointSubmit applies the picker to the circuit. Invalid input
// re-renders the picker in place.
func (s *Server) handleEndpointSubmit(w http.ResponseWriter, r *http.Request) {
	ws := getWorkspace(r.Context())
	f, unlock := ws.lockForm()
	defer unlock()
	if f == nil {
		s.renderError(w, "No endpoint is being edited.", http.StatusConflict)
		return
	}

	errs := s.applyPickerForm(r, ws, f)
	if !errs.HasErrors() {
		_, err := ws.editor.Submit(f)
		var verrs validation.ValidationErrors
		switch {
		case err == nil:
			ws.form = nil
			s.writeEditor(w, ws)
			return
		case errors.As(err, &verrs):
			errs = verrs
		default:
			errs.Add("endpoint", f.Target.String(), circuit.ErrorMessage(err))
		}
	}

	w.Header().Set("HX-Retarget", "#endpoint-modal")
	w.Header().Set("HX-Reswap", "innerHTML")
	s.renderPicker(w, ws, f, errs)
}

// handleEndpointDelete removes endpoint {index}. Pending form edits posted
// alongside are kept.
func (s *Server) handleEndpointDelete(w http.ResponseWriter, r *http.Request) {
	ws := getWorkspace(r.Context())

	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.renderError(w, "Invalid endpoint", http.StatusBadRequest)
		return
	}

	if err := r.ParseForm(); err == nil && r.PostForm.Has("description") {
		if f, errs := parseCircuitForm(r, s.loc); !errs.HasErrors() {
			if err := ws.state.UpdateForm(f); err != nil {
				s.formErrors(w, circuit.ErrorMessage(err), http.StatusConflict)
				return
			}
		}
	}
	if err := ws.state.DeleteEndpoint(i); err != nil {
		s.formErrors(w, circuit.ErrorMessage(err), http.StatusConflict)
		return
	}
	s.writeEditor(w, ws)
}
