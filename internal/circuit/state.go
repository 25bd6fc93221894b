// Package circuit holds the Circuit State: the single in-memory owner of the
// circuit being edited. Every mutation goes through a State so one renderer
// sees every change.
package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
	"github.com/bcnelson/l2vpn-manager/internal/validation"
)

// DiscardPrompt is shown before unsaved changes are thrown away.
const DiscardPrompt = "Are you sure you wish to cancel? All your changes will be lost."

// Status is the editor's lifecycle state for one circuit.
type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusLoaded
	StatusLoadFailed
	StatusEditing
	StatusSaving
	StatusSaved
	StatusDiscarded
)

var statusNames = [...]string{
	StatusEmpty:      "empty",
	StatusLoading:    "loading",
	StatusLoaded:     "loaded",
	StatusLoadFailed: "load_failed",
	StatusEditing:    "editing",
	StatusSaving:     "saving",
	StatusSaved:      "saved",
	StatusDiscarded:  "discarded",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// Form holds the circuit-level fields the user edits directly.
type Form struct {
	Description   string
	StaticMAC     bool
	ProvisionTime domain.ScheduleTime
	RemoveTime    domain.ScheduleTime
}

func formFrom(c *domain.Circuit) Form {
	return Form{
		Description:   c.Description,
		StaticMAC:     c.StaticMAC,
		ProvisionTime: c.ProvisionTime,
		RemoveTime:    c.RemoveTime,
	}
}

// Snapshot is an immutable copy of the State handed to renderers.
type Snapshot struct {
	Circuit *domain.Circuit
	Form    Form
	Status  Status
	// Err is the last failure, cleared by the next successful operation.
	Err error
}

// Message returns a user-facing description of Err.
func (s Snapshot) Message() string {
	return ErrorMessage(s.Err)
}

// Renderer is notified after every change. Render must not call back into
// the State that invoked it.
type Renderer interface {
	Render(Snapshot)
}

// RenderFunc adapts a function to Renderer.
type RenderFunc func(Snapshot)

func (f RenderFunc) Render(s Snapshot) { f(s) }

// Option configures a State.
type Option func(*State)

// WithRenderer sets the renderer notified on every change.
func WithRenderer(r Renderer) Option {
	return func(s *State) { s.renderer = r }
}

// WithClock overrides the clock used to resolve "provision now".
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *State) { s.log = l }
}

// State owns one circuit under edit. It is safe for concurrent use; all
// mutations are serialized and at most one load or save is in flight.
type State struct {
	client      provisioning.CircuitClient
	workgroupID int
	renderer    Renderer
	now         func() time.Time
	log         logger.Logger

	mu       sync.Mutex
	circuit  *domain.Circuit
	form     Form
	status   Status
	err      error
	inFlight Status // StatusLoading or StatusSaving while a request is out
}

// New creates a State holding an empty, unsaved circuit.
func New(client provisioning.CircuitClient, workgroupID int, opts ...Option) *State {
	s := &State{
		client:      client,
		workgroupID: workgroupID,
		renderer:    RenderFunc(func(Snapshot) {}),
		now:         time.Now,
		log:         logger.Nop(),
		circuit:     newCircuit(workgroupID),
		status:      StatusEmpty,
	}
	s.form = formFrom(s.circuit)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newCircuit(workgroupID int) *domain.Circuit {
	return &domain.Circuit{
		ID:            domain.NewCircuitID,
		WorkgroupID:   workgroupID,
		Endpoints:     []domain.Endpoint{},
		ProvisionTime: domain.Now(),
		RemoveTime:    domain.Never(),
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	c := s.circuit.Clone()
	reindex(c.Endpoints)
	return Snapshot{Circuit: c, Form: s.form, Status: s.status, Err: s.err}
}

// renderLocked notifies the renderer. Caller holds s.mu.
func (s *State) renderLocked() {
	s.renderer.Render(s.snapshotLocked())
}

// Render re-notifies the renderer without changing anything.
func (s *State) Render() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderLocked()
}

// checkLocked rejects mutations on a discarded State or while a request is
// in flight.
func (s *State) checkLocked() error {
	if s.status == StatusDiscarded {
		return domain.ErrDiscarded
	}
	switch s.inFlight {
	case StatusLoading:
		return domain.ErrLoadInProgress
	case StatusSaving:
		return domain.ErrSaveInProgress
	}
	return nil
}

// SelectCircuit loads circuit id and replaces the whole circuit with it.
// domain.NewCircuitID leaves the circuit as it is without a network call.
// The renderer is notified either way.
func (s *State) SelectCircuit(ctx context.Context, id int) error {
	s.mu.Lock()
	if err := s.checkLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if id == domain.NewCircuitID {
		s.renderLocked()
		s.mu.Unlock()
		return nil
	}
	s.inFlight = StatusLoading
	s.status = StatusLoading
	s.err = nil
	s.renderLocked()
	s.mu.Unlock()

	loaded, err := s.client.LoadCircuit(ctx, s.workgroupID, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = StatusEmpty
	if s.status == StatusDiscarded {
		return domain.ErrDiscarded
	}

	if err != nil {
		s.status = StatusLoadFailed
		s.err = fmt.Errorf("loading circuit %d: %w", id, err)
		s.log.Warn("circuit load failed", logger.Int("circuit_id", id), logger.Err(err))
		s.renderLocked()
		return s.err
	}

	c := loaded.Clone()
	if c.Endpoints == nil {
		c.Endpoints = []domain.Endpoint{}
	}
	reindex(c.Endpoints)
	s.circuit = c
	s.form = formFrom(c)
	s.status = StatusLoaded
	s.renderLocked()
	return nil
}

// UpdateEndpoint appends ep or overwrites the endpoint at the target
// position. ep.Index is ignored; positions are always 0..n-1.
func (s *State) UpdateEndpoint(target EndpointTarget, ep domain.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}

	if i, ok := target.Index(); ok {
		if i < 0 || i >= len(s.circuit.Endpoints) {
			return fmt.Errorf("%w: %d of %d", domain.ErrEndpointIndex, i, len(s.circuit.Endpoints))
		}
		s.circuit.Endpoints[i] = ep
	} else {
		s.circuit.Endpoints = append(s.circuit.Endpoints, ep)
	}
	reindex(s.circuit.Endpoints)

	s.touchLocked()
	s.renderLocked()
	return nil
}

// DeleteEndpoint removes the endpoint at position i and closes the gap.
// An out of range position changes nothing.
func (s *State) DeleteEndpoint(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}

	if i >= 0 && i < len(s.circuit.Endpoints) {
		s.circuit.Endpoints = append(s.circuit.Endpoints[:i], s.circuit.Endpoints[i+1:]...)
		reindex(s.circuit.Endpoints)
		s.touchLocked()
	}
	s.renderLocked()
	return nil
}

// UpdateForm records the circuit-level fields as currently entered.
func (s *State) UpdateForm(f Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	s.form = f
	s.touchLocked()
	s.renderLocked()
	return nil
}

func (s *State) touchLocked() {
	s.status = StatusEditing
	s.err = nil
}

// Save submits the circuit with the fields in f. On success it returns the
// navigation to the saved circuit. On any failure the circuit is left as it
// was, f is kept as the form so the user can correct it, and the error is
// both returned and recorded in the snapshot.
func (s *State) Save(ctx context.Context, f Form) (Navigation, error) {
	s.mu.Lock()
	if err := s.checkLocked(); err != nil {
		s.mu.Unlock()
		return "", err
	}

	s.form = f
	req := &domain.SaveCircuitRequest{
		WorkgroupID:   s.workgroupID,
		Description:   f.Description,
		Endpoints:     append([]domain.Endpoint(nil), s.circuit.Endpoints...),
		StaticMAC:     f.StaticMAC,
		ProvisionTime: f.ProvisionTime,
		RemoveTime:    f.RemoveTime,
		CircuitID:     s.circuit.ID,
	}
	reindex(req.Endpoints)

	if errs := validation.ValidateCircuit(req, s.now()); errs.HasErrors() {
		s.status = StatusEditing
		s.err = errs
		s.renderLocked()
		s.mu.Unlock()
		return "", errs
	}

	s.inFlight = StatusSaving
	s.status = StatusSaving
	s.err = nil
	s.renderLocked()
	s.mu.Unlock()

	resp, err := s.client.SaveCircuit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = StatusEmpty
	if s.status == StatusDiscarded {
		return "", domain.ErrDiscarded
	}

	if err == nil && !resp.OK() {
		msg := ""
		if resp != nil {
			msg = resp.Error
		}
		err = &domain.RejectedError{Message: msg}
	}
	if err != nil {
		s.status = StatusEditing
		s.err = err
		s.log.Warn("circuit save failed", logger.Int("circuit_id", req.CircuitID), logger.Err(err))
		s.renderLocked()
		return "", err
	}

	s.circuit.ID = resp.CircuitID
	s.circuit.Description = f.Description
	s.circuit.StaticMAC = f.StaticMAC
	s.circuit.ProvisionTime = f.ProvisionTime
	s.circuit.RemoveTime = f.RemoveTime
	s.status = StatusSaved
	s.log.Info("circuit saved", logger.Int("circuit_id", resp.CircuitID))
	s.renderLocked()
	return ToCircuit(resp.CircuitID), nil
}

// Discard asks confirm whether to throw away the circuit. If declined it
// returns false and nothing changes. If confirmed the State becomes
// terminal and the caller should follow the returned navigation. Nothing is
// deleted on the backend.
//
// A circuit can't be discarded while it is being loaded or saved; Discard
// then returns false without asking.
func (s *State) Discard(confirm func(prompt string) bool) (Navigation, bool) {
	if s.Busy() || confirm == nil || !confirm(DiscardPrompt) {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight != StatusEmpty {
		return "", false
	}
	s.circuit = newCircuit(s.workgroupID)
	s.form = formFrom(s.circuit)
	s.status = StatusDiscarded
	s.err = nil
	s.renderLocked()
	return Home, true
}

// Busy reports whether a load or save is in flight.
func (s *State) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight != StatusEmpty
}

func reindex(endpoints []domain.Endpoint) {
	for i := range endpoints {
		endpoints[i].Index = i
	}
}

// ErrorMessage turns an error from State into text for the user.
func ErrorMessage(err error) string {
	var (
		rejected *domain.RejectedError
		verrs    validation.ValidationErrors
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejected):
		return rejected.Error()
	case errors.As(err, &verrs):
		return "Please correct the form: " + verrs.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "The circuit could not be found."
	case errors.Is(err, domain.ErrTransport):
		return "The provisioning service is unavailable. Your changes have not been saved; please try again."
	case errors.Is(err, domain.ErrSaveInProgress), errors.Is(err, domain.ErrLoadInProgress):
		return "Please wait for the current request to finish."
	case errors.Is(err, domain.ErrDiscarded):
		return "This circuit was discarded."
	default:
		return err.Error()
	}
}
