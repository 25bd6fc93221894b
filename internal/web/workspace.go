package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bcnelson/l2vpn-manager/internal/circuit"
	"github.com/bcnelson/l2vpn-manager/internal/editor"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
	"github.com/bcnelson/l2vpn-manager/internal/view"
)

// workspace is one open circuit editor: a State, the Synchronizer that
// renders it and the endpoint form currently shown, if any.
type workspace struct {
	id    string
	owner string

	state  *circuit.State
	view   *view.Synchronizer
	editor *editor.Editor

	// formMu serializes requests that read or change form.
	formMu sync.Mutex
	form   *editor.Form

	lastUsed time.Time
}

func (ws *workspace) basePath() string {
	return "/l2vpn/" + ws.id
}

// lockForm takes the endpoint form for the rest of a request. The form,
// and anything rendered from it, may only be touched until unlock is called.
func (ws *workspace) lockForm() (f *editor.Form, unlock func()) {
	ws.formMu.Lock()
	return ws.form, ws.formMu.Unlock
}

// workspaces holds open editors keyed by a random id. Idle editors are
// dropped after ttl.
type workspaces struct {
	client provisioning.Client
	log    logger.Logger
	ttl    time.Duration
	now    func() time.Time

	mu sync.Mutex
	m  map[string]*workspace
}

func newWorkspaces(client provisioning.Client, ttl time.Duration, log logger.Logger) *workspaces {
	return &workspaces{
		client: client,
		log:    log,
		ttl:    ttl,
		now:    time.Now,
		m:      make(map[string]*workspace),
	}
}

// create opens an editor on a new circuit for owner.
func (w *workspaces) create(owner string, workgroupID int, opts view.Options) (*workspace, error) {
	ws := &workspace{id: uuid.NewString(), owner: owner}
	opts.BasePath = ws.basePath()

	synchronizer, err := view.NewSynchronizer(opts)
	if err != nil {
		return nil, err
	}
	ws.view = synchronizer
	ws.state = circuit.New(w.client, workgroupID,
		circuit.WithRenderer(synchronizer),
		circuit.WithLogger(w.log.With(logger.String("workspace", ws.id))),
	)
	ws.editor = editor.New(w.client, ws.state, workgroupID)
	ws.state.Render()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sweepLocked()
	ws.lastUsed = w.now()
	w.m[ws.id] = ws
	return ws, nil
}

// get returns owner's workspace id and marks it used.
func (w *workspaces) get(id, owner string) (*workspace, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ws, ok := w.m[id]
	if !ok || ws.owner != owner {
		return nil, false
	}
	ws.lastUsed = w.now()
	return ws, true
}

func (w *workspaces) remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.m, id)
}

func (w *workspaces) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.m)
}

func (w *workspaces) sweepLocked() {
	if w.ttl <= 0 {
		return
	}
	cutoff := w.now().Add(-w.ttl)
	for id, ws := range w.m {
		if ws.lastUsed.Before(cutoff) {
			delete(w.m, id)
		}
	}
}
