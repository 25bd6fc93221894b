package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
	"github.com/bcnelson/l2vpn-manager/internal/service"
	"github.com/bcnelson/l2vpn-manager/internal/storage/memory"
	"github.com/bcnelson/l2vpn-manager/internal/view"
)

var workspaceRE = regexp.MustCompile(`/l2vpn/([0-9a-f-]{36})/`)

func newTestBackend(t *testing.T) *service.Backend {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", IsAdmin: true}))
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: 2, FirstName: "Bob", LastName: "Builder", Email: "bob@example.com"}))
	require.NoError(t, store.CreateEntity(ctx, 1, &domain.Entity{ID: 1, Name: "Root"}))
	parent := 1
	require.NoError(t, store.CreateEntity(ctx, 1, &domain.Entity{
		ID:         2,
		ParentID:   &parent,
		Name:       "Campus",
		Interfaces: []domain.Interface{{Node: "sw1", Name: "xe-0/0/1", OperationalState: domain.InterfaceUp}},
		Contacts:   []domain.Contact{{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"}},
	}))
	return service.NewBackend(store, logger.Nop())
}

type testUI struct {
	t       *testing.T
	server  *Server
	handler http.Handler
}

func newTestUI(t *testing.T, client provisioning.Client, opts Options) *testUI {
	t.Helper()
	opts.Client = client
	if opts.WorkgroupID == 0 {
		opts.WorkgroupID = 1
	}
	if opts.DefaultUser == "" {
		opts.DefaultUser = "ada@example.com"
	}
	s, err := newServer(opts)
	require.NoError(t, err)
	return &testUI{t: t, server: s, handler: s.routes()}
}

func (u *testUI) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	u.handler.ServeHTTP(rr, req)
	return rr
}

func (u *testUI) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rr := httptest.NewRecorder()
	u.handler.ServeHTTP(rr, req)
	return rr
}

// open loads an editor page and returns its workspace path.
func (u *testUI) open(query string) string {
	rr := u.get("/?" + query)
	require.Equal(u.t, http.StatusOK, rr.Code, rr.Body.String())
	m := workspaceRE.FindStringSubmatch(rr.Body.String())
	require.NotNil(u.t, m, "no workspace in page")
	return "/l2vpn/" + m[1]
}

func circuitForm(desc string) url.Values {
	return url.Values{
		"description": {desc},
		"provision":   {"now"},
		"remove":      {"never"},
	}
}

func TestProvisionFlow(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})

	base := ui.open("action=provision_l2vpn")

	rr := ui.get(base + "/endpoints/new")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `picker-entity">Root`)
	assert.Contains(t, rr.Body.String(), "Campus")

	rr = ui.post(base+"/picker?entity_id=2", url.Values{"tag": {"100"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `picker-entity">Campus`)
	assert.Contains(t, rr.Body.String(), `value="100"`)
	assert.Contains(t, rr.Body.String(), "xe-0/0/1")

	rr = ui.post(base+"/endpoints", url.Values{
		"target":    {"new"},
		"interface": {"sw1|xe-0/0/1"},
		"tag":       {"100"},
		"bandwidth": {"1000"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `data-index="0"`)
	assert.Contains(t, rr.Body.String(), "VLAN 100")
	assert.Contains(t, rr.Body.String(), "1 Gbps")

	rr = ui.post(base+"/save", circuitForm("lab link"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "/?action=modify_l2vpn&circuit_id=1", rr.Header().Get("HX-Redirect"))

	// A saved editor is closed.
	rr = ui.get(base)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ui.get("/?action=modify_l2vpn&circuit_id=1")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "lab link (1)")
	assert.Contains(t, body, "Circuit created")
	assert.Contains(t, body, "ada@example.com")
}

func TestSaveFailureKeepsEditor(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})
	base := ui.open("action=provision_l2vpn")

	rr := ui.post(base+"/save", circuitForm(""))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("HX-Redirect"))
	assert.Contains(t, rr.Body.String(), "Please correct the form")
	assert.Contains(t, rr.Body.String(), `id="l2vpn-editor"`)

	rr = ui.get(base)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSaveRejectsBadDate(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})
	base := ui.open("action=provision_l2vpn")

	form := circuitForm("lab link")
	form.Set("provision", "at")
	form.Set("provision_at", "tomorrow")
	rr := ui.post(base+"/save", form)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "#form-errors", rr.Header().Get("HX-Retarget"))
	assert.Contains(t, rr.Body.String(), "provision date")
}

func TestEndpointSubmitInvalid(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})
	base := ui.open("action=provision_l2vpn")

	require.Equal(t, http.StatusOK, ui.get(base+"/endpoints/new").Code)
	rr := ui.post(base+"/endpoints", url.Values{"target": {"new"}, "tag": {"5000"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "#endpoint-modal", rr.Header().Get("HX-Retarget"))
	assert.Contains(t, rr.Body.String(), "VLAN must be between 1 and 4095")
}

func TestEndpointEditAndDelete(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})
	base := ui.open("action=provision_l2vpn")

	ui.get(base + "/endpoints/new")
	ui.post(base+"/picker?entity_id=2", nil)
	rr := ui.post(base+"/endpoints", url.Values{"interface": {"sw1|xe-0/0/1"}, "tag": {"100"}})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ui.get(base + "/endpoints/0/edit")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Edit Endpoint 1")
	assert.Contains(t, rr.Body.String(), `picker-entity">Campus`)

	rr = ui.post(base+"/endpoints", url.Values{"interface": {"sw1|xe-0/0/1"}, "tag": {"200"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "VLAN 200")
	assert.NotContains(t, rr.Body.String(), "VLAN 100")

	rr = ui.get(base + "/endpoints/5/edit")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ui.post(base+"/endpoints/0/delete", circuitForm("kept"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No endpoints yet.")
	assert.Contains(t, rr.Body.String(), `value="kept"`)
}

func TestConcurrentPickerRequests(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})
	base := ui.open("action=provision_l2vpn")
	require.Equal(t, http.StatusOK, ui.get(base+"/endpoints/new").Code)

	var wg sync.WaitGroup
	codes := make([]int, 32)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag := strconv.Itoa(100 + i)
			if i%4 == 0 {
				codes[i] = ui.post(base+"/endpoints", url.Values{"interface": {"sw1|xe-0/0/1"}, "tag": {tag}}).Code
				return
			}
			codes[i] = ui.post(base+"/picker?entity_id=2", url.Values{"tag": {tag}, "bandwidth": {"10"}}).Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		// A submit closes the form, so later requests may find none open.
		assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, code, "request %d", i)
	}
}

// blockingSaver holds SaveCircuit until release is closed.
type blockingSaver struct {
	*service.Backend
	entered chan struct{}
	release chan struct{}
}

func (b blockingSaver) SaveCircuit(ctx context.Context, req *domain.SaveCircuitRequest) (*domain.SaveCircuitResponse, error) {
	close(b.entered)
	<-b.release
	return b.Backend.SaveCircuit(ctx, req)
}

func TestMutationsRejectedWhileSaving(t *testing.T) {
	client := blockingSaver{Backend: newTestBackend(t), entered: make(chan struct{}), release: make(chan struct{})}
	ui := newTestUI(t, client, Options{})
	base := ui.open("action=provision_l2vpn")

	ui.get(base + "/endpoints/new")
	ui.post(base+"/picker?entity_id=2", nil)
	require.Equal(t, http.StatusOK, ui.post(base+"/endpoints", url.Values{"interface": {"sw1|xe-0/0/1"}, "tag": {"100"}}).Code)

	saved := make(chan *httptest.ResponseRecorder)
	go func() { saved <- ui.post(base+"/save", circuitForm("lab link")) }()
	<-client.entered

	rr := ui.post(base+"/endpoints/0/delete", circuitForm("changed"))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "#form-errors", rr.Header().Get("HX-Retarget"))
	assert.Contains(t, rr.Body.String(), "Please wait for the current request to finish.")

	rr = ui.post(base+"/cancel", url.Values{"confirmed": {"1"}})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, rr.Header().Get("HX-Redirect"))

	close(client.release)
	rr = <-saved
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "/?action=modify_l2vpn&circuit_id=1", rr.Header().Get("HX-Redirect"))

	c, err := client.LoadCircuit(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "lab link", c.Description)
	assert.Len(t, c.Endpoints, 1)
}

func TestCancelRequiresConfirmation(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})
	base := ui.open("action=provision_l2vpn")

	rr := ui.post(base+"/cancel", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, http.StatusOK, ui.get(base).Code)

	rr = ui.post(base+"/cancel", url.Values{"confirmed": {"1"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("HX-Redirect"))
	assert.Equal(t, http.StatusNotFound, ui.get(base).Code)
}

func TestReadOnlyUser(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{DefaultUser: "bob@example.com", ReadOnly: true})
	base := ui.open("action=provision_l2vpn")

	page := ui.get(base).Body.String()
	assert.NotContains(t, page, base+"/save")

	rr := ui.post(base+"/save", circuitForm("nope"))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = ui.get("/admin/users")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestReadOnlyAdminCanEdit(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{ReadOnly: true})
	base := ui.open("action=provision_l2vpn")
	assert.Contains(t, ui.get(base).Body.String(), base+"/save")
}

type failingClient struct {
	provisioning.Client
}

func (failingClient) LoadCircuit(ctx context.Context, workgroupID, id int) (*domain.Circuit, error) {
	return nil, domain.ErrTransport
}

func TestModifyShowsLoadFailure(t *testing.T) {
	ui := newTestUI(t, failingClient{newTestBackend(t)}, Options{})

	rr := ui.get("/?action=modify_l2vpn&circuit_id=9")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "provisioning service is unavailable")

	rr = ui.get("/?action=modify_l2vpn&circuit_id=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPhonebook(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})

	rr := ui.get("/?action=phonebook")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "entity_id=2")

	rr = ui.get("/?action=phonebook&entity_id=2")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "xe-0/0/1")
	assert.Contains(t, body, "Grace Hopper")
	assert.Contains(t, body, "Add to existing connection")

	assert.Equal(t, http.StatusNotFound, ui.get("/?action=phonebook&entity_id=99").Code)
}

func TestUsersPage(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})

	rr := ui.get("/admin/users")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bob@example.com")
	assert.Contains(t, rr.Body.String(), "Ada Lovelace")
}

func TestHomeAndLogin(t *testing.T) {
	ui := newTestUI(t, newTestBackend(t), Options{})

	rr := ui.get("/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No circuits yet.")

	rr = ui.get("/login")
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	assert.Equal(t, http.StatusBadRequest, ui.get("/?action=bogus").Code)
	assert.Equal(t, http.StatusNotFound, ui.get("/l2vpn/does-not-exist").Code)
}

func TestWorkspaceSweep(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ws := newWorkspaces(newTestBackend(t), time.Hour, logger.Nop())
	ws.now = func() time.Time { return now }

	first, err := ws.create("ada@example.com", 1, view.Options{Editable: true})
	require.NoError(t, err)

	_, ok := ws.get(first.id, "bob@example.com")
	assert.False(t, ok, "workspaces belong to their owner")

	now = now.Add(2 * time.Hour)
	_, err = ws.create("ada@example.com", 1, view.Options{Editable: true})
	require.NoError(t, err)

	_, ok = ws.get(first.id, "ada@example.com")
	assert.False(t, ok)
	assert.Equal(t, 1, ws.len())
}

func TestSafeReturnTo(t *testing.T) {
	assert.Equal(t, "/?action=phonebook", safeReturnTo("/?action=phonebook"))
	assert.Equal(t, "/", safeReturnTo("https://evil.example.com"))
	assert.Equal(t, "/", safeReturnTo("//evil.example.com"))
	assert.Equal(t, "/", safeReturnTo(""))
}
