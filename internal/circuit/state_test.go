package circuit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/validation"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClient records calls and answers from canned values.
type fakeClient struct {
	mu        sync.Mutex
	circuits  map[int]*domain.Circuit
	loadErr   error
	saveResp  *domain.SaveCircuitResponse
	saveErr   error
	loads     []int
	saves     []*domain.SaveCircuitRequest
	block     chan struct{}
	saveEnter chan struct{}
}

func (f *fakeClient) LoadCircuit(ctx context.Context, workgroupID, id int) (*domain.Circuit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, id)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	c, ok := f.circuits[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (f *fakeClient) SaveCircuit(ctx context.Context, req *domain.SaveCircuitRequest) (*domain.SaveCircuitResponse, error) {
	if f.saveEnter != nil {
		f.saveEnter <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, req)
	return f.saveResp, f.saveErr
}

func endpoint(entity, intf string, tag int) domain.Endpoint {
	return domain.Endpoint{Entity: entity, Node: "sw1.example.net", Interface: intf, Tag: tag}
}

func newTestState(client *fakeClient, renders *int) *State {
	opts := []Option{WithClock(func() time.Time { return testNow })}
	if renders != nil {
		opts = append(opts, WithRenderer(RenderFunc(func(Snapshot) { *renders++ })))
	}
	return New(client, 3, opts...)
}

func requireDense(t *testing.T, s *State) {
	t.Helper()
	for i, ep := range s.Snapshot().Circuit.Endpoints {
		require.Equal(t, i, ep.Index, "endpoint indices must be 0..n-1")
	}
}

func TestNewStateIsEmpty(t *testing.T) {
	s := newTestState(&fakeClient{}, nil)
	snap := s.Snapshot()
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.Equal(t, domain.NewCircuitID, snap.Circuit.ID)
	assert.Empty(t, snap.Circuit.Endpoints)
	assert.True(t, snap.Form.ProvisionTime.IsSentinel())
	assert.True(t, snap.Form.RemoveTime.IsSentinel())
}

func TestIndicesStayDense(t *testing.T) {
	s := newTestState(&fakeClient{}, nil)
	rng := rand.New(rand.NewSource(1))

	for step := 0; step < 500; step++ {
		n := len(s.Snapshot().Circuit.Endpoints)
		switch op := rng.Intn(3); {
		case op == 0 || n == 0:
			require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E", fmt.Sprintf("if%d", step), 1+step%4095)))
		case op == 1:
			require.NoError(t, s.UpdateEndpoint(AtIndex(rng.Intn(n)), endpoint("E", "edited", 7)))
		default:
			// Includes out of range positions.
			require.NoError(t, s.DeleteEndpoint(rng.Intn(n+2)-1))
		}
		requireDense(t, s)
	}
}

func TestAppendPlacesLast(t *testing.T) {
	s := newTestState(&fakeClient{}, nil)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E2", "if1", 200)))

	before := len(s.Snapshot().Circuit.Endpoints)
	ep := endpoint("E3", "if2", 300)
	ep.Index = 0 // ignored for Append
	require.NoError(t, s.UpdateEndpoint(Append(), ep))

	eps := s.Snapshot().Circuit.Endpoints
	require.Len(t, eps, before+1)
	last := eps[len(eps)-1]
	assert.Equal(t, "E3", last.Entity)
	assert.Equal(t, before, last.Index)
	assert.Equal(t, StatusEditing, s.Snapshot().Status)
}

func TestUpdateEndpointOverwrites(t *testing.T) {
	s := newTestState(&fakeClient{}, nil)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E2", "if1", 200)))

	replacement := domain.Endpoint{Entity: "E9", Node: "sw9", Interface: "if9", Tag: 900}
	require.NoError(t, s.UpdateEndpoint(AtIndex(0), replacement))

	eps := s.Snapshot().Circuit.Endpoints
	require.Len(t, eps, 2)
	replacement.Index = 0
	assert.Equal(t, replacement, eps[0], "the whole endpoint is replaced")
	assert.Equal(t, "E2", eps[1].Entity)
}

func TestUpdateEndpointOutOfRange(t *testing.T) {
	renders := 0
	s := newTestState(&fakeClient{}, &renders)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))
	renders = 0

	err := s.UpdateEndpoint(AtIndex(5), endpoint("E2", "if1", 200))
	assert.ErrorIs(t, err, domain.ErrEndpointIndex)
	assert.Len(t, s.Snapshot().Circuit.Endpoints, 1)
	assert.Zero(t, renders)
}

func TestDoubleDeleteIsNoop(t *testing.T) {
	renders := 0
	s := newTestState(&fakeClient{}, &renders)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))

	require.NoError(t, s.DeleteEndpoint(0))
	assert.Empty(t, s.Snapshot().Circuit.Endpoints)

	before := renders
	require.NoError(t, s.DeleteEndpoint(0))
	assert.Empty(t, s.Snapshot().Circuit.Endpoints)
	assert.Equal(t, before+1, renders, "a no-op delete still re-renders")
}

func TestSelectNewCircuitMakesNoCall(t *testing.T) {
	client := &fakeClient{}
	renders := 0
	s := newTestState(client, &renders)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))
	before := s.Snapshot()
	renders = 0

	require.NoError(t, s.SelectCircuit(context.Background(), domain.NewCircuitID))

	assert.Empty(t, client.loads)
	assert.Equal(t, 1, renders)
	assert.Equal(t, before, s.Snapshot())
}

func TestLoadThenDeleteFirst(t *testing.T) {
	first := domain.Endpoint{Index: 0, Entity: "E1", Node: "sw1", Interface: "if0", Tag: 100}
	second := domain.Endpoint{Index: 1, Entity: "E2", Node: "sw2", Interface: "if1", Tag: 200, Bandwidth: 50}
	client := &fakeClient{circuits: map[int]*domain.Circuit{
		7: {
			ID:            7,
			WorkgroupID:   3,
			Description:   "existing",
			Endpoints:     []domain.Endpoint{first, second},
			ProvisionTime: domain.Now(),
			RemoveTime:    domain.Never(),
		},
	}}
	s := newTestState(client, nil)

	require.NoError(t, s.SelectCircuit(context.Background(), 7))
	assert.Equal(t, []int{7}, client.loads)
	snap := s.Snapshot()
	assert.Equal(t, StatusLoaded, snap.Status)
	assert.Equal(t, "existing", snap.Form.Description)

	require.NoError(t, s.DeleteEndpoint(0))

	eps := s.Snapshot().Circuit.Endpoints
	require.Len(t, eps, 1)
	want := second
	want.Index = 0
	assert.Equal(t, want, eps[0])
}

func TestSelectCircuitFailure(t *testing.T) {
	client := &fakeClient{}
	s := newTestState(client, nil)

	err := s.SelectCircuit(context.Background(), 99)
	require.ErrorIs(t, err, domain.ErrNotFound)

	snap := s.Snapshot()
	assert.Equal(t, StatusLoadFailed, snap.Status)
	assert.Equal(t, domain.NewCircuitID, snap.Circuit.ID)
	assert.NotEmpty(t, snap.Message())

	client.loadErr = domain.ErrTransport
	err = s.SelectCircuit(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Contains(t, s.Snapshot().Message(), "unavailable")
}

func TestSaveNewCircuit(t *testing.T) {
	client := &fakeClient{saveResp: &domain.SaveCircuitResponse{Success: 1, CircuitID: 42}}
	s := newTestState(client, nil)
	require.NoError(t, s.UpdateEndpoint(Append(), domain.Endpoint{Entity: "E1", Node: "sw1", Interface: "if0", Tag: 100}))

	nav, err := s.Save(context.Background(), Form{
		Description:   "test",
		ProvisionTime: domain.Now(),
		RemoveTime:    domain.Never(),
	})
	require.NoError(t, err)

	require.Len(t, client.saves, 1)
	req := client.saves[0]
	assert.Equal(t, int64(-1), req.ProvisionTime.Epoch())
	assert.Equal(t, int64(-1), req.RemoveTime.Epoch())
	assert.Equal(t, -1, req.CircuitID)
	assert.Equal(t, 3, req.WorkgroupID)
	assert.Equal(t, "test", req.Description)
	require.Len(t, req.Endpoints, 1)
	assert.Equal(t, "E1", req.Endpoints[0].Entity)
	assert.Equal(t, "if0", req.Endpoints[0].Interface)
	assert.Equal(t, 100, req.Endpoints[0].Tag)

	assert.Equal(t, ToCircuit(42), nav)
	assert.Contains(t, nav.String(), "action=modify_l2vpn")
	assert.Contains(t, nav.String(), "circuit_id=42")

	snap := s.Snapshot()
	assert.Equal(t, StatusSaved, snap.Status)
	assert.Equal(t, 42, snap.Circuit.ID)
}

func TestSaveFailureLeavesStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		resp    *domain.SaveCircuitResponse
		err     error
		checkFn func(t *testing.T, err error)
	}{
		{
			name: "success 0",
			resp: &domain.SaveCircuitResponse{Success: 0},
			checkFn: func(t *testing.T, err error) {
				assert.True(t, domain.IsRejected(err))
			},
		},
		{
			name: "rejected with reason",
			resp: &domain.SaveCircuitResponse{Success: 0, Error: "VLAN 100 on sw1 if0 is already in use by circuit 9"},
			checkFn: func(t *testing.T, err error) {
				assert.Contains(t, ErrorMessage(err), "VLAN 100")
			},
		},
		{
			name: "nil response",
			checkFn: func(t *testing.T, err error) {
				assert.True(t, domain.IsRejected(err))
			},
		},
		{
			name: "transport failure",
			err:  fmt.Errorf("%w: connection refused", domain.ErrTransport),
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrTransport)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{saveResp: tt.resp, saveErr: tt.err}
			s := newTestState(client, nil)
			require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))
			form := Form{Description: "test", ProvisionTime: domain.Now(), RemoveTime: domain.Never()}
			require.NoError(t, s.UpdateForm(form))
			before := s.Snapshot()

			nav, err := s.Save(context.Background(), form)
			require.Error(t, err)
			tt.checkFn(t, err)
			assert.True(t, nav.IsZero(), "no navigation on failure")

			after := s.Snapshot()
			assert.Equal(t, before.Circuit, after.Circuit)
			assert.Equal(t, before.Form, after.Form)
			assert.Equal(t, StatusEditing, after.Status, "never left in saving")
			assert.NotEmpty(t, after.Message())
		})
	}
}

func TestSaveValidatesBeforeSubmitting(t *testing.T) {
	client := &fakeClient{saveResp: &domain.SaveCircuitResponse{Success: 1, CircuitID: 1}}
	s := newTestState(client, nil)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))

	form := Form{
		Description:   "",
		ProvisionTime: domain.At(testNow.Add(2 * time.Hour)),
		RemoveTime:    domain.At(testNow.Add(time.Hour)),
	}
	_, err := s.Save(context.Background(), form)

	var verrs validation.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.NotNil(t, verrs.Field("description"))
	assert.NotNil(t, verrs.Field("remove_time"))
	assert.Empty(t, client.saves, "invalid circuits never reach the backend")
	assert.Equal(t, form, s.Snapshot().Form, "the submitted form is kept for correction")
	assert.True(t, strings.HasPrefix(s.Snapshot().Message(), "Please correct the form"))
}

func TestConcurrentSaveRejected(t *testing.T) {
	client := &fakeClient{
		saveResp:  &domain.SaveCircuitResponse{Success: 1, CircuitID: 5},
		block:     make(chan struct{}),
		saveEnter: make(chan struct{}, 1),
	}
	s := newTestState(client, nil)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))
	form := Form{Description: "test"}

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background(), form)
		done <- err
	}()
	<-client.saveEnter

	assert.Equal(t, StatusSaving, s.Snapshot().Status)
	_, err := s.Save(context.Background(), form)
	assert.ErrorIs(t, err, domain.ErrSaveInProgress)
	assert.ErrorIs(t, s.SelectCircuit(context.Background(), 1), domain.ErrSaveInProgress)
	assert.ErrorIs(t, s.DeleteEndpoint(0), domain.ErrSaveInProgress)

	close(client.block)
	require.NoError(t, <-done)
	assert.Len(t, client.saves, 1)
	assert.Equal(t, StatusSaved, s.Snapshot().Status)
}

func TestDiscardRejectedWhileSaving(t *testing.T) {
	client := &fakeClient{
		saveResp:  &domain.SaveCircuitResponse{Success: 1, CircuitID: 5},
		block:     make(chan struct{}),
		saveEnter: make(chan struct{}, 1),
	}
	s := newTestState(client, nil)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))

	done := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background(), Form{Description: "test"})
		done <- err
	}()
	<-client.saveEnter

	assert.True(t, s.Busy())
	asked := false
	nav, ok := s.Discard(func(string) bool { asked = true; return true })
	assert.False(t, ok)
	assert.True(t, nav.IsZero())
	assert.False(t, asked, "the user is not asked while a save is running")

	close(client.block)
	require.NoError(t, <-done)
	snap := s.Snapshot()
	assert.Equal(t, StatusSaved, snap.Status)
	assert.Equal(t, 5, snap.Circuit.ID)
	assert.False(t, s.Busy())
}

func TestDiscard(t *testing.T) {
	s := newTestState(&fakeClient{}, nil)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))

	var prompt string
	nav, ok := s.Discard(func(p string) bool { prompt = p; return false })
	assert.False(t, ok)
	assert.True(t, nav.IsZero())
	assert.Equal(t, DiscardPrompt, prompt)
	assert.Len(t, s.Snapshot().Circuit.Endpoints, 1, "declined discard changes nothing")

	nav, ok = s.Discard(func(string) bool { return true })
	assert.True(t, ok)
	assert.Equal(t, Home, nav)
	assert.Equal(t, StatusDiscarded, s.Snapshot().Status)
	assert.Empty(t, s.Snapshot().Circuit.Endpoints)

	assert.ErrorIs(t, s.UpdateEndpoint(Append(), endpoint("E2", "if1", 1)), domain.ErrDiscarded)
	_, err := s.Save(context.Background(), Form{Description: "x"})
	assert.ErrorIs(t, err, domain.ErrDiscarded)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := newTestState(&fakeClient{}, nil)
	require.NoError(t, s.UpdateEndpoint(Append(), endpoint("E1", "if0", 100)))

	snap := s.Snapshot()
	snap.Circuit.Endpoints[0].Tag = 4000
	assert.Equal(t, 100, s.Snapshot().Circuit.Endpoints[0].Tag)
}

func TestParseTarget(t *testing.T) {
	tgt, err := ParseTarget("")
	require.NoError(t, err)
	assert.True(t, tgt.IsAppend())

	tgt, err = ParseTarget("new")
	require.NoError(t, err)
	assert.True(t, tgt.IsAppend())

	tgt, err = ParseTarget("2")
	require.NoError(t, err)
	i, ok := tgt.Index()
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	assert.Equal(t, "2", tgt.String())

	_, err = ParseTarget("-1")
	assert.Error(t, err)
	_, err = ParseTarget("x")
	assert.Error(t, err)
}
