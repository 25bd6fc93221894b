package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
	"github.com/bcnelson/l2vpn-manager/internal/storage"
	"github.com/bcnelson/l2vpn-manager/internal/validation"
)

// History reasons recorded for each accepted save.
const (
	ReasonCreated  = "Circuit created"
	ReasonModified = "Circuit modified"
)

// Reasons of the scheduled events reported with a loaded circuit.
const (
	ReasonScheduledProvision = "Scheduled provision"
	ReasonScheduledRemoval   = "Scheduled removal"
)

// Backend is the in-process provisioning backend. It records circuits in
// storage; it does not configure any network device.
type Backend struct {
	store storage.Storage
	log   logger.Logger
	now   func() time.Time

	// mu serializes saves so the VLAN conflict check and the write are
	// atomic with respect to other saves.
	mu sync.Mutex
}

// Ensure Backend implements provisioning.Client.
var _ provisioning.Client = (*Backend)(nil)

// NewBackend creates a Backend over store.
func NewBackend(store storage.Storage, log logger.Logger) *Backend {
	return &Backend{
		store: store,
		log:   log.With(logger.String("component", "backend")),
		now:   time.Now,
	}
}

// LoadCircuit returns the stored circuit with its scheduled events. A
// circuit of another workgroup is reported as not found.
func (b *Backend) LoadCircuit(ctx context.Context, workgroupID, id int) (*domain.Circuit, error) {
	circuit, err := b.store.GetCircuit(ctx, id)
	if err != nil {
		return nil, err
	}
	if circuit.WorkgroupID != workgroupID {
		return nil, fmt.Errorf("circuit %d in workgroup %d: %w", id, workgroupID, domain.ErrNotFound)
	}
	circuit.Events = scheduledEvents(circuit, b.now())
	return circuit, nil
}

// SaveCircuit validates and persists a create or update. Requests that
// fail validation or conflict with an existing circuit are answered with
// Success 0 and a message; only storage failures are returned as errors.
func (b *Backend) SaveCircuit(ctx context.Context, req *domain.SaveCircuitRequest) (*domain.SaveCircuitResponse, error) {
	now := b.now()

	if errs := validation.ValidateCircuit(req, now); errs.HasErrors() {
		return reject(req, errs.Error()), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	endpoints, msg, err := b.checkEndpoints(ctx, req)
	if err != nil {
		return nil, err
	}
	if msg != "" {
		return reject(req, msg), nil
	}

	tx, err := b.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}

	circuit, reason, msg, err := b.write(ctx, tx, req, endpoints, now)
	if err != nil || msg != "" {
		_ = tx.Rollback()
		if err != nil {
			return nil, err
		}
		return reject(req, msg), nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	b.log.Info("circuit saved",
		logger.Int("circuit_id", circuit.ID),
		logger.Int("workgroup_id", circuit.WorkgroupID),
		logger.Int("endpoints", len(circuit.Endpoints)),
		logger.String("state", circuit.State),
		logger.String("reason", reason),
	)

	return &domain.SaveCircuitResponse{Success: 1, CircuitID: circuit.ID}, nil
}

// write creates or updates the circuit inside tx and appends a history
// event. A non-empty message rejects the save.
func (b *Backend) write(ctx context.Context, tx storage.Transaction, req *domain.SaveCircuitRequest, endpoints []domain.Endpoint, now time.Time) (*domain.Circuit, string, string, error) {
	actor := b.actor(ctx)

	var circuit *domain.Circuit
	reason := ReasonModified
	if req.CircuitID == domain.NewCircuitID {
		reason = ReasonCreated
		circuit = &domain.Circuit{
			WorkgroupID: req.WorkgroupID,
			CreatedOn:   now,
			CreatedBy:   actor,
		}
	} else {
		var err error
		circuit, err = tx.GetCircuit(ctx, req.CircuitID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", fmt.Sprintf("circuit %d does not exist", req.CircuitID), nil
		}
		if err != nil {
			return nil, "", "", err
		}
		if circuit.WorkgroupID != req.WorkgroupID {
			return nil, "", fmt.Sprintf("circuit %d belongs to another workgroup", req.CircuitID), nil
		}
	}

	circuit.Description = strings.TrimSpace(req.Description)
	circuit.Endpoints = endpoints
	circuit.StaticMAC = req.StaticMAC
	circuit.ProvisionTime = req.ProvisionTime
	circuit.RemoveTime = req.RemoveTime
	circuit.State = circuitState(req.ProvisionTime, req.RemoveTime, now)
	circuit.LastModifiedOn = now
	circuit.LastModifiedBy = actor

	var err error
	if req.CircuitID == domain.NewCircuitID {
		err = tx.CreateCircuit(ctx, circuit)
	} else {
		err = tx.UpdateCircuit(ctx, circuit)
	}
	if err != nil {
		return nil, "", "", err
	}

	event := &domain.CircuitEvent{FullName: actorName(actor), Reason: reason, Activated: now}
	if err := tx.AddCircuitEvent(ctx, circuit.ID, event); err != nil {
		return nil, "", "", err
	}
	return circuit, reason, "", nil
}

// checkEndpoints re-indexes the endpoints, fills entity names and looks for
// ports already carrying the same tags. A non-empty message rejects the save.
func (b *Backend) checkEndpoints(ctx context.Context, req *domain.SaveCircuitRequest) ([]domain.Endpoint, string, error) {
	endpoints := make([]domain.Endpoint, len(req.Endpoints))
	for i, ep := range req.Endpoints {
		ep.Index = i

		if ep.EntityID != 0 {
			entity, err := b.store.GetEntity(ctx, req.WorkgroupID, ep.EntityID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Sprintf("endpoint %d: entity %d does not exist", i, ep.EntityID), nil
			}
			if err != nil {
				return nil, "", err
			}
			if !entity.HasInterface(ep.Node, ep.Interface) {
				return nil, fmt.Sprintf("endpoint %d: %s %s does not belong to %s", i, ep.Node, ep.Interface, entity.Name), nil
			}
			ep.Entity = entity.Name
		}

		other, err := b.store.FindEndpointUse(ctx, ep.Node, ep.Interface, ep.Tag, ep.InnerTag, req.CircuitID)
		switch {
		case err == nil:
			return nil, fmt.Sprintf("VLAN %d on %s %s is already in use by circuit %d", ep.Tag, ep.Node, ep.Interface, other), nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, "", err
		}

		endpoints[i] = ep
	}
	return endpoints, "", nil
}

func (b *Backend) actor(ctx context.Context) *domain.User {
	email := provisioning.Actor(ctx)
	if email == "" {
		return nil
	}
	user, err := b.store.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.log.Warn("looking up actor", logger.String("email", email), logger.Err(err))
		}
		return nil
	}
	return user
}

func actorName(u *domain.User) string {
	if u == nil {
		return "system"
	}
	return u.FullName()
}

func reject(req *domain.SaveCircuitRequest, msg string) *domain.SaveCircuitResponse {
	return &domain.SaveCircuitResponse{Success: 0, CircuitID: req.CircuitID, Error: msg}
}

// circuitState derives the lifecycle state from the schedule.
func circuitState(provision, remove domain.ScheduleTime, now time.Time) string {
	if at, ok := remove.Time(); ok && !at.After(now) {
		return domain.CircuitStateDecom
	}
	if at, ok := provision.Time(); ok && at.After(now) {
		return domain.CircuitStateScheduled
	}
	return domain.CircuitStateActive
}

// scheduledEvents lists the provision and removal of c that are still ahead
// of now, attributed to whoever last set the schedule.
func scheduledEvents(c *domain.Circuit, now time.Time) []domain.ScheduledEvent {
	var events []domain.ScheduledEvent
	by := actorName(c.LastModifiedBy)
	removeAt, removing := c.RemoveTime.Time()

	if at, ok := c.ProvisionTime.Time(); ok && at.After(now) {
		e := domain.ScheduledEvent{FullName: by, Reason: ReasonScheduledProvision, Start: at}
		if removing {
			end := removeAt
			e.End = &end
		}
		events = append(events, e)
	}
	if removing && removeAt.After(now) {
		events = append(events, domain.ScheduledEvent{FullName: by, Reason: ReasonScheduledRemoval, Start: removeAt})
	}
	return events
}

// ListEntities returns an entity node with its children.
func (b *Backend) ListEntities(ctx context.Context, workgroupID int, parentID *int) (*domain.Entity, error) {
	if parentID == nil {
		return b.store.GetRootEntity(ctx, workgroupID)
	}
	return b.store.GetEntity(ctx, workgroupID, *parentID)
}

// ListConnections summarizes the workgroup's circuits.
func (b *Backend) ListConnections(ctx context.Context, workgroupID int) ([]domain.Connection, error) {
	circuits, err := b.store.ListCircuits(ctx, workgroupID)
	if err != nil {
		return nil, err
	}
	conns := make([]domain.Connection, 0, len(circuits))
	for _, c := range circuits {
		conn := domain.Connection{
			ID:          c.ID,
			Description: c.Description,
			State:       c.State,
			CreatedOn:   c.CreatedOn,
		}
		if c.CreatedBy != nil {
			conn.CreatedBy = *c.CreatedBy
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// ListUsers returns every user.
func (b *Backend) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return b.store.ListUsers(ctx)
}
