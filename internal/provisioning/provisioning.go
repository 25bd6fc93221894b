// Package provisioning is the boundary between the circuit editor and the
// service that persists and provisions circuits.
package provisioning

import (
	"context"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
)

// CircuitClient loads and submits circuits.
type CircuitClient interface {
	// LoadCircuit fails with domain.ErrNotFound for an unknown id or one
	// owned by another workgroup, and domain.ErrTransport when the backend
	// cannot be reached.
	LoadCircuit(ctx context.Context, workgroupID, id int) (*domain.Circuit, error)
	// SaveCircuit returns the backend's answer. A rejected circuit is a
	// response with Success 0, not an error.
	SaveCircuit(ctx context.Context, req *domain.SaveCircuitRequest) (*domain.SaveCircuitResponse, error)
}

// Directory is the read-only lookup surface used by the endpoint editor and
// the phonebook.
type Directory interface {
	// ListEntities returns parentID with its children, or the workgroup's
	// root entity when parentID is nil.
	ListEntities(ctx context.Context, workgroupID int, parentID *int) (*domain.Entity, error)
	ListConnections(ctx context.Context, workgroupID int) ([]domain.Connection, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// Client is the full provisioning backend.
type Client interface {
	CircuitClient
	Directory
}

type actorKey struct{}

// WithActor records the email of the user on whose behalf requests are made.
func WithActor(ctx context.Context, email string) context.Context {
	if email == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, email)
}

// Actor returns the email set by WithActor, if any.
func Actor(ctx context.Context) string {
	email, _ := ctx.Value(actorKey{}).(string)
	return email
}
