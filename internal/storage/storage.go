package storage

import (
	"context"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
)

// Storage defines the interface for the storage layer behind the local
// provisioning backend. Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Circuits. Endpoints and history are stored with the circuit.
	// CreateCircuit assigns circuit.ID.
	CreateCircuit(ctx context.Context, circuit *domain.Circuit) error
	GetCircuit(ctx context.Context, id int) (*domain.Circuit, error)
	ListCircuits(ctx context.Context, workgroupID int) ([]*domain.Circuit, error)
	UpdateCircuit(ctx context.Context, circuit *domain.Circuit) error
	AddCircuitEvent(ctx context.Context, circuitID int, event *domain.CircuitEvent) error
	// FindEndpointUse returns the id of a circuit other than excludeID that
	// already terminates on node/interface with the given tags, or ErrNotFound.
	FindEndpointUse(ctx context.Context, node, intf string, tag, innerTag, excludeID int) (int, error)

	// Entities
	CreateEntity(ctx context.Context, workgroupID int, entity *domain.Entity) error
	GetEntity(ctx context.Context, workgroupID, id int) (*domain.Entity, error)
	GetRootEntity(ctx context.Context, workgroupID int) (*domain.Entity, error)

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
