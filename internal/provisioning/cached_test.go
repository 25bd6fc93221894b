package provisioning_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/l2vpn-manager/internal/cache"
	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
)

type countingClient struct {
	entityCalls int
	userCalls   int
	connCalls   int
}

func (c *countingClient) LoadCircuit(ctx context.Context, workgroupID, id int) (*domain.Circuit, error) {
	return nil, domain.ErrNotFound
}

func (c *countingClient) SaveCircuit(ctx context.Context, req *domain.SaveCircuitRequest) (*domain.SaveCircuitResponse, error) {
	return &domain.SaveCircuitResponse{Success: 1, CircuitID: 1}, nil
}

func (c *countingClient) ListEntities(ctx context.Context, workgroupID int, parentID *int) (*domain.Entity, error) {
	c.entityCalls++
	id := 1
	if parentID != nil {
		id = *parentID
	}
	return &domain.Entity{
		ID:         id,
		Name:       "entity",
		Interfaces: []domain.Interface{{Node: "sw1", Name: "xe-0/0/0", OperationalState: domain.InterfaceUp}},
	}, nil
}

func (c *countingClient) ListConnections(ctx context.Context, workgroupID int) ([]domain.Connection, error) {
	c.connCalls++
	return []domain.Connection{{ID: 3, Description: "c3"}}, nil
}

func (c *countingClient) ListUsers(ctx context.Context) ([]*domain.User, error) {
	c.userCalls++
	return []*domain.User{{ID: 1, Email: "a@example.com"}}, nil
}

func TestCachedServesRepeatLookups(t *testing.T) {
	ctx := context.Background()
	next := &countingClient{}
	c := provisioning.NewCached(next, cache.NewMemory(), time.Minute, logger.Nop())

	parent := 5
	for i := 0; i < 3; i++ {
		e, err := c.ListEntities(ctx, 1, &parent)
		require.NoError(t, err)
		assert.Equal(t, 5, e.ID)
		require.Len(t, e.Interfaces, 1)
		assert.Equal(t, "xe-0/0/0", e.Interfaces[0].Name)
	}
	assert.Equal(t, 1, next.entityCalls)

	// Root and child lookups are cached separately.
	_, err := c.ListEntities(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, next.entityCalls)

	for i := 0; i < 2; i++ {
		users, err := c.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
	}
	assert.Equal(t, 1, next.userCalls)
}

func TestCachedPassesThroughConnections(t *testing.T) {
	ctx := context.Background()
	next := &countingClient{}
	c := provisioning.NewCached(next, cache.NewMemory(), time.Minute, logger.Nop())

	for i := 0; i < 2; i++ {
		_, err := c.ListConnections(ctx, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, next.connCalls)
}

func TestCachedInvalidate(t *testing.T) {
	ctx := context.Background()
	next := &countingClient{}
	c := provisioning.NewCached(next, cache.NewMemory(), time.Minute, logger.Nop())

	_, err := c.ListUsers(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))
	_, err = c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, next.userCalls)
}
