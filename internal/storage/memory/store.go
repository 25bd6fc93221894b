package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu sync.RWMutex

	apiKeys  map[string]*domain.APIKey
	circuits map[int]*domain.Circuit
	entities map[int]*entityRow
	users    map[int]*domain.User

	nextCircuitID int
	nextUserID    int
}

type entityRow struct {
	workgroupID int
	entity      domain.Entity
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:       make(map[string]*domain.APIKey),
		circuits:      make(map[int]*domain.Circuit),
		entities:      make(map[int]*entityRow),
		users:         make(map[int]*domain.User),
		nextCircuitID: 1,
		nextUserID:    1,
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{Store: s}, nil
}

// Tx is a no-op transaction for in-memory store. Writes are applied
// immediately.
type Tx struct {
	*Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apiKeys[key.ID]; exists {
		return domain.ErrAlreadyExists
	}
	cp := *key
	s.apiKeys[key.ID] = &cp
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			cp := *key
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, key := range s.apiKeys {
		cp := *key
		keys = append(keys, &cp)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apiKeys[id]; !exists {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, exists := s.apiKeys[id]
	if !exists {
		return domain.ErrNotFound
	}
	now := time.Now()
	cp := *key
	cp.LastUsedAt = &now
	s.apiKeys[id] = &cp
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// ============================================
// Circuits
// ============================================

func (s *Store) CreateCircuit(ctx context.Context, circuit *domain.Circuit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	circuit.ID = s.nextCircuitID
	s.nextCircuitID++
	s.circuits[circuit.ID] = circuit.Clone()
	return nil
}

func (s *Store) GetCircuit(ctx context.Context, id int) (*domain.Circuit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, exists := s.circuits[id]
	if !exists {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Store) ListCircuits(ctx context.Context, workgroupID int) ([]*domain.Circuit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	circuits := make([]*domain.Circuit, 0)
	for _, c := range s.circuits {
		if c.WorkgroupID == workgroupID {
			circuits = append(circuits, c.Clone())
		}
	}
	sort.Slice(circuits, func(i, j int) bool { return circuits[i].ID < circuits[j].ID })
	return circuits, nil
}

func (s *Store) UpdateCircuit(ctx context.Context, circuit *domain.Circuit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, exists := s.circuits[circuit.ID]
	if !exists {
		return domain.ErrNotFound
	}
	cp := circuit.Clone()
	cp.History = existing.History
	s.circuits[circuit.ID] = cp
	return nil
}

func (s *Store) AddCircuitEvent(ctx context.Context, circuitID int, event *domain.CircuitEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, exists := s.circuits[circuitID]
	if !exists {
		return domain.ErrNotFound
	}
	c.History = append(c.History, *event)
	return nil
}

func (s *Store) FindEndpointUse(ctx context.Context, node, intf string, tag, innerTag, excludeID int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.circuits))
	for id := range s.circuits {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if id == excludeID {
			continue
		}
		for _, ep := range s.circuits[id].Endpoints {
			if ep.Node == node && ep.Interface == intf && ep.Tag == tag && ep.InnerTag == innerTag {
				return id, nil
			}
		}
	}
	return 0, domain.ErrNotFound
}

// ============================================
// Entities
// ============================================

func (s *Store) CreateEntity(ctx context.Context, workgroupID int, entity *domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[entity.ID]; exists {
		return domain.ErrAlreadyExists
	}
	if entity.ParentID != nil {
		if _, exists := s.entities[*entity.ParentID]; !exists {
			return domain.ErrNotFound
		}
	}
	row := &entityRow{workgroupID: workgroupID, entity: *entity}
	row.entity.Parents = nil
	row.entity.Children = nil
	row.entity.Interfaces = append([]domain.Interface(nil), entity.Interfaces...)
	row.entity.Contacts = append([]domain.Contact(nil), entity.Contacts...)
	s.entities[entity.ID] = row
	return nil
}

func (s *Store) GetEntity(ctx context.Context, workgroupID, id int) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, exists := s.entities[id]
	if !exists || row.workgroupID != workgroupID {
		return nil, domain.ErrNotFound
	}
	return s.hydrate(row), nil
}

func (s *Store) GetRootEntity(ctx context.Context, workgroupID int) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var root *entityRow
	for _, row := range s.entities {
		if row.workgroupID != workgroupID || row.entity.ParentID != nil {
			continue
		}
		if root == nil || row.entity.ID < root.entity.ID {
			root = row
		}
	}
	if root == nil {
		return nil, domain.ErrNotFound
	}
	return s.hydrate(root), nil
}

// hydrate copies the row and fills parent/child links. Caller holds s.mu.
func (s *Store) hydrate(row *entityRow) *domain.Entity {
	e := row.entity
	e.Interfaces = append([]domain.Interface{}, row.entity.Interfaces...)
	e.Contacts = append([]domain.Contact{}, row.entity.Contacts...)
	e.Parents = []domain.EntityRef{}
	e.Children = []domain.EntityRef{}

	if e.ParentID != nil {
		if parent, ok := s.entities[*e.ParentID]; ok {
			e.Parents = append(e.Parents, domain.EntityRef{ID: parent.entity.ID, Name: parent.entity.Name})
		}
	}
	for _, other := range s.entities {
		if other.entity.ParentID != nil && *other.entity.ParentID == e.ID {
			e.Children = append(e.Children, domain.EntityRef{ID: other.entity.ID, Name: other.entity.Name})
		}
	}
	sort.Slice(e.Children, func(i, j int) bool { return e.Children[i].Name < e.Children[j].Name })
	return &e
}

// ============================================
// Users
// ============================================

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return domain.ErrAlreadyExists
		}
	}
	if user.ID == 0 {
		user.ID = s.nextUserID
	}
	if user.ID >= s.nextUserID {
		s.nextUserID = user.ID + 1
	}
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}
