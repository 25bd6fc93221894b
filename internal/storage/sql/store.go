package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/storage"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Ensure Store implements storage.Storage.
var _ storage.Storage = (*Store)(nil)

// New connects to the database and runs migrations. driver is "sqlite3"
// or "postgres".
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	dir, dialect := "migrations/postgres", "postgres"
	if driver == "sqlite3" {
		dir, dialect = "migrations/sqlite", "sqlite3"
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(dialect); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, dir); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ============================================
// API Keys
// ============================================

func createAPIKey(ctx context.Context, db dbInterface, key *domain.APIKey) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, s.db, key)
}

func (t *Tx) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	return createAPIKey(ctx, t.tx, key)
}

func getAPIKeyByHash(ctx context.Context, db dbInterface, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := db.GetContext(ctx, &key,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys WHERE key_hash = $1`, keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return &key, err
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, s.db, keyHash)
}

func (t *Tx) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	return getAPIKeyByHash(ctx, t.tx, keyHash)
}

func listAPIKeys(ctx context.Context, db dbInterface) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	err := db.SelectContext(ctx, &keys,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at FROM api_keys ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, s.db)
}

func (t *Tx) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return listAPIKeys(ctx, t.tx)
}

func deleteAPIKey(ctx context.Context, db dbInterface, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	return deleteAPIKey(ctx, s.db, id)
}

func (t *Tx) DeleteAPIKey(ctx context.Context, id string) error {
	return deleteAPIKey(ctx, t.tx, id)
}

func updateAPIKeyLastUsed(ctx context.Context, db dbInterface, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, s.db, id)
}

func (t *Tx) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	return updateAPIKeyLastUsed(ctx, t.tx, id)
}

func countAPIKeys(ctx context.Context, db dbInterface) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	return countAPIKeys(ctx, s.db)
}

func (t *Tx) CountAPIKeys(ctx context.Context) (int, error) {
	return countAPIKeys(ctx, t.tx)
}

// ============================================
// Circuits
// ============================================

type circuitRow struct {
	ID             int           `db:"id"`
	WorkgroupID    int           `db:"workgroup_id"`
	Description    string        `db:"description"`
	StaticMAC      bool          `db:"static_mac"`
	ProvisionTime  int64         `db:"provision_time"`
	RemoveTime     int64         `db:"remove_time"`
	State          string        `db:"state"`
	CreatedOn      time.Time     `db:"created_on"`
	CreatedBy      sql.NullInt64 `db:"created_by"`
	LastModifiedOn time.Time     `db:"last_modified_on"`
	LastModifiedBy sql.NullInt64 `db:"last_modified_by"`
}

type endpointRow struct {
	CircuitID int    `db:"circuit_id"`
	Seq       int    `db:"seq"`
	EntityID  int    `db:"entity_id"`
	Entity    string `db:"entity"`
	Node      string `db:"node"`
	Interface string `db:"interface"`
	Tag       int    `db:"tag"`
	InnerTag  int    `db:"inner_tag"`
	Bandwidth int    `db:"bandwidth"`
	Jumbo     bool   `db:"jumbo"`
}

const circuitColumns = `id, workgroup_id, description, static_mac, provision_time, remove_time, state,
	created_on, created_by, last_modified_on, last_modified_by`

func nullUser(u *domain.User) sql.NullInt64 {
	if u == nil || u.ID == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(u.ID), Valid: true}
}

func createCircuit(ctx context.Context, db dbInterface, c *domain.Circuit) error {
	var id int
	err := db.QueryRowxContext(ctx,
		`INSERT INTO circuits (workgroup_id, description, static_mac, provision_time, remove_time, state,
		                       created_on, created_by, last_modified_on, last_modified_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		c.WorkgroupID, c.Description, c.StaticMAC, c.ProvisionTime.Epoch(), c.RemoveTime.Epoch(), c.State,
		c.CreatedOn, nullUser(c.CreatedBy), c.LastModifiedOn, nullUser(c.LastModifiedBy)).Scan(&id)
	if err != nil {
		return err
	}
	c.ID = id
	return insertEndpoints(ctx, db, c.ID, c.Endpoints)
}

func (s *Store) CreateCircuit(ctx context.Context, c *domain.Circuit) error {
	return createCircuit(ctx, s.db, c)
}

func (t *Tx) CreateCircuit(ctx context.Context, c *domain.Circuit) error {
	return createCircuit(ctx, t.tx, c)
}

func insertEndpoints(ctx context.Context, db dbInterface, circuitID int, endpoints []domain.Endpoint) error {
	for i, ep := range endpoints {
		_, err := db.ExecContext(ctx,
			`INSERT INTO circuit_endpoints (circuit_id, seq, entity_id, entity, node, interface, tag, inner_tag, bandwidth, jumbo)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			circuitID, i, ep.EntityID, ep.Entity, ep.Node, ep.Interface, ep.Tag, ep.InnerTag, ep.Bandwidth, ep.Jumbo)
		if err != nil {
			return err
		}
	}
	return nil
}

func getCircuitEndpoints(ctx context.Context, db dbInterface, circuitID int) ([]domain.Endpoint, error) {
	var rows []endpointRow
	err := db.SelectContext(ctx, &rows,
		`SELECT circuit_id, seq, entity_id, entity, node, interface, tag, inner_tag, bandwidth, jumbo
		 FROM circuit_endpoints WHERE circuit_id = $1 ORDER BY seq`, circuitID)
	if err != nil {
		return nil, err
	}
	endpoints := make([]domain.Endpoint, 0, len(rows))
	for _, r := range rows {
		endpoints = append(endpoints, domain.Endpoint{
			Index:     r.Seq,
			EntityID:  r.EntityID,
			Entity:    r.Entity,
			Node:      r.Node,
			Interface: r.Interface,
			Tag:       r.Tag,
			InnerTag:  r.InnerTag,
			Bandwidth: r.Bandwidth,
			Jumbo:     r.Jumbo,
		})
	}
	return endpoints, nil
}

func getCircuitHistory(ctx context.Context, db dbInterface, circuitID int) ([]domain.CircuitEvent, error) {
	var rows []struct {
		FullName  string    `db:"fullname"`
		Reason    string    `db:"reason"`
		Activated time.Time `db:"activated"`
	}
	err := db.SelectContext(ctx, &rows,
		`SELECT fullname, reason, activated FROM circuit_events WHERE circuit_id = $1 ORDER BY id`, circuitID)
	if err != nil {
		return nil, err
	}
	events := make([]domain.CircuitEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, domain.CircuitEvent{FullName: r.FullName, Reason: r.Reason, Activated: r.Activated})
	}
	return events, nil
}

func lookupUser(ctx context.Context, db dbInterface, id sql.NullInt64) *domain.User {
	if !id.Valid {
		return nil
	}
	var u domain.User
	err := db.GetContext(ctx, &u,
		`SELECT id, first_name, last_name, email, username, is_admin, status FROM users WHERE id = $1`, id.Int64)
	if err != nil {
		return nil
	}
	return &u
}

func hydrateCircuit(ctx context.Context, db dbInterface, row *circuitRow) (*domain.Circuit, error) {
	c := &domain.Circuit{
		ID:             row.ID,
		WorkgroupID:    row.WorkgroupID,
		Description:    row.Description,
		StaticMAC:      row.StaticMAC,
		ProvisionTime:  domain.ScheduleFromEpoch(row.ProvisionTime),
		RemoveTime:     domain.ScheduleFromEpoch(row.RemoveTime),
		State:          row.State,
		CreatedOn:      row.CreatedOn,
		CreatedBy:      lookupUser(ctx, db, row.CreatedBy),
		LastModifiedOn: row.LastModifiedOn,
		LastModifiedBy: lookupUser(ctx, db, row.LastModifiedBy),
	}
	var err error
	if c.Endpoints, err = getCircuitEndpoints(ctx, db, c.ID); err != nil {
		return nil, err
	}
	if c.History, err = getCircuitHistory(ctx, db, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func getCircuit(ctx context.Context, db dbInterface, id int) (*domain.Circuit, error) {
	var row circuitRow
	err := db.GetContext(ctx, &row, `SELECT `+circuitColumns+` FROM circuits WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return hydrateCircuit(ctx, db, &row)
}

func (s *Store) GetCircuit(ctx context.Context, id int) (*domain.Circuit, error) {
	return getCircuit(ctx, s.db, id)
}

func (t *Tx) GetCircuit(ctx context.Context, id int) (*domain.Circuit, error) {
	return getCircuit(ctx, t.tx, id)
}

func listCircuits(ctx context.Context, db dbInterface, workgroupID int) ([]*domain.Circuit, error) {
	var rows []circuitRow
	err := db.SelectContext(ctx, &rows,
		`SELECT `+circuitColumns+` FROM circuits WHERE workgroup_id = $1 ORDER BY id`, workgroupID)
	if err != nil {
		return nil, err
	}
	circuits := make([]*domain.Circuit, 0, len(rows))
	for i := range rows {
		c, err := hydrateCircuit(ctx, db, &rows[i])
		if err != nil {
			return nil, err
		}
		circuits = append(circuits, c)
	}
	return circuits, nil
}

func (s *Store) ListCircuits(ctx context.Context, workgroupID int) ([]*domain.Circuit, error) {
	return listCircuits(ctx, s.db, workgroupID)
}

func (t *Tx) ListCircuits(ctx context.Context, workgroupID int) ([]*domain.Circuit, error) {
	return listCircuits(ctx, t.tx, workgroupID)
}

func updateCircuit(ctx context.Context, db dbInterface, c *domain.Circuit) error {
	result, err := db.ExecContext(ctx,
		`UPDATE circuits SET description = $1, static_mac = $2, provision_time = $3, remove_time = $4,
		        state = $5, last_modified_on = $6, last_modified_by = $7
		 WHERE id = $8`,
		c.Description, c.StaticMAC, c.ProvisionTime.Epoch(), c.RemoveTime.Epoch(),
		c.State, c.LastModifiedOn, nullUser(c.LastModifiedBy), c.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM circuit_endpoints WHERE circuit_id = $1`, c.ID); err != nil {
		return err
	}
	return insertEndpoints(ctx, db, c.ID, c.Endpoints)
}

func (s *Store) UpdateCircuit(ctx context.Context, c *domain.Circuit) error {
	return updateCircuit(ctx, s.db, c)
}

func (t *Tx) UpdateCircuit(ctx context.Context, c *domain.Circuit) error {
	return updateCircuit(ctx, t.tx, c)
}

func addCircuitEvent(ctx context.Context, db dbInterface, circuitID int, e *domain.CircuitEvent) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO circuit_events (circuit_id, fullname, reason, activated) VALUES ($1, $2, $3, $4)`,
		circuitID, e.FullName, e.Reason, e.Activated)
	return err
}

func (s *Store) AddCircuitEvent(ctx context.Context, circuitID int, e *domain.CircuitEvent) error {
	return addCircuitEvent(ctx, s.db, circuitID, e)
}

func (t *Tx) AddCircuitEvent(ctx context.Context, circuitID int, e *domain.CircuitEvent) error {
	return addCircuitEvent(ctx, t.tx, circuitID, e)
}

func findEndpointUse(ctx context.Context, db dbInterface, node, intf string, tag, innerTag, excludeID int) (int, error) {
	var id int
	err := db.GetContext(ctx, &id,
		`SELECT circuit_id FROM circuit_endpoints
		 WHERE node = $1 AND interface = $2 AND tag = $3 AND inner_tag = $4 AND circuit_id <> $5
		 ORDER BY circuit_id LIMIT 1`,
		node, intf, tag, innerTag, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return id, err
}

func (s *Store) FindEndpointUse(ctx context.Context, node, intf string, tag, innerTag, excludeID int) (int, error) {
	return findEndpointUse(ctx, s.db, node, intf, tag, innerTag, excludeID)
}

func (t *Tx) FindEndpointUse(ctx context.Context, node, intf string, tag, innerTag, excludeID int) (int, error) {
	return findEndpointUse(ctx, t.tx, node, intf, tag, innerTag, excludeID)
}

// ============================================
// Entities
// ============================================

type entityRow struct {
	ID          int           `db:"id"`
	WorkgroupID int           `db:"workgroup_id"`
	ParentID    sql.NullInt64 `db:"parent_id"`
	Name        string        `db:"name"`
	Description string        `db:"description"`
	LogoURL     string        `db:"logo_url"`
	Contacts    string        `db:"contacts"`
}

func createEntity(ctx context.Context, db dbInterface, workgroupID int, e *domain.Entity) error {
	list := e.Contacts
	if list == nil {
		list = []domain.Contact{}
	}
	contacts, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshaling contacts: %w", err)
	}
	var parent sql.NullInt64
	if e.ParentID != nil {
		parent = sql.NullInt64{Int64: int64(*e.ParentID), Valid: true}
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO entities (id, workgroup_id, parent_id, name, description, logo_url, contacts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, workgroupID, parent, e.Name, e.Description, e.LogoURL, string(contacts))
	if err != nil {
		return wrapUniqueError(err)
	}
	for i, intf := range e.Interfaces {
		_, err := db.ExecContext(ctx,
			`INSERT INTO entity_interfaces (entity_id, seq, node, name, operational_state) VALUES ($1, $2, $3, $4, $5)`,
			e.ID, i, intf.Node, intf.Name, intf.OperationalState)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateEntity(ctx context.Context, workgroupID int, e *domain.Entity) error {
	return createEntity(ctx, s.db, workgroupID, e)
}

func (t *Tx) CreateEntity(ctx context.Context, workgroupID int, e *domain.Entity) error {
	return createEntity(ctx, t.tx, workgroupID, e)
}

func hydrateEntity(ctx context.Context, db dbInterface, row *entityRow) (*domain.Entity, error) {
	e := &domain.Entity{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		LogoURL:     row.LogoURL,
		Parents:     []domain.EntityRef{},
		Children:    []domain.EntityRef{},
		Interfaces:  []domain.Interface{},
		Contacts:    []domain.Contact{},
	}
	if err := json.Unmarshal([]byte(row.Contacts), &e.Contacts); err != nil {
		return nil, fmt.Errorf("parsing contacts: %w", err)
	}

	if row.ParentID.Valid {
		pid := int(row.ParentID.Int64)
		e.ParentID = &pid
		var parent domain.EntityRef
		err := db.GetContext(ctx, &parent, `SELECT id AS entity_id, name FROM entities WHERE id = $1`, pid)
		if err == nil {
			e.Parents = append(e.Parents, parent)
		}
	}

	if err := db.SelectContext(ctx, &e.Children,
		`SELECT id AS entity_id, name FROM entities WHERE parent_id = $1 ORDER BY name`, row.ID); err != nil {
		return nil, err
	}
	if err := db.SelectContext(ctx, &e.Interfaces,
		`SELECT node, name, operational_state FROM entity_interfaces WHERE entity_id = $1 ORDER BY seq`, row.ID); err != nil {
		return nil, err
	}
	return e, nil
}

func getEntity(ctx context.Context, db dbInterface, workgroupID, id int) (*domain.Entity, error) {
	var row entityRow
	err := db.GetContext(ctx, &row,
		`SELECT id, workgroup_id, parent_id, name, description, logo_url, contacts
		 FROM entities WHERE id = $1 AND workgroup_id = $2`, id, workgroupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return hydrateEntity(ctx, db, &row)
}

func (s *Store) GetEntity(ctx context.Context, workgroupID, id int) (*domain.Entity, error) {
	return getEntity(ctx, s.db, workgroupID, id)
}

func (t *Tx) GetEntity(ctx context.Context, workgroupID, id int) (*domain.Entity, error) {
	return getEntity(ctx, t.tx, workgroupID, id)
}

func getRootEntity(ctx context.Context, db dbInterface, workgroupID int) (*domain.Entity, error) {
	var row entityRow
	err := db.GetContext(ctx, &row,
		`SELECT id, workgroup_id, parent_id, name, description, logo_url, contacts
		 FROM entities WHERE workgroup_id = $1 AND parent_id IS NULL ORDER BY id LIMIT 1`, workgroupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return hydrateEntity(ctx, db, &row)
}

func (s *Store) GetRootEntity(ctx context.Context, workgroupID int) (*domain.Entity, error) {
	return getRootEntity(ctx, s.db, workgroupID)
}

func (t *Tx) GetRootEntity(ctx context.Context, workgroupID int) (*domain.Entity, error) {
	return getRootEntity(ctx, t.tx, workgroupID)
}

// ============================================
// Users
// ============================================

func createUser(ctx context.Context, db dbInterface, u *domain.User) error {
	if u.ID != 0 {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, first_name, last_name, email, username, is_admin, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			u.ID, u.FirstName, u.LastName, u.Email, u.Username, u.IsAdmin, u.Status)
		return wrapUniqueError(err)
	}
	err := db.QueryRowxContext(ctx,
		`INSERT INTO users (first_name, last_name, email, username, is_admin, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		u.FirstName, u.LastName, u.Email, u.Username, u.IsAdmin, u.Status).Scan(&u.ID)
	return wrapUniqueError(err)
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	return createUser(ctx, s.db, u)
}

func (t *Tx) CreateUser(ctx context.Context, u *domain.User) error {
	return createUser(ctx, t.tx, u)
}

func getUserByEmail(ctx context.Context, db dbInterface, email string) (*domain.User, error) {
	var u domain.User
	err := db.GetContext(ctx, &u,
		`SELECT id, first_name, last_name, email, username, is_admin, status FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return &u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return getUserByEmail(ctx, s.db, email)
}

func (t *Tx) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return getUserByEmail(ctx, t.tx, email)
}

func listUsers(ctx context.Context, db dbInterface) ([]*domain.User, error) {
	var users []*domain.User
	err := db.SelectContext(ctx, &users,
		`SELECT id, first_name, last_name, email, username, is_admin, status FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return listUsers(ctx, s.db)
}

func (t *Tx) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return listUsers(ctx, t.tx)
}
