package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
)

// Seed describes the directory loaded at start-up: users and, per
// workgroup, a tree of entities with their interfaces and contacts.
type Seed struct {
	Users      []domain.User   `yaml:"users"`
	Workgroups []SeedWorkgroup `yaml:"workgroups"`
}

// SeedWorkgroup is one workgroup's entity tree.
type SeedWorkgroup struct {
	ID       int          `yaml:"id"`
	Entities []SeedEntity `yaml:"entities"`
}

// SeedEntity is an entity with nested children.
type SeedEntity struct {
	domain.Entity `yaml:",inline"`
	Children      []SeedEntity `yaml:"children"`
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seed, nil
		}
		return nil, fmt.Errorf("parsing seed: %w", err)
	}
	return &seed, nil
}

// LoadSeedFile parses the file at path and applies it to store.
func LoadSeedFile(ctx context.Context, store Storage, path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	seed, err := ParseSeed(f)
	if err != nil {
		return nil, err
	}
	if err := seed.Apply(ctx, store); err != nil {
		return nil, err
	}
	return seed, nil
}

// Apply writes the seed to store. Rows that already exist are left alone so
// the seed can be applied on every start.
func (s *Seed) Apply(ctx context.Context, store Storage) error {
	for i := range s.Users {
		u := s.Users[i]
		if u.Status == "" {
			u.Status = "active"
		}
		if err := store.CreateUser(ctx, &u); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Errorf("seeding user %s: %w", u.Email, err)
		}
	}

	for _, wg := range s.Workgroups {
		for _, e := range wg.Entities {
			if err := applyEntity(ctx, store, wg.ID, nil, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyEntity(ctx context.Context, store Storage, workgroupID int, parentID *int, se SeedEntity) error {
	e := se.Entity
	if e.ID == 0 {
		return fmt.Errorf("seeding workgroup %d: entity %q has no id", workgroupID, e.Name)
	}
	e.ParentID = parentID
	for i := range e.Interfaces {
		if e.Interfaces[i].OperationalState == "" {
			e.Interfaces[i].OperationalState = domain.InterfaceUp
		}
	}

	if err := store.CreateEntity(ctx, workgroupID, &e); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return fmt.Errorf("seeding entity %d: %w", e.ID, err)
	}

	id := e.ID
	for _, child := range se.Children {
		if err := applyEntity(ctx, store, workgroupID, &id, child); err != nil {
			return err
		}
	}
	return nil
}
