package domain

import "time"

// Entity is a node in a workgroup's phonebook: an organisation or site that
// owns interfaces a circuit can terminate on.
type Entity struct {
	ID          int         `json:"entity_id" yaml:"id"`
	ParentID    *int        `json:"parent_id,omitempty" yaml:"-"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	LogoURL     string      `json:"logo_url,omitempty" yaml:"logo_url"`
	Parents     []EntityRef `json:"parents" yaml:"-"`
	Children    []EntityRef `json:"children" yaml:"-"`
	Interfaces  []Interface `json:"interfaces" yaml:"interfaces"`
	Contacts    []Contact   `json:"contacts" yaml:"contacts"`
}

// EntityRef is a lightweight link to a parent or child entity.
type EntityRef struct {
	ID   int    `json:"entity_id" db:"entity_id"`
	Name string `json:"name" db:"name"`
}

// Interface operational states.
const (
	InterfaceUp   = "up"
	InterfaceDown = "down"
)

// Interface is a physical port an endpoint can be attached to.
type Interface struct {
	Node             string `json:"node" db:"node" yaml:"node"`
	Name             string `json:"name" db:"name" yaml:"name"`
	OperationalState string `json:"operational_state" db:"operational_state" yaml:"operational_state"`
}

// Contact is a person listed for an entity.
type Contact struct {
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	Email     string `json:"email" yaml:"email"`
}

// HasInterface reports whether node/name belongs to the entity.
func (e *Entity) HasInterface(node, name string) bool {
	for _, intf := range e.Interfaces {
		if intf.Node == node && intf.Name == name {
			return true
		}
	}
	return false
}

// Connection is an existing circuit summary used by the "add to existing
// connection" flow.
type Connection struct {
	ID          int       `json:"circuit_id" db:"id"`
	Description string    `json:"description" db:"description"`
	State       string    `json:"state" db:"state"`
	CreatedBy   User      `json:"created_by" db:"-"`
	CreatedOn   time.Time `json:"created_on" db:"created_on"`
}
