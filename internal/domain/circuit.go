package domain

import "time"

// NewCircuitID marks a circuit that has not been persisted yet.
const NewCircuitID = -1

// Circuit states reported by the provisioning backend.
const (
	CircuitStateScheduled = "scheduled"
	CircuitStateActive    = "active"
	CircuitStateDecom     = "decom"
)

// Circuit is a multi-endpoint L2 virtual circuit.
type Circuit struct {
	ID            int          `json:"circuit_id"`
	WorkgroupID   int          `json:"workgroup_id"`
	Description   string       `json:"description"`
	Endpoints     []Endpoint   `json:"endpoints"`
	StaticMAC     bool         `json:"static_mac"`
	ProvisionTime ScheduleTime `json:"provision_time"`
	RemoveTime    ScheduleTime `json:"remove_time"`

	// Read-only details filled in by the backend.
	State          string         `json:"state,omitempty"`
	CreatedOn      time.Time      `json:"created_on,omitempty"`
	CreatedBy      *User          `json:"created_by,omitempty"`
	LastModifiedOn time.Time      `json:"last_modified_on,omitempty"`
	LastModifiedBy *User          `json:"last_modified_by,omitempty"`
	History        []CircuitEvent `json:"history,omitempty"`
	// Events are the schedule changes still to come.
	Events []ScheduledEvent `json:"events,omitempty"`
}

// Endpoint is where a circuit terminates on the network. Endpoints are
// value objects: an edit replaces the whole endpoint.
type Endpoint struct {
	Index     int    `json:"index"`
	EntityID  int    `json:"entity_id,omitempty" validate:"gte=0"`
	Entity    string `json:"entity,omitempty"`
	Node      string `json:"node" validate:"required"`
	Interface string `json:"interface" validate:"required"`
	Tag       int    `json:"tag" validate:"gte=1,lte=4095"`
	InnerTag  int    `json:"inner_tag,omitempty" validate:"omitempty,gte=1,lte=4095"` // 0 = untagged inner
	Bandwidth int    `json:"bandwidth,omitempty" validate:"gte=0"`                    // Mbps, 0 = unlimited
	Jumbo     bool   `json:"jumbo,omitempty"`
}

// CircuitEvent is one row of a circuit's history.
type CircuitEvent struct {
	FullName  string    `json:"fullname"`
	Reason    string    `json:"reason"`
	Activated time.Time `json:"activated"`
}

// ScheduledEvent is a provision or removal that has not happened yet. End is
// set when a scheduled provision also has a removal date.
type ScheduledEvent struct {
	FullName string     `json:"fullname"`
	Reason   string     `json:"reason"`
	Start    time.Time  `json:"start"`
	End      *time.Time `json:"end,omitempty"`
}

// Clone returns a deep copy so callers can't alias the endpoint slice.
func (c *Circuit) Clone() *Circuit {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Endpoints = append([]Endpoint(nil), c.Endpoints...)
	cp.History = append([]CircuitEvent(nil), c.History...)
	cp.Events = append([]ScheduledEvent(nil), c.Events...)
	for i, e := range cp.Events {
		if e.End != nil {
			end := *e.End
			cp.Events[i].End = &end
		}
	}
	if c.CreatedBy != nil {
		u := *c.CreatedBy
		cp.CreatedBy = &u
	}
	if c.LastModifiedBy != nil {
		u := *c.LastModifiedBy
		cp.LastModifiedBy = &u
	}
	return &cp
}

// IsNew reports whether the circuit has never been saved.
func (c *Circuit) IsNew() bool {
	return c.ID == NewCircuitID
}

// SaveCircuitRequest is the provisioning request for a create or update.
type SaveCircuitRequest struct {
	WorkgroupID   int          `json:"workgroup_id"`
	Description   string       `json:"description"`
	Endpoints     []Endpoint   `json:"endpoints"`
	StaticMAC     bool         `json:"static_mac"`
	ProvisionTime ScheduleTime `json:"provision_time"`
	RemoveTime    ScheduleTime `json:"remove_time"`
	CircuitID     int          `json:"circuit_id"`
}

// SaveCircuitResponse is the backend's answer to a provisioning request.
// Success is 1 when the circuit was accepted and persisted.
type SaveCircuitResponse struct {
	Success   int    `json:"success"`
	CircuitID int    `json:"circuit_id"`
	Error     string `json:"error,omitempty"`
}

// OK reports whether the response signals an accepted circuit.
func (r *SaveCircuitResponse) OK() bool {
	return r != nil && r.Success == 1
}
