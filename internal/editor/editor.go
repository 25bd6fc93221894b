// Package editor is the endpoint editor: a cascading entity then interface
// picker that produces one Endpoint and hands it to a circuit.State.
package editor

import (
	"context"
	"fmt"

	"github.com/bcnelson/l2vpn-manager/internal/circuit"
	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/provisioning"
	"github.com/bcnelson/l2vpn-manager/internal/validation"
)

// Form is an endpoint being entered. Entity is the node of the directory
// tree currently shown; its children can be drilled into and its
// interfaces picked.
type Form struct {
	Target circuit.EndpointTarget
	Entity *domain.Entity

	Node      string
	Interface string
	Tag       int
	InnerTag  int
	Bandwidth int
	Jumbo     bool
}

// HasInterface reports whether node/name is the selected interface.
func (f *Form) HasInterface(node, name string) bool {
	return f.Node == node && f.Interface == name
}

// Endpoint builds the endpoint the form describes without validating it.
func (f *Form) Endpoint() domain.Endpoint {
	ep := domain.Endpoint{
		Node:      f.Node,
		Interface: f.Interface,
		Tag:       f.Tag,
		InnerTag:  f.InnerTag,
		Bandwidth: f.Bandwidth,
		Jumbo:     f.Jumbo,
	}
	if f.Entity != nil {
		ep.EntityID = f.Entity.ID
		ep.Entity = f.Entity.Name
	}
	if i, ok := f.Target.Index(); ok {
		ep.Index = i
	} else {
		ep.Index = -1
	}
	return ep
}

// Editor builds endpoints for one circuit.State.
type Editor struct {
	dir         provisioning.Directory
	state       *circuit.State
	workgroupID int
}

// New creates an Editor that looks entities up in dir and writes to state.
func New(dir provisioning.Directory, state *circuit.State, workgroupID int) *Editor {
	return &Editor{dir: dir, state: state, workgroupID: workgroupID}
}

// Open starts a form. Append opens an empty form at the workgroup's root
// entity; AtIndex pre-populates from the existing endpoint.
func (e *Editor) Open(ctx context.Context, target circuit.EndpointTarget) (*Form, error) {
	f := &Form{Target: target}

	i, ok := target.Index()
	if !ok {
		if err := e.SelectEntity(ctx, f, nil); err != nil {
			return nil, err
		}
		return f, nil
	}

	eps := e.state.Snapshot().Circuit.Endpoints
	if i < 0 || i >= len(eps) {
		return nil, fmt.Errorf("%w: %d of %d", domain.ErrEndpointIndex, i, len(eps))
	}
	ep := eps[i]
	f.Node = ep.Node
	f.Interface = ep.Interface
	f.Tag = ep.Tag
	f.InnerTag = ep.InnerTag
	f.Bandwidth = ep.Bandwidth
	f.Jumbo = ep.Jumbo

	var entityID *int
	if ep.EntityID != 0 {
		entityID = &ep.EntityID
	}
	if err := e.SelectEntity(ctx, f, entityID); err != nil {
		return nil, err
	}
	return f, nil
}

// SelectEntity moves the picker to entityID, or to the root when nil. A
// selected interface that the new entity doesn't own is cleared.
func (e *Editor) SelectEntity(ctx context.Context, f *Form, entityID *int) error {
	entity, err := e.dir.ListEntities(ctx, e.workgroupID, entityID)
	if err != nil {
		return fmt.Errorf("loading entity: %w", err)
	}
	f.Entity = entity
	if f.Node != "" && !entity.HasInterface(f.Node, f.Interface) {
		f.Node, f.Interface = "", ""
	}
	return nil
}

// SelectInterface picks one of the current entity's interfaces.
func (e *Editor) SelectInterface(f *Form, node, name string) error {
	if f.Entity == nil || !f.Entity.HasInterface(node, name) {
		return fmt.Errorf("%w: %s %s is not an interface of the selected entity", domain.ErrInvalidInput, node, name)
	}
	f.Node, f.Interface = node, name
	return nil
}

// SetVLAN sets the outer and optional inner tag.
func (e *Editor) SetVLAN(f *Form, tag, innerTag int) error {
	if err := validation.ValidateVLAN(tag); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if innerTag != 0 {
		if err := validation.ValidateVLAN(innerTag); err != nil {
			return fmt.Errorf("%w: inner %v", domain.ErrInvalidInput, err)
		}
	}
	f.Tag, f.InnerTag = tag, innerTag
	return nil
}

// Validate checks the form; field names are the endpoint's json names.
func (f *Form) Validate() validation.ValidationErrors {
	errs := validation.ValidateEndpoint(f.Endpoint(), "")
	if f.Entity == nil {
		errs.Add("entity", "", "an entity is required")
	} else if f.Node != "" && !f.Entity.HasInterface(f.Node, f.Interface) {
		errs.Add("interface", f.Node+" "+f.Interface, "interface does not belong to "+f.Entity.Name)
	}
	return errs
}

// Submit validates the form and applies it to the circuit.
func (e *Editor) Submit(f *Form) (domain.Endpoint, error) {
	if errs := f.Validate(); errs.HasErrors() {
		return domain.Endpoint{}, errs
	}
	ep := f.Endpoint()
	if err := e.state.UpdateEndpoint(f.Target, ep); err != nil {
		return domain.Endpoint{}, err
	}
	return ep, nil
}
