package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bcnelson/l2vpn-manager/internal/circuit"
	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/editor"
	"github.com/bcnelson/l2vpn-manager/internal/validation"
	"github.com/bcnelson/l2vpn-manager/internal/view"
)

// parseCircuitForm reads the circuit form posted by the editor. Missing
// schedule radios mean "now" and "never".
func parseCircuitForm(r *http.Request, loc *time.Location) (circuit.Form, validation.ValidationErrors) {
	var errs validation.ValidationErrors
	f := circuit.Form{
		Description: strings.TrimSpace(r.FormValue("description")),
		StaticMAC:   r.FormValue("static_mac") == "1",
		RemoveTime:  domain.Never(),
	}

	provision, err := view.ParseInputTime(r.FormValue("provision") != "at", r.FormValue("provision_at"), loc)
	if err != nil {
		errs.Add("provision_time", r.FormValue("provision_at"), "enter a valid provision date and time")
	}
	f.ProvisionTime = provision

	if r.FormValue("remove") == "at" {
		remove, err := view.ParseInputTime(false, r.FormValue("remove_at"), loc)
		if err != nil {
			errs.Add("remove_time", r.FormValue("remove_at"), "enter a valid remove date and time")
		}
		f.RemoveTime = remove
	}

	return f, errs
}

// applyPickerForm copies the posted endpoint fields onto f. Entity
// navigation happens separately.
func (s *Server) applyPickerForm(r *http.Request, ws *workspace, f *editor.Form) validation.ValidationErrors {
	var errs validation.ValidationErrors

	tag, tagErr := formInt(r, "tag")
	inner, innerErr := formInt(r, "inner_tag")
	switch {
	case tagErr != nil:
		errs.Add("tag", r.FormValue("tag"), "VLAN must be a number")
	case innerErr != nil:
		errs.Add("inner_tag", r.FormValue("inner_tag"), "inner VLAN must be a number")
	case tag == 0 && inner == 0:
		f.Tag, f.InnerTag = 0, 0
	default:
		if err := ws.editor.SetVLAN(f, tag, inner); err != nil {
			f.Tag, f.InnerTag = tag, inner
			errs.Add("tag", strconv.Itoa(tag), "VLAN must be between 1 and 4095")
		}
	}

	if bw, err := formInt(r, "bandwidth"); err != nil || bw < 0 {
		errs.Add("bandwidth", r.FormValue("bandwidth"), "bandwidth must be a positive number of Mbps")
	} else {
		f.Bandwidth = bw
	}
	f.Jumbo = r.FormValue("jumbo") == "1"

	if v := r.FormValue("interface"); v != "" {
		node, name, _ := strings.Cut(v, "|")
		if err := ws.editor.SelectInterface(f, node, name); err != nil {
			errs.Add("interface", v, "pick an interface of the selected entity")
		}
	}

	return errs
}

// formInt parses an optional integer field; empty is 0.
func formInt(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
