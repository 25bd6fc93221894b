// Package validation checks circuits and endpoints before they are submitted
// to the provisioning backend.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
)

// MaxDescriptionLength mirrors the backend column width.
const MaxDescriptionLength = 255

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so messages match the wire format.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateVLAN validates an 802.1Q tag.
func ValidateVLAN(tag int) error {
	if tag < 1 || tag > 4095 {
		return fmt.Errorf("VLAN tag must be between 1 and 4095, got %d", tag)
	}
	return nil
}

// ValidateEndpoint checks a single endpoint. Field names in the returned
// errors are prefixed with prefix when it is non-empty.
func ValidateEndpoint(ep domain.Endpoint, prefix string) ValidationErrors {
	var errs ValidationErrors

	err := validate.Struct(ep)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			errs.Add(joinField(prefix, fe.Field()), fmt.Sprint(fe.Value()), describe(fe))
		}
	}

	return errs
}

// ValidateAPIKeyRequest checks the name of a new API key.
func ValidateAPIKeyRequest(req *domain.CreateAPIKeyRequest) ValidationErrors {
	var errs ValidationErrors
	var verrs validator.ValidationErrors
	if errors.As(validate.Struct(req), &verrs) {
		for _, fe := range verrs {
			errs.Add(fe.Field(), fmt.Sprint(fe.Value()), describe(fe))
		}
	}
	return errs
}

// ValidateCircuit checks a provisioning request. now resolves the "provision
// now" sentinel when comparing schedule times.
func ValidateCircuit(req *domain.SaveCircuitRequest, now time.Time) ValidationErrors {
	var errs ValidationErrors

	desc := strings.TrimSpace(req.Description)
	switch {
	case desc == "":
		errs.Add("description", req.Description, "description is required")
	case len(desc) > MaxDescriptionLength:
		errs.Add("description", req.Description, fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}

	if len(req.Endpoints) == 0 {
		errs.Add("endpoints", "", "at least one endpoint is required")
	}

	seen := make(map[string]int, len(req.Endpoints))
	for i, ep := range req.Endpoints {
		prefix := "endpoints[" + strconv.Itoa(i) + "]"
		errs = append(errs, ValidateEndpoint(ep, prefix)...)

		key := fmt.Sprintf("%s|%s|%d|%d", ep.Node, ep.Interface, ep.Tag, ep.InnerTag)
		if first, dup := seen[key]; dup {
			errs.Add(prefix, key, fmt.Sprintf("duplicates endpoint %d", first))
			continue
		}
		seen[key] = i
	}

	errs = append(errs, ValidateSchedule(req.ProvisionTime, req.RemoveTime, now)...)

	return errs
}

// ValidateSchedule requires a fixed remove time to fall strictly after the
// (resolved) provision time.
func ValidateSchedule(provision, remove domain.ScheduleTime, now time.Time) ValidationErrors {
	var errs ValidationErrors

	if provision.BeforeEpoch() {
		errs.Add("provision_time", provision.String(), "provision time must not be before 1970")
	}
	if remove.BeforeEpoch() {
		errs.Add("remove_time", remove.String(), "remove time must not be before 1970")
		return errs
	}

	removeAt, ok := remove.Time()
	if !ok {
		return errs
	}

	start := provision.Resolve(now)
	if !removeAt.After(start) {
		errs.Add("remove_time", remove.String(), "remove time must be after the provision time")
	}

	return errs
}

func joinField(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "printascii":
		return fe.Field() + " must be printable ASCII"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
