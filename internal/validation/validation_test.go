package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/l2vpn-manager/internal/domain"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func validEndpoint() domain.Endpoint {
	return domain.Endpoint{Entity: "E1", Node: "sw1.example.net", Interface: "if0", Tag: 100}
}

func TestValidateVLAN(t *testing.T) {
	tests := []struct {
		name    string
		tag     int
		wantErr bool
	}{
		{"lowest", 1, false},
		{"highest", 4095, false},
		{"typical", 100, false},
		{"zero", 0, true},
		{"negative", -1, true},
		{"too large", 4096, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVLAN(tt.tag)
			assert.Equal(t, tt.wantErr, err != nil, "ValidateVLAN(%d) error = %v", tt.tag, err)
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*domain.Endpoint)
		wantField string
	}{
		{"valid", func(*domain.Endpoint) {}, ""},
		{"missing node", func(e *domain.Endpoint) { e.Node = "" }, "ep.node"},
		{"missing interface", func(e *domain.Endpoint) { e.Interface = "" }, "ep.interface"},
		{"vlan zero", func(e *domain.Endpoint) { e.Tag = 0 }, "ep.tag"},
		{"vlan too large", func(e *domain.Endpoint) { e.Tag = 5000 }, "ep.tag"},
		{"inner tag out of range", func(e *domain.Endpoint) { e.InnerTag = 4096 }, "ep.inner_tag"},
		{"inner tag unset is fine", func(e *domain.Endpoint) { e.InnerTag = 0 }, ""},
		{"negative bandwidth", func(e *domain.Endpoint) { e.Bandwidth = -10 }, "ep.bandwidth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep := validEndpoint()
			tt.mutate(&ep)

			errs := ValidateEndpoint(ep, "ep")
			if tt.wantField == "" {
				assert.False(t, errs.HasErrors(), "unexpected errors: %v", errs)
				return
			}
			require.True(t, errs.HasErrors())
			assert.NotNil(t, errs.Field(tt.wantField), "expected error on %s, got %v", tt.wantField, errs)
		})
	}
}

func TestValidateCircuit(t *testing.T) {
	base := func() *domain.SaveCircuitRequest {
		return &domain.SaveCircuitRequest{
			WorkgroupID:   1,
			Description:   "test",
			Endpoints:     []domain.Endpoint{validEndpoint()},
			ProvisionTime: domain.Now(),
			RemoveTime:    domain.Never(),
			CircuitID:     domain.NewCircuitID,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.False(t, ValidateCircuit(base(), now).HasErrors())
	})

	t.Run("blank description", func(t *testing.T) {
		req := base()
		req.Description = "   "
		errs := ValidateCircuit(req, now)
		assert.NotNil(t, errs.Field("description"))
	})

	t.Run("description too long", func(t *testing.T) {
		req := base()
		req.Description = strings.Repeat("x", MaxDescriptionLength+1)
		assert.NotNil(t, ValidateCircuit(req, now).Field("description"))
	})

	t.Run("no endpoints", func(t *testing.T) {
		req := base()
		req.Endpoints = nil
		assert.NotNil(t, ValidateCircuit(req, now).Field("endpoints"))
	})

	t.Run("duplicate endpoint", func(t *testing.T) {
		req := base()
		req.Endpoints = append(req.Endpoints, validEndpoint())
		assert.NotNil(t, ValidateCircuit(req, now).Field("endpoints[1]"))
	})

	t.Run("invalid endpoint is reported with its index", func(t *testing.T) {
		req := base()
		bad := validEndpoint()
		bad.Tag = 0
		req.Endpoints = append(req.Endpoints, bad)
		assert.NotNil(t, ValidateCircuit(req, now).Field("endpoints[1].tag"))
	})

	t.Run("matches ErrInvalidInput", func(t *testing.T) {
		req := base()
		req.Description = ""
		err := ValidateCircuit(req, now).Err()
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name      string
		provision domain.ScheduleTime
		remove    domain.ScheduleTime
		wantErr   bool
	}{
		{"now and never", domain.Now(), domain.Never(), false},
		{"future provision, never remove", domain.At(now.Add(time.Hour)), domain.Never(), false},
		{"remove after provision", domain.At(now.Add(time.Hour)), domain.At(now.Add(2 * time.Hour)), false},
		{"remove equal to provision", domain.At(now.Add(time.Hour)), domain.At(now.Add(time.Hour)), true},
		{"remove before provision", domain.At(now.Add(2 * time.Hour)), domain.At(now.Add(time.Hour)), true},
		{"provision now, remove later", domain.Now(), domain.At(now.Add(time.Minute)), false},
		{"provision now, remove in the past", domain.Now(), domain.At(now.Add(-time.Minute)), true},
		{"provision before 1970", domain.At(time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)), domain.Never(), true},
		{"both before 1970", domain.At(time.Unix(-7200, 0)), domain.At(time.Unix(-3600, 0)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSchedule(tt.provision, tt.remove, now)
			assert.Equal(t, tt.wantErr, errs.HasErrors(), "errors: %v", errs)
		})
	}
}
