package circuit

import (
	"fmt"
	"strconv"
)

// EndpointTarget says where UpdateEndpoint puts an endpoint: after the last
// one, or over the endpoint at a given position.
type EndpointTarget struct {
	index  int
	append bool
}

// Append targets a new position after the last endpoint.
func Append() EndpointTarget { return EndpointTarget{append: true} }

// AtIndex targets the existing endpoint at position i.
func AtIndex(i int) EndpointTarget { return EndpointTarget{index: i} }

// IsAppend reports whether the target is Append.
func (t EndpointTarget) IsAppend() bool { return t.append }

// Index returns the position and false for Append.
func (t EndpointTarget) Index() (int, bool) {
	if t.append {
		return 0, false
	}
	return t.index, true
}

// ParseTarget decodes a form value: "" or "new" is Append, otherwise a
// non-negative position.
func ParseTarget(s string) (EndpointTarget, error) {
	if s == "" || s == "new" {
		return Append(), nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return EndpointTarget{}, fmt.Errorf("invalid endpoint target %q", s)
	}
	return AtIndex(i), nil
}

func (t EndpointTarget) String() string {
	if t.append {
		return "new"
	}
	return strconv.Itoa(t.index)
}
