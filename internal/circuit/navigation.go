package circuit

import (
	"net/url"
	"strconv"
)

// Navigation is where the editor should send the browser after an
// operation. The zero value means stay on the current page.
type Navigation string

// Home is the landing page the editor returns to on cancel.
const Home Navigation = "/"

// Editor actions carried in the action query parameter.
const (
	ActionProvision = "provision_l2vpn"
	ActionModify    = "modify_l2vpn"
	ActionPhonebook = "phonebook"
)

// ToCircuit navigates to the detail view of circuit id.
func ToCircuit(id int) Navigation {
	q := url.Values{}
	q.Set("action", ActionModify)
	q.Set("circuit_id", strconv.Itoa(id))
	return Navigation("/?" + q.Encode())
}

// IsZero reports whether no navigation is requested.
func (n Navigation) IsZero() bool { return n == "" }

func (n Navigation) String() string { return string(n) }
