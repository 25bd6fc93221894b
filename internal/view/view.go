// Package view turns Circuit State snapshots into the editor's HTML. Build is
// a pure function of the snapshot; Synchronizer re-renders the whole editor
// from scratch on every change.
package view

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bcnelson/l2vpn-manager/internal/circuit"
	"github.com/bcnelson/l2vpn-manager/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// InputTimeLayout is the layout of <input type="datetime-local"> values.
const InputTimeLayout = "2006-01-02T15:04"

// DisplayTimeLayout formats read-only timestamps.
const DisplayTimeLayout = "2006-01-02 15:04 MST"

// Options are the per-page inputs to Build that don't come from the
// snapshot.
type Options struct {
	// Editable is false for read-only users; mutating controls are hidden.
	Editable bool
	// BasePath prefixes the editor's action URLs.
	BasePath string
	// Location renders times; nil means UTC.
	Location *time.Location
}

// Model is everything the editor template needs.
type Model struct {
	BasePath  string
	Editable  bool
	CircuitID int
	IsNew     bool
	Title     string

	Description  string
	StaticMAC    bool
	ProvisionNow bool
	ProvisionAt  string
	RemoveNever  bool
	RemoveAt     string

	Endpoints []EndpointRow

	Status  string
	Busy    bool
	Error   string
	Details *Details
	Events  []EventRow
	History []HistoryRow
	// Raw is the loaded circuit as indented JSON.
	Raw string

	DiscardPrompt string
}

// EndpointRow is one line of the endpoint list.
type EndpointRow struct {
	Index     int
	Entity    string
	Node      string
	Interface string
	Tag       int
	InnerTag  int
	Bandwidth string
	Jumbo     bool
}

// Details are the backend-maintained fields of a saved circuit.
type Details struct {
	State          string
	CreatedOn      string
	CreatedBy      string
	LastModifiedOn string
	LastModifiedBy string
}

// EventRow is a scheduled provision or removal. End is empty when open.
type EventRow struct {
	User   string
	Reason string
	Start  string
	End    string
}

// HistoryRow is one circuit event.
type HistoryRow struct {
	User      string
	Reason    string
	Activated string
}

// Build derives the editor model from a snapshot.
func Build(snap circuit.Snapshot, opts Options) Model {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	c := snap.Circuit
	if c == nil {
		c = &domain.Circuit{ID: domain.NewCircuitID}
	}

	m := Model{
		BasePath:      opts.BasePath,
		Editable:      opts.Editable && snap.Status != circuit.StatusDiscarded,
		CircuitID:     c.ID,
		IsNew:         c.IsNew(),
		Description:   snap.Form.Description,
		StaticMAC:     snap.Form.StaticMAC,
		ProvisionNow:  snap.Form.ProvisionTime.IsSentinel(),
		ProvisionAt:   FormatInputTime(snap.Form.ProvisionTime, loc),
		RemoveNever:   snap.Form.RemoveTime.IsSentinel(),
		RemoveAt:      FormatInputTime(snap.Form.RemoveTime, loc),
		Endpoints:     make([]EndpointRow, 0, len(c.Endpoints)),
		Status:        snap.Status.String(),
		Busy:          snap.Status == circuit.StatusLoading || snap.Status == circuit.StatusSaving,
		Error:         snap.Message(),
		DiscardPrompt: circuit.DiscardPrompt,
	}

	m.Title = "New L2VPN"
	if !m.IsNew {
		title := strings.TrimSpace(c.Description)
		if title == "" {
			title = "L2VPN"
		}
		m.Title = fmt.Sprintf("%s (%d)", title, c.ID)
	}

	for i, ep := range c.Endpoints {
		m.Endpoints = append(m.Endpoints, EndpointRow{
			Index:     i,
			Entity:    ep.Entity,
			Node:      ep.Node,
			Interface: ep.Interface,
			Tag:       ep.Tag,
			InnerTag:  ep.InnerTag,
			Bandwidth: formatBandwidth(ep.Bandwidth),
			Jumbo:     ep.Jumbo,
		})
	}

	if !m.IsNew {
		m.Details = &Details{
			State:          c.State,
			CreatedOn:      formatTime(c.CreatedOn, loc),
			CreatedBy:      userEmail(c.CreatedBy),
			LastModifiedOn: formatTime(c.LastModifiedOn, loc),
			LastModifiedBy: userEmail(c.LastModifiedBy),
		}
		for _, ev := range c.Events {
			row := EventRow{User: ev.FullName, Reason: ev.Reason, Start: formatTime(ev.Start, loc)}
			if ev.End != nil {
				row.End = formatTime(*ev.End, loc)
			}
			m.Events = append(m.Events, row)
		}
		for _, h := range c.History {
			m.History = append(m.History, HistoryRow{
				User:      h.FullName,
				Reason:    h.Reason,
				Activated: formatTime(h.Activated, loc),
			})
		}
		m.Raw = rawJSON(c)
	}

	return m
}

// rawJSON leaves HTML escaping to the template.
func rawJSON(c *domain.Circuit) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func formatBandwidth(mbps int) string {
	switch {
	case mbps <= 0:
		return "Unlimited"
	case mbps%1000 == 0:
		return fmt.Sprintf("%d Gbps", mbps/1000)
	default:
		return fmt.Sprintf("%d Mbps", mbps)
	}
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(DisplayTimeLayout)
}

func userEmail(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}

// FormatInputTime renders a schedule for a datetime-local input; the
// sentinel renders empty.
func FormatInputTime(st domain.ScheduleTime, loc *time.Location) string {
	t, ok := st.Time()
	if !ok {
		return ""
	}
	return t.In(loc).Format(InputTimeLayout)
}

// ParseInputTime is the inverse of FormatInputTime. sentinel is the state of
// the "now"/"never" radio button; when set the value is ignored.
func ParseInputTime(sentinel bool, value string, loc *time.Location) (domain.ScheduleTime, error) {
	if sentinel {
		return domain.Now(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(InputTimeLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return domain.ScheduleTime{}, fmt.Errorf("invalid date %q: %w", value, domain.ErrInvalidInput)
	}
	st := domain.At(t)
	if st.BeforeEpoch() {
		return domain.ScheduleTime{}, fmt.Errorf("date %q is before 1970: %w", value, domain.ErrInvalidInput)
	}
	return st, nil
}

// Templates parses the embedded editor templates.
func Templates() (*template.Template, error) {
	return template.New("view").ParseFS(templateFS, "templates/*.html")
}

// Synchronizer renders the editor on every State change and keeps the last
// output. It implements circuit.Renderer.
type Synchronizer struct {
	tmpl *template.Template
	opts Options

	mu   sync.RWMutex
	html []byte
	err  error
}

// NewSynchronizer creates a Synchronizer using the embedded templates.
func NewSynchronizer(opts Options) (*Synchronizer, error) {
	tmpl, err := Templates()
	if err != nil {
		return nil, fmt.Errorf("parsing editor templates: %w", err)
	}
	return &Synchronizer{tmpl: tmpl, opts: opts}, nil
}

// Render rebuilds the output from snap, discarding the previous output.
func (s *Synchronizer) Render(snap circuit.Snapshot) {
	var buf bytes.Buffer
	err := s.tmpl.ExecuteTemplate(&buf, "editor", Build(snap, s.opts))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.html, s.err = buf.Bytes(), err
}

// HTML returns the last rendered output.
func (s *Synchronizer) HTML() (template.HTML, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return template.HTML(s.html), s.err
}

// WriteTo writes the last rendered output to w.
func (s *Synchronizer) WriteTo(w io.Writer) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return 0, s.err
	}
	n, err := w.Write(s.html)
	return int64(n), err
}
