// Package statuspage renders the Instance Manager's read-only HTML views: a
// warm-pool dashboard over all ChromeBrowser instances, and a per-instance
// detail page. The dashboard is cached for one second and concurrent
// requests during that window are coalesced onto a single render, matching
// rust-instance-manager/src/service.rs's handle_get_browsers cache plus
// status_page.rs's render/SingleInstancePageTemplate. Templating uses
// text/template with the teacher's Sprig-backed FuncMap
// (internal/tmplutil) rather than html/template, matching the teacher's own
// templating choice throughout internal/tmplutil's call sites.
package statuspage

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/tzafon/waypoint/internal/instance"
	"github.com/tzafon/waypoint/internal/registry"
	"github.com/tzafon/waypoint/internal/tmplutil"
	"golang.org/x/sync/singleflight"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

const (
	maxItems        = 30
	maxLabelLen     = 32
	cacheExpiration = 1 * time.Second
)

var (
	dashboardTmpl = template.Must(template.New("dashboard.html.tmpl").Funcs(tmplutil.FuncMap()).ParseFS(templatesFS, "templates/dashboard.html.tmpl"))
	instanceTmpl  = template.Must(template.New("instance.html.tmpl").Funcs(tmplutil.FuncMap()).ParseFS(templatesFS, "templates/instance.html.tmpl"))
)

// Server renders status pages over a *registry.Registry, coalescing
// concurrent dashboard renders within cacheExpiration via singleflight.
type Server struct {
	reg *registry.Registry

	group singleflight.Group
	cache cacheState
}

// cacheState is only ever touched from inside a singleflight.Group.Do
// callback for the "dashboard" key, so concurrent Dashboard() calls never
// race on it.
type cacheState struct {
	renderedAt time.Time
	html       string
}

// New constructs a Server over reg.
func New(reg *registry.Registry) *Server {
	return &Server{reg: reg}
}

// Dashboard returns the rendered warm-pool dashboard, reusing a cached
// render if it is less than one second old.
func (s *Server) Dashboard() (string, error) {
	v, err, _ := s.group.Do("dashboard", func() (interface{}, error) {
		if time.Since(s.cache.renderedAt) < cacheExpiration && s.cache.html != "" {
			return s.cache.html, nil
		}
		html, err := s.renderDashboard()
		if err != nil {
			return "", err
		}
		s.cache.renderedAt = time.Now()
		s.cache.html = html
		return html, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Instance returns the rendered single-instance page for id.
func (s *Server) Instance(id instance.ID) (string, error) {
	desc, err := s.reg.GetInstance(id)
	if err != nil {
		return "", err
	}
	return renderInstance(desc)
}

type linkedID struct {
	label string
	url   string
}

func (l linkedID) String() string {
	if l.url == "" {
		return l.label
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, l.url, l.label)
}

func formatID(id instance.ID) linkedID {
	if id == "" {
		return linkedID{label: "No ID"}
	}
	return linkedID{label: truncate(string(id)), url: "browsers?instance_id=" + string(id)}
}

func truncate(s string) string {
	if len(s) <= maxLabelLen {
		return s
	}
	return s[:maxLabelLen-3] + "..."
}

type browserState struct {
	id         instance.ID
	registered int64
	claimedAt  *int64
	claimedBy  instance.ID
	dead       bool
}

func stateOf(b browserState) string {
	switch {
	case b.claimedAt != nil && !b.dead:
		return "connected"
	case b.dead:
		return "dead"
	default:
		return "idle"
	}
}

type connectionRow struct {
	ParentLink           linkedID
	InstanceLink         linkedID
	TimeSinceConnectedMs int64
	State                string
}

type registrationRow struct {
	InstanceLink          linkedID
	TimeSinceRegisteredMs int64
	State                 string
}

type dashboardView struct {
	AllBrowsers       int
	HealthyBrowsers   int
	AvailableBrowsers int
	Connections       []connectionRow
	Registrations     []registrationRow
}

func (s *Server) renderDashboard() (string, error) {
	descs := s.reg.Snapshot()
	now := time.Now().UnixMilli()

	var browsers []browserState
	for _, d := range descs {
		if d.InstanceType != instance.ChromeBrowser {
			continue
		}
		b := browserState{id: d.InstanceID, registered: d.CreatedTimestampMs, dead: !d.IsAlive()}
		if d.Parent != nil {
			ts := d.Parent.TimestampMs
			b.claimedAt = &ts
			b.claimedBy = d.Parent.InstanceID
		}
		browsers = append(browsers, b)
	}

	view := dashboardView{
		AllBrowsers: len(browsers),
	}
	for _, b := range browsers {
		if !b.dead {
			view.HealthyBrowsers++
			if b.claimedAt == nil {
				view.AvailableBrowsers++
			}
		}
	}

	for _, b := range browsers {
		if b.claimedAt == nil {
			continue
		}
		view.Connections = append(view.Connections, connectionRow{
			ParentLink:           formatID(b.claimedBy),
			InstanceLink:         formatID(b.id),
			TimeSinceConnectedMs: now - *b.claimedAt,
			State:                stateOf(b),
		})
	}
	sort.Slice(view.Connections, func(i, j int) bool {
		return view.Connections[i].TimeSinceConnectedMs < view.Connections[j].TimeSinceConnectedMs
	})
	if len(view.Connections) > maxItems {
		view.Connections = view.Connections[:maxItems]
	}

	for _, b := range browsers {
		view.Registrations = append(view.Registrations, registrationRow{
			InstanceLink:          formatID(b.id),
			TimeSinceRegisteredMs: now - b.registered,
			State:                 stateOf(b),
		})
	}
	sort.Slice(view.Registrations, func(i, j int) bool {
		return view.Registrations[i].TimeSinceRegisteredMs < view.Registrations[j].TimeSinceRegisteredMs
	})
	if len(view.Registrations) > maxItems {
		view.Registrations = view.Registrations[:maxItems]
	}

	var sb strings.Builder
	if err := dashboardTmpl.Execute(&sb, view); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type instanceView struct {
	InstanceLink  linkedID
	CreatedAt     string
	StateInfo     string
	ParentLink    linkedID
	Services      []string
	SystemMetrics string
	Children      []string
}

func renderInstance(d *instance.Description) (string, error) {
	view := instanceView{
		InstanceLink: formatID(d.InstanceID),
		CreatedAt:    formatTimestamp(d.CreatedTimestampMs),
		ParentLink:   linkedID{label: "No parent"},
	}
	if d.Parent != nil {
		view.ParentLink = formatID(d.Parent.InstanceID)
	}
	if d.KillInstanceRequest != nil {
		view.StateInfo = fmt.Sprintf("Was killed for %s at %s", d.KillInstanceRequest.Reason, formatTimestamp(d.KillInstanceRequest.TimestampMs))
	} else {
		view.StateInfo = "Is alive"
	}
	for kind, ep := range d.Services {
		view.Services = append(view.Services, fmt.Sprintf("%s: %s", kind, ep.Address))
	}
	sort.Strings(view.Services)
	if d.SystemMetrics != nil {
		view.SystemMetrics = fmt.Sprintf("%+v", *d.SystemMetrics)
	} else {
		view.SystemMetrics = "No system metrics"
	}
	for _, c := range d.Children {
		view.Children = append(view.Children, formatID(c.InstanceID).String())
	}

	var sb strings.Builder
	if err := instanceTmpl.Execute(&sb, view); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return "No timestamp"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
