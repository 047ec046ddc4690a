// Package sidebar maintains the side panel of every viewer: a static panel of
// configured lines, periodically replaced by a top list ranked on one metric.
package sidebar

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"rosterd/internal/domain"
	"rosterd/internal/metric"
	"rosterd/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// TopOptions configure the top list that takes over the panel periodically.
type TopOptions struct {
	Enabled    bool
	Title      string
	Metric     string
	ValueColor string
	Count      int
	Show       time.Duration
	Hide       time.Duration
}

// Options configure the sidebar service.
type Options struct {
	Enabled bool
	Title   string
	Items   []string
	Period  time.Duration
	Top     TopOptions
}

func (o Options) normalized() Options {
	if o.Period <= 0 {
		o.Period = 2 * time.Second
	}
	o.Top.Metric = strings.Trim(strings.TrimSpace(o.Top.Metric), "%")
	o.Top.Count = min(max(o.Top.Count, 1), domain.MaxSidebarLines)
	if o.Top.Show <= 0 {
		o.Top.Show = 20 * time.Second
	}
	if o.Top.Hide <= 0 {
		o.Top.Hide = 10 * time.Second
	}
	return o
}

// TopActive reports whether the top list cycle runs.
func (o Options) TopActive() bool {
	return o.Enabled && o.Top.Enabled && o.Top.Metric != ""
}

// Service renders and delivers sidebar panels.
type Service struct {
	roster  ports.Roster
	sink    ports.SidebarSink
	metrics ports.MetricProvider
	expand  *metric.Expander
	opts    Options
	showing bool
	logger  runtime.Logger
}

// New returns a sidebar service reading the top metric from metrics.
func New(roster ports.Roster, sink ports.SidebarSink, metrics ports.MetricProvider, expand *metric.Expander, opts Options, logger runtime.Logger) *Service {
	return &Service{
		roster:  roster,
		sink:    sink,
		metrics: metrics,
		expand:  expand,
		opts:    opts.normalized(),
		logger:  logger,
	}
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Enabled reports whether panels are maintained.
func (s *Service) Enabled() bool { return s.opts.Enabled }

// ShowingTop reports whether the top list currently replaces the static panel.
func (s *Service) ShowingTop() bool { return s.showing }

// ApplyOptions replaces the options and re-renders every viewer. Disabling
// clears every panel.
func (s *Service) ApplyOptions(ctx context.Context, opts Options) {
	s.opts = opts.normalized()
	s.showing = false
	if s.expand != nil {
		s.expand.Purge()
	}
	if !s.opts.Enabled {
		s.ClearAll()
		return
	}
	s.Refresh(ctx)
}

// Refresh re-renders the static panel of every viewer. It does nothing while
// the top list is showing.
func (s *Service) Refresh(ctx context.Context) {
	if !s.opts.Enabled || s.showing || s.roster == nil {
		return
	}
	entities := s.roster.Entities()
	online := strconv.Itoa(len(entities))
	for _, e := range entities {
		s.send(e.ID, s.Static(ctx, e, online))
	}
}

// Show renders the current panel for one viewer, e.g. on join.
func (s *Service) Show(ctx context.Context, viewerID string) {
	if !s.opts.Enabled || s.roster == nil {
		return
	}
	e, ok := s.roster.Entity(viewerID)
	if !ok {
		return
	}
	if s.showing {
		s.send(viewerID, s.Top(ctx))
		return
	}
	s.send(viewerID, s.Static(ctx, e, strconv.Itoa(len(s.roster.Entities()))))
}

// ShowTop replaces every panel with the top list.
func (s *Service) ShowTop(ctx context.Context) {
	if !s.opts.TopActive() || s.roster == nil {
		return
	}
	s.showing = true
	panel := s.Top(ctx)
	for _, e := range s.roster.Entities() {
		s.send(e.ID, panel)
	}
}

// HideTop ends the top list and restores the static panels.
func (s *Service) HideTop(ctx context.Context) {
	if !s.showing {
		return
	}
	s.showing = false
	s.Refresh(ctx)
}

// Forget drops the cached expansions of a departed viewer.
func (s *Service) Forget(viewerID string) {
	if s.expand != nil {
		s.expand.Forget(viewerID)
	}
}

// ClearAll removes the panel of every viewer.
func (s *Service) ClearAll() {
	s.showing = false
	if s.roster == nil || s.sink == nil {
		return
	}
	for _, e := range s.roster.Entities() {
		if err := s.sink.ClearSidebar(e.ID); err != nil && s.logger != nil {
			s.logger.Warn("clear sidebar of %s: %v", e.ID, err)
		}
	}
}

// Static renders the configured panel for viewer e. Only the first
// MaxSidebarLines items are shown.
func (s *Service) Static(ctx context.Context, e domain.Entity, online string) domain.Sidebar {
	builtins := map[string]string{metric.PlaceholderOnline: online, metric.PlaceholderServer: online}
	items := s.opts.Items
	if len(items) > domain.MaxSidebarLines {
		items = items[:domain.MaxSidebarLines]
	}
	panel := domain.Sidebar{Title: s.fill(ctx, e, s.opts.Title, builtins), Lines: make([]string, 0, len(items))}
	for _, item := range items {
		panel.Lines = append(panel.Lines, s.fill(ctx, e, item, builtins))
	}
	return panel
}

type row struct {
	name  string
	value float64
}

// Top renders the top list: connected entities by the top metric, highest first.
func (s *Service) Top(ctx context.Context) domain.Sidebar {
	var rows []row
	if s.roster != nil {
		for _, e := range s.roster.Entities() {
			raw, _ := metric.Resolve(ctx, s.metrics, e.ID, s.opts.Top.Metric)
			rows = append(rows, row{name: e.Name, value: metric.Number(raw)})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].value > rows[j].value })

	n := min(s.opts.Top.Count, len(rows))
	panel := domain.Sidebar{Title: s.opts.Top.Title, Lines: make([]string, 0, n)}
	for i := 0; i < n; i++ {
		panel.Lines = append(panel.Lines, fmt.Sprintf("&7#%d &f%s &8- %s%s",
			i+1, rows[i].name, s.opts.Top.ValueColor, strconv.FormatFloat(rows[i].value, 'f', -1, 64)))
	}
	return panel
}

func (s *Service) fill(ctx context.Context, e domain.Entity, text string, builtins map[string]string) string {
	if s.expand == nil {
		return text
	}
	return s.expand.Expand(ctx, e, text, builtins)
}

func (s *Service) send(viewerID string, panel domain.Sidebar) {
	if s.sink == nil {
		return
	}
	if err := s.sink.SetSidebar(viewerID, panel); err != nil && s.logger != nil {
		s.logger.Warn("sidebar for %s: %v", viewerID, err)
	}
}
