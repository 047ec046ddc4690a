// Package tablist maintains the header and footer shown around every viewer's
// list: placeholder expansion plus scroll, rainbow and pulse effects.
package tablist

import (
	"context"
	"strconv"
	"time"

	"rosterd/internal/domain"
	"rosterd/internal/metric"
	"rosterd/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Scroll configures the marquee effect.
type Scroll struct {
	Header   bool
	Footer   bool
	Step     int
	MinWidth int
}

// Rainbow configures the cycling palette effect.
type Rainbow struct {
	Header  bool
	Footer  bool
	Palette []string
	Step    int
}

// Pulse configures the alternating colour effect.
type Pulse struct {
	Header bool
	Footer bool
	ColorA string
	ColorB string
}

// Options configure the header/footer service.
type Options struct {
	Enabled     bool
	Header      string
	Footer      string
	Period      time.Duration
	RespectGate bool
	PushOnJoin  bool
	Scroll      Scroll
	Rainbow     Rainbow
	Pulse       Pulse
}

func (o Options) normalized() Options {
	o.Scroll.Step = max(o.Scroll.Step, 1)
	o.Scroll.MinWidth = max(o.Scroll.MinWidth, 1)
	o.Rainbow.Step = max(o.Rainbow.Step, 0)
	if len(o.Rainbow.Palette) == 0 {
		o.Rainbow.Palette = []string{"&c", "&6", "&e", "&a", "&b", "&9", "&d"}
	}
	if o.Pulse.ColorA == "" {
		o.Pulse.ColorA = "&f"
	}
	if o.Pulse.ColorB == "" {
		o.Pulse.ColorB = "&7"
	}
	if o.Period <= 0 {
		o.Period = time.Second
	}
	return o
}

type effectState struct {
	scrollHeader int
	scrollFooter int
	rainbow      int
	pulse        bool
}

// Service renders and delivers headers and footers.
type Service struct {
	roster ports.Roster
	sink   ports.HeaderFooterSink
	expand *metric.Expander
	gate   ports.GateFilter
	opts   Options
	fx     effectState
	logger runtime.Logger
}

// New returns a header/footer service.
func New(roster ports.Roster, sink ports.HeaderFooterSink, expand *metric.Expander, gate ports.GateFilter, opts Options, logger runtime.Logger) *Service {
	return &Service{
		roster: roster,
		sink:   sink,
		expand: expand,
		gate:   gate,
		opts:   opts.normalized(),
		logger: logger,
	}
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Enabled reports whether headers and footers are maintained.
func (s *Service) Enabled() bool { return s.opts.Enabled }

// SetGate swaps the gate filter.
func (s *Service) SetGate(gate ports.GateFilter) { s.gate = gate }

// ApplyOptions replaces the options. Effects restart from their first frame;
// disabling clears every header and footer.
func (s *Service) ApplyOptions(ctx context.Context, opts Options) {
	wasEnabled := s.opts.Enabled
	s.opts = opts.normalized()
	s.fx = effectState{}
	if s.expand != nil {
		s.expand.Purge()
	}
	switch {
	case s.opts.Enabled:
		s.PushAll(ctx)
	case wasEnabled:
		s.ClearAll()
	}
}

// Update advances the effects by one frame and pushes to every viewer.
func (s *Service) Update(ctx context.Context) {
	if !s.opts.Enabled {
		return
	}
	s.step()
	s.PushAll(ctx)
}

// PushAll renders and sends the current frame to every viewer.
func (s *Service) PushAll(ctx context.Context) {
	if !s.opts.Enabled || s.roster == nil {
		return
	}
	entities := s.roster.Entities()
	online := strconv.Itoa(len(entities))
	for _, e := range entities {
		s.push(ctx, e, online)
	}
}

// PushTo renders and sends the current frame to one viewer.
func (s *Service) PushTo(ctx context.Context, viewerID string) {
	if !s.opts.Enabled || s.roster == nil {
		return
	}
	e, ok := s.roster.Entity(viewerID)
	if !ok {
		return
	}
	s.push(ctx, e, strconv.Itoa(len(s.roster.Entities())))
}

// Join pushes to a new viewer when push on join is set.
func (s *Service) Join(ctx context.Context, viewerID string) {
	if s.opts.PushOnJoin {
		s.PushTo(ctx, viewerID)
	}
}

// Forget drops the cached expansions of a departed viewer.
func (s *Service) Forget(viewerID string) {
	if s.expand != nil {
		s.expand.Forget(viewerID)
	}
}

// ClearAll sends an empty header and footer to every viewer.
func (s *Service) ClearAll() {
	if s.roster == nil || s.sink == nil {
		return
	}
	for _, e := range s.roster.Entities() {
		s.send(e.ID, "", "")
	}
}

// Render returns the header and footer of the current frame for e.
func (s *Service) Render(ctx context.Context, e domain.Entity, online string) (string, string) {
	if s.opts.RespectGate && !ports.Admits(s.gate, e) {
		return "", ""
	}
	builtins := map[string]string{metric.PlaceholderOnline: online, metric.PlaceholderServer: online}
	header, footer := s.opts.Header, s.opts.Footer
	if s.expand != nil {
		header = s.expand.Expand(ctx, e, header, builtins)
		footer = s.expand.Expand(ctx, e, footer, builtins)
	}
	return s.effects(header, true), s.effects(footer, false)
}

func (s *Service) push(ctx context.Context, e domain.Entity, online string) {
	header, footer := s.Render(ctx, e, online)
	s.send(e.ID, header, footer)
}

func (s *Service) send(viewerID, header, footer string) {
	if s.sink == nil {
		return
	}
	if err := s.sink.SetHeaderFooter(viewerID, header, footer); err != nil && s.logger != nil {
		s.logger.Warn("header/footer for %s: %v", viewerID, err)
	}
}

func (s *Service) step() {
	o := s.opts
	if o.Scroll.Header {
		s.fx.scrollHeader += o.Scroll.Step
	}
	if o.Scroll.Footer {
		s.fx.scrollFooter += o.Scroll.Step
	}
	if o.Rainbow.Header || o.Rainbow.Footer {
		s.fx.rainbow += o.Rainbow.Step
	}
	if o.Pulse.Header || o.Pulse.Footer {
		s.fx.pulse = !s.fx.pulse
	}
}

func (s *Service) effects(text string, header bool) string {
	o := s.opts
	if (header && o.Scroll.Header) || (!header && o.Scroll.Footer) {
		index := s.fx.scrollFooter
		if header {
			index = s.fx.scrollHeader
		}
		text = Marquee(text, index, o.Scroll.MinWidth)
	}
	if (header && o.Rainbow.Header) || (!header && o.Rainbow.Footer) {
		text = RainbowText(text, o.Rainbow.Palette, s.fx.rainbow)
	}
	if (header && o.Pulse.Header) || (!header && o.Pulse.Footer) {
		color := o.Pulse.ColorB
		if s.fx.pulse {
			color = o.Pulse.ColorA
		}
		text = PulseText(text, color)
	}
	return text
}
