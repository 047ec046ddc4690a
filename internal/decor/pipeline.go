// Package decor computes the visible decoration of an entity: the prefix and
// suffix painted by its group, its name colour and its capped list label.
package decor

import (
	"context"
	"strings"

	"rosterd/internal/domain"
	"rosterd/internal/metric"
	"rosterd/internal/ports"
	"rosterd/internal/textfmt"
)

const (
	// DefaultMaxLabel is the default visible length cap of a list label.
	DefaultMaxLabel = 80
	// MinMaxLabel is the lowest accepted label cap.
	MinMaxLabel = 16
	// DefaultMaxPart is the default visible length of a prefix or suffix.
	DefaultMaxPart = 32
)

// OverlayMode selects how an active status overlay changes the label.
type OverlayMode string

const (
	OverlaySuffix  OverlayMode = "suffix"
	OverlayRecolor OverlayMode = "recolor"
	OverlayBoth    OverlayMode = "both"
)

// ParseOverlayMode defaults unknown values to suffix.
func ParseOverlayMode(raw string) OverlayMode {
	switch OverlayMode(strings.ToLower(strings.TrimSpace(raw))) {
	case OverlayRecolor:
		return OverlayRecolor
	case OverlayBoth:
		return OverlayBoth
	default:
		return OverlaySuffix
	}
}

// ColorMode selects how the name colour is derived.
type ColorMode string

const (
	ColorAuto  ColorMode = "auto"
	ColorForce ColorMode = "force"
	ColorNone  ColorMode = "none"
)

// ParseColorMode accepts auto (also auto_from_prefix), force and none.
func ParseColorMode(raw string) ColorMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "force":
		return ColorForce
	case "none":
		return ColorNone
	default:
		return ColorAuto
	}
}

// Overlay configures the status overlay, e.g. an away marker.
type Overlay struct {
	Enabled      bool
	Metric       string
	TrueValues   []string
	Mode         OverlayMode
	Suffix       string
	RecolorColor string
	KeepFormats  bool
}

// Options configure the pipeline.
type Options struct {
	// DecorateNames composes list labels from prefix + name + suffix instead of the bare name.
	DecorateNames bool
	MaxPrefix     int
	MaxSuffix     int
	MaxLabel      int
	Overlay       Overlay
	ColorMode     ColorMode
	ColorForce    string
	Visibility    domain.Visibility
}

func (o Options) normalized() Options {
	if o.MaxPrefix <= 0 {
		o.MaxPrefix = DefaultMaxPart
	}
	if o.MaxSuffix <= 0 {
		o.MaxSuffix = DefaultMaxPart
	}
	if o.MaxLabel <= 0 {
		o.MaxLabel = DefaultMaxLabel
	}
	o.MaxLabel = max(o.MaxLabel, MinMaxLabel)
	if len(o.Overlay.TrueValues) == 0 {
		o.Overlay.TrueValues = []string{"yes", "true", "1"}
	}
	if o.Overlay.Mode == "" {
		o.Overlay.Mode = OverlaySuffix
	}
	if o.Overlay.RecolorColor == "" {
		o.Overlay.RecolorColor = "&7"
	}
	if o.ColorMode == "" {
		o.ColorMode = ColorAuto
	}
	if o.Visibility == "" {
		o.Visibility = domain.VisibilityAlways
	}
	return o
}

// Result is the full decoration of one entity.
type Result struct {
	Prefix string // truncated, overlay applied, ends with a reset
	Suffix string // truncated, overlay applied
	Color  string // name colour, empty for the host default
	Label  string // composed list label, capped, never visibly empty
	Away   bool   // status overlay active
}

// Group returns the decoration to paint on the group holding the entity.
func (r Result) Group(visibility domain.Visibility) domain.Decoration {
	return domain.Decoration{
		Prefix:            r.Prefix,
		Suffix:            r.Suffix,
		Color:             r.Color,
		NameTagVisibility: visibility,
	}
}

// Pipeline computes decorations from the metric provider.
type Pipeline struct {
	metrics ports.MetricProvider
	opts    Options
}

// New returns a pipeline reading prefix, suffix and status metrics from metrics.
func New(metrics ports.MetricProvider, opts Options) *Pipeline {
	return &Pipeline{metrics: metrics, opts: opts.normalized()}
}

// SetOptions replaces the options (config reload).
func (p *Pipeline) SetOptions(opts Options) {
	p.opts = opts.normalized()
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// StatusActive reports whether the status overlay predicate holds for e. A
// failed lookup or an unexpanded placeholder counts as false.
func (p *Pipeline) StatusActive(ctx context.Context, e domain.Entity) bool {
	if !p.opts.Overlay.Enabled {
		return false
	}
	raw, ok := metric.Resolve(ctx, p.metrics, e.ID, p.opts.Overlay.Metric)
	if !ok || metric.IsPlaceholderEcho(raw) {
		return false
	}
	v := metric.Text(raw)
	for _, want := range p.opts.Overlay.TrueValues {
		if strings.EqualFold(v, strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// Decorate runs the full pipeline for e, with the status overlay when withOverlay is set.
func (p *Pipeline) Decorate(ctx context.Context, e domain.Entity, withOverlay bool) Result {
	o := p.opts
	rawPrefix, _ := metric.Resolve(ctx, p.metrics, e.ID, metric.KeyPrefix)
	rawSuffix, _ := metric.Resolve(ctx, p.metrics, e.ID, metric.KeySuffix)
	prefix := textfmt.Cut(rawPrefix, o.MaxPrefix)
	suffix := textfmt.Cut(rawSuffix, o.MaxSuffix)

	away := withOverlay && p.StatusActive(ctx, e)
	recolor := away && (o.Overlay.Mode == OverlayRecolor || o.Overlay.Mode == OverlayBoth)
	fragment := ""
	if away && (o.Overlay.Mode == OverlaySuffix || o.Overlay.Mode == OverlayBoth) {
		fragment = textfmt.Normalize(o.Overlay.Suffix)
	}
	if recolor {
		prefix = textfmt.Recolor(prefix, o.Overlay.RecolorColor, o.Overlay.KeepFormats)
		suffix = textfmt.Recolor(suffix, o.Overlay.RecolorColor, o.Overlay.KeepFormats)
	}
	prefix = textfmt.EnsureReset(prefix)

	base := e.Name
	if o.DecorateNames {
		base = prefix + e.Name + suffix
	}
	if recolor {
		base = textfmt.Recolor(base, o.Overlay.RecolorColor, o.Overlay.KeepFormats)
	}

	return Result{
		Prefix: prefix,
		Suffix: suffix + fragment,
		Color:  p.nameColor(prefix),
		Label:  capLabel(base, fragment, o.MaxLabel, e.Name),
		Away:   away,
	}
}

// Label is the capped list label of e with the status overlay applied.
func (p *Pipeline) Label(ctx context.Context, e domain.Entity) string {
	return p.Decorate(ctx, e, true).Label
}

// BaseLabel is the capped list label of e without the status overlay.
func (p *Pipeline) BaseLabel(ctx context.Context, e domain.Entity) string {
	return p.Decorate(ctx, e, false).Label
}

// capLabel truncates base so that base+fragment fits max visible runes, keeping
// the fragment intact whenever it fits on its own.
func capLabel(base, fragment string, max int, bareName string) string {
	var label string
	if fl := textfmt.VisibleLen(fragment); fl < max {
		label = textfmt.Cut(base, max-fl) + fragment
	} else {
		label = textfmt.Cut(base+fragment, max)
	}
	if textfmt.IsVisiblyEmpty(label) {
		return textfmt.Cut(bareName, max)
	}
	return label
}

func (p *Pipeline) nameColor(prefix string) string {
	switch p.opts.ColorMode {
	case ColorNone:
		return ""
	case ColorForce:
		if c, ok := textfmt.ParseColor(p.opts.ColorForce); ok {
			return c.Name()
		}
		return textfmt.White.Name()
	default:
		if c, ok := textfmt.LastColor(prefix); ok {
			return c.Name()
		}
		return ""
	}
}
