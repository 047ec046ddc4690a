package ranking

import (
	"context"
	"fmt"
	"strings"

	"rosterd/internal/domain"
	"rosterd/internal/metric"
	"rosterd/internal/ports"

	"github.com/gobwas/glob"
)

// Unmatched is the rank of an entity whose value appears in no ordered list.
const Unmatched = 999

// legacyCap bounds the default priority of the legacy chain.
const legacyCap = 99

// Kind tags a criterion stage.
type Kind string

const (
	KindGroupOrder     Kind = "GROUP_ORDER"
	KindPrefixMatch    Kind = "PREFIX_MATCH"
	KindNumericMetric  Kind = "NUMERIC_METRIC"
	KindStringMetric   Kind = "STRING_METRIC"
	KindNameLexical    Kind = "NAME"
	KindLegacyPriority Kind = "LEGACY_PRIORITY"
)

// Key is the value a stage extracts from one entity. Stages use only the field
// they need.
type Key struct {
	Rank   int
	Number float64
	Text   string
}

// Stage is one criterion of the chain. Key is evaluated once per entity per pass;
// Compare orders two keys of the same stage.
type Stage interface {
	Kind() Kind
	Key(ctx context.Context, e domain.Entity, src ports.MetricProvider) Key
	Compare(a, b Key) int
	Describe(k Key) string
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return Unmatched
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

// GroupOrder ranks entities by the position of their group in Order.
type GroupOrder struct {
	Order []string
}

// NewGroupOrder lower cases and trims the ordered group list.
func NewGroupOrder(order []string) GroupOrder {
	return GroupOrder{Order: normalizeList(order)}
}

func (GroupOrder) Kind() Kind { return KindGroupOrder }

func (s GroupOrder) Key(ctx context.Context, e domain.Entity, src ports.MetricProvider) Key {
	raw, _ := metric.Resolve(ctx, src, e.ID, metric.KeyGroup)
	g := metric.Text(raw)
	return Key{Rank: indexOf(s.Order, g), Text: g}
}

func (GroupOrder) Compare(a, b Key) int { return compareInts(a.Rank, b.Rank) }

func (GroupOrder) Describe(k Key) string {
	return fmt.Sprintf("GROUP=%s(%s)", k.Text, rankString(k.Rank))
}

// PrefixMatch ranks entities by the first glob pattern their prefix matches.
type PrefixMatch struct {
	Patterns []string
	globs    []glob.Glob
}

// compilePattern turns a '*' wildcard pattern into an anchored, case-insensitive
// glob. Every other glob meta character is matched literally.
func compilePattern(pattern string) (glob.Glob, error) {
	pieces := strings.Split(metric.Text(pattern), "*")
	for i, p := range pieces {
		pieces[i] = glob.QuoteMeta(p)
	}
	return glob.Compile(strings.Join(pieces, "*"))
}

// NewPrefixMatch compiles the patterns. Patterns that fail to compile never
// match and are reported in the returned error.
func NewPrefixMatch(patterns []string) (PrefixMatch, error) {
	s := PrefixMatch{Patterns: normalizeList(patterns), globs: make([]glob.Glob, len(patterns))}
	var errs []string
	for i, p := range patterns {
		// Anchored: "vip" matches only the prefix "vip", "*vip*" matches it anywhere.
		g, err := compilePattern(p)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%q: %v", p, err))
			continue
		}
		s.globs[i] = g
	}
	if len(errs) > 0 {
		return s, fmt.Errorf("prefix patterns: %s", strings.Join(errs, "; "))
	}
	return s, nil
}

func (PrefixMatch) Kind() Kind { return KindPrefixMatch }

func (s PrefixMatch) Key(ctx context.Context, e domain.Entity, src ports.MetricProvider) Key {
	raw, _ := metric.Resolve(ctx, src, e.ID, metric.KeyPrefix)
	px := metric.Text(raw)
	return Key{Rank: s.match(px), Text: px}
}

func (s PrefixMatch) match(px string) int {
	if px == "" {
		return Unmatched
	}
	for i, g := range s.globs {
		if g != nil && g.Match(px) {
			return i
		}
	}
	return Unmatched
}

func (PrefixMatch) Compare(a, b Key) int { return compareInts(a.Rank, b.Rank) }

func (PrefixMatch) Describe(k Key) string {
	return fmt.Sprintf("PREFIX='%s'(%s)", k.Text, rankString(k.Rank))
}

// NumericMetric orders entities by a numeric metric, ascending unless Descending.
type NumericMetric struct {
	Metric     string
	Descending bool
}

func (NumericMetric) Kind() Kind { return KindNumericMetric }

func (s NumericMetric) Key(ctx context.Context, e domain.Entity, src ports.MetricProvider) Key {
	raw, _ := metric.Resolve(ctx, src, e.ID, s.Metric)
	return Key{Number: metric.Number(raw)}
}

func (s NumericMetric) Compare(a, b Key) int {
	c := compareFloats(a.Number, b.Number)
	if s.Descending {
		return -c
	}
	return c
}

func (s NumericMetric) Describe(k Key) string {
	dir := ""
	if s.Descending {
		dir = " desc"
	}
	return fmt.Sprintf("NUM %s=%g%s", s.Metric, k.Number, dir)
}

// StringMetric ranks entities by the position of a normalised string metric in Order.
type StringMetric struct {
	Metric string
	Order  []string
}

// NewStringMetric lower cases and trims the ordered value list.
func NewStringMetric(key string, order []string) StringMetric {
	return StringMetric{Metric: key, Order: normalizeList(order)}
}

func (StringMetric) Kind() Kind { return KindStringMetric }

func (s StringMetric) Key(ctx context.Context, e domain.Entity, src ports.MetricProvider) Key {
	raw, _ := metric.Resolve(ctx, src, e.ID, s.Metric)
	v := metric.Text(raw)
	return Key{Rank: indexOf(s.Order, v), Text: v}
}

func (StringMetric) Compare(a, b Key) int { return compareInts(a.Rank, b.Rank) }

func (s StringMetric) Describe(k Key) string {
	return fmt.Sprintf("STR %s='%s'(%s)", s.Metric, k.Text, rankString(k.Rank))
}

// NameLexical orders by case-insensitive display name.
type NameLexical struct {
	Descending bool
}

func (NameLexical) Kind() Kind { return KindNameLexical }

func (NameLexical) Key(_ context.Context, e domain.Entity, _ ports.MetricProvider) Key {
	return Key{Text: strings.ToLower(e.Name)}
}

func (s NameLexical) Compare(a, b Key) int {
	c := strings.Compare(a.Text, b.Text)
	if s.Descending {
		return -c
	}
	return c
}

func (s NameLexical) Describe(k Key) string {
	if s.Descending {
		return "NAME=" + k.Text + " desc"
	}
	return "NAME=" + k.Text
}

// LegacyPriority is the single priority list used when no stages are configured.
// A rule "prefix:<pattern>" matches the entity prefix, any other rule matches the
// group. Unmatched entities get min(Default, 99), or 99 when Default is negative.
type LegacyPriority struct {
	Rules   []string
	Default int
	globs   []glob.Glob
}

// NewLegacyPriority compiles the prefix rules of a legacy priority list.
func NewLegacyPriority(rules []string, def int) LegacyPriority {
	s := LegacyPriority{Rules: normalizeList(rules), Default: def, globs: make([]glob.Glob, len(rules))}
	for i, rule := range s.Rules {
		if idx := strings.Index(rule, ":"); idx >= 0 {
			pattern := strings.TrimSpace(rule[idx+1:])
			if pattern == "" {
				continue
			}
			if g, err := compilePattern(pattern); err == nil {
				s.globs[i] = g
			}
		}
	}
	return s
}

func (LegacyPriority) Kind() Kind { return KindLegacyPriority }

func (s LegacyPriority) Key(ctx context.Context, e domain.Entity, src ports.MetricProvider) Key {
	rawGroup, _ := metric.Resolve(ctx, src, e.ID, metric.KeyGroup)
	rawPrefix, _ := metric.Resolve(ctx, src, e.ID, metric.KeyPrefix)
	group, prefix := metric.Text(rawGroup), metric.Text(rawPrefix)

	for i, rule := range s.Rules {
		if rule == "" {
			continue
		}
		if strings.Contains(rule, ":") {
			if g := s.globs[i]; g != nil && g.Match(prefix) {
				return Key{Rank: i, Text: group}
			}
			continue
		}
		if rule == group {
			return Key{Rank: i, Text: group}
		}
	}
	if s.Default >= 0 {
		return Key{Rank: min(s.Default, legacyCap), Text: group}
	}
	return Key{Rank: legacyCap, Text: group}
}

func (LegacyPriority) Compare(a, b Key) int { return compareInts(a.Rank, b.Rank) }

func (LegacyPriority) Describe(k Key) string {
	return fmt.Sprintf("LEGACY group=%s prio=%d", k.Text, k.Rank)
}

func rankString(rank int) string {
	if rank == Unmatched {
		return "n/a"
	}
	return fmt.Sprintf("idx=%d", rank)
}
