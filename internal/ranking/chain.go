// Package ranking builds the criterion chain from configuration and applies it
// to the connected roster to produce rank-ordered snapshots.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"rosterd/internal/domain"
	"rosterd/internal/ports"
)

var (
	// ErrUnknownStage marks a stage descriptor with an unrecognised type.
	ErrUnknownStage = errors.New("unknown stage type")
	// ErrEmptyKey marks a metric stage without a metric key.
	ErrEmptyKey = errors.New("metric stage without key")
)

// Chain is the ordered list of criterion stages. It is immutable once built.
type Chain struct {
	stages []Stage
}

// NewChain returns a chain over the given stages.
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: append([]Stage(nil), stages...)}
}

// Stages returns a copy of the stage list.
func (c *Chain) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// Ranked pairs an entity with the keys every stage extracted from it.
type Ranked struct {
	Entity domain.Entity
	Keys   []Key
}

// Evaluate extracts all stage keys for one entity.
func (c *Chain) Evaluate(ctx context.Context, e domain.Entity, src ports.MetricProvider) Ranked {
	keys := make([]Key, len(c.stages))
	for i, s := range c.stages {
		keys[i] = s.Key(ctx, e, src)
	}
	return Ranked{Entity: e, Keys: keys}
}

// Compare folds the stages in order. When every stage ties it falls back to the
// case-insensitive name, then the raw name, then the id, so two distinct
// entities never compare equal.
func (c *Chain) Compare(a, b Ranked) int {
	for i, s := range c.stages {
		if r := s.Compare(a.Keys[i], b.Keys[i]); r != 0 {
			return r
		}
	}
	if r := strings.Compare(strings.ToLower(a.Entity.Name), strings.ToLower(b.Entity.Name)); r != 0 {
		return r
	}
	if r := strings.Compare(a.Entity.Name, b.Entity.Name); r != 0 {
		return r
	}
	return strings.Compare(a.Entity.ID, b.Entity.ID)
}

// Sort evaluates and orders entities. The input slice is not modified.
func (c *Chain) Sort(ctx context.Context, entities []domain.Entity, src ports.MetricProvider) []Ranked {
	out := make([]Ranked, 0, len(entities))
	for _, e := range entities {
		out = append(out, c.Evaluate(ctx, e, src))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return c.Compare(out[i], out[j]) < 0
	})
	return out
}

// Explain renders the keys of one ranked entity for debug output.
func (c *Chain) Explain(r Ranked) string {
	parts := make([]string, 0, len(c.stages))
	for i, s := range c.stages {
		parts = append(parts, s.Describe(r.Keys[i]))
	}
	return strings.Join(parts, " ")
}

// StageSpec is one configured stage descriptor.
type StageSpec struct {
	Type  string
	Order []string
	Key   string
	Desc  bool
}

// LegacySpec configures the fallback chain used when no stages are given.
type LegacySpec struct {
	Priority        []string
	DefaultPriority int
	TieBreakerDesc  bool
}

// Build turns descriptors into a chain. It never fails: a malformed descriptor
// degrades to an ascending name stage and is reported in the returned errors.
// With no descriptors the legacy priority list plus a name tie-break is used.
func Build(specs []StageSpec, legacy LegacySpec) (*Chain, []error) {
	if len(specs) == 0 {
		return NewChain(
			NewLegacyPriority(legacy.Priority, legacy.DefaultPriority),
			NameLexical{Descending: legacy.TieBreakerDesc},
		), nil
	}

	var errs []error
	stages := make([]Stage, 0, len(specs))
	for i, spec := range specs {
		stage, err := buildStage(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("stage %d (%s): %w", i, spec.Type, err))
		}
		stages = append(stages, stage)
	}
	return NewChain(stages...), errs
}

func buildStage(spec StageSpec) (Stage, error) {
	typ := strings.ToUpper(strings.TrimSpace(spec.Type))
	if typ == "" {
		typ = string(KindNameLexical)
	}
	switch typ {
	case string(KindGroupOrder):
		return NewGroupOrder(spec.Order), nil
	case string(KindPrefixMatch):
		s, err := NewPrefixMatch(spec.Order)
		return s, err
	case string(KindNumericMetric), "PAPI_NUMBER":
		if strings.TrimSpace(spec.Key) == "" {
			return NameLexical{}, ErrEmptyKey
		}
		return NumericMetric{Metric: strings.TrimSpace(spec.Key), Descending: spec.Desc}, nil
	case string(KindStringMetric), "PAPI_STRING":
		if strings.TrimSpace(spec.Key) == "" {
			return NameLexical{}, ErrEmptyKey
		}
		return NewStringMetric(strings.TrimSpace(spec.Key), spec.Order), nil
	case string(KindNameLexical):
		return NameLexical{Descending: spec.Desc}, nil
	default:
		return NameLexical{}, ErrUnknownStage
	}
}
