// Package metric holds the failure-tolerant side of metric resolution: every
// lookup degrades to "unresolved" instead of failing the caller.
package metric

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rosterd/internal/ports"
	"rosterd/internal/textfmt"
)

// Well-known keys resolved through the MetricProvider.
const (
	KeyGroup  = "group"
	KeyPrefix = "prefix"
	KeySuffix = "suffix"
)

var nonNumeric = regexp.MustCompile(`[^0-9.+-]`)

// Resolve asks src for key and reports ok=false for a nil provider, an empty key,
// an error or a panic inside the provider.
func Resolve(ctx context.Context, src ports.MetricProvider, entityID, key string) (value string, ok bool) {
	if src == nil || key == "" {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			value, ok = "", false
		}
	}()
	v, err := src.Resolve(ctx, entityID, key)
	if err != nil {
		return "", false
	}
	return v, true
}

// ResolveErr is Resolve that also reports why a lookup failed, for diagnostics.
func ResolveErr(ctx context.Context, src ports.MetricProvider, entityID, key string) (value string, err error) {
	if src == nil || key == "" {
		return "", ports.ErrUnresolved
	}
	defer func() {
		if r := recover(); r != nil {
			value, err = "", fmt.Errorf("metric provider panicked on %q: %v", key, r)
		}
	}()
	return src.Resolve(ctx, entityID, key)
}

// Number parses a metric leniently: ',' becomes '.', every other character outside
// [0-9.+-] is dropped. Anything still unparseable is 0.
func Number(raw string) float64 {
	s := nonNumeric.ReplaceAllString(strings.ReplaceAll(raw, ",", "."), "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Text is the comparison form of a string metric: codes stripped, trimmed, lower case.
func Text(raw string) string {
	return textfmt.Normalized(raw)
}

// IsPlaceholderEcho reports a provider that returned its unexpanded placeholder.
func IsPlaceholderEcho(raw string) bool {
	return strings.Contains(raw, "%")
}
