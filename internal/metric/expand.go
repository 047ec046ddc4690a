package metric

import (
	"context"
	"strings"
	"time"

	"rosterd/internal/domain"
	"rosterd/internal/ports"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Builtin placeholder names filled without asking the provider.
const (
	PlaceholderName   = "name"
	PlaceholderPlayer = "player_name"
	PlaceholderZone   = "zone"
	PlaceholderOnline = "online"
	PlaceholderServer = "server_online"
)

const expandCacheSize = 1024

// Expander fills %key% placeholders in display text from a MetricProvider.
// Unknown keys stay in the text untouched. Results are cached per entity and
// raw text for ttl.
type Expander struct {
	src   ports.MetricProvider
	cache *expirable.LRU[string, string]
}

// NewExpander returns an expander over src. A non-positive ttl disables caching.
func NewExpander(src ports.MetricProvider, ttl time.Duration) *Expander {
	x := &Expander{src: src}
	if ttl > 0 {
		x.cache = expirable.NewLRU[string, string](expandCacheSize, nil, ttl)
	}
	return x
}

// Expand replaces the placeholders of text for e. builtins take precedence
// over the provider.
func (x *Expander) Expand(ctx context.Context, e domain.Entity, text string, builtins map[string]string) string {
	if !strings.Contains(text, "%") {
		return text
	}
	k := cacheKey(e.ID, text)
	if x.cache != nil {
		if v, ok := x.cache.Get(k); ok {
			return v
		}
	}
	out := x.expand(ctx, e, text, builtins)
	if x.cache != nil {
		x.cache.Add(k, out)
	}
	return out
}

func (x *Expander) expand(ctx context.Context, e domain.Entity, text string, builtins map[string]string) string {
	var b strings.Builder
	rest := text
	for {
		open := strings.IndexByte(rest, '%')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.IndexByte(rest[open+1:], '%')
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		key := rest[open+1 : open+1+end]
		b.WriteString(rest[:open])
		if v, ok := x.lookup(ctx, e, key, builtins); ok {
			b.WriteString(v)
			rest = rest[open+end+2:]
			continue
		}
		// Keep the opening '%' and retry from the closing one, which may open
		// the next placeholder.
		b.WriteByte('%')
		rest = rest[open+1:]
	}
}

func (x *Expander) lookup(ctx context.Context, e domain.Entity, key string, builtins map[string]string) (string, bool) {
	if key == "" || strings.ContainsAny(key, " \t\n") {
		return "", false
	}
	if v, ok := builtins[key]; ok {
		return v, true
	}
	switch key {
	case PlaceholderName, PlaceholderPlayer:
		return e.Name, true
	case PlaceholderZone:
		return e.Zone, true
	}
	v, ok := Resolve(ctx, x.src, e.ID, key)
	if !ok || IsPlaceholderEcho(v) {
		return "", false
	}
	return v, true
}

// Purge empties the cache (config reload).
func (x *Expander) Purge() {
	if x.cache != nil {
		x.cache.Purge()
	}
}

// Forget drops the cached texts of one entity.
func (x *Expander) Forget(entityID string) {
	if x.cache == nil {
		return
	}
	prefix := entityID + "\x00"
	for _, k := range x.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			x.cache.Remove(k)
		}
	}
}
