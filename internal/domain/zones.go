package domain

// ZoneGate admits entities by their zone. In blacklist mode (the default) the
// listed zones are closed; in whitelist mode only the listed zones are open.
// The zero value admits everyone.
type ZoneGate struct {
	whitelist bool
	zones     map[string]struct{}
}

// NewZoneGate builds a gate from configured zone names (compared case-insensitively).
func NewZoneGate(asWhitelist bool, zones []string) ZoneGate {
	g := ZoneGate{whitelist: asWhitelist, zones: make(map[string]struct{}, len(zones))}
	for _, z := range zones {
		if key := normalizeKey(z); key != "" {
			g.zones[key] = struct{}{}
		}
	}
	return g
}

// AllowsZone reports whether ranking and decoration are permitted in zone.
// An entity without a zone is never blocked.
func (g ZoneGate) AllowsZone(zone string) bool {
	key := normalizeKey(zone)
	if key == "" {
		return true
	}
	_, listed := g.zones[key]
	if g.whitelist {
		return listed
	}
	return !listed
}

// IsAllowed implements ports.GateFilter.
func (g ZoneGate) IsAllowed(e Entity) bool {
	return g.AllowsZone(e.Zone)
}
