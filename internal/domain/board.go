package domain

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Group is one named group on a Board. Its state only changes through Board
// methods so that every real change is counted in the board revision.
type Group struct {
	name       string
	decoration Decoration
	options    GroupOptions
	members    []string
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Decoration returns the current decoration.
func (g *Group) Decoration() Decoration { return g.decoration }

// Options returns the structural options.
func (g *Group) Options() GroupOptions { return g.options }

// Size returns the number of member entries.
func (g *Group) Size() int { return len(g.members) }

// Members returns a copy of the member entries in insertion order.
func (g *Group) Members() []string {
	return append([]string(nil), g.members...)
}

// HasMember reports whether entry belongs to the group.
func (g *Group) HasMember(entry string) bool {
	for _, m := range g.members {
		if m == entry {
			return true
		}
	}
	return false
}

// Board is a viewer's (or the shared) container of groups. It is mutated by the
// engine, the identity-label subsystem and any other actor holding it, so every
// method is an idempotent "ensure" operation: repeating a call is a no-op.
type Board struct {
	id       string
	groups   map[string]*Group
	revision uint64
}

// NewBoard creates an empty board.
func NewBoard(id string) *Board {
	return &Board{id: id, groups: make(map[string]*Group)}
}

// ID returns the owner of the board (viewer id or "shared").
func (b *Board) ID() string { return b.id }

// Revision increases by one for every effective mutation.
func (b *Board) Revision() uint64 { return b.revision }

// Group looks up a group by name.
func (b *Board) Group(name string) (*Group, bool) {
	g, ok := b.groups[name]
	return g, ok
}

// GroupNames returns all group names, sorted.
func (b *Board) GroupNames() []string {
	names := make([]string, 0, len(b.groups))
	for name := range b.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnsureGroup returns the named group, registering it with opts if it is missing.
// Options of an existing group are left untouched.
func (b *Board) EnsureGroup(name string, opts GroupOptions) (*Group, bool) {
	if g, ok := b.groups[name]; ok {
		return g, false
	}
	g := &Group{name: name, options: opts, decoration: NeutralDecoration}
	b.groups[name] = g
	b.revision++
	return g, true
}

// SetOptions overwrites the structural options of an existing group.
func (b *Board) SetOptions(name string, opts GroupOptions) bool {
	g, ok := b.groups[name]
	if !ok || g.options == opts {
		return false
	}
	g.options = opts
	b.revision++
	return true
}

// RemoveGroup unregisters a group together with its members.
func (b *Board) RemoveGroup(name string) bool {
	if _, ok := b.groups[name]; !ok {
		return false
	}
	delete(b.groups, name)
	b.revision++
	return true
}

// AddMember adds entry to the group if it is not already a member.
func (b *Board) AddMember(name, entry string) bool {
	g, ok := b.groups[name]
	if !ok || g.HasMember(entry) {
		return false
	}
	g.members = append(g.members, entry)
	b.revision++
	return true
}

// RemoveMember removes entry from the group if present.
func (b *Board) RemoveMember(name, entry string) bool {
	g, ok := b.groups[name]
	if !ok {
		return false
	}
	for i, m := range g.members {
		if m == entry {
			g.members = append(g.members[:i], g.members[i+1:]...)
			b.revision++
			return true
		}
	}
	return false
}

// ClearMembers removes every member of the group and returns how many were removed.
func (b *Board) ClearMembers(name string) int {
	g, ok := b.groups[name]
	if !ok || len(g.members) == 0 {
		return 0
	}
	n := len(g.members)
	g.members = nil
	b.revision++
	return n
}

// Decorate sets the decoration of an existing group.
func (b *Board) Decorate(name string, d Decoration) bool {
	g, ok := b.groups[name]
	if !ok || g.decoration == d {
		return false
	}
	g.decoration = d
	b.revision++
	return true
}

// GroupOf returns the first group (by name order) accepted by match that holds entry.
func (b *Board) GroupOf(entry string, match func(name string) bool) (*Group, bool) {
	for _, name := range b.GroupNames() {
		if match != nil && !match(name) {
			continue
		}
		if g := b.groups[name]; g.HasMember(entry) {
			return g, true
		}
	}
	return nil, false
}

// Fingerprint hashes the visible content of the board. Two boards with the same
// groups, decorations, options and members share a fingerprint.
func (b *Board) Fingerprint() uint64 {
	d := xxhash.New()
	for _, name := range b.GroupNames() {
		g := b.groups[name]
		_, _ = d.WriteString(name)
		_, _ = d.WriteString("\x00" + g.decoration.Prefix)
		_, _ = d.WriteString("\x00" + g.decoration.Suffix)
		_, _ = d.WriteString("\x00" + g.decoration.Color)
		_, _ = d.WriteString("\x00" + string(g.decoration.NameTagVisibility))
		_, _ = d.WriteString("\x00" + string(g.options.Collision))
		_, _ = d.WriteString("\x00" + strconv.FormatBool(g.options.FriendlyFire))
		_, _ = d.WriteString("\x00" + strconv.FormatBool(g.options.SeeFriendlyInvisibles))
		for _, m := range g.members {
			_, _ = d.WriteString("\x01" + m)
		}
		_, _ = d.WriteString("\x02")
	}
	return d.Sum64()
}

// GroupView is a read-only copy of a group used for delivery and rendering.
type GroupView struct {
	Name       string
	Decoration Decoration
	Options    GroupOptions
	Members    []string
}

// View copies the board into name-ordered group views.
func (b *Board) View() []GroupView {
	out := make([]GroupView, 0, len(b.groups))
	for _, name := range b.GroupNames() {
		g := b.groups[name]
		out = append(out, GroupView{
			Name:       name,
			Decoration: g.decoration,
			Options:    g.options,
			Members:    g.Members(),
		})
	}
	return out
}
