package domain

// Entity is a connected participant ranked and labelled by the engine.
type Entity struct {
	ID   string // stable identity, also the group member entry
	Name string // bare display name
	Zone string // current zone, consulted by the gate
}

// CollisionRule is the name-collision option of a group.
type CollisionRule string

const (
	// CollisionAlways lets members push each other (host default).
	CollisionAlways CollisionRule = "always"
	// CollisionNever disables pushing; used by ranking groups and the sentinel.
	CollisionNever CollisionRule = "never"
	// CollisionPushOtherTeams only pushes members of other groups.
	CollisionPushOtherTeams CollisionRule = "push_other_teams"
	// CollisionPushOwnTeam only pushes members of the same group.
	CollisionPushOwnTeam CollisionRule = "push_own_team"
)

// Visibility is the name-tag visibility option of a group.
type Visibility string

const (
	VisibilityAlways            Visibility = "always"
	VisibilityNever             Visibility = "never"
	VisibilityHideForOtherTeams Visibility = "hide_for_other_teams"
	VisibilityHideForOwnTeam    Visibility = "hide_for_own_team"
)

// ParseVisibility maps a configured value onto a Visibility, defaulting to always.
func ParseVisibility(raw string) Visibility {
	switch Visibility(normalizeKey(raw)) {
	case VisibilityNever:
		return VisibilityNever
	case VisibilityHideForOtherTeams:
		return VisibilityHideForOtherTeams
	case VisibilityHideForOwnTeam:
		return VisibilityHideForOwnTeam
	default:
		return VisibilityAlways
	}
}

// Decoration is the label state a group paints onto its member.
type Decoration struct {
	Prefix            string
	Suffix            string
	Color             string // colour name; empty leaves the host default
	NameTagVisibility Visibility
}

// NeutralDecoration is what a rank group is reset to before it receives a new occupant.
var NeutralDecoration = Decoration{
	Color:             "white",
	NameTagVisibility: VisibilityAlways,
}

// GroupOptions are the structural options of a group.
type GroupOptions struct {
	Collision             CollisionRule
	FriendlyFire          bool
	SeeFriendlyInvisibles bool
}

// RankingGroupOptions are applied to rank groups and the sentinel on creation.
var RankingGroupOptions = GroupOptions{
	Collision: CollisionNever,
}

// HostDefaultOptions mirror an untouched group on the host.
var HostDefaultOptions = GroupOptions{
	Collision:    CollisionAlways,
	FriendlyFire: true,
}
