package nakama

const (
	// RpcRosterFind is the RPC id clients call to find or create the roster match.
	RpcRosterFind = "roster_find"
	// RpcRosterRefresh forces a reorder pass in a running match.
	RpcRosterRefresh = "roster_refresh"
	// RpcRosterReload re-reads the configuration of a running match.
	RpcRosterReload = "roster_reload"

	// MatchNameRoster is the authoritative match handler name registered with Nakama.
	MatchNameRoster = "roster_match"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpSetZone int64 = 1

	// Server -> Client events
	OpBoardSync    int64 = 101 // sent privately to the viewer of the board
	OpLabels       int64 = 102
	OpHeaderFooter int64 = 103 // sent privately, empty strings clear
	OpSidebar      int64 = 104 // sent privately, visible=false clears
)

// Runtime environment keys.
const (
	EnvConfigPath  = "roster_config_path"
	EnvAdminSecret = "roster_admin_secret"

	defaultConfigPath = "data/roster.yaml"
)

// Signal actions accepted by MatchSignal.
const (
	SignalRefresh = "refresh"
	SignalReload  = "reload"
	SignalRemove  = "remove"
)
