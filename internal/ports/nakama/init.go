package nakama

import (
	"context"
	"database/sql"

	"rosterd/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires RPCs, hooks and the roster match handler for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	path := configPath(ctx)
	if err := config.LoadRosterConfig(path); err != nil {
		logger.Warn("Roster config %s not loaded, using defaults: %v", path, err)
	}

	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameRoster, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(), nil
	}); err != nil {
		return err
	}

	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}

	logger.Info("Roster Go module loaded.")
	return nil
}
