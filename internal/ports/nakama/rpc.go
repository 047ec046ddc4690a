package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"rosterd/internal/app"
	"rosterd/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// FindRosterResponse is the payload returned to clients looking for the roster match.
type FindRosterResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
}

// AdminRequest is the payload of the administrative RPCs.
type AdminRequest struct {
	MatchID string `json:"match_id"`
	Token   string `json:"token"`
}

type matchSignaler interface {
	MatchSignal(ctx context.Context, id string, data string) (string, error)
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcRosterFind, rpcRosterFind); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcRosterRefresh, adminRpc(app.AdminActionRefresh, SignalRefresh)); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcRosterReload, adminRpc(app.AdminActionReload, SignalReload))
}

func rpcRosterFind(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	query := "+label.kind:roster"

	limit := 1
	authoritative := true
	minSize := 0

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, nil, query)
	if err != nil {
		logger.Error("MatchList error: %v", err)
		return "", err
	}

	if len(matches) > 0 {
		resp := FindRosterResponse{MatchID: matches[0].MatchId, IsNew: false}
		b, _ := json.Marshal(resp)
		return string(b), nil
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameRoster, map[string]interface{}{})
	if err != nil {
		logger.Error("MatchCreate error: %v", err)
		return "", err
	}

	resp := FindRosterResponse{MatchID: matchID, IsNew: true}
	b, _ := json.Marshal(resp)
	return string(b), nil
}

func adminRpc(action, signal string) func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
		return signalMatch(ctx, logger, nk, tokenService(env, config.GetRosterConfig()), action, signal, payload)
	}
}

func tokenService(env map[string]string, cfg *config.Config) *app.AdminTokenService {
	secret := cfg.Admin.TokenSecret
	if override := env[EnvAdminSecret]; override != "" {
		secret = override
	}
	return app.NewAdminTokenService(secret, cfg.Admin.TokenIssuer, cfg.AdminTokenTTL())
}

func signalMatch(ctx context.Context, logger runtime.Logger, nk matchSignaler, tokens *app.AdminTokenService, action, signal, payload string) (string, error) {
	var req AdminRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("Invalid payload", 3) // INVALID_ARGUMENT
	}
	if req.MatchID == "" {
		return "", runtime.NewError("match_id required", 3)
	}
	if !tokens.Configured() {
		return "", runtime.NewError("Admin RPCs are disabled", 7) // PERMISSION_DENIED
	}

	subject, err := tokens.Verify(req.Token, action)
	if err != nil {
		logger.Warn("Rejected %s request for match %s: %v", action, req.MatchID, err)
		return "", runtime.NewError("Invalid admin token", 16) // UNAUTHENTICATED
	}

	data, _ := json.Marshal(signalRequest{Action: signal})
	ack, err := nk.MatchSignal(ctx, req.MatchID, string(data))
	if err != nil {
		logger.Error("MatchSignal error for %s: %v", req.MatchID, err)
		return "", runtime.NewError("Internal error", 13) // INTERNAL
	}

	logger.Info("Admin %s sent %s to match %s", subject, signal, req.MatchID)
	return ack, nil
}
