package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"rosterd/internal/app"
	"rosterd/internal/app/roster"
	"rosterd/internal/config"
	"rosterd/internal/domain"
	"rosterd/internal/ports"
	"rosterd/internal/ports/inmem"
	"rosterd/internal/ports/redismetrics"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const maxTickRate = 60

// MatchState holds the authoritative runtime state for the roster match handler.
type MatchState struct {
	*roster.Stack `json:"-"`

	Tick       int64                       `json:"tick"`        // Current tick of the match
	ConfigPath string                      `json:"config_path"` // File re-read on reload signals
	Presences  map[string]runtime.Presence `json:"-"`           // Map UserId -> Presence for targeted messaging
	Zones      map[string]string           `json:"-"`           // Zone from join metadata, consumed on join

	sentBoards   map[string]uint64             // viewer -> fingerprint last delivered
	sentLabels   map[string]string             // entity -> label last delivered
	sentHeaders  map[string]inmem.HeaderFooter // viewer -> header/footer last delivered
	sentSidebars map[string]domain.Sidebar     // viewer -> sidebar last delivered
}

func newMatchState(ctx context.Context, cfg *config.Config, source ports.MetricProvider, logger runtime.Logger) *MatchState {
	return &MatchState{
		Stack:        roster.New(ctx, cfg, source, logger),
		Presences:    make(map[string]runtime.Presence),
		Zones:        make(map[string]string),
		sentBoards:   make(map[string]uint64),
		sentLabels:   make(map[string]string),
		sentHeaders:  make(map[string]inmem.HeaderFooter),
		sentSidebars: make(map[string]domain.Sidebar),
	}
}

// removeEntity drops every trace of userID from the match.
func (s *MatchState) removeEntity(ctx context.Context, userID string) {
	s.Remove(ctx, userID)
	delete(s.Presences, userID)
	delete(s.sentBoards, userID)
	delete(s.sentLabels, userID)
	delete(s.sentHeaders, userID)
	delete(s.sentSidebars, userID)
}

func tickRate(cfg *config.Config) int {
	return min(max(cfg.TickRate, 1), maxTickRate)
}

func metricSource(cfg *config.Config, nk runtime.NakamaModule, logger runtime.Logger) ports.MetricProvider {
	if cfg.Metrics.Source == "redis" {
		if len(cfg.Metrics.RedisAddrs) > 0 {
			client := redismetrics.NewClient(cfg.Metrics.RedisAddrs, cfg.Metrics.RedisPassword)
			return redismetrics.New(client, cfg.Metrics.RedisKeyPrefix)
		}
		logger.Warn("metrics.source is redis but metrics.redis_addrs is empty, using nakama")
	}
	return NewNakamaMetricProvider(nk, cfg.Metrics.StorageCollection)
}

func configPath(ctx context.Context) string {
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if path := env[EnvConfigPath]; path != "" {
			return path
		}
	}
	return defaultConfigPath
}

type matchHandler struct{}

func newMatchHandler() *matchHandler {
	return &matchHandler{}
}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: Initializing roster match.")

	path := configPath(ctx)
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("MatchInit: Could not load roster config %s, using defaults: %v", path, err)
		cfg = config.Default()
	}

	state := newMatchState(ctx, cfg, metricSource(cfg, nk, logger), logger)
	state.ConfigPath = path

	label, err := matchLabel(0, cfg.Ranking.Enabled)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	return state, tickRate(cfg), label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	if zone, ok := metadata["zone"]; ok {
		matchState.Zones[presence.GetUserId()] = zone
	}
	return matchState, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	joined := make([]domain.Entity, 0, len(presences))
	for _, p := range presences {
		userID := p.GetUserId()
		matchState.Presences[userID] = p
		joined = append(joined, domain.Entity{
			ID:   userID,
			Name: p.GetUsername(),
			Zone: matchState.Zones[userID],
		})
		delete(matchState.Zones, userID)
	}
	matchState.Admit(ctx, joined...)
	logger.Debug("MatchJoin: %d joined, population %d.", len(joined), len(matchState.Presences))

	mh.updateLabel(matchState, dispatcher, logger)
	mh.flush(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		matchState.removeEntity(ctx, p.GetUserId())
		logger.Debug("MatchLeave: User %s left.", p.GetUserId())
	}

	if len(matchState.Presences) == 0 {
		logger.Info("MatchLeave: Terminating empty roster match.")
		matchState.Stop(ctx)
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.flush(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpSetZone:
			mh.handleSetZone(ctx, matchState, logger, msg)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	for _, ev := range matchState.Stack.Tick(ctx, tick) {
		if ev.Kind == app.EventWatchdogRepaired {
			logger.Debug("MatchLoop: watchdog repaired %v", ev.Payload.(app.WatchdogRepairedPayload).Boards)
		}
	}

	mh.flush(matchState, dispatcher, logger)
	return matchState
}

type setZoneRequest struct {
	Zone string `json:"zone"`
}

func (mh *matchHandler) handleSetZone(ctx context.Context, state *MatchState, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	var request setZoneRequest
	if err := json.Unmarshal(msg.GetData(), &request); err != nil {
		logger.Warn("handleSetZone: Invalid request from %s: %v", senderID, err)
		return
	}
	if !state.SetZone(ctx, senderID, request.Zone) {
		logger.Warn("handleSetZone: Unknown entity %s", senderID)
	}
}

// flush delivers every board whose fingerprint changed to its viewer and
// broadcasts the labels that changed since the last flush.
func (mh *matchHandler) flush(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	viewers := make([]string, 0, len(state.Presences))
	for userID := range state.Presences {
		viewers = append(viewers, userID)
	}
	sort.Strings(viewers)

	for _, userID := range viewers {
		mh.flushDisplays(state, userID, dispatcher, logger)

		board, ok := state.ViewBoard(userID)
		if !ok {
			continue
		}
		fp := board.Fingerprint()
		if sent, ok := state.sentBoards[userID]; ok && sent == fp {
			continue
		}

		payload, err := boardToStruct(board)
		if err != nil {
			logger.Error("flush: Failed to convert board %s: %v", board.ID(), err)
			continue
		}
		bytes, err := proto.Marshal(payload)
		if err != nil {
			logger.Error("flush: Failed to marshal board %s: %v", board.ID(), err)
			continue
		}
		if err := dispatcher.BroadcastMessage(OpBoardSync, bytes, []runtime.Presence{state.Presences[userID]}, nil, true); err != nil {
			logger.Warn("flush: Failed to send board to %s: %v", userID, err)
			continue
		}
		state.sentBoards[userID] = fp
	}

	changes := make(map[string]*string)
	for _, e := range state.Host.Entities() {
		label, ok := state.Host.Label(e.ID)
		prev, sent := state.sentLabels[e.ID]
		switch {
		case ok && (!sent || prev != label):
			l := label
			changes[e.ID] = &l
		case !ok && sent:
			changes[e.ID] = nil
		}
	}
	if len(changes) == 0 {
		return
	}

	payload, err := labelsToStruct(changes)
	if err != nil {
		logger.Error("flush: Failed to convert labels: %v", err)
		return
	}
	bytes, err := proto.Marshal(payload)
	if err != nil {
		logger.Error("flush: Failed to marshal labels: %v", err)
		return
	}
	if err := dispatcher.BroadcastMessage(OpLabels, bytes, nil, nil, true); err != nil {
		logger.Warn("flush: Failed to broadcast labels: %v", err)
		return
	}
	for id, label := range changes {
		if label == nil {
			delete(state.sentLabels, id)
		} else {
			state.sentLabels[id] = *label
		}
	}
}

// flushDisplays sends the header/footer and sidebar of userID when they changed.
func (mh *matchHandler) flushDisplays(state *MatchState, userID string, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	hf, ok := state.Host.HeaderFooter(userID)
	prev, sent := state.sentHeaders[userID]
	if (ok && (!sent || prev != hf)) || (!ok && sent) {
		payload, err := headerFooterToStruct(hf.Header, hf.Footer)
		if err == nil && mh.sendPrivate(state, userID, OpHeaderFooter, payload, dispatcher, logger) {
			if ok {
				state.sentHeaders[userID] = hf
			} else {
				delete(state.sentHeaders, userID)
			}
		} else if err != nil {
			logger.Error("flush: Failed to convert header/footer: %v", err)
		}
	}

	panel, ok := state.Host.Sidebar(userID)
	prevPanel, sent := state.sentSidebars[userID]
	if (ok && (!sent || !prevPanel.Equal(panel))) || (!ok && sent) {
		payload, err := sidebarToStruct(panel, ok)
		if err == nil && mh.sendPrivate(state, userID, OpSidebar, payload, dispatcher, logger) {
			if ok {
				state.sentSidebars[userID] = panel
			} else {
				delete(state.sentSidebars, userID)
			}
		} else if err != nil {
			logger.Error("flush: Failed to convert sidebar: %v", err)
		}
	}
}

func (mh *matchHandler) sendPrivate(state *MatchState, userID string, opCode int64, payload *structpb.Struct, dispatcher runtime.MatchDispatcher, logger runtime.Logger) bool {
	bytes, err := proto.Marshal(payload)
	if err != nil {
		logger.Error("flush: Failed to marshal op %d: %v", opCode, err)
		return false
	}
	if err := dispatcher.BroadcastMessage(opCode, bytes, []runtime.Presence{state.Presences[userID]}, nil, true); err != nil {
		logger.Warn("flush: Failed to send op %d to %s: %v", opCode, userID, err)
		return false
	}
	return true
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := matchLabel(len(state.Presences), state.Engine.Options().Enabled)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminated, grace %d seconds", graceSeconds)
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}
	matchState.Stop(ctx)
	mh.flush(matchState, dispatcher, logger)
	return matchState
}

type signalRequest struct {
	Action   string `json:"action"`
	EntityID string `json:"entity_id,omitempty"`
}

type signalResponse struct {
	OK     bool   `json:"ok"`
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, signalAck("", errString("state not found"))
	}

	var request signalRequest
	if err := json.Unmarshal([]byte(data), &request); err != nil {
		logger.Warn("MatchSignal: Invalid signal: %v", err)
		return matchState, signalAck("", err)
	}

	var err error
	switch request.Action {
	case SignalRefresh:
		_, err = matchState.Engine.ForceReorderNow(ctx)
	case SignalReload:
		var cfg *config.Config
		if cfg, err = config.Reload(matchState.ConfigPath); err == nil {
			matchState.ApplyConfig(ctx, cfg)
			logger.Info("MatchSignal: Reloaded roster config from %s", matchState.ConfigPath)
		}
	case SignalRemove:
		if request.EntityID == "" {
			err = errString("entity_id is required")
			break
		}
		matchState.removeEntity(ctx, request.EntityID)
		mh.updateLabel(matchState, dispatcher, logger)
	default:
		err = errString("unknown action " + request.Action)
	}
	if err != nil {
		logger.Warn("MatchSignal: %s failed: %v", request.Action, err)
	}

	mh.flush(matchState, dispatcher, logger)
	return matchState, signalAck(request.Action, err)
}

type errString string

func (e errString) Error() string { return string(e) }

func signalAck(action string, err error) string {
	resp := signalResponse{OK: err == nil, Action: action}
	if err != nil {
		resp.Error = err.Error()
	}
	b, _ := json.Marshal(resp)
	return string(b)
}
