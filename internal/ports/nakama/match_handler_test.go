package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"rosterd/internal/app"
	"rosterd/internal/config"
	"rosterd/internal/domain"
	"rosterd/internal/ports"
	"rosterd/internal/ports/inmem"

	"github.com/google/go-cmp/cmp"
	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode    int64
	data      []byte
	presences []runtime.Presence
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	messages     []sentMessage
	labelUpdates int
	lastLabel    string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.messages = append(md.messages, sentMessage{opCode: opCode, data: append([]byte(nil), data...), presences: presences})
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

func (md *mockDispatcher) byOpCode(opCode int64) []sentMessage {
	var out []sentMessage
	for _, m := range md.messages {
		if m.opCode == opCode {
			out = append(out, m)
		}
	}
	return out
}

type testPresence struct {
	userID   string
	username string
}

func (p testPresence) GetHidden() bool                   { return false }
func (p testPresence) GetPersistence() bool              { return false }
func (p testPresence) GetUsername() string               { return p.username }
func (p testPresence) GetStatus() string                 { return "" }
func (p testPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }
func (p testPresence) GetUserId() string                 { return p.userID }
func (p testPresence) GetSessionId() string              { return "session-" + p.userID }
func (p testPresence) GetNodeId() string                 { return "node" }

type testMatchData struct {
	testPresence
	opCode int64
	data   []byte
}

func (d testMatchData) GetOpCode() int64      { return d.opCode }
func (d testMatchData) GetData() []byte       { return d.data }
func (d testMatchData) GetReliable() bool     { return true }
func (d testMatchData) GetReceiveTime() int64 { return 0 }

// fakeNakama implements the subsets of runtime.NakamaModule used by the adapters.
type fakeNakama struct {
	accounts map[string]*api.Account
	objects  map[string]string // key -> JSON value
	updates  []map[string]interface{}
	signals  []string
	err      error
}

func (f *fakeNakama) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	if acc, ok := f.accounts[userID]; ok {
		return acc, nil
	}
	return &api.Account{User: &api.User{Id: userID}}, nil
}

func (f *fakeNakama) AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error {
	f.updates = append(f.updates, metadata)
	return nil
}

func (f *fakeNakama) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*api.StorageObject
	for _, r := range reads {
		if v, ok := f.objects[r.Key]; ok {
			out = append(out, &api.StorageObject{Collection: r.Collection, Key: r.Key, UserId: r.UserID, Value: v})
		}
	}
	return out, nil
}

func (f *fakeNakama) MatchSignal(ctx context.Context, id string, data string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.signals = append(f.signals, data)
	return `{"ok":true}`, nil
}

func newTestState(t *testing.T, cfg *config.Config) (*MatchState, *matchHandler, *mockDispatcher) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.Ranking.DecorateNames = false
	state := newMatchState(context.Background(), cfg, inmem.NewMetrics(), noopLogger{})
	return state, newMatchHandler(), &mockDispatcher{}
}

func joinAll(state *MatchState, mh *matchHandler, md *mockDispatcher, presences ...runtime.Presence) {
	for _, p := range presences {
		mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 0, state, p, nil)
	}
	mh.MatchJoin(context.Background(), noopLogger{}, nil, nil, md, 0, state, presences)
}

func decodeStruct(t *testing.T, data []byte) *structpb.Struct {
	t.Helper()
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return &s
}

// rankMembers maps rank group names to members of a delivered board.
func rankMembers(t *testing.T, board *structpb.Struct) map[string][]string {
	t.Helper()
	out := make(map[string][]string)
	for _, v := range board.GetFields()["groups"].GetListValue().GetValues() {
		g := v.GetStructValue().GetFields()
		name := g["name"].GetStringValue()
		if !domain.IsRankGroup(name) {
			continue
		}
		var members []string
		for _, m := range g["members"].GetListValue().GetValues() {
			members = append(members, m.GetStringValue())
		}
		out[name] = members
	}
	return out
}

var (
	alice = testPresence{userID: "u1", username: "alice"}
	bob   = testPresence{userID: "u2", username: "bob"}
)

func TestMatchJoinDeliversBoardsAndLabels(t *testing.T) {
	state, mh, md := newTestState(t, nil)
	joinAll(state, mh, md, alice, bob)

	boards := md.byOpCode(OpBoardSync)
	if len(boards) != 2 {
		t.Fatalf("board syncs = %d, want 2", len(boards))
	}
	for i, want := range []string{"u1", "u2"} {
		if got := boards[i].presences[0].GetUserId(); got != want {
			t.Fatalf("board sync %d sent to %s, want %s", i, got, want)
		}
		members := rankMembers(t, decodeStruct(t, boards[i].data))
		wantMembers := map[string][]string{
			domain.RankGroupName(0): {"u1"},
			domain.RankGroupName(1): {"u2"},
		}
		if diff := cmp.Diff(wantMembers, members); diff != "" {
			t.Fatalf("rank members mismatch (-want +got):\n%s", diff)
		}
	}

	labels := md.byOpCode(OpLabels)
	if len(labels) != 1 {
		t.Fatalf("label broadcasts = %d, want 1", len(labels))
	}
	fields := decodeStruct(t, labels[0].data).GetFields()["labels"].GetStructValue().GetFields()
	if got := fields["u1"].GetStringValue(); got != "alice" {
		t.Fatalf("label of u1 = %q, want alice", got)
	}
	if got := fields["u2"].GetStringValue(); got != "bob" {
		t.Fatalf("label of u2 = %q, want bob", got)
	}

	if md.labelUpdates != 1 {
		t.Fatalf("label updates = %d, want 1", md.labelUpdates)
	}
	var label domain.MatchLabel
	if err := json.Unmarshal([]byte(md.lastLabel), &label); err != nil {
		t.Fatalf("unmarshal match label: %v", err)
	}
	if label.Population != 2 || label.Kind != "roster" || !label.Ranking {
		t.Fatalf("match label = %+v", label)
	}
}

func TestMatchLoopSkipsUnchangedBoards(t *testing.T) {
	state, mh, md := newTestState(t, nil)
	joinAll(state, mh, md, alice, bob)
	md.messages = nil

	for tick := int64(1); tick <= 5; tick++ {
		mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, tick, state, nil)
	}
	if len(md.messages) != 0 {
		t.Fatalf("messages after idle ticks = %d, want 0", len(md.messages))
	}
}

func TestSetZoneSweepsGatedEntity(t *testing.T) {
	cfg := config.Default()
	cfg.Zones.List = []string{"lobby"}
	state, mh, md := newTestState(t, cfg)
	joinAll(state, mh, md, alice, bob)
	md.messages = nil

	msg := testMatchData{testPresence: alice, opCode: OpSetZone, data: []byte(`{"zone":"lobby"}`)}
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, 1, state, []runtime.MatchData{msg})

	board, _ := state.Host.Board("u2")
	if g, ok := board.GroupOf("u1", domain.IsRankingGroup); ok {
		t.Fatalf("gated entity still in %s", g.Name())
	}
	if len(md.byOpCode(OpBoardSync)) != 2 {
		t.Fatalf("board syncs = %d, want 2", len(md.byOpCode(OpBoardSync)))
	}
}

func TestSetZoneIgnoresInvalidPayload(t *testing.T) {
	state, mh, md := newTestState(t, nil)
	joinAll(state, mh, md, alice)

	msg := testMatchData{testPresence: alice, opCode: OpSetZone, data: []byte(`not json`)}
	mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, 1, state, []runtime.MatchData{msg})

	e, _ := state.Host.Entity("u1")
	if e.Zone != "" {
		t.Fatalf("zone = %q, want empty", e.Zone)
	}
}

func TestJoinAttemptCarriesZone(t *testing.T) {
	state, mh, md := newTestState(t, nil)
	mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, md, 0, state, alice, map[string]string{"zone": "arena"})
	mh.MatchJoin(context.Background(), noopLogger{}, nil, nil, md, 0, state, []runtime.Presence{alice})

	e, ok := state.Host.Entity("u1")
	if !ok || e.Zone != "arena" {
		t.Fatalf("entity = %+v, want zone arena", e)
	}
	if len(state.Zones) != 0 {
		t.Fatalf("pending zones = %d, want 0", len(state.Zones))
	}
}

func TestMatchLeave(t *testing.T) {
	state, mh, md := newTestState(t, nil)
	joinAll(state, mh, md, alice, bob)
	kept := state.Metrics.Count("u2")
	if state.Metrics.Count("u1") == 0 || kept == 0 {
		t.Fatalf("cached metrics before leave: u1 = %d, u2 = %d, want both > 0", state.Metrics.Count("u1"), kept)
	}

	got := mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, md, 1, state, []runtime.Presence{alice})
	if got == nil {
		t.Fatal("match terminated with one entity left")
	}
	board, _ := state.Host.Board("u2")
	members := board.View()
	for _, g := range members {
		for _, m := range g.Members {
			if m == "u1" {
				t.Fatalf("departed entity still in %s", g.Name)
			}
		}
	}
	if n := state.Metrics.Count("u1"); n != 0 {
		t.Fatalf("cached metrics of u1 = %d, want 0", n)
	}
	if n := state.Metrics.Count("u2"); n != kept {
		t.Fatalf("cached metrics of u2 = %d, want %d", n, kept)
	}

	if got := mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, md, 2, state, []runtime.Presence{bob}); got != nil {
		t.Fatal("empty match was not terminated")
	}
	if state.Engine.Running() {
		t.Fatal("engine still running after last leave")
	}
}

func TestMatchSignal(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		wantOK bool
	}{
		{name: "Refresh", data: `{"action":"refresh"}`, wantOK: true},
		{name: "RemoveWithoutEntity", data: `{"action":"remove"}`, wantOK: false},
		{name: "Remove", data: `{"action":"remove","entity_id":"u1"}`, wantOK: true},
		{name: "Unknown", data: `{"action":"explode"}`, wantOK: false},
		{name: "Garbage", data: `{`, wantOK: false},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			state, mh, md := newTestState(t, nil)
			joinAll(state, mh, md, alice, bob)

			_, ack := mh.MatchSignal(context.Background(), noopLogger{}, nil, nil, md, 1, state, test.data)
			var resp signalResponse
			if err := json.Unmarshal([]byte(ack), &resp); err != nil {
				t.Fatalf("unmarshal ack: %v", err)
			}
			if resp.OK != test.wantOK {
				t.Fatalf("ok = %v, want %v (error %q)", resp.OK, test.wantOK, resp.Error)
			}
		})
	}
}

func TestMatchSignalRemoveDropsEntity(t *testing.T) {
	state, mh, md := newTestState(t, nil)
	joinAll(state, mh, md, alice, bob)

	mh.MatchSignal(context.Background(), noopLogger{}, nil, nil, md, 1, state, `{"action":"remove","entity_id":"u1"}`)
	if _, ok := state.Host.Entity("u1"); ok {
		t.Fatal("entity still connected after remove signal")
	}
	if _, ok := state.Presences["u1"]; ok {
		t.Fatal("presence kept after remove signal")
	}
}

func TestMatchTerminateClearsBoards(t *testing.T) {
	state, mh, md := newTestState(t, nil)
	joinAll(state, mh, md, alice, bob)

	mh.MatchTerminate(context.Background(), noopLogger{}, nil, nil, md, 1, state, 0)
	for _, b := range state.Host.ViewerBoards() {
		for _, name := range b.GroupNames() {
			if domain.IsRankingGroup(name) || domain.IsIdentityGroup(name) {
				t.Fatalf("board %s keeps group %s", b.ID(), name)
			}
		}
	}
	if _, ok := state.Host.Label("u1"); ok {
		t.Fatal("label not reset on terminate")
	}
}

func TestMetricProviderResolve(t *testing.T) {
	nk := &fakeNakama{
		accounts: map[string]*api.Account{
			"u1": {
				User:   &api.User{Id: "u1", Metadata: `{"group":"admin","level":3,"vip":true,"tags":["a"]}`},
				Wallet: `{"coins":40}`,
			},
		},
		objects: map[string]string{"kills": `{"value":12}`},
	}
	provider := NewNakamaMetricProvider(nk, "roster_metrics")

	tests := []struct {
		name       string
		key        string
		want       string
		unresolved bool
	}{
		{name: "MetadataString", key: "group", want: "admin"},
		{name: "MetadataNumber", key: "level", want: "3"},
		{name: "MetadataBool", key: "vip", want: "true"},
		{name: "MetadataList", key: "tags", want: `["a"]`},
		{name: "MetadataMissing", key: "prefix", unresolved: true},
		{name: "Wallet", key: "wallet:coins", want: "40"},
		{name: "WalletMissing", key: "wallet:gems", unresolved: true},
		{name: "Storage", key: "storage:kills", want: "12"},
		{name: "StorageMissing", key: "storage:deaths", unresolved: true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			got, err := provider.Resolve(context.Background(), "u1", test.key)
			if test.unresolved {
				if !errors.Is(err, ports.ErrUnresolved) {
					t.Fatalf("err = %v, want ErrUnresolved", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if got != test.want {
				t.Fatalf("Resolve(%s) = %q, want %q", test.key, got, test.want)
			}
		})
	}
}

func TestMetricProviderPropagatesErrors(t *testing.T) {
	nk := &fakeNakama{err: errors.New("db down")}
	provider := NewNakamaMetricProvider(nk, "roster_metrics")
	for _, key := range []string{"group", "wallet:coins", "storage:kills"} {
		_, err := provider.Resolve(context.Background(), "u1", key)
		if err == nil || errors.Is(err, ports.ErrUnresolved) {
			t.Fatalf("Resolve(%s) err = %v, want backend error", key, err)
		}
	}
}

func TestAccountAdapterMergesMetadata(t *testing.T) {
	nk := &fakeNakama{
		accounts: map[string]*api.Account{
			"u1": {User: &api.User{Id: "u1", Metadata: `{"group":"vip","rank":2}`}},
		},
	}
	adapter := NewNakamaAccountAdapter(nk)
	if err := adapter.UpdateMetadata(context.Background(), "u1", map[string]interface{}{"prefix": "&a"}); err != nil {
		t.Fatalf("UpdateMetadata error: %v", err)
	}
	if len(nk.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(nk.updates))
	}
	want := map[string]interface{}{"group": "vip", "rank": float64(2), "prefix": "&a"}
	if diff := cmp.Diff(want, nk.updates[0]); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchLabelJSON(t *testing.T) {
	got, err := matchLabel(3, false)
	if err != nil {
		t.Fatalf("matchLabel error: %v", err)
	}
	var label domain.MatchLabel
	if err := json.Unmarshal([]byte(got), &label); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := domain.MatchLabel{Kind: "roster", Population: 3, Ranking: false}
	if label != want {
		t.Fatalf("label = %+v, want %+v", label, want)
	}
}

func TestSignalMatchRPC(t *testing.T) {
	tokens := app.NewAdminTokenService("secret", "rosterd", 0)
	refresh, err := tokens.Issue("ops", app.AdminActionRefresh)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	payload := func(matchID, token string) string {
		b, _ := json.Marshal(AdminRequest{MatchID: matchID, Token: token})
		return string(b)
	}

	tests := []struct {
		name     string
		tokens   *app.AdminTokenService
		action   string
		payload  string
		nkErr    error
		wantCode int
	}{
		{name: "Ok", tokens: tokens, action: app.AdminActionRefresh, payload: payload("m1", refresh)},
		{name: "BadPayload", tokens: tokens, action: app.AdminActionRefresh, payload: "{", wantCode: 3},
		{name: "MissingMatch", tokens: tokens, action: app.AdminActionRefresh, payload: payload("", refresh), wantCode: 3},
		{name: "Disabled", tokens: app.NewAdminTokenService("", "rosterd", 0), action: app.AdminActionRefresh, payload: payload("m1", refresh), wantCode: 7},
		{name: "WrongAction", tokens: tokens, action: app.AdminActionReload, payload: payload("m1", refresh), wantCode: 16},
		{name: "SignalFails", tokens: tokens, action: app.AdminActionRefresh, payload: payload("m1", refresh), nkErr: errors.New("no match"), wantCode: 13},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			nk := &fakeNakama{err: test.nkErr}
			_, err := signalMatch(context.Background(), noopLogger{}, nk, test.tokens, test.action, SignalRefresh, test.payload)
			if test.wantCode == 0 {
				if err != nil {
					t.Fatalf("signalMatch error: %v", err)
				}
				if diff := cmp.Diff([]string{`{"action":"refresh"}`}, nk.signals); diff != "" {
					t.Fatalf("signals mismatch (-want +got):\n%s", diff)
				}
				return
			}
			var rtErr *runtime.Error
			if !errors.As(err, &rtErr) {
				t.Fatalf("err = %v, want runtime error", err)
			}
			if rtErr.Code != test.wantCode {
				t.Fatalf("code = %d, want %d", rtErr.Code, test.wantCode)
			}
		})
	}
}

func TestTokenServiceEnvOverride(t *testing.T) {
	cfg := config.Default()
	svc := tokenService(map[string]string{EnvAdminSecret: "from-env"}, cfg)
	if !svc.Configured() {
		t.Fatal("env secret did not configure admin tokens")
	}
	if tokenService(nil, cfg).Configured() {
		t.Fatal("default config should leave admin tokens disabled")
	}
}

func TestExtractUserIDFromToken(t *testing.T) {
	// header.payload.signature with payload {"uid":"user-1"}
	token := "eyJhbGciOiJIUzI1NiJ9.eyJ1aWQiOiJ1c2VyLTEifQ.sig"
	got, err := extractUserIDFromToken(token)
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if got != "user-1" {
		t.Fatalf("uid = %q, want user-1", got)
	}
	if _, err := extractUserIDFromToken("nope"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestMatchDeliversDisplays(t *testing.T) {
	cfg := config.Default()
	cfg.Tablist.Enabled = true
	cfg.Tablist.Header = "&eHi %player_name%"
	cfg.Tablist.Footer = "&7%online% online"
	cfg.Tablist.PlaceholderCacheSeconds = 0
	cfg.Sidebar.Enabled = true
	cfg.Sidebar.Title = "&bRoster"
	cfg.Sidebar.Items = []string{"&aline"}
	state, mh, md := newTestState(t, cfg)
	joinAll(state, mh, md, alice, bob)

	headers := md.byOpCode(OpHeaderFooter)
	if len(headers) != 2 {
		t.Fatalf("header messages = %d, want 2", len(headers))
	}
	if got := headers[0].presences[0].GetUserId(); got != "u1" {
		t.Fatalf("first header sent to %s, want u1", got)
	}
	fields := decodeStruct(t, headers[0].data).GetFields()
	if got := fields["header"].GetStringValue(); got != "§eHi alice" {
		t.Fatalf("header = %q, want §eHi alice", got)
	}
	if got := fields["footer"].GetStringValue(); got != "§72 online" {
		t.Fatalf("footer = %q, want §72 online", got)
	}

	panels := md.byOpCode(OpSidebar)
	if len(panels) != 2 {
		t.Fatalf("sidebar messages = %d, want 2", len(panels))
	}
	panel := decodeStruct(t, panels[1].data).GetFields()
	if !panel["visible"].GetBoolValue() || panel["title"].GetStringValue() != "§bRoster" {
		t.Fatalf("sidebar payload = %v", panel)
	}
	if lines := panel["lines"].GetListValue().GetValues(); len(lines) != 1 || lines[0].GetStringValue() != "§aline" {
		t.Fatalf("sidebar lines = %v", lines)
	}

	md.messages = nil
	for tick := int64(1); tick <= 25; tick++ {
		mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, md, tick, state, nil)
	}
	if n := len(md.byOpCode(OpHeaderFooter)) + len(md.byOpCode(OpSidebar)); n != 0 {
		t.Fatalf("display messages for unchanged text = %d, want 0", n)
	}

	mh.MatchTerminate(context.Background(), noopLogger{}, nil, nil, md, 26, state, 0)
	clears := md.byOpCode(OpHeaderFooter)
	if len(clears) != 2 {
		t.Fatalf("header clears = %d, want 2", len(clears))
	}
	if got := decodeStruct(t, clears[0].data).GetFields()["header"].GetStringValue(); got != "" {
		t.Fatalf("cleared header = %q, want empty", got)
	}
	hidden := md.byOpCode(OpSidebar)
	if len(hidden) != 2 || decodeStruct(t, hidden[0].data).GetFields()["visible"].GetBoolValue() {
		t.Fatalf("sidebar clears = %d, want 2 hidden panels", len(hidden))
	}
}
