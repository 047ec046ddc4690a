package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"rosterd/internal/app"
	"rosterd/internal/app/nametag"
	"rosterd/internal/app/sidebar"
	"rosterd/internal/app/tablist"
	"rosterd/internal/decor"
	"rosterd/internal/domain"
	"rosterd/internal/ranking"

	"github.com/spf13/viper"
)

// ErrInvalidBoardMode is returned for a ranking.board_mode other than per_viewer or shared.
var ErrInvalidBoardMode = errors.New("invalid board mode")

const envPrefix = "ROSTER"

type StageConfig struct {
	Type        string   `mapstructure:"type"`
	Order       []string `mapstructure:"order"`
	Key         string   `mapstructure:"key"`
	Placeholder string   `mapstructure:"placeholder"`
	Desc        bool     `mapstructure:"desc"`
}

type WatchdogConfig struct {
	Enforce         bool `mapstructure:"enforce"`
	CheckEveryTicks int  `mapstructure:"check_every_ticks"`
	Log             bool `mapstructure:"log"`
}

type RankingConfig struct {
	Enabled          bool           `mapstructure:"enabled"`
	UpdateSeconds    float64        `mapstructure:"update_seconds"`
	BoardMode        string         `mapstructure:"board_mode"`
	DecorateNames    bool           `mapstructure:"decorate_names"`
	MaxListNameChars int            `mapstructure:"max_list_name_chars"`
	RespectZoneGate  bool           `mapstructure:"respect_zone_gate"`
	SortKeyHint      bool           `mapstructure:"sort_key_hint"`
	Stages           []StageConfig  `mapstructure:"stages"`
	Priority         []string       `mapstructure:"priority"`
	DefaultPriority  int            `mapstructure:"default_priority"`
	TieBreakerName   string         `mapstructure:"tie_breaker_name"`
	Watchdog         WatchdogConfig `mapstructure:"watchdog"`
}

type OverlayConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Metric       string   `mapstructure:"metric"`
	TrueValues   []string `mapstructure:"true_values"`
	Mode         string   `mapstructure:"mode"`
	Suffix       string   `mapstructure:"suffix"`
	RecolorColor string   `mapstructure:"recolor_color"`
	KeepFormats  bool     `mapstructure:"keep_formats"`
}

type IdentityConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	UpdateSeconds     float64 `mapstructure:"update_seconds"`
	MaxPrefixChars    int     `mapstructure:"max_prefix_chars"`
	MaxSuffixChars    int     `mapstructure:"max_suffix_chars"`
	ColorMode         string  `mapstructure:"color_mode"`
	ColorForce        string  `mapstructure:"color_force"`
	ApplyOverlay      bool    `mapstructure:"apply_overlay"`
	NameTagVisibility string  `mapstructure:"name_tag_visibility"`
}

type ZonesConfig struct {
	AsWhitelist bool     `mapstructure:"as_whitelist"`
	List        []string `mapstructure:"list"`
}

type MetricsConfig struct {
	Source            string   `mapstructure:"source"`
	CacheSeconds      float64  `mapstructure:"cache_seconds"`
	CacheSize         int      `mapstructure:"cache_size"`
	StorageCollection string   `mapstructure:"storage_collection"`
	RedisAddrs        []string `mapstructure:"redis_addrs"`
	RedisPassword     string   `mapstructure:"redis_password"`
	RedisKeyPrefix    string   `mapstructure:"redis_key_prefix"`
}

type AdminConfig struct {
	TokenSecret     string `mapstructure:"token_secret"`
	TokenIssuer     string `mapstructure:"token_issuer"`
	TokenTTLSeconds int    `mapstructure:"token_ttl_seconds"`
}

type OnboardingConfig struct {
	Group  string `mapstructure:"group"`
	Prefix string `mapstructure:"prefix"`
	Suffix string `mapstructure:"suffix"`
}

type ScrollConfig struct {
	Header   bool `mapstructure:"header"`
	Footer   bool `mapstructure:"footer"`
	Step     int  `mapstructure:"speed_chars_per_step"`
	MinWidth int  `mapstructure:"min_width"`
}

type RainbowConfig struct {
	Header  bool     `mapstructure:"header"`
	Footer  bool     `mapstructure:"footer"`
	Palette []string `mapstructure:"palette"`
	Step    int      `mapstructure:"step_per_update"`
}

type PulseConfig struct {
	Header bool   `mapstructure:"header"`
	Footer bool   `mapstructure:"footer"`
	ColorA string `mapstructure:"color_a"`
	ColorB string `mapstructure:"color_b"`
}

type EffectsConfig struct {
	Scroll  ScrollConfig  `mapstructure:"scroll"`
	Rainbow RainbowConfig `mapstructure:"rainbow"`
	Pulse   PulseConfig   `mapstructure:"pulse"`
}

type TablistConfig struct {
	Enabled                 bool          `mapstructure:"enabled"`
	UpdateSeconds           float64       `mapstructure:"update_seconds"`
	Header                  string        `mapstructure:"header"`
	Footer                  string        `mapstructure:"footer"`
	RespectZoneGate         bool          `mapstructure:"respect_zone_gate"`
	PushOnJoin              bool          `mapstructure:"push_on_join"`
	PlaceholderCacheSeconds float64       `mapstructure:"placeholder_cache_seconds"`
	Effects                 EffectsConfig `mapstructure:"effects"`
}

type TopConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Title       string  `mapstructure:"title"`
	Metric      string  `mapstructure:"metric"`
	ValueColor  string  `mapstructure:"value_color"`
	Count       int     `mapstructure:"count"`
	ShowSeconds float64 `mapstructure:"show_seconds"`
	HideSeconds float64 `mapstructure:"hide_seconds"`
}

type SidebarConfig struct {
	Enabled       bool      `mapstructure:"enabled"`
	Title         string    `mapstructure:"title"`
	UpdateSeconds float64   `mapstructure:"update_seconds"`
	Items         []string  `mapstructure:"items"`
	Top           TopConfig `mapstructure:"top"`
}

// Config is the full roster configuration.
type Config struct {
	TickRate       int              `mapstructure:"tick_rate"`
	Ranking        RankingConfig    `mapstructure:"ranking"`
	StatusOverlay  OverlayConfig    `mapstructure:"status_overlay"`
	IdentityLabels IdentityConfig   `mapstructure:"identity_labels"`
	Zones          ZonesConfig      `mapstructure:"zones"`
	Metrics        MetricsConfig    `mapstructure:"metrics"`
	Admin          AdminConfig      `mapstructure:"admin"`
	Onboarding     OnboardingConfig `mapstructure:"onboarding"`
	Tablist        TablistConfig    `mapstructure:"tablist"`
	Sidebar        SidebarConfig    `mapstructure:"sidebar"`
}

var (
	cfg      *Config
	cfgMu    sync.RWMutex
	loadOnce sync.Once
	loadErr  error
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("tick_rate", 20)

	v.SetDefault("ranking.enabled", true)
	v.SetDefault("ranking.update_seconds", 1.0)
	v.SetDefault("ranking.board_mode", string(app.BoardsPerViewer))
	v.SetDefault("ranking.decorate_names", true)
	v.SetDefault("ranking.max_list_name_chars", decor.DefaultMaxLabel)
	v.SetDefault("ranking.respect_zone_gate", true)
	v.SetDefault("ranking.sort_key_hint", false)
	v.SetDefault("ranking.priority", []string{})
	v.SetDefault("ranking.default_priority", -1)
	v.SetDefault("ranking.tie_breaker_name", "asc")
	v.SetDefault("ranking.watchdog.enforce", true)
	v.SetDefault("ranking.watchdog.check_every_ticks", app.DefaultWatchdogEvery)
	v.SetDefault("ranking.watchdog.log", true)

	v.SetDefault("status_overlay.enabled", false)
	v.SetDefault("status_overlay.metric", "afk")
	v.SetDefault("status_overlay.true_values", []string{"yes", "true", "1"})
	v.SetDefault("status_overlay.mode", string(decor.OverlaySuffix))
	v.SetDefault("status_overlay.suffix", " &7[&eAFK&7]")
	v.SetDefault("status_overlay.recolor_color", "&7")
	v.SetDefault("status_overlay.keep_formats", true)

	v.SetDefault("identity_labels.enabled", true)
	v.SetDefault("identity_labels.update_seconds", 1.0)
	v.SetDefault("identity_labels.max_prefix_chars", decor.DefaultMaxPart)
	v.SetDefault("identity_labels.max_suffix_chars", decor.DefaultMaxPart)
	v.SetDefault("identity_labels.color_mode", string(decor.ColorAuto))
	v.SetDefault("identity_labels.color_force", "&7")
	v.SetDefault("identity_labels.apply_overlay", true)
	v.SetDefault("identity_labels.name_tag_visibility", string(domain.VisibilityAlways))

	v.SetDefault("zones.as_whitelist", false)
	v.SetDefault("zones.list", []string{})

	v.SetDefault("metrics.source", "nakama")
	v.SetDefault("metrics.cache_seconds", 0.25)
	v.SetDefault("metrics.cache_size", 4096)
	v.SetDefault("metrics.storage_collection", "roster_metrics")
	v.SetDefault("metrics.redis_addrs", []string{})
	v.SetDefault("metrics.redis_password", "")
	v.SetDefault("metrics.redis_key_prefix", "roster:metrics:")

	v.SetDefault("admin.token_secret", "")
	v.SetDefault("admin.token_issuer", "rosterd")
	v.SetDefault("admin.token_ttl_seconds", 3600)

	v.SetDefault("onboarding.group", "default")
	v.SetDefault("onboarding.prefix", "")
	v.SetDefault("onboarding.suffix", "")

	v.SetDefault("tablist.enabled", false)
	v.SetDefault("tablist.update_seconds", 1.0)
	v.SetDefault("tablist.header", "&6Welcome, %player_name%!\n&aEnjoy the game!")
	v.SetDefault("tablist.footer", "&eOnline: &b%server_online%")
	v.SetDefault("tablist.respect_zone_gate", true)
	v.SetDefault("tablist.push_on_join", true)
	v.SetDefault("tablist.placeholder_cache_seconds", 0.25)
	v.SetDefault("tablist.effects.scroll.header", false)
	v.SetDefault("tablist.effects.scroll.footer", false)
	v.SetDefault("tablist.effects.scroll.speed_chars_per_step", 1)
	v.SetDefault("tablist.effects.scroll.min_width", 40)
	v.SetDefault("tablist.effects.rainbow.header", false)
	v.SetDefault("tablist.effects.rainbow.footer", false)
	v.SetDefault("tablist.effects.rainbow.palette", []string{"&c", "&6", "&e", "&a", "&b", "&9", "&d"})
	v.SetDefault("tablist.effects.rainbow.step_per_update", 1)
	v.SetDefault("tablist.effects.pulse.header", false)
	v.SetDefault("tablist.effects.pulse.footer", false)
	v.SetDefault("tablist.effects.pulse.color_a", "&f")
	v.SetDefault("tablist.effects.pulse.color_b", "&7")

	v.SetDefault("sidebar.enabled", false)
	v.SetDefault("sidebar.title", "&b&lRoster")
	v.SetDefault("sidebar.update_seconds", 2.0)
	v.SetDefault("sidebar.items", []string{})
	v.SetDefault("sidebar.top.enabled", false)
	v.SetDefault("sidebar.top.title", "&a&lTop")
	v.SetDefault("sidebar.top.metric", "kills")
	v.SetDefault("sidebar.top.value_color", "&6")
	v.SetDefault("sidebar.top.count", 5)
	v.SetDefault("sidebar.top.show_seconds", 20.0)
	v.SetDefault("sidebar.top.hide_seconds", 10.0)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roster config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the configuration with every key at its default.
func Default() *Config {
	c, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("roster config defaults are invalid: %v", err))
	}
	return c
}

// Load reads a YAML file merged over the defaults and ROSTER_* environment
// variables. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read roster config: %w", err)
			}
		}
	}
	return decode(v)
}

// Parse decodes YAML content merged over the defaults.
func Parse(data []byte) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse roster config: %w", err)
	}
	return decode(v)
}

// LoadRosterConfig loads the process-wide configuration once.
func LoadRosterConfig(path string) error {
	loadOnce.Do(func() {
		c, err := Load(path)
		if err != nil {
			loadErr = err
			return
		}
		cfgMu.Lock()
		cfg = c
		cfgMu.Unlock()
	})
	return loadErr
}

// GetRosterConfig returns the process-wide configuration, or the defaults when
// nothing was loaded.
func GetRosterConfig() *Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	if cfg == nil {
		return Default()
	}
	return cfg
}

// Reload re-reads path and replaces the process-wide configuration. On error the
// previous configuration stays in place.
func Reload(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
	return c, nil
}

// Validate rejects values that cannot be degraded to a default.
func (c *Config) Validate() error {
	if _, ok := app.ParseBoardMode(c.Ranking.BoardMode); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidBoardMode, c.Ranking.BoardMode)
	}
	return nil
}

// Chain builds the criterion chain. Malformed stages are degraded and reported.
func (c *Config) Chain() (*ranking.Chain, []error) {
	specs := make([]ranking.StageSpec, 0, len(c.Ranking.Stages))
	for _, s := range c.Ranking.Stages {
		key := s.Key
		if key == "" {
			key = s.Placeholder
		}
		specs = append(specs, ranking.StageSpec{
			Type:  s.Type,
			Order: s.Order,
			Key:   key,
			Desc:  s.Desc,
		})
	}
	return ranking.Build(specs, ranking.LegacySpec{
		Priority:        c.Ranking.Priority,
		DefaultPriority: c.Ranking.DefaultPriority,
		TieBreakerDesc:  strings.EqualFold(strings.TrimSpace(c.Ranking.TieBreakerName), "desc"),
	})
}

// EngineOptions converts the ranking section into engine options.
func (c *Config) EngineOptions() app.Options {
	mode, _ := app.ParseBoardMode(c.Ranking.BoardMode)
	return app.Options{
		Enabled:     c.Ranking.Enabled,
		BoardMode:   mode,
		Period:      domain.SecondsToDuration(c.Ranking.UpdateSeconds),
		TickRate:    c.TickRate,
		SortKeyHint: c.Ranking.SortKeyHint,
		Watchdog: app.WatchdogOptions{
			Enforce:    c.Ranking.Watchdog.Enforce,
			EveryTicks: int64(c.Ranking.Watchdog.CheckEveryTicks),
			Log:        c.Ranking.Watchdog.Log,
		},
	}
}

// DecorOptions converts the label, overlay and identity sections into pipeline options.
func (c *Config) DecorOptions() decor.Options {
	return decor.Options{
		DecorateNames: c.Ranking.DecorateNames,
		MaxPrefix:     c.IdentityLabels.MaxPrefixChars,
		MaxSuffix:     c.IdentityLabels.MaxSuffixChars,
		MaxLabel:      c.Ranking.MaxListNameChars,
		Overlay: decor.Overlay{
			Enabled:      c.StatusOverlay.Enabled,
			Metric:       c.StatusOverlay.Metric,
			TrueValues:   c.StatusOverlay.TrueValues,
			Mode:         decor.ParseOverlayMode(c.StatusOverlay.Mode),
			Suffix:       c.StatusOverlay.Suffix,
			RecolorColor: c.StatusOverlay.RecolorColor,
			KeepFormats:  c.StatusOverlay.KeepFormats,
		},
		ColorMode:  decor.ParseColorMode(c.IdentityLabels.ColorMode),
		ColorForce: c.IdentityLabels.ColorForce,
		Visibility: domain.ParseVisibility(c.IdentityLabels.NameTagVisibility),
	}
}

// NametagOptions converts the identity section.
func (c *Config) NametagOptions() nametag.Options {
	return nametag.Options{
		Enabled:      c.IdentityLabels.Enabled,
		ApplyOverlay: c.IdentityLabels.ApplyOverlay,
		Visibility:   domain.ParseVisibility(c.IdentityLabels.NameTagVisibility),
	}
}

// IdentityPeriod is the refresh period of identity labels.
func (c *Config) IdentityPeriod() time.Duration {
	return domain.SecondsToDuration(c.IdentityLabels.UpdateSeconds)
}

// Gate returns the zone gate, or an open gate when the gate is not respected.
func (c *Config) Gate() domain.ZoneGate {
	if !c.Ranking.RespectZoneGate {
		return domain.ZoneGate{}
	}
	return domain.NewZoneGate(c.Zones.AsWhitelist, c.Zones.List)
}

// CacheTTL is the metric cache lifetime; zero disables caching.
func (c *Config) CacheTTL() time.Duration {
	if c.Metrics.CacheSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Metrics.CacheSeconds * float64(time.Second))
}

// AdminTokenTTL is the lifetime of issued admin tokens.
func (c *Config) AdminTokenTTL() time.Duration {
	return time.Duration(c.Admin.TokenTTLSeconds) * time.Second
}

// TablistOptions converts the tablist section into header/footer options.
func (c *Config) TablistOptions() tablist.Options {
	t := c.Tablist
	return tablist.Options{
		Enabled:     t.Enabled,
		Header:      t.Header,
		Footer:      t.Footer,
		Period:      domain.SecondsToDuration(t.UpdateSeconds),
		RespectGate: t.RespectZoneGate,
		PushOnJoin:  t.PushOnJoin,
		Scroll: tablist.Scroll{
			Header:   t.Effects.Scroll.Header,
			Footer:   t.Effects.Scroll.Footer,
			Step:     t.Effects.Scroll.Step,
			MinWidth: t.Effects.Scroll.MinWidth,
		},
		Rainbow: tablist.Rainbow{
			Header:  t.Effects.Rainbow.Header,
			Footer:  t.Effects.Rainbow.Footer,
			Palette: sanitizePalette(t.Effects.Rainbow.Palette),
			Step:    t.Effects.Rainbow.Step,
		},
		Pulse: tablist.Pulse{
			Header: t.Effects.Pulse.Header,
			Footer: t.Effects.Pulse.Footer,
			ColorA: t.Effects.Pulse.ColorA,
			ColorB: t.Effects.Pulse.ColorB,
		},
	}
}

func sanitizePalette(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PlaceholderTTL is the lifetime of expanded header, footer and sidebar text.
func (c *Config) PlaceholderTTL() time.Duration {
	if c.Tablist.PlaceholderCacheSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Tablist.PlaceholderCacheSeconds * float64(time.Second))
}

// SidebarOptions converts the sidebar section.
func (c *Config) SidebarOptions() sidebar.Options {
	sb := c.Sidebar
	return sidebar.Options{
		Enabled: sb.Enabled,
		Title:   sb.Title,
		Items:   sb.Items,
		Period:  domain.SecondsToDuration(sb.UpdateSeconds),
		Top: sidebar.TopOptions{
			Enabled:    sb.Top.Enabled,
			Title:      sb.Top.Title,
			Metric:     sb.Top.Metric,
			ValueColor: sb.Top.ValueColor,
			Count:      sb.Top.Count,
			Show:       domain.SecondsToDuration(sb.Top.ShowSeconds),
			Hide:       domain.SecondsToDuration(sb.Top.HideSeconds),
		},
	}
}
