package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hectorgimenez/d2go/pkg/data"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/rebuff.yaml"

const (
	// DefaultTargetPath is matched as a substring of the entity path.
	DefaultTargetPath = "Metadata/Monsters/Skeletons/PlayerSummoned/SkeletonClericPlayerSummoned_"
	DefaultBuffName   = "infusion"
	DefaultGraceBuff  = "grace_period"
)

type InputBackend string

const (
	InputBridge InputBackend = "bridge"
	InputNative InputBackend = "native"
)

type Settings struct {
	Enable             bool     `yaml:"enable"`
	WeaponSwapKey      string   `yaml:"weapon_swap_key"`
	SkillKey           string   `yaml:"skill_key"`
	WeaponSwapDelay    int      `yaml:"weapon_swap_delay"`
	CastDelay          int      `yaml:"cast_delay"`
	ActionDelay        int      `yaml:"action_delay"`
	SwapSettleDelay    int      `yaml:"swap_settle_delay"`
	SafeRange          int      `yaml:"safe_range"`
	EnableLogging      bool     `yaml:"enable_logging"`
	DisableInSafeZones bool     `yaml:"disable_in_safe_zones"`
	TickInterval       int      `yaml:"tick_interval"`
	ControllerName     string   `yaml:"controller_name"`
	PeerControllers    []string `yaml:"peer_controllers"`
	LogSaveDirectory   string   `yaml:"log_save_directory"`

	Target   TargetCfg   `yaml:"target"`
	Input    InputCfg    `yaml:"input"`
	Bridge   BridgeCfg   `yaml:"bridge"`
	Server   ServerCfg   `yaml:"server"`
	Discord  DiscordCfg  `yaml:"discord"`
	Telegram TelegramCfg `yaml:"telegram"`
	History  HistoryCfg  `yaml:"history"`
	Notify   NotifyCfg   `yaml:"notify"`

	swapKB  data.KeyBinding
	skillKB data.KeyBinding
}

type TargetCfg struct {
	PathPattern string  `yaml:"path_pattern"`
	MaxRange    float64 `yaml:"max_range"`
	BuffName    string  `yaml:"buff_name"`
	GraceBuff   string  `yaml:"grace_buff"`
}

type InputCfg struct {
	Backend      InputBackend `yaml:"backend"`
	Humanize     bool         `yaml:"humanize"`
	HumanizerKey string       `yaml:"humanizer_key"`
}

type BridgeCfg struct {
	// MaxFrameAge is how long a host frame is trusted, in milliseconds.
	MaxFrameAge int `yaml:"max_frame_age"`
}

type ServerCfg struct {
	Enabled     bool   `yaml:"enabled"`
	Port        int    `yaml:"port"`
	NgrokToken  string `yaml:"ngrok_token"`
	NgrokTunnel bool   `yaml:"ngrok_tunnel"`
	OpenWindow  bool   `yaml:"open_window"`
}

type DiscordCfg struct {
	Enabled   bool     `yaml:"enabled"`
	Token     string   `yaml:"token"`
	ChannelID string   `yaml:"channel_id"`
	BotAdmins []string `yaml:"bot_admins"`
}

type TelegramCfg struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  int64  `yaml:"chat_id"`
}

// NotifyCfg picks which controller events reach Discord and Telegram.
// RetryThreshold reports a sequence once it failed that many casts, 0 disables it.
type NotifyCfg struct {
	Finished       bool `yaml:"finished"`
	Aborted        bool `yaml:"aborted"`
	RetryThreshold int  `yaml:"retry_threshold"`
}

type HistoryCfg struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the settings used when the file omits a value.
func Default() Settings {
	s := Settings{
		Enable:             false,
		WeaponSwapKey:      "X",
		SkillKey:           "Q",
		WeaponSwapDelay:    1065,
		CastDelay:          100,
		ActionDelay:        100,
		SafeRange:          60,
		DisableInSafeZones: true,
		TickInterval:       100,
		ControllerName:     "SoulOffering",
		PeerControllers:    []string{"AutoBlink"},
		LogSaveDirectory:   "logs",
		Target: TargetCfg{
			PathPattern: DefaultTargetPath,
			MaxRange:    100,
			BuffName:    DefaultBuffName,
			GraceBuff:   DefaultGraceBuff,
		},
		Input: InputCfg{
			Backend:      InputBridge,
			HumanizerKey: "InputHumanizer",
		},
		Bridge: BridgeCfg{MaxFrameAge: 1000},
		Server: ServerCfg{Port: 8088},
		History: HistoryCfg{
			Path: "history/rebuff.db",
		},
		Notify: NotifyCfg{Aborted: true, RetryThreshold: 10},
	}
	s.swapKB, _ = KeyBindingFor(s.WeaponSwapKey)
	s.skillKB, _ = KeyBindingFor(s.SkillKey)

	return s
}

// Load reads the YAML file at path on top of Default and validates the result.
func Load(path string) (*Settings, error) {
	s := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config %s: %w", path, err)
	}
	if err = yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	if err = s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate clamps numeric values into their allowed ranges, resolves key names and secrets.
func (s *Settings) Validate() error {
	s.WeaponSwapDelay = clamp(s.WeaponSwapDelay, 500, 2000)
	s.CastDelay = clamp(s.CastDelay, 50, 2000)
	s.ActionDelay = clamp(s.ActionDelay, 50, 2000)
	s.SafeRange = clamp(s.SafeRange, 0, 200)
	s.SwapSettleDelay = clamp(s.SwapSettleDelay, 0, 2000)
	if s.TickInterval <= 0 {
		s.TickInterval = 100
	}
	if s.Notify.RetryThreshold < 0 {
		s.Notify.RetryThreshold = 0
	}

	var err error
	if s.swapKB, err = KeyBindingFor(s.WeaponSwapKey); err != nil {
		return fmt.Errorf("weapon_swap_key: %w", err)
	}
	if s.skillKB, err = KeyBindingFor(s.SkillKey); err != nil {
		return fmt.Errorf("skill_key: %w", err)
	}

	if strings.TrimSpace(s.ControllerName) == "" {
		return errors.New("controller_name cannot be empty")
	}
	if s.Target.PathPattern == "" {
		s.Target.PathPattern = DefaultTargetPath
	}
	if s.Target.MaxRange <= 0 {
		s.Target.MaxRange = 100
	}
	if s.Target.BuffName == "" {
		s.Target.BuffName = DefaultBuffName
	}
	if s.Target.GraceBuff == "" {
		s.Target.GraceBuff = DefaultGraceBuff
	}

	switch s.Input.Backend {
	case InputBridge, InputNative:
	case "":
		s.Input.Backend = InputBridge
	default:
		return fmt.Errorf("unknown input backend %q", s.Input.Backend)
	}

	if s.Discord.Token, err = resolveSecret(s.Discord.Token); err != nil {
		return fmt.Errorf("discord token: %w", err)
	}
	if s.Telegram.Token, err = resolveSecret(s.Telegram.Token); err != nil {
		return fmt.Errorf("telegram token: %w", err)
	}
	if s.Server.NgrokToken, err = resolveSecret(s.Server.NgrokToken); err != nil {
		return fmt.Errorf("ngrok token: %w", err)
	}

	return nil
}

func (s Settings) SwapKeyBinding() data.KeyBinding { return s.swapKB }
func (s Settings) SkillKeyBinding() data.KeyBinding { return s.skillKB }

func (s Settings) SwapDelay() time.Duration { return ms(s.WeaponSwapDelay) }
func (s Settings) CastCheckDelay() time.Duration { return ms(s.CastDelay) }
func (s Settings) PollInterval() time.Duration { return ms(s.ActionDelay) }
func (s Settings) SwapSettle() time.Duration { return ms(s.SwapSettleDelay) }
func (s Settings) Tick() time.Duration { return ms(s.TickInterval) }

// ActiveFlagName is the registry name under which a controller publishes its "is active" flag.
func ActiveFlagName(controller string) string {
	return controller + ".IsActive"
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
