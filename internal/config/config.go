package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/nidhogg/parley/internal/profile"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig               `json:"server"`
	Database   DatabaseConfig             `json:"database"`
	Notify     NotifyConfig               `json:"notify"`
	Scheduling SchedulingConfig           `json:"scheduling"`
	Parties    []PartyConfig              `json:"parties"`
	Profiles   map[string]ProfileOverride `json:"profiles,omitempty"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type NotifyConfig struct {
	Slack   SlackNotifyConfig   `json:"slack"`
	Discord DiscordNotifyConfig `json:"discord"`
}

type SlackNotifyConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

type DiscordNotifyConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

// SchedulingConfig holds the slot-search and negotiation knobs. Zero values
// fall back to the defaults applied in Load.
type SchedulingConfig struct {
	BusinessOpen           int    `json:"business_open_hour"`
	BusinessClose          int    `json:"business_close_hour"`
	GranularityMin         int    `json:"granularity_minutes"`
	SearchHorizonDays      int    `json:"search_horizon_days"`    // window either side of the preferred start
	CounterLookaheadDays   int    `json:"counter_lookahead_days"` // counter-proposal search window
	MaxRounds              int    `json:"max_rounds"`
	TopN                   int    `json:"top_n"`
	SoftPenalty            int    `json:"soft_conflict_penalty"`
	AllowedDurations       []int  `json:"allowed_durations"`
	ValidFrom              string `json:"valid_from"`  // YYYY-MM-DD, empty means unbounded
	ValidUntil             string `json:"valid_until"` // YYYY-MM-DD, empty means unbounded
}

// PartyConfig declares one calendar-holding party and its personality.
type PartyConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Profile  string `json:"profile"`
	AgentRef string `json:"agent_ref,omitempty"`
}

// ProfileOverride tunes selected fields of a catalog profile per deployment.
// Unset fields keep the catalog value.
type ProfileOverride struct {
	Flexibility       *int `json:"flexibility,omitempty"`
	PriorityThreshold *int `json:"priority_threshold,omitempty"`
	SoftTolerance     *int `json:"soft_tolerance,omitempty"`
}

// Apply returns the profile with the override's set fields replaced.
func (o ProfileOverride) Apply(p profile.Profile) profile.Profile {
	if o.Flexibility != nil {
		p.Flexibility = *o.Flexibility
	}
	if o.PriorityThreshold != nil {
		p.PriorityThreshold = *o.PriorityThreshold
	}
	if o.SoftTolerance != nil {
		p.SoftTolerance = *o.SoftTolerance
	}
	return p
}

// Party resolves a configured party into its effective profile, overrides
// applied.
func (c *Config) Party(pc PartyConfig) (profile.Profile, error) {
	p, err := profile.Lookup(pc.Profile)
	if err != nil {
		return profile.Profile{}, err
	}
	if o, ok := c.Profiles[p.Name]; ok {
		p = o.Apply(p)
	}
	return p, nil
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable
// references, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	s := &c.Scheduling
	if s.BusinessOpen == 0 {
		s.BusinessOpen = 8
	}
	if s.BusinessClose == 0 {
		s.BusinessClose = 17
	}
	if s.GranularityMin == 0 {
		s.GranularityMin = 15
	}
	if s.SearchHorizonDays == 0 {
		s.SearchHorizonDays = 3
	}
	if s.CounterLookaheadDays == 0 {
		s.CounterLookaheadDays = 7
	}
	if s.MaxRounds == 0 {
		s.MaxRounds = 10
	}
	if s.TopN == 0 {
		s.TopN = 5
	}
	if s.SoftPenalty == 0 {
		s.SoftPenalty = 2
	}
	if len(s.AllowedDurations) == 0 {
		s.AllowedDurations = []int{15, 30, 45, 60, 90, 120}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

func (c *Config) validate() error {
	s := c.Scheduling
	if s.BusinessOpen >= s.BusinessClose {
		return fmt.Errorf("business hours: open %d must be before close %d", s.BusinessOpen, s.BusinessClose)
	}
	if _, err := c.ValidFrom(); err != nil {
		return err
	}
	if _, err := c.ValidUntil(); err != nil {
		return err
	}
	for name := range c.Profiles {
		if _, err := profile.Lookup(name); err != nil {
			return fmt.Errorf("profiles: %w", err)
		}
	}
	return nil
}

// ValidFrom parses the lower valid-date bound; zero time when unset.
func (c *Config) ValidFrom() (time.Time, error) {
	return parseDateBound("valid_from", c.Scheduling.ValidFrom)
}

// ValidUntil parses the upper valid-date bound; zero time when unset.
func (c *Config) ValidUntil() (time.Time, error) {
	return parseDateBound("valid_until", c.Scheduling.ValidUntil)
}

func parseDateBound(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}
