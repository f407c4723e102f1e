// Package config defines the configuration schema for reins.
//
// JSON keys use camelCase; durations are stored as millisecond integers so
// the file stays editable without Go duration syntax.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// ProviderConfig holds credentials for the LLM provider used by the
// distillation and extraction engines. Any OpenAI-compatible endpoint works.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	Model        string            `json:"model"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

func defaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		APIBase: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	}
}

// RetryConfig tunes the runner's exponential backoff around provider calls.
type RetryConfig struct {
	MaxRetries    int   `json:"maxRetries"`
	BaseBackoffMs int64 `json:"baseBackoffMs"`
	MaxBackoffMs  int64 `json:"maxBackoffMs"`
}

func (r RetryConfig) BaseBackoff() time.Duration {
	return time.Duration(r.BaseBackoffMs) * time.Millisecond
}

func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffMs) * time.Millisecond
}

// MemoryConfig tunes the consolidation pipeline.
type MemoryConfig struct {
	BatchSize                 int         `json:"batchSize"`
	DedupeWindowMs            int64       `json:"dedupeWindowMs"`
	MaxRetries                int         `json:"maxRetries"`
	MinAgeMs                  int64       `json:"minAgeMs"`
	ReinforcementBoost        float64     `json:"reinforcementBoost"`
	DecayRate                 float64     `json:"decayRate"`
	DecayWindowMs             int64       `json:"decayWindowMs"`
	ConfidenceThreshold       float64     `json:"confidenceThreshold"`
	MaxFactsPerBatch          int         `json:"maxFactsPerBatch"`
	MinConfidenceToMerge      float64     `json:"minConfidenceToMerge"`
	SimilarityThreshold       float64     `json:"similarityThreshold"`
	MaxSupersessionChainDepth int         `json:"maxSupersessionChainDepth"`
	Retry                     RetryConfig `json:"retry"`
}

func (m MemoryConfig) DedupeWindow() time.Duration {
	return time.Duration(m.DedupeWindowMs) * time.Millisecond
}

func (m MemoryConfig) MinAge() time.Duration {
	return time.Duration(m.MinAgeMs) * time.Millisecond
}

func (m MemoryConfig) DecayWindow() time.Duration {
	return time.Duration(m.DecayWindowMs) * time.Millisecond
}

func defaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		BatchSize:                 20,
		DedupeWindowMs:            30 * 60 * 1000,
		MaxRetries:                3,
		MinAgeMs:                  5 * 60 * 1000,
		ReinforcementBoost:        0.2,
		DecayRate:                 0.08,
		DecayWindowMs:             7 * 24 * 60 * 60 * 1000,
		ConfidenceThreshold:       0.5,
		MaxFactsPerBatch:          25,
		MinConfidenceToMerge:      0.5,
		SimilarityThreshold:       1.0,
		MaxSupersessionChainDepth: 8,
		Retry: RetryConfig{
			MaxRetries:    3,
			BaseBackoffMs: 1000,
			MaxBackoffMs:  30000,
		},
	}
}

// DeliveryTarget names one destination for briefing delivery.
type DeliveryTarget struct {
	Channel string `json:"channel"` // "telegram", "slack", "bridge"
	ChatID  string `json:"chatId"`
}

// BriefingConfig tunes briefing composition and names its delivery targets.
type BriefingConfig struct {
	MaxSections        int              `json:"maxSections"`
	MaxItemsPerSection int              `json:"maxItemsPerSection"`
	LookbackWindowMs   int64            `json:"lookbackWindowMs"`
	TopicFilters       []string         `json:"topicFilters"`
	DeliverTo          []DeliveryTarget `json:"deliverTo"`
}

func (b BriefingConfig) LookbackWindow() time.Duration {
	return time.Duration(b.LookbackWindowMs) * time.Millisecond
}

func defaultBriefingConfig() BriefingConfig {
	return BriefingConfig{
		MaxSections:        4,
		MaxItemsPerSection: 5,
		LookbackWindowMs:   24 * 60 * 60 * 1000,
		TopicFilters:       []string{},
		DeliverTo:          []DeliveryTarget{},
	}
}

// JobScheduleConfig configures one background job.
type JobScheduleConfig struct {
	Enabled    bool   `json:"enabled"`
	IntervalMs int64  `json:"intervalMs"`
	Expr       string `json:"expr,omitempty"` // cron expression; overrides the interval
	TZ         string `json:"tz,omitempty"`   // IANA timezone for Expr
}

func (j JobScheduleConfig) Interval() time.Duration {
	return time.Duration(j.IntervalMs) * time.Millisecond
}

// JobsConfig groups the background job schedules.
type JobsConfig struct {
	Consolidation JobScheduleConfig `json:"consolidation"`
	Briefing      JobScheduleConfig `json:"briefing"`
}

func defaultJobsConfig() JobsConfig {
	return JobsConfig{
		Consolidation: JobScheduleConfig{Enabled: true, IntervalMs: 6 * 60 * 60 * 1000},
		Briefing:      JobScheduleConfig{Enabled: true, IntervalMs: 24 * 60 * 60 * 1000},
	}
}

// ---- Channel configs -------------------------------------------------------

// TelegramConfig configures the Telegram delivery channel.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	Proxy   string `json:"proxy,omitempty"`
}

// SlackConfig configures the Slack delivery channel.
type SlackConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"botToken"`
}

// BridgeConfig configures the local WebSocket bridge channel.
type BridgeConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token,omitempty"`
}

func defaultBridgeConfig() BridgeConfig {
	return BridgeConfig{URL: "ws://localhost:3001"}
}

// ChannelsConfig groups all delivery channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Slack    SlackConfig    `json:"slack"`
	Bridge   BridgeConfig   `json:"bridge"`
}

func defaultChannelsConfig() ChannelsConfig {
	return ChannelsConfig{Bridge: defaultBridgeConfig()}
}

// ---- Root config -----------------------------------------------------------

// Config is the root configuration object, loaded from ~/.reins/config.json.
type Config struct {
	Workspace string         `json:"workspace"`
	Provider  ProviderConfig `json:"provider"`
	Memory    MemoryConfig   `json:"memory"`
	Briefing  BriefingConfig `json:"briefing"`
	Jobs      JobsConfig     `json:"jobs"`
	Channels  ChannelsConfig `json:"channels"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Workspace: "~/.reins/workspace",
		Provider:  defaultProviderConfig(),
		Memory:    defaultMemoryConfig(),
		Briefing:  defaultBriefingConfig(),
		Jobs:      defaultJobsConfig(),
		Channels:  defaultChannelsConfig(),
	}
}

// WorkspacePath returns the expanded absolute path to the workspace.
func (c *Config) WorkspacePath() string {
	ws := c.Workspace
	if ws == "" {
		ws = "~/.reins/workspace"
	}
	if len(ws) >= 2 && ws[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			ws = filepath.Join(home, ws[2:])
		}
	}
	return ws
}
