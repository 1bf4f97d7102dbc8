// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSystemPrompt steers the generation service. The pause-marker
// instruction drives response segmentation and the directive format
// drives appointment extraction; both must survive any prompt edits.
const DefaultSystemPrompt = `You are a friendly voice assistant answering phone calls for a membership organization.
Keep responses brief and helpful, asking at most one question at a time.
If a request is urgent or outside your scope, offer to connect the caller with a human agent.
You must add a '•' symbol every 5 to 10 words at natural pauses where your response can be split for text to speech.
When the caller has confirmed an appointment, include the line [[APPOINTMENT: name, membership number, appointment type, date, time, phone, email]] at the end of your reply, with exactly those seven fields in that order.`

// DefaultGreeting opens every call.
const DefaultGreeting = `Hello, thanks for calling. • This call is recorded for quality and assistance purposes. • How can I help you today?`

type Config struct {
	Addr string

	// PublicHost is the externally reachable hostname the carrier
	// connects back to for call audio.
	PublicHost string

	LLMProvider string
	LLMAPIKey   string
	LLMModel    string

	DeepgramAPIKey string
	DeepgramModel  string
	Language       string

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModel   string

	// DatabaseURL is optional; without it appointments and summaries
	// are logged but not persisted.
	DatabaseURL string

	SystemPrompt string
	Greeting     string

	MemoryLimit       int
	BargeInMinRunes   int
	SummaryAfterTurns int

	NodeID int64

	WSPingInterval time.Duration
	WSWriteTimeout time.Duration

	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:       envOr("TESTCALL_ADDR", ":8080"),
		PublicHost: envOr("TESTCALL_PUBLIC_HOST", ""),

		LLMProvider: envOr("TESTCALL_LLM_PROVIDER", "openai"),
		LLMAPIKey:   envOr("TESTCALL_LLM_API_KEY", ""),
		LLMModel:    envOr("TESTCALL_LLM_MODEL", ""),

		DeepgramAPIKey: envOr("TESTCALL_DEEPGRAM_API_KEY", ""),
		DeepgramModel:  envOr("TESTCALL_DEEPGRAM_MODEL", "nova-2"),
		Language:       envOr("TESTCALL_LANGUAGE", ""),

		ElevenLabsAPIKey:  envOr("TESTCALL_ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID: envOr("TESTCALL_ELEVENLABS_VOICE_ID", ""),
		ElevenLabsModel:   envOr("TESTCALL_ELEVENLABS_MODEL", ""),

		DatabaseURL: envOr("TESTCALL_DATABASE_URL", ""),

		SystemPrompt: envOr("TESTCALL_SYSTEM_PROMPT", DefaultSystemPrompt),
		Greeting:     envOr("TESTCALL_GREETING", DefaultGreeting),

		MemoryLimit:       envIntOr("TESTCALL_MEMORY_LIMIT", 20),
		BargeInMinRunes:   envIntOr("TESTCALL_BARGE_IN_MIN_RUNES", 5),
		SummaryAfterTurns: envIntOr("TESTCALL_SUMMARY_AFTER_TURNS", 2),

		NodeID: envInt64Or("TESTCALL_NODE_ID", 1),

		WSPingInterval: envDurationOr("TESTCALL_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout: envDurationOr("TESTCALL_WS_WRITE_TIMEOUT", 5*time.Second),

		ReadHeaderTimeout:   envDurationOr("TESTCALL_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("TESTCALL_SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if strings.TrimSpace(cfg.PublicHost) == "" {
		return Config{}, fmt.Errorf("TESTCALL_PUBLIC_HOST must be set")
	}
	if strings.TrimSpace(cfg.LLMAPIKey) == "" {
		return Config{}, fmt.Errorf("TESTCALL_LLM_API_KEY must be set")
	}
	if strings.TrimSpace(cfg.DeepgramAPIKey) == "" {
		return Config{}, fmt.Errorf("TESTCALL_DEEPGRAM_API_KEY must be set")
	}
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
		return Config{}, fmt.Errorf("TESTCALL_ELEVENLABS_API_KEY must be set")
	}
	if strings.TrimSpace(cfg.ElevenLabsVoiceID) == "" {
		return Config{}, fmt.Errorf("TESTCALL_ELEVENLABS_VOICE_ID must be set")
	}
	if cfg.MemoryLimit <= 0 {
		return Config{}, fmt.Errorf("TESTCALL_MEMORY_LIMIT must be > 0")
	}
	if cfg.BargeInMinRunes <= 0 {
		return Config{}, fmt.Errorf("TESTCALL_BARGE_IN_MIN_RUNES must be > 0")
	}
	if cfg.SummaryAfterTurns <= 0 {
		return Config{}, fmt.Errorf("TESTCALL_SUMMARY_AFTER_TURNS must be > 0")
	}
	if cfg.NodeID < 0 || cfg.NodeID > 1023 {
		return Config{}, fmt.Errorf("TESTCALL_NODE_ID must be in [0, 1023]")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("TESTCALL_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("TESTCALL_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("TESTCALL_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("TESTCALL_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
