package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	// PrometheusBind, when set, serves /metrics on its own listener;
	// when empty the metrics handler rides on the main API mux.
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// GeminiConfig holds the shared credential and endpoint used by both remote
// model calls. An empty APIKey is not a load-time error: the clients surface
// it as a configuration failure at request time.
type GeminiConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

type SummarizerConfig struct {
	Mode        string  `yaml:"mode"` // mock, gemini, exec
	Model       string  `yaml:"model"`
	Command     string  `yaml:"command"`
	MinWords    int     `yaml:"min_words"`
	MaxWords    int     `yaml:"max_words"`
	Temperature float64 `yaml:"temperature"`
}

type SynthConfig struct {
	Mode       string `yaml:"mode"` // mock, gemini, exec
	Model      string `yaml:"model"`
	Command    string `yaml:"command"`
	Voice      string `yaml:"voice"`
	SampleRate int    `yaml:"sample_rate"`
}

type QueueConfig struct {
	MaxItems       int  `yaml:"max_items"`
	AutoGenerate   bool `yaml:"auto_generate"`
	AutoGenerateMS int  `yaml:"auto_generate_debounce_ms"`
}

type PlaybackConfig struct {
	ProgressIntervalMS int `yaml:"progress_interval_ms"`
	FrameDurationMS    int `yaml:"frame_duration_ms"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRuns       int    `yaml:"max_runs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Gemini      GeminiConfig     `yaml:"gemini"`
	Summarizer  SummarizerConfig `yaml:"summarizer"`
	Synth       SynthConfig      `yaml:"synth"`
	Queue       QueueConfig      `yaml:"queue"`
	Playback    PlaybackConfig   `yaml:"playback"`
	History     HistoryConfig    `yaml:"history"`
}

// Voices supported by the synthesis backend.
var Voices = []string{"Kore", "Puck", "Fenrir", "Charon", "Zephyr"}

func Default() Config {
	return Config{
		RuntimeName: "briefing-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Gemini: GeminiConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta",
		},
		Summarizer: SummarizerConfig{
			Mode:        "gemini",
			Model:       "gemini-2.5-flash",
			MinWords:    300,
			MaxWords:    500,
			Temperature: 0.7,
		},
		Synth: SynthConfig{
			Mode:       "gemini",
			Model:      "gemini-2.5-flash-preview-tts",
			Voice:      "Kore",
			SampleRate: 24000,
		},
		Queue: QueueConfig{
			MaxItems:       50,
			AutoGenerate:   false,
			AutoGenerateMS: 1500,
		},
		Playback: PlaybackConfig{
			ProgressIntervalMS: 100,
			FrameDurationMS:    20,
		},
		History: HistoryConfig{
			Path:          "./data/briefing-history.db",
			RetentionDays: 30,
			MaxRuns:       10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "BRIEFING_RUNTIME_NAME")
	overrideString(&cfg.Environment, "BRIEFING_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "BRIEFING_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "BRIEFING_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "BRIEFING_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "BRIEFING_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "BRIEFING_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "BRIEFING_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "BRIEFING_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "BRIEFING_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "BRIEFING_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "BRIEFING_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "BRIEFING_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "BRIEFING_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "BRIEFING_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "BRIEFING_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	overrideString(&cfg.Gemini.APIKey, "BRIEFING_GEMINI_API_KEY")
	overrideString(&cfg.Gemini.Endpoint, "BRIEFING_GEMINI_ENDPOINT")
	overrideString(&cfg.Summarizer.Mode, "BRIEFING_SUMMARIZER_MODE")
	overrideString(&cfg.Summarizer.Model, "BRIEFING_SUMMARIZER_MODEL")
	overrideString(&cfg.Summarizer.Command, "BRIEFING_SUMMARIZER_COMMAND")
	overrideInt(&cfg.Summarizer.MinWords, "BRIEFING_SUMMARIZER_MIN_WORDS")
	overrideInt(&cfg.Summarizer.MaxWords, "BRIEFING_SUMMARIZER_MAX_WORDS")
	overrideFloat(&cfg.Summarizer.Temperature, "BRIEFING_SUMMARIZER_TEMPERATURE")
	overrideString(&cfg.Synth.Mode, "BRIEFING_SYNTH_MODE")
	overrideString(&cfg.Synth.Model, "BRIEFING_SYNTH_MODEL")
	overrideString(&cfg.Synth.Command, "BRIEFING_SYNTH_COMMAND")
	overrideString(&cfg.Synth.Voice, "BRIEFING_SYNTH_VOICE")
	overrideInt(&cfg.Synth.SampleRate, "BRIEFING_SYNTH_SAMPLE_RATE")
	overrideInt(&cfg.Queue.MaxItems, "BRIEFING_QUEUE_MAX_ITEMS")
	overrideBool(&cfg.Queue.AutoGenerate, "BRIEFING_QUEUE_AUTO_GENERATE")
	overrideInt(&cfg.Queue.AutoGenerateMS, "BRIEFING_QUEUE_AUTO_GENERATE_DEBOUNCE_MS")
	overrideInt(&cfg.Playback.ProgressIntervalMS, "BRIEFING_PLAYBACK_PROGRESS_INTERVAL_MS")
	overrideInt(&cfg.Playback.FrameDurationMS, "BRIEFING_PLAYBACK_FRAME_DURATION_MS")
	overrideString(&cfg.History.Path, "BRIEFING_HISTORY_PATH")
	overrideInt(&cfg.History.RetentionDays, "BRIEFING_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxRuns, "BRIEFING_HISTORY_MAX_RUNS")
	overrideBool(&cfg.History.VacuumOnStart, "BRIEFING_HISTORY_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// ValidVoice reports whether name is one of the supported synthesis voices.
func ValidVoice(name string) bool {
	for _, v := range Voices {
		if v == name {
			return true
		}
	}
	return false
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Summarizer.Mode {
	case "mock", "gemini", "exec":
	default:
		return errors.New("summarizer.mode must be one of mock|gemini|exec")
	}
	if cfg.Summarizer.Mode == "gemini" && cfg.Gemini.Endpoint == "" {
		return errors.New("gemini.endpoint must be set when summarizer.mode=gemini")
	}
	if cfg.Summarizer.Mode == "exec" && cfg.Summarizer.Command == "" {
		return errors.New("summarizer.command must be set when mode=exec")
	}
	if cfg.Summarizer.MinWords <= 0 || cfg.Summarizer.MaxWords < cfg.Summarizer.MinWords {
		return errors.New("summarizer word bounds must satisfy 0 < min_words <= max_words")
	}
	switch cfg.Synth.Mode {
	case "mock", "gemini", "exec":
	default:
		return errors.New("synth.mode must be one of mock|gemini|exec")
	}
	if cfg.Synth.Mode == "gemini" && cfg.Gemini.Endpoint == "" {
		return errors.New("gemini.endpoint must be set when synth.mode=gemini")
	}
	if cfg.Synth.Mode == "exec" && cfg.Synth.Command == "" {
		return errors.New("synth.command must be set when mode=exec")
	}
	if !ValidVoice(cfg.Synth.Voice) {
		return fmt.Errorf("synth.voice must be one of %s", strings.Join(Voices, "|"))
	}
	if cfg.Synth.SampleRate <= 0 {
		return errors.New("synth.sample_rate must be positive")
	}
	if cfg.Queue.MaxItems <= 0 {
		return errors.New("queue.max_items must be positive")
	}
	if cfg.Queue.AutoGenerate && cfg.Queue.AutoGenerateMS <= 0 {
		return errors.New("queue.auto_generate_debounce_ms must be positive when auto_generate is enabled")
	}
	if cfg.Playback.ProgressIntervalMS <= 0 {
		return errors.New("playback.progress_interval_ms must be positive")
	}
	if cfg.Playback.FrameDurationMS <= 0 {
		return errors.New("playback.frame_duration_ms must be positive")
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}
