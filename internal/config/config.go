package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Transcribe TranscribeConfig
	Answer     AnswerConfig
	Events     EventsConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	APIToken string // empty disables bearer auth
}

type StorageConfig struct {
	DataDir  string
	SpoolDir string // raw chunk audio spool; empty disables file spooling
}

// TranscribeConfig selects and configures the speech-to-text backend.
// Backend is "whisper" (OpenAI-compatible HTTP API) or "google"
// (Cloud Speech-to-Text).
type TranscribeConfig struct {
	Backend      string
	WhisperURL   string
	WhisperModel string
	Timeout      string // duration string, e.g. "30s"
}

// AnswerConfig selects and configures the language-model backend used for
// summaries, agendas, and Q&A. Backend is "openai" or "ollama".
type AnswerConfig struct {
	Backend     string
	OpenAIURL   string
	OpenAIKey   string
	Model       string
	OllamaURL   string
	OllamaModel string
	Temperature float64
	MaxTokens   int
	Timeout     string
}

type EventsConfig struct {
	KafkaEnabled bool
	KafkaBrokers string // comma-separated
	KafkaTopic   string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Storage: StorageConfig{
			DataDir:  dataDir,
			SpoolDir: filepath.Join(dataDir, "chunks"),
		},
		Transcribe: TranscribeConfig{
			Backend:      "whisper",
			WhisperURL:   "https://api.openai.com/v1",
			WhisperModel: "whisper-1",
			Timeout:      "30s",
		},
		Answer: AnswerConfig{
			Backend:     "openai",
			OpenAIURL:   "https://api.openai.com/v1",
			Model:       "gpt-3.5-turbo",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llama3.1",
			Temperature: 0.7,
			MaxTokens:   500,
			Timeout:     "60s",
		},
		Events: EventsConfig{
			KafkaTopic: "voicemind.events",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "voicemind")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "voicemind-data"
	}
	return filepath.Join(home, ".local", "share", "voicemind")
}

// Load builds the configuration from defaults and VOICEMIND_* environment
// overrides. The OpenAI API key is required unless both the transcription
// and answering backends are configured away from OpenAI.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	needsKey := cfg.Transcribe.Backend == "whisper" || cfg.Answer.Backend == "openai"
	if needsKey && cfg.Answer.OpenAIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. Set it via environment variable VOICEMIND_OPENAI_API_KEY")
	}

	return cfg, nil
}
