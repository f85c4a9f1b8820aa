package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "VOICEMIND_SERVER_HOST", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
	},
	{
		env: "VOICEMIND_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "VOICEMIND_API_TOKEN", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
	},
	{
		env: "VOICEMIND_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "VOICEMIND_SPOOL_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.SpoolDir = v.(string) },
	},
	{
		env: "VOICEMIND_TRANSCRIBE_BACKEND", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Transcribe.Backend = v.(string) },
	},
	{
		env: "VOICEMIND_WHISPER_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Transcribe.WhisperURL = v.(string) },
	},
	{
		env: "VOICEMIND_WHISPER_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Transcribe.WhisperModel = v.(string) },
	},
	{
		env: "VOICEMIND_TRANSCRIBE_TIMEOUT", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Transcribe.Timeout = v.(string) },
	},
	{
		env: "VOICEMIND_ANSWER_BACKEND", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Answer.Backend = v.(string) },
	},
	{
		env: "VOICEMIND_OPENAI_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Answer.OpenAIURL = v.(string) },
	},
	{
		env: "VOICEMIND_OPENAI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Answer.OpenAIKey = v.(string) },
	},
	{
		env: "VOICEMIND_ANSWER_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Answer.Model = v.(string) },
	},
	{
		env: "VOICEMIND_OLLAMA_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Answer.OllamaURL = v.(string) },
	},
	{
		env: "VOICEMIND_OLLAMA_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Answer.OllamaModel = v.(string) },
	},
	{
		env: "VOICEMIND_ANSWER_TEMPERATURE", typ: kFloat,
		apply: func(cfg *Config, v any) { cfg.Answer.Temperature = v.(float64) },
	},
	{
		env: "VOICEMIND_ANSWER_MAX_TOKENS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Answer.MaxTokens = v.(int) },
	},
	{
		env: "VOICEMIND_ANSWER_TIMEOUT", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Answer.Timeout = v.(string) },
	},
	{
		env: "VOICEMIND_KAFKA_ENABLED", typ: kBool,
		apply: func(cfg *Config, v any) { cfg.Events.KafkaEnabled = v.(bool) },
	},
	{
		env: "VOICEMIND_KAFKA_BROKERS", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Events.KafkaBrokers = v.(string) },
	},
	{
		env: "VOICEMIND_KAFKA_TOPIC", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Events.KafkaTopic = v.(string) },
	},
	{
		env: "VOICEMIND_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
