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
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DOUBTD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.auth_enabled", typ: kBool, env: "DOUBTD_SERVER_AUTH_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Server.AuthEnabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.AuthEnabled },
	},
	{
		key: "answer.provider", typ: kString, env: "DOUBTD_ANSWER_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Answer.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.Provider },
	},
	{
		// The original credential name is kept so existing environments work.
		key: "answer.openai_api_key", typ: kString, env: "OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Answer.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.OpenAIAPIKey },
	},
	{
		key: "answer.openai_base_url", typ: kString, env: "DOUBTD_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Answer.OpenAIBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.OpenAIBaseURL },
	},
	{
		key: "answer.openai_model", typ: kString, env: "DOUBTD_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Answer.OpenAIModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.OpenAIModel },
	},
	{
		key: "answer.ollama_base_url", typ: kString, env: "DOUBTD_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Answer.OllamaBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.OllamaBaseURL },
	},
	{
		key: "answer.ollama_model", typ: kString, env: "DOUBTD_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Answer.OllamaModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.OllamaModel },
	},
	{
		key: "answer.timeout", typ: kString, env: "DOUBTD_ANSWER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Answer.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Answer.Timeout },
	},
	{
		key: "storage.backend", typ: kString, env: "DOUBTD_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DOUBTD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "DOUBTD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
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
		}
	}
}
