package config

import "strings"

const keychainService = "doubtd"

type Config struct {
	Server  ServerConfig
	Answer  AnswerConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port        int
	AuthEnabled bool
}

type AnswerConfig struct {
	Provider string // "openai" or "ollama"

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	OllamaBaseURL string
	OllamaModel   string

	// Timeout bounds a single generation call, as a time.ParseDuration
	// string. Empty or invalid values fall back to the default at use site.
	Timeout string
}

type StorageConfig struct {
	Backend string // "memory" or "sqlite"
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        5000,
			AuthEnabled: false,
		},
		Answer: AnswerConfig{
			Provider:      "openai",
			OpenAIModel:   "gpt-4o",
			OllamaBaseURL: "http://localhost:11434",
			OllamaModel:   "llama3.1",
			Timeout:       "60s",
		},
		Storage: StorageConfig{
			Backend: "memory",
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.doubtd.app) and secrets
// fall back to macOS Keychain. On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/doubtd/config.json and secrets live in a JSON file under
// the data dir.
//
// Environment variables (DOUBTD_*, plus OPENAI_API_KEY for the credential)
// override backend values on all platforms. A missing API key is not an
// error here: the answer generator reports it per request.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store reads for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for the API key if still empty.
	if cfg.Answer.OpenAIAPIKey == "" {
		if key, err := kc.Get(keychainService, "openai_api_key"); err == nil && key != "" {
			cfg.Answer.OpenAIAPIKey = key
		}
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
