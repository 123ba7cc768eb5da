package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gemini    GeminiConfig
	Chat      ChatConfig
	StaticDir string
}

// Load parses the full configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	database, err := loadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	gemini, err := loadGeminiConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Database:  database,
		Gemini:    gemini,
		Chat:      chat,
		StaticDir: getEnvOrDefault("STATIC_DIR", "./frontend/build"),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3001"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":3001" or "127.0.0.1:3001" directly.
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value %q: %w", port, err)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// DatabaseConfig describes the Postgres backend.
type DatabaseConfig struct {
	URL string
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	url := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if url == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL environment variable must be set")
	}
	return DatabaseConfig{URL: url}, nil
}

// GeminiConfig describes the external generation service.
type GeminiConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func loadGeminiConfig() (GeminiConfig, error) {
	key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if key == "" {
		return GeminiConfig{}, fmt.Errorf("GEMINI_API_KEY environment variable must be set")
	}

	timeoutSeconds := 10
	if override, err := parseOptionalIntEnv("GEMINI_TIMEOUT_SECONDS"); err != nil {
		return GeminiConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	return GeminiConfig{
		URL:     getEnvOrDefault("GEMINI_API_URL", defaultGeminiURL),
		APIKey:  key,
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ChatConfig tunes message routing behavior.
type ChatConfig struct {
	GlobalRoom      bool
	HistoryLimit    int
	ContextLimit    int
	ResponseDelay   time.Duration
	BroadcastBuffer int
}

func loadChatConfig() (ChatConfig, error) {
	globalRoom, err := parseBoolEnv("GLOBAL_ROOM", false)
	if err != nil {
		return ChatConfig{}, err
	}

	cfg := ChatConfig{
		GlobalRoom:      globalRoom,
		HistoryLimit:    50,
		ContextLimit:    10,
		ResponseDelay:   time.Second,
		BroadcastBuffer: 100,
	}

	if v, err := parseOptionalIntEnv("HISTORY_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.HistoryLimit = *v
	}

	if v, err := parseOptionalIntEnv("CONTEXT_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.ContextLimit = *v
	}

	if v, err := parseOptionalIntEnv("RESPONSE_DELAY_MS"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v >= 0 {
		cfg.ResponseDelay = time.Duration(*v) * time.Millisecond
	}

	if v, err := parseOptionalIntEnv("BROADCAST_BUFFER"); err != nil {
		return ChatConfig{}, err
	} else if v != nil && *v > 0 {
		cfg.BroadcastBuffer = *v
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
