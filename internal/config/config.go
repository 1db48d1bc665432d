// Package config handles process configuration from environment variables
// and the two operator-editable YAML documents: the task document and the
// URL cleaning rule document.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Env holds process-level configuration read once at startup.
type Env struct {
	ConfigPath     string
	RulesPath      string
	CheckpointPath string
	StorageRoot    string
	ArchivePath    string
	LogLevel       string
	AdminAddr      string
	AdminToken     string
	BotToken       string
}

// LoadEnv reads configuration from environment variables.
func LoadEnv() (*Env, error) {
	env := &Env{
		ConfigPath:     getenv("DISPATCH_CONFIG", "config.yaml"),
		RulesPath:      getenv("DISPATCH_RULES", "rules.yaml"),
		CheckpointPath: getenv("DISPATCH_CHECKPOINT", "./data/checkpoint.json"),
		StorageRoot:    getenv("DISPATCH_STORAGE_ROOT", "./output"),
		ArchivePath:    getenv("DISPATCH_ARCHIVE_DB", "./data/archive.db"),
		LogLevel:       getenv("DISPATCH_LOG_LEVEL", "info"),
		AdminAddr:      getenv("DISPATCH_ADMIN_ADDR", ""),
		AdminToken:     getenv("DISPATCH_ADMIN_TOKEN", ""),
		BotToken:       getenv("TELEGRAM_BOT_TOKEN", ""),
	}

	if env.AdminAddr != "" && env.AdminToken == "" {
		return nil, fmt.Errorf("DISPATCH_ADMIN_TOKEN is required when the admin server is enabled")
	}
	return env, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseID parses a numeric source selector, tolerating negative chat ids.
func parseID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
