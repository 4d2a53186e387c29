package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotenv loads a .env file if one exists next to the process.
// Missing files are fine; the environment always wins over file contents.
func LoadDotenv() {
	_ = godotenv.Load()
}

// applyEnv lets the process environment override file-provided settings.
// Secrets in particular should come from here rather than the config file.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("FREEBOT_TELEGRAM_TOKEN")); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("FREEBOT_WEBHOOK_URL")); v != "" {
		c.Webhook.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("FREEBOT_COUNTRY")); v != "" {
		c.Catalog.Country = v
	}
	if v := strings.TrimSpace(os.Getenv("FREEBOT_CADENCE")); v != "" {
		c.Scheduler.Cadence = v
	}
	if v := strings.TrimSpace(os.Getenv("FREEBOT_STORAGE_PATH")); v != "" {
		c.Storage.Path = v
	}
}
