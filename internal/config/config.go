// /internal/config/config.go
package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config holds all runtime options. Everything has a default so the bot can
// start with an empty environment; DISCORD_TOKEN is only required by the
// Discord entrypoint.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`
	AIProvider   string `env:"AI_PROVIDER" envDefault:"pollinations"`

	DataPath   string `env:"DATA_PATH" envDefault:"data/memory"`
	TablesPath string `env:"TABLES_PATH"`

	ContextBudget int `env:"CONTEXT_BUDGET" envDefault:"300"`
	RecentWindow  int `env:"RECENT_WINDOW" envDefault:"5"`
	ContextCap    int `env:"CONTEXT_CAP" envDefault:"15"`

	TierAcquaintance int `env:"TIER_ACQUAINTANCE" envDefault:"50"`
	TierFriend       int `env:"TIER_FRIEND" envDefault:"150"`
	TierClose        int `env:"TIER_CLOSE" envDefault:"500"`

	AutoSaveInterval time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"5m"`
	SaveDebounce     time.Duration `env:"SAVE_DEBOUNCE" envDefault:"2s"`

	MaxGenerateAttempts int `env:"MAX_GENERATE_ATTEMPTS" envDefault:"3"`
}

// New parses the environment. Invalid values are fatal: a misconfigured bot
// should not start.
func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("[CONFIG] parse environment: %v", err)
	}
	return cfg
}
