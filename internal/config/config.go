// Package config loads the environment-level defaults fcnetctl falls back
// to when a flag is not given: the nftables program override and the
// logger's level/format. This is the "configuration loading" external
// collaborator spec.md §1 keeps out of the core topology engines — they
// never import this package, only cmd/fcnetctl does.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the defaults fcnetctl reads before parsing flags.
type Config struct {
	// NftProgram overrides the nft binary path; empty resolves "nft" from
	// PATH (spec.md §3 "nft_program").
	NftProgram string

	LogLevel  string
	LogFormat string
}

// Load reads defaults from the environment, after loading an optional
// .env file (silently ignored if absent), following the teacher's
// internal/config.Load pattern.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		NftProgram: getEnv("FCNET_NFT_PROGRAM", ""),
		LogLevel:   getEnv("FCNET_LOG_LEVEL", "info"),
		LogFormat:  getEnv("FCNET_LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
