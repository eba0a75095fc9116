package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	EZIDBaseURL string
	Username    string
	Password    string
	Shoulder    string

	DatabaseURL string

	// Publisher is the institution name filled into dc.publisher when a
	// metadata source omits it. Owner scopes console searches.
	Publisher string
	Owner     string

	// OutFile, when set, receives an appended audit line for every mint or
	// update. DownloadDir is where bulk-export files land.
	OutFile     string
	DownloadDir string

	LogLevel  string
	PrettyLog bool
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		EZIDBaseURL: getEnv("EZID_BASE_URL", "https://ezid.cdlib.org"),
		Username:    getEnv("EZID_USERNAME", ""),
		Password:    getEnv("EZID_PASSWORD", ""),
		Shoulder:    getEnv("EZID_SHOULDER", ""),
		DatabaseURL: getEnv("DATABASE_URL", "file:arks.sqlite"),
		Publisher:   getEnv("ARKMINT_PUBLISHER", "University Library"),
		Owner:       getEnv("ARKMINT_OWNER", ""),
		OutFile:     getEnv("ARKMINT_OUT_FILE", ""),
		DownloadDir: getEnv("ARKMINT_DOWNLOAD_DIR", "."),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		PrettyLog:   getEnv("PRETTY_LOG", "true") == "true",
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
