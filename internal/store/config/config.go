package config

import (
	"os"
	"strings"
)

type Config struct {
	Port        string
	LogLevel    string
	DatabaseURL string
	AuthToken   string
	PhotoDir    string
	S3Bucket    string
	S3Region    string
	PublicURL   string
}

func Load() Config {
	cfg := Config{
		Port:        envOrDefault("FIELDSTORE_PORT", "8090"),
		LogLevel:    envOrDefault("FIELDSTORE_LOG_LEVEL", "info"),
		DatabaseURL: envOrDefault("FIELDSTORE_DATABASE_URL", "file:fieldstore.db"),
		AuthToken:   strings.TrimSpace(os.Getenv("FIELDSTORE_AUTH_TOKEN")),
		PhotoDir:    envOrDefault("FIELDSTORE_PHOTO_DIR", "photos"),
		S3Bucket:    strings.TrimSpace(os.Getenv("FIELDSTORE_S3_BUCKET")),
		S3Region:    envOrDefault("FIELDSTORE_S3_REGION", "us-east-1"),
		PublicURL:   strings.TrimRight(envOrDefault("FIELDSTORE_PUBLIC_URL", "http://localhost:8090"), "/"),
	}
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		cfg.Port = p
	}
	return cfg
}

func (c Config) UseS3() bool { return c.S3Bucket != "" }

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}
