package config

import (
	"fmt"
	"os"
)

// Config is the full environment surface of the bot. Channel ids are
// Slack channel ids, not names.
type Config struct {
	BotToken      string
	SigningSecret string

	// StagingChannel receives the moderation queue; Confessions is the
	// public audience, Meta the secondary audience, ConfessionsMeta the
	// reviewers' discussion channel.
	StagingChannel      string
	ConfessionsChannel  string
	MetaChannel         string
	ConfessionsMetaChan string

	// LogChannel, when set, receives a copy of undo audit notes.
	LogChannel string

	DatabaseURL string
	Port        string
	CORSOrigin  string
	AdminToken  string

	// ForwardBaseURL overrides the scheme+host used when re-posting a
	// request to its _work endpoint. Empty means https://<request host>.
	ForwardBaseURL string
}

func require(name string) (string, error) {
	val := os.Getenv(name)
	if val == "" {
		return "", fmt.Errorf("required environment variable %s is not set", name)
	}
	return val, nil
}

// Load reads the configuration from the environment. Callers are
// expected to have run godotenv.Load first.
func Load() (*Config, error) {
	cfg := &Config{
		LogChannel:     os.Getenv("LOG_CHANNEL_ID"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Port:           os.Getenv("PORT"),
		CORSOrigin:     os.Getenv("CORS_ORIGIN"),
		AdminToken:     os.Getenv("X_ADMIN_TOKEN"),
		ForwardBaseURL: os.Getenv("FORWARD_BASE_URL"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	var err error
	if cfg.BotToken, err = require("SLACK_BOT_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.SigningSecret, err = require("SLACK_SIGNING_SECRET"); err != nil {
		return nil, err
	}
	if cfg.StagingChannel, err = require("STAGING_CHANNEL_ID"); err != nil {
		return nil, err
	}
	if cfg.ConfessionsChannel, err = require("CONFESSIONS_CHANNEL_ID"); err != nil {
		return nil, err
	}
	if cfg.MetaChannel, err = require("META_CHANNEL_ID"); err != nil {
		return nil, err
	}
	if cfg.ConfessionsMetaChan, err = require("CONFESSIONS_META_CHANNEL_ID"); err != nil {
		return nil, err
	}
	return cfg, nil
}
