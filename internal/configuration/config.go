package configuration

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"

	"scoutloot/internal/logger"
)

type Config struct {
	ServerAddress             string
	DatabaseURI               string
	RedisAddress              string
	RatesAPIURL               string
	RateCacheTTL              time.Duration
	TransportURL              string
	TransportKey              string
	IngestKey                 string
	SiteURL                   string
	SuppressionWindow         time.Duration
	ReminderDelay             time.Duration
	ReminderDiscountThreshold float64
	TokenValidity             time.Duration
	DigestCron                string
	SweepCron                 string
	PruneRetention            time.Duration
	LogLevel                  logger.Level
	LogToFile                 bool
	AuthSecretKey             jwk.Key
}

type tomlConfig struct {
	ServerAddress             string  `toml:"server_address"`
	DatabaseURI               string  `toml:"database_uri"`
	RedisAddress              string  `toml:"redis_address"`
	RatesAPIURL               string  `toml:"rates_api_url"`
	RateCacheTTL              string  `toml:"rate_cache_ttl"`
	TransportURL              string  `toml:"transport_url"`
	TransportKey              string  `toml:"transport_key"`
	IngestKey                 string  `toml:"ingest_key"`
	SiteURL                   string  `toml:"site_url"`
	SuppressionWindow         string  `toml:"suppression_window"`
	ReminderDelay             string  `toml:"reminder_delay"`
	ReminderDiscountThreshold float64 `toml:"reminder_discount_threshold"`
	TokenValidity             string  `toml:"token_validity"`
	DigestCron                string  `toml:"digest_cron"`
	SweepCron                 string  `toml:"sweep_cron"`
	PruneRetention            string  `toml:"prune_retention"`
	LogLevel                  string  `toml:"log_level"`
	LogToFile                 bool    `toml:"log_to_file"`
	AuthSecretKey             string  `toml:"auth_secret_key"`
}

func parseDuration(raw string, name string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s: %s", name, raw)
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be positive, got: %v", name, d)
	}
	return d, nil
}

func GetConfig(path string) (*Config, error) {
	var tc tomlConfig
	_, err := toml.DecodeFile(path, &tc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode toml file with path: %s", path)
	}

	if tc.ServerAddress == "" {
		tc.ServerAddress = "localhost:8888"
	}
	if tc.DatabaseURI == "" {
		tc.DatabaseURI = "mongodb://localhost:27017"
	}
	if tc.RedisAddress == "" {
		tc.RedisAddress = "localhost:6379"
	}
	if tc.RatesAPIURL == "" {
		return nil, errors.New("rates_api_url is not set")
	}
	if tc.TransportURL == "" {
		return nil, errors.New("transport_url is not set")
	}
	if tc.IngestKey == "" {
		return nil, errors.New("ingest_key is not set")
	}
	if tc.SiteURL == "" {
		tc.SiteURL = "https://scoutloot.com"
	}

	rateCacheTTL, err := parseDuration(tc.RateCacheTTL, "rate_cache_ttl", 1*time.Hour)
	if err != nil {
		return nil, err
	}
	suppressionWindow, err := parseDuration(tc.SuppressionWindow, "suppression_window", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	reminderDelay, err := parseDuration(tc.ReminderDelay, "reminder_delay", 72*time.Hour)
	if err != nil {
		return nil, err
	}
	tokenValidity, err := parseDuration(tc.TokenValidity, "token_validity", 1*time.Hour)
	if err != nil {
		return nil, err
	}
	pruneRetention, err := parseDuration(tc.PruneRetention, "prune_retention", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	if pruneRetention < suppressionWindow || pruneRetention < 7*24*time.Hour {
		return nil, errors.Errorf(
			"prune_retention too short (%v), must cover the suppression window and the 7 day digest lookback",
			pruneRetention)
	}

	if tc.ReminderDiscountThreshold == 0 {
		tc.ReminderDiscountThreshold = 0.20
	}
	if tc.ReminderDiscountThreshold <= 0 || tc.ReminderDiscountThreshold >= 1 {
		return nil, errors.Errorf("reminder_discount_threshold must be in (0, 1), got: %v", tc.ReminderDiscountThreshold)
	}

	if tc.DigestCron == "" {
		// Sunday evening UTC.
		tc.DigestCron = "0 17 * * 0"
	}
	if tc.SweepCron == "" {
		tc.SweepCron = "30 * * * *"
	}

	if tc.LogLevel == "" {
		tc.LogLevel = "INFO"
	}
	logLevel, err := logger.ParseLevel(tc.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse log_level")
	}

	if tc.AuthSecretKey == "" {
		return nil, errors.New("auth_secret_key is not set")
	}
	authSecretKey, err := jwk.FromRaw([]byte(tc.AuthSecretKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create key from auth_secret_key")
	}

	return &Config{
		ServerAddress:             tc.ServerAddress,
		DatabaseURI:               tc.DatabaseURI,
		RedisAddress:              tc.RedisAddress,
		RatesAPIURL:               tc.RatesAPIURL,
		RateCacheTTL:              rateCacheTTL,
		TransportURL:              tc.TransportURL,
		TransportKey:              tc.TransportKey,
		IngestKey:                 tc.IngestKey,
		SiteURL:                   tc.SiteURL,
		SuppressionWindow:         suppressionWindow,
		ReminderDelay:             reminderDelay,
		ReminderDiscountThreshold: tc.ReminderDiscountThreshold,
		TokenValidity:             tokenValidity,
		DigestCron:                tc.DigestCron,
		SweepCron:                 tc.SweepCron,
		PruneRetention:            pruneRetention,
		LogLevel:                  logLevel,
		LogToFile:                 tc.LogToFile,
		AuthSecretKey:             authSecretKey,
	}, nil
}
