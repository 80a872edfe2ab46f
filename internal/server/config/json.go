package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophshare/internal/timex"
)

// JSONConfig is the on-disk shape of the config file. Only the fields that
// are present override the current values.
type JSONConfig struct {
	LogLevel              string         `json:"log_level"`
	LogFormat             string         `json:"log_format"`
	DatabaseDSN           string         `json:"database_dsn"`
	BaseURL               string         `json:"base_url"`
	StorageBackend        string         `json:"storage_backend"`
	StorageRoot           string         `json:"storage_root"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	S3UseSSL              *bool          `json:"s3_use_ssl"`
	ThumbnailCache        string         `json:"thumbnail_cache"`
	RedisAddr             string         `json:"redis_addr"`
	RedisDB               *int           `json:"redis_db"`
	RedisPassword         string         `json:"redis_password"`
	ThumbnailTTL          timex.Duration `json:"thumbnail_ttl"`
	DefaultExpiration     timex.Duration `json:"default_expiration"`
	MaxExpiration         timex.Duration `json:"max_expiration"`
	FallbackPassphrase    string         `json:"fallback_passphrase"`
	GrantSecret           string         `json:"grant_secret"`
	GrantValidityDuration timex.Duration `json:"grant_validity_duration"`
}

func (c *Config) applyJSON(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var j JSONConfig
	if err := json.Unmarshal(b, &j); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.LogLevel, j.LogLevel)
	setString(&c.LogFormat, j.LogFormat)
	setString(&c.DatabaseDSN, j.DatabaseDSN)
	setString(&c.BaseURL, j.BaseURL)
	setString(&c.StorageBackend, j.StorageBackend)
	setString(&c.StorageRoot, j.StorageRoot)
	setString(&c.S3RootUser, j.S3RootUser)
	setString(&c.S3RootPassword, j.S3RootPassword)
	setString(&c.S3Bucket, j.S3Bucket)
	setString(&c.S3Region, j.S3Region)
	setString(&c.S3BaseEndpoint, j.S3BaseEndpoint)
	if j.S3UseSSL != nil {
		c.S3UseSSL = *j.S3UseSSL
	}
	setString(&c.ThumbnailCache, j.ThumbnailCache)
	setString(&c.RedisAddr, j.RedisAddr)
	if j.RedisDB != nil {
		c.RedisDB = *j.RedisDB
	}
	setString(&c.RedisPassword, j.RedisPassword)
	setDuration(&c.ThumbnailTTL, j.ThumbnailTTL)
	setDuration(&c.DefaultExpiration, j.DefaultExpiration)
	setDuration(&c.MaxExpiration, j.MaxExpiration)
	setString(&c.FallbackPassphrase, j.FallbackPassphrase)
	setString(&c.GrantSecret, j.GrantSecret)
	setDuration(&c.GrantValidityDuration, j.GrantValidityDuration)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
