package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophshare/internal/common"
	"github.com/spf13/pflag"
)

// RegisterFlags binds the fields of c to flags. c should already hold its
// defaults; they become the flag defaults shown in help.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&c.ConfigFile, "config", "c", c.ConfigFile, "path to a JSON config file")
	flags.StringVar(&c.EnvFile, "env-file", c.EnvFile, "path to a .env file")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: json or text")

	flags.StringVarP(&c.DatabaseDSN, "database-dsn", "d", c.DatabaseDSN, "PostgreSQL DSN")
	flags.StringVar(&c.BaseURL, "base-url", c.BaseURL, "public base URL of share links")

	flags.StringVar(&c.StorageBackend, "storage", c.StorageBackend, "blob storage backend: fs, s3 or minio")
	flags.StringVar(&c.StorageRoot, "storage-root", c.StorageRoot, "root directory of the fs backend")
	flags.StringVar(&c.S3RootUser, "s3-user", c.S3RootUser, "S3 access key")
	flags.StringVar(&c.S3RootPassword, "s3-password", c.S3RootPassword, "S3 secret key")
	flags.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "S3 bucket")
	flags.StringVar(&c.S3Region, "s3-region", c.S3Region, "S3 region")
	flags.StringVar(&c.S3BaseEndpoint, "s3-endpoint", c.S3BaseEndpoint, "S3 endpoint URL")
	flags.BoolVar(&c.S3UseSSL, "s3-ssl", c.S3UseSSL, "use TLS for the MinIO backend")

	flags.StringVar(&c.ThumbnailCache, "thumbnail-cache", c.ThumbnailCache, "thumbnail cache: redis, memory or none")
	flags.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address")
	flags.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	flags.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	flags.DurationVar(&c.ThumbnailTTL, "thumbnail-ttl", c.ThumbnailTTL, "lifetime of cached thumbnails")

	flags.DurationVar(&c.DefaultExpiration, "default-expiration", c.DefaultExpiration, "file lifetime when none is requested")
	flags.DurationVar(&c.MaxExpiration, "max-expiration", c.MaxExpiration, "upper bound of a requested file lifetime")

	flags.StringVar(&c.FallbackPassphrase, "fallback-passphrase", c.FallbackPassphrase, "passphrase keying embedded-mode files")
	flags.StringVar(&c.GrantSecret, "grant-secret", c.GrantSecret, "HMAC secret for access grants")
	flags.DurationVar(&c.GrantValidityDuration, "grant-validity", c.GrantValidityDuration, "lifetime of access grants")
}

// EnvName maps a flag name to its environment variable, e.g.
// "database-dsn" -> "GOPHSHARE_DATABASE_DSN".
func EnvName(flagName string) string {
	return common.EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

var lookupEnv = os.LookupEnv

// Resolve completes loading after flags were parsed into c: environment,
// then the JSON file, then the explicitly passed flags again on top.
func (c *Config) Resolve(flags *pflag.FlagSet) error {
	// Changed rather than Visit: cobra parses into a merged flag set that
	// shares *pflag.Flag values with this one.
	explicit := map[string]string{}
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			explicit[f.Name] = f.Value.String()
		}
	})

	env, err := envSource(c.EnvFile)
	if err != nil {
		return err
	}

	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if _, ok := explicit[f.Name]; ok {
			return
		}
		if v, ok := env(EnvName(f.Name)); ok {
			if err := flags.Set(f.Name, v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", EnvName(f.Name), err))
			}
		}
	})
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if c.ConfigFile != "" {
		if err := c.applyJSON(c.ConfigFile); err != nil {
			return err
		}
	}

	for name, v := range explicit {
		if err := flags.Set(name, v); err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
	}
	return c.Validate()
}

// Load builds a Config from args without cobra.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	flags := pflag.NewFlagSet("gophshare", pflag.ContinueOnError)
	cfg.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Resolve(flags); err != nil {
		return nil, err
	}
	return cfg, nil
}
