package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func noEnv(t *testing.T, env map[string]string) {
	t.Helper()
	old := lookupEnv
	lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = old })
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, StorageFS, c.StorageBackend)
	assert.Equal(t, ThumbnailCacheMemory, c.ThumbnailCache)
	assert.Equal(t, 24*time.Hour, c.DefaultExpiration)
	assert.Equal(t, 30*24*time.Hour, c.MaxExpiration)
	assert.Equal(t, 5*time.Minute, c.GrantValidityDuration)
	assert.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown backend", func(c *Config) { c.StorageBackend = "ftp" }, false},
		{"fs without root", func(c *Config) { c.StorageRoot = "" }, false},
		{"s3 without bucket", func(c *Config) { c.StorageBackend = StorageS3; c.S3Bucket = "" }, false},
		{"minio", func(c *Config) { c.StorageBackend = StorageMinio }, true},
		{"unknown cache", func(c *Config) { c.ThumbnailCache = "disk" }, false},
		{"relative base url", func(c *Config) { c.BaseURL = "share.example.com" }, false},
		{"ftp base url", func(c *Config) { c.BaseURL = "ftp://share.example.com" }, false},
		{"zero default expiration", func(c *Config) { c.DefaultExpiration = 0 }, false},
		{"max below default", func(c *Config) { c.MaxExpiration = time.Hour }, false},
		{"empty grant secret", func(c *Config) { c.GrantSecret = "" }, false},
		{"zero grant validity", func(c *Config) { c.GrantValidityDuration = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "GOPHSHARE_DATABASE_DSN", EnvName("database-dsn"))
	assert.Equal(t, "GOPHSHARE_S3_SSL", EnvName("s3-ssl"))
}

func TestLoad_DefaultsOnly(t *testing.T) {
	noEnv(t, nil)

	got, err := Load([]string{"--env-file", ""})
	require.NoError(t, err)

	want := defaults()
	want.EnvFile = ""
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FlagsOverride(t *testing.T) {
	noEnv(t, nil)

	got, err := Load([]string{
		"--env-file", "",
		"-d", "postgres://u:p@db/x",
		"--storage", "minio",
		"--thumbnail-ttl", "90m",
		"--redis-db", "3",
		"--s3-ssl",
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db/x", got.DatabaseDSN)
	assert.Equal(t, StorageMinio, got.StorageBackend)
	assert.Equal(t, 90*time.Minute, got.ThumbnailTTL)
	assert.Equal(t, 3, got.RedisDB)
	assert.True(t, got.S3UseSSL)
}

func TestLoad_EnvBelowFlags(t *testing.T) {
	noEnv(t, map[string]string{
		"GOPHSHARE_BASE_URL":     "https://env.example.com",
		"GOPHSHARE_GRANT_SECRET": "from-env",
		"GOPHSHARE_LOG_LEVEL":    "debug",
	})

	got, err := Load([]string{"--env-file", "", "--base-url", "https://flag.example.com"})
	require.NoError(t, err)

	assert.Equal(t, "https://flag.example.com", got.BaseURL)
	assert.Equal(t, "from-env", got.GrantSecret)
	assert.Equal(t, "debug", got.LogLevel)
}

func TestLoad_BadEnvValue(t *testing.T) {
	noEnv(t, map[string]string{"GOPHSHARE_REDIS_DB": "three"})

	_, err := Load([]string{"--env-file", ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOPHSHARE_REDIS_DB")
}

func TestLoad_EnvFile(t *testing.T) {
	noEnv(t, map[string]string{"GOPHSHARE_S3_BUCKET": "process-wins"})
	envFile := writeTemp(t, ".env", "GOPHSHARE_S3_BUCKET=file-bucket\nGOPHSHARE_S3_REGION=eu-west-1\n")

	got, err := Load([]string{"--env-file", envFile})
	require.NoError(t, err)

	assert.Equal(t, "process-wins", got.S3Bucket)
	assert.Equal(t, "eu-west-1", got.S3Region)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	noEnv(t, nil)

	_, err := Load([]string{"--env-file", filepath.Join(t.TempDir(), "absent.env")})
	assert.NoError(t, err)
}

func TestLoad_JSONBetweenEnvAndFlags(t *testing.T) {
	noEnv(t, map[string]string{"GOPHSHARE_STORAGE_ROOT": "/env/root"})
	cfgFile := writeTemp(t, "config.json", `{
		"storage_root": "/json/root",
		"default_expiration": "2h",
		"max_expiration": 86400000000000,
		"redis_db": 0,
		"s3_use_ssl": true,
		"grant_secret": "json-secret"
	}`)

	got, err := Load([]string{"--env-file", "", "-c", cfgFile, "--grant-secret", "flag-secret"})
	require.NoError(t, err)

	assert.Equal(t, "/json/root", got.StorageRoot)
	assert.Equal(t, 2*time.Hour, got.DefaultExpiration)
	assert.Equal(t, 24*time.Hour, got.MaxExpiration)
	assert.True(t, got.S3UseSSL)
	assert.Equal(t, "flag-secret", got.GrantSecret)
}

func TestLoad_JSONErrors(t *testing.T) {
	noEnv(t, nil)

	_, err := Load([]string{"--env-file", "", "-c", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	bad := writeTemp(t, "bad.json", `{"default_expiration": "soon"}`)
	_, err = Load([]string{"--env-file", "", "-c", bad})
	assert.Error(t, err)
}

func TestLoad_InvalidResult(t *testing.T) {
	noEnv(t, nil)

	_, err := Load([]string{"--env-file", "", "--storage", "tape"})
	assert.Error(t, err)
}

func TestRegisterFlags_DefaultsFromConfig(t *testing.T) {
	c := defaults()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.RegisterFlags(flags)

	f := flags.Lookup("grant-validity")
	require.NotNil(t, f)
	assert.Equal(t, "5m0s", f.DefValue)

	short := flags.ShorthandLookup("c")
	require.NotNil(t, short)
	assert.Equal(t, "config", short.Name)
}
