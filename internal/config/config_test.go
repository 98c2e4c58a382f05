package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envKeys lists every variable Load reads.
var envKeys = []string{
	"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
	"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "SWAGGER_ENABLED",
	"API_BASE_PATH", "DB_DRIVER", "DB_PATH", "DATABASE_URL", "JWT_SECRET", "JWT_TTL",
	"AUTH_DEV_HEADER", "NOTIFY_DRIVER", "NOTIFY_FROM", "SMTP_HOST", "SMTP_PORT",
	"SMTP_USERNAME", "SMTP_PASSWORD", "SMS_COUNTRY_CODE", "AWS_REGION", "S3_ENDPOINT",
	"S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_USE_PATH_STYLE", "PRESIGN_TTL",
	"PAGE_SIZE", "RATE_RPS", "RATE_BURST", "REDIS_ADDR", "CORS_ALLOWED_ORIGINS",
	"ENABLE_HSTS", "HSTS_MAX_AGE", "IDEMPOTENCY_TTL", "OTEL_ENABLED",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SERVICE_NAME",
	"OTEL_TRACES_SAMPLER_ARG",
}

// clearEnv blanks every key for the test; getenv treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, "/api/v1", cfg.APIBasePath)
	assert.Equal(t, DBConfig{Driver: "sqlite", Path: "adoption.db"}, cfg.DB)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.DevHeader)
	assert.Equal(t, "log", cfg.Notify.Driver)
	assert.Equal(t, "+1", cfg.Notify.SMSCountryCode)
	assert.Equal(t, time.Hour, cfg.S3.PresignTTL)
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, 6, cfg.PageSize)
	assert.Empty(t, cfg.RedisAddr)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, "go-adoption-backend", cfg.OTEL.ServiceName)
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	clearEnv(t)
	env := map[string]string{
		"PORT":                    "8088",
		"READ_TIMEOUT":            "2s",
		"MAX_HEADER_BYTES":        "8192",
		"GIN_MODE":                "weird",
		"LOG_LEVEL":               "warning",
		"LOG_PRETTY":              "yes",
		"SWAGGER_ENABLED":         "on",
		"API_BASE_PATH":           "api/v2/",
		"DB_DRIVER":               "PG",
		"DATABASE_URL":            "postgres://u:p@db:5432/adopt",
		"PAGE_SIZE":               "12",
		"JWT_SECRET":              "0123456789abcdef0123",
		"JWT_TTL":                 "2h",
		"AUTH_DEV_HEADER":         "true",
		"NOTIFY_DRIVER":           "SMTP",
		"SMTP_HOST":               "mail.local",
		"SMTP_PORT":               "2525",
		"NOTIFY_FROM":             "shelter@example.com",
		"AWS_REGION":              "eu-west-1",
		"S3_ENDPOINT":             "http://minio:9000",
		"S3_BUCKET":               "pets",
		"S3_USE_PATH_STYLE":       "off",
		"PRESIGN_TTL":             "15m",
		"RATE_RPS":                "2.5",
		"RATE_BURST":              "4",
		"REDIS_ADDR":              "redis:6379",
		"CORS_ALLOWED_ORIGINS":    " https://a.example , ,https://b.example ",
		"ENABLE_HSTS":             "1",
		"HSTS_MAX_AGE":            "1h",
		"IDEMPOTENCY_TTL":         "30m",
		"OTEL_ENABLED":            "true",
		"OTEL_SERVICE_NAME":       "adopt",
		"OTEL_TRACES_SAMPLER_ARG": "0.5",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 8192, cfg.MaxHeaderBytes)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.True(t, cfg.SwaggerEnabled)
	assert.Equal(t, "/api/v2", cfg.APIBasePath)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 12, cfg.PageSize)
	assert.Equal(t, AuthConfig{JWTSecret: "0123456789abcdef0123", TokenTTL: 2 * time.Hour, DevHeader: true}, cfg.Auth)
	assert.Equal(t, "smtp", cfg.Notify.Driver)
	assert.Equal(t, SMTPConfig{Host: "mail.local", Port: 2525}, cfg.Notify.SMTP)
	assert.Equal(t, "shelter@example.com", cfg.Notify.From)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, "pets", cfg.S3.Bucket)
	assert.False(t, cfg.S3.UsePathStyle)
	assert.Equal(t, 15*time.Minute, cfg.S3.PresignTTL)
	assert.InDelta(t, 2.5, cfg.RateRPS, 1e-9)
	assert.Equal(t, 4, cfg.RateBurst)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}, cfg.Security)
	assert.Equal(t, 30*time.Minute, cfg.IdempotencyTTL)
	assert.True(t, cfg.OTEL.Enabled)
	assert.Equal(t, "adopt", cfg.OTEL.ServiceName)
	assert.InDelta(t, 0.5, cfg.OTEL.SampleRatio, 1e-9)
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"timeouts", map[string]string{"WRITE_TIMEOUT": "-1s"}, "timeouts"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"db driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"postgres url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"jwt secret", map[string]string{"JWT_SECRET": "short"}, "JWT_SECRET"},
		{"jwt ttl", map[string]string{"JWT_TTL": "0s"}, "JWT_TTL"},
		{"notify driver", map[string]string{"NOTIFY_DRIVER": "pigeon"}, "NOTIFY_DRIVER"},
		{"smtp host", map[string]string{"NOTIFY_DRIVER": "smtp"}, "SMTP_HOST"},
		{"smtp port", map[string]string{"NOTIFY_DRIVER": "smtp", "SMTP_HOST": "h", "SMTP_PORT": "0"}, "SMTP_PORT"},
		{"presign ttl", map[string]string{"PRESIGN_TTL": "-1m"}, "PRESIGN_TTL"},
		{"page size", map[string]string{"PAGE_SIZE": "0"}, "PAGE_SIZE"},
		{"rate rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	clearEnv(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestMustLoad(t *testing.T) {
	clearEnv(t)
	assert.NotPanics(t, func() { _ = MustLoad() })

	t.Setenv("LOG_LEVEL", "verbose")
	assert.Panics(t, func() { _ = MustLoad() })
}

func TestHelpers_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_FLOAT", "1,5")
	t.Setenv("X_DUR", "5")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_EMPTY", "")

	assert.Equal(t, 7, getint("X_INT", 7))
	assert.InDelta(t, 0.3, getfloat("X_FLOAT", 0.3), 1e-9)
	assert.Equal(t, time.Minute, getdur("X_DUR", time.Minute))
	assert.True(t, getbool("X_BOOL", true))
	assert.Equal(t, "def", getenv("X_EMPTY", "def"))
	assert.Equal(t, "def", getenv("X_UNSET_FOR_TEST", "def"))
}

func TestHelpers_getbool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " y ", "on"} {
		t.Setenv("X_BOOL", v)
		assert.True(t, getbool("X_BOOL", false), v)
	}
	for _, v := range []string{"0", "false", "No", "n", "OFF"} {
		t.Setenv("X_BOOL", v)
		assert.False(t, getbool("X_BOOL", true), v)
	}
}

func TestHelpers_splitCSV_normalizeBasePath(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a,, b ,"))
	assert.Empty(t, splitCSV(" , "))

	for in, want := range map[string]string{
		"":          "/",
		"  ":        "/",
		"/":         "/",
		"api":       "/api",
		"/api/v1/":  "/api/v1",
		"api/v1///": "/api/v1",
	} {
		assert.Equal(t, want, normalizeBasePath(in), in)
	}
}
