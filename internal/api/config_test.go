package api

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig_DefaultsWhenEnvUnset(t *testing.T) {
	cfg := LoadServerConfig()

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadServerConfig_ReadsEnvironmentOverrides(t *testing.T) {
	t.Setenv("TRAINHUB_PORT", "9090")
	t.Setenv("TRAINHUB_HOST", "127.0.0.1")
	t.Setenv("TRAINHUB_READ_TIMEOUT", "5s")
	t.Setenv("TRAINHUB_LOG_LEVEL", "debug")
	t.Setenv("TRAINHUB_CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test")

	cfg := LoadServerConfig()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
}

func TestLoadServerConfig_InvalidPortFallsBackToDefault(t *testing.T) {
	t.Setenv("TRAINHUB_PORT", "not-a-number")

	cfg := LoadServerConfig()

	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoadServerConfig_OutOfRangePortFallsBackToDefault(t *testing.T) {
	t.Setenv("TRAINHUB_PORT", "99999")

	cfg := LoadServerConfig()

	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestServerConfig_ToCORSConfig(t *testing.T) {
	cfg := ServerConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET"},
		CORSAllowedHeaders: []string{"Content-Type"},
		CORSMaxAge:         100,
	}

	cors := cfg.ToCORSConfig()

	assert.Equal(t, []string{"*"}, cors.GetAllowedOrigins())
	assert.Equal(t, []string{"GET"}, cors.GetAllowedMethods())
	assert.Equal(t, []string{"Content-Type"}, cors.GetAllowedHeaders())
	assert.Equal(t, 100, cors.GetMaxAge())
}

func TestServerConfig_Validate(t *testing.T) {
	valid := ServerConfig{
		Port:            8080,
		Host:            "0.0.0.0",
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		want   error
	}{
		{"bad port", func(c *ServerConfig) { c.Port = 0 }, ErrInvalidPort},
		{"port too large", func(c *ServerConfig) { c.Port = MaxPort + 1 }, ErrInvalidPort},
		{"empty host", func(c *ServerConfig) { c.Host = "" }, ErrEmptyHost},
		{"bad read timeout", func(c *ServerConfig) { c.ReadTimeout = 0 }, ErrInvalidReadTimeout},
		{"bad write timeout", func(c *ServerConfig) { c.WriteTimeout = 0 }, ErrInvalidWriteTimeout},
		{"bad shutdown timeout", func(c *ServerConfig) { c.ShutdownTimeout = 0 }, ErrInvalidShutdownTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseLogLevel_IsCaseInsensitive(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("Error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}

func TestParseCommaSeparatedList_TrimsAndDropsEmpties(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, parseCommaSeparatedList(" a ,b,  c "))
	assert.Equal(t, []string{}, parseCommaSeparatedList(""))
}
