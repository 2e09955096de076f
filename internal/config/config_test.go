package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/manor-backend/internal/engine"
)

func TestInitConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, time.Duration(0), cfg.TurnTimeout)
	assert.Equal(t, engine.DefaultRules(), cfg.Rules())
	assert.Empty(t, cfg.DatabaseURL)
}

func TestInitConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app_config.json"),
		[]byte(`{"port": 9000, "key_mode": "chance", "key_chance": 0.5, "log_level": "debug"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("MANOR_TURN_TIMEOUT=45s\n"), 0o600))
	t.Setenv("MANOR_PORT", "9100")
	t.Setenv("MANOR_CORS_ORIGINS", "http://localhost:5173,https://manor.example")
	t.Cleanup(func() { os.Unsetenv("MANOR_TURN_TIMEOUT") })

	cfg, err := InitConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "env wins over the file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, engine.KeyModeChance, cfg.Rules().KeyMode)
	assert.InDelta(t, 0.5, cfg.KeyChance, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.TurnTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "https://manor.example"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() AppConfig {
		return AppConfig{Port: 8000, KeyMode: "hidden", KeyChance: 0.25, PowerOffer: 3}
	}

	cases := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{"valid", func(c *AppConfig) {}, false},
		{"unknown key mode", func(c *AppConfig) { c.KeyMode = "always" }, true},
		{"chance above one", func(c *AppConfig) { c.KeyChance = 1.5 }, true},
		{"power offer zero", func(c *AppConfig) { c.PowerOffer = 0 }, true},
		{"power offer above catalog", func(c *AppConfig) { c.PowerOffer = 6 }, true},
		{"bad port", func(c *AppConfig) { c.Port = 0 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
