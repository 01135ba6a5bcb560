package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "https://secure.octo.uz", cfg.Octo.APIBase)
	assert.Equal(t, "UZS", cfg.Octo.Currency)
	assert.True(t, cfg.Octo.AutoCapture)
	assert.Equal(t, 20*time.Second, cfg.Octo.Timeout)
	assert.Equal(t, 50, cfg.Order.MaxQtyPerItem)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SLIPPERS_OCTO_SHOP_ID", "1234")
	t.Setenv("SLIPPERS_SERVER_PORT", "9090")
	t.Setenv("SLIPPERS_RATE_LIMIT_WINDOW", "30s")
	t.Setenv("SLIPPERS_OCTO_TEST", "true")
	t.Setenv("SLIPPERS_DATABASE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1234", cfg.Octo.ShopID)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.Octo.Test)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestOctoConfig_Missing(t *testing.T) {
	missing := OctoConfig{ShopID: "1"}.Missing()
	assert.Equal(t, []string{"octo.secret", "octo.return_url", "octo.notify_url"}, missing)

	full := OctoConfig{ShopID: "1", Secret: "s", ReturnURL: "r", NotifyURL: "n"}
	assert.Empty(t, full.Missing())
}
