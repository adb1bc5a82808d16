package config

import (
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadTunablesDefaultsWhenMissing(t *testing.T) {
	tun, err := LoadTunables(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, 5, tun.Security.SpamThreshold)
	require.Equal(t, 5*time.Second, tun.Security.SpamWindow.Duration)
	require.Equal(t, 10*time.Second, tun.Tickets.GraceDelay.Duration)
	require.Equal(t, 72*time.Hour, tun.Tickets.IdleAfter.Duration)
	require.Equal(t, 0.05, tun.Affiliate.DiscountRate)
}

func TestLoadTunablesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storebot.toml")
	body := `
[security]
spam_threshold = 8
timeout_duration = "30m"

[tickets]
grace_delay = "3s"

[[payment]]
name = "qris"
title = "QRIS"
details = "Scan the code"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	tun, err := LoadTunables(path)
	require.NoError(t, err)
	require.Equal(t, 8, tun.Security.SpamThreshold)
	require.Equal(t, 30*time.Minute, tun.Security.TimeoutDuration.Duration)
	require.Equal(t, 3, tun.Security.WarningLimit)
	require.Equal(t, 3*time.Second, tun.Tickets.GraceDelay.Duration)

	pm, ok := tun.PaymentMethod("QRIS")
	require.True(t, ok)
	require.Equal(t, "Scan the code", pm.Details)
	_, ok = tun.PaymentMethod("paypal")
	require.False(t, ok)
}

func TestLoadTunablesRejectsBadRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storebot.toml")
	require.NoError(t, os.WriteFile(path, []byte("[affiliate]\ndiscount_rate = 1.5\n"), 0o644))
	_, err := LoadTunables(path)
	require.Error(t, err)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "none.toml"))
	_, err := Load()
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestLoadParsesEnvironment(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "none.toml"))
	t.Setenv("AUTHORIZED_USERS", " 111, 222 ,,")
	t.Setenv("TRUSTED_BUYER_THRESHOLD", "4")
	t.Setenv("DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"111", "222"}, cfg.AuthorizedUsers)
	require.True(t, cfg.IsAuthorized("222"))
	require.False(t, cfg.IsAuthorized("333"))
	require.Equal(t, 4, cfg.TrustedBuyerThreshold)
	require.Equal(t, "data", cfg.DataDir)
	require.False(t, cfg.Archive.Enabled())
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "none.toml"))
	t.Setenv("TRUSTED_BUYER_THRESHOLD", "zero")
	_, err := Load()
	require.Error(t, err)
}
