package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: {}\n"), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "memory", cfg.Storage.Cache)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, "surf_rules_changed", cfg.Listener.Channel)
	assert.Equal(t, "1H", cfg.Surf.Schedule.Interval)
	assert.Equal(t, "today", cfg.Surf.Period)

	m := cfg.MetaHTTP()
	assert.Equal(t, 100*time.Millisecond, m.Spacing)
	assert.Equal(t, 3, m.Attempts)
	assert.Equal(t, time.Second, m.BaseDelay)
	assert.Equal(t, time.Minute, m.RetryAfter)
}

func TestLoadFrom_File(t *testing.T) {
	content := `
server:
  addr: ":9090"
postgres:
  host: db
  user: surf
  password: secret
  db_name: surfscale
storage:
  driver: postgres
  cache: redis
surf:
  apply_budgets: true
  schedule:
    interval: CUSTOM
    custom_hours: [9, 13, 17]
  accounts:
    - id: acc-1
      name: Shop
      is_active: true
      data_sources:
        meta:
          enabled: true
          ad_account_id: act_1
          access_token: tok
        triple_whale:
          enabled: true
          api_key: key
          store_id: shop.myshopify.com
    - id: acc-2
      ad_account_id: act_2
`
	path := filepath.Join(t.TempDir(), "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://surf:secret@db:5432/surfscale?sslmode=disable", cfg.DSN())
	assert.Equal(t, "redis", cfg.Storage.Cache)
	assert.True(t, cfg.Surf.ApplyBudgets)
	assert.Equal(t, []int{9, 13, 17}, cfg.Surf.Schedule.CustomHours)

	require.Len(t, cfg.Surf.Accounts, 2)
	a := cfg.Surf.Accounts[0]
	require.NotNil(t, a.DataSources)
	assert.True(t, a.DataSources.MetaEnabled())
	assert.Equal(t, "act_1", a.DataSources.Meta.AdAccountID)
	assert.Equal(t, "shop.myshopify.com", a.DataSources.TripleWhale.StoreID)
	assert.Equal(t, "act_2", cfg.Surf.Accounts[1].LegacyAdAccountID)
}

func TestLoadFrom_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))
	t.Setenv("APP_SERVER_ADDR", ":7070")
	t.Setenv("APP_STORAGE_DRIVER", "postgres")
	t.Setenv("APP_SERVER_LOG_FORMAT", "json")
	t.Setenv("APP_META_MAX_ATTEMPTS", "1")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "json", cfg.Server.LogFormat)
	assert.Equal(t, 1, cfg.MetaHTTP().Attempts)
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
