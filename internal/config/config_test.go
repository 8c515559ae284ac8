package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carton.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
store: memory
session:
  ttl: 30m
cart:
  session_key: BASKET
  remove_stale_items: false
  pricing: volume
  discount_rate: "0.2"
`), 0o600))

	t.Setenv("CARTON_CONFIG", path)
	t.Setenv("PORT", "9100")
	t.Setenv("CART_REMOVE_STALE_ITEMS", "true")

	cfg, err := Load("8083")
	require.NoError(t, err)

	require.Equal(t, "9100", cfg.Port)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, 30*time.Minute, cfg.Session.TTL)
	require.Equal(t, "BASKET", cfg.Cart.SessionKey)
	require.True(t, cfg.Cart.RemoveStaleItems)
	require.Equal(t, PricingVolume, cfg.Cart.Pricing)
	require.Equal(t, "0.2", cfg.Cart.DiscountRate)
	require.Equal(t, "sessionid", cfg.Session.Cookie)
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("CARTON_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load("8083")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"

	ok := Defaults("8083")
	ok.Session.Secret = secret
	require.NoError(t, ok.Validate())

	db := ok
	db.Store = StoreDB
	require.ErrorIs(t, db.Validate(), ErrMissingDSN)
	db.DatabaseURL = "postgres://localhost/carton"
	require.NoError(t, db.Validate())

	bad := ok
	bad.Store = "etcd"
	require.ErrorIs(t, bad.Validate(), ErrUnknownStore)

	pricing := ok
	pricing.Cart.Pricing = "tiered"
	require.ErrorIs(t, pricing.Validate(), ErrUnknownPricing)

	weak := ok
	weak.Session.Secret = "short"
	require.ErrorIs(t, weak.Validate(), ErrWeakSecret)
}
