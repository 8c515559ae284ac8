package cart

const DefaultSessionKey = "CART"

// Config holds per-cart behaviour. The zero value is usable: unit pricing,
// the default session key and no stale-item reconciliation.
type Config struct {
	// SessionKey names the session entry holding the cart snapshot.
	SessionKey string
	// RemoveStaleItems drops lines whose product left the catalog every time
	// a cart is opened.
	RemoveStaleItems bool
	Pricing          PricingPolicy
}

func (c Config) withDefaults() Config {
	if c.SessionKey == "" {
		c.SessionKey = DefaultSessionKey
	}
	if c.Pricing == nil {
		c.Pricing = UnitPricing{}
	}
	return c
}
