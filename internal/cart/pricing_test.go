package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeDiscount_Subtotal(t *testing.T) {
	policy := VolumeDiscount{Rate: decimal.RequireFromString("0.2")}

	cases := []struct {
		qty  int
		want string
	}{
		{qty: 1, want: "10"},
		{qty: 2, want: "18"},
		{qty: 5, want: "42"},
	}

	for _, tc := range cases {
		it := NewItem(Product{ID: "p"}, tc.qty, decimal.RequireFromString("10.00"))
		got := policy.Subtotal(it)
		assert.Truef(t, got.Equal(decimal.RequireFromString(tc.want)), "qty=%d: got %s want %s", tc.qty, got, tc.want)
	}
}

func TestCart_UsesConfiguredPricing(t *testing.T) {
	c := New(Config{Pricing: VolumeDiscount{Rate: decimal.RequireFromString("0.5")}})
	require.NoError(t, c.Add(Product{ID: "p1"}, price("4.00"), 3))
	require.NoError(t, c.Add(Product{ID: "p2"}, price("1.00"), 1))

	// 4 + 2 + 2 for p1, 1 for p2.
	requireTotal(t, c, "9")

	l, ok := c.Line("p1")
	require.True(t, ok)
	assert.True(t, l.Subtotal.Equal(decimal.NewFromInt(8)))
	// The raw item subtotal stays price × quantity.
	assert.True(t, l.Item.Subtotal().Equal(decimal.NewFromInt(12)))
}

func TestItem_SubtotalIsExactDecimal(t *testing.T) {
	p, err := CoercePrice(0.1)
	require.NoError(t, err)

	it := NewItem(Product{ID: "p"}, 3, p)
	assert.Equal(t, "0.3", it.Subtotal().String())
}
