package cart

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestGormStore(t *testing.T) *GormStore {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := NewGormStore(db)
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func saveCart(t *testing.T, st Store, owner Owner, build func(c *Cart)) {
	t.Helper()
	m := &Manager{Store: st}
	_, err := m.Mutate(context.Background(), owner, "test", func(c *Cart) error {
		build(c)
		return nil
	})
	require.NoError(t, err)
}

func loadCart(t *testing.T, st Store, owner Owner) *Cart {
	t.Helper()
	snap, err := st.Load(context.Background(), owner)
	require.NoError(t, err)
	c, err := Restore(Config{}, snap)
	require.NoError(t, err)
	return c
}

func countCarts(t *testing.T, st *GormStore) int64 {
	t.Helper()
	var n int64
	require.NoError(t, st.db.Model(&cartRecord{}).Count(&n).Error)
	return n
}

func TestGormStore_SessionCartRoundTrip(t *testing.T) {
	st := newTestGormStore(t)
	owner := Owner{SessionKey: "s1"}

	require.NoError(t, st.Ping(context.Background()))

	fresh := loadCart(t, st, owner)
	assert.True(t, fresh.IsEmpty())

	saveCart(t, st, owner, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p1", Title: "Keyboard"}, price("49.90"), 1))
		require.NoError(t, c.Add(Product{ID: "p2", Title: "Mouse"}, price("19.90"), 3))
		require.True(t, c.Annotate("p1", map[string]any{"layout": "us"}))
	})

	c := loadCart(t, st, owner)
	assert.Equal(t, []string{"p1", "p2"}, c.ProductIDs())
	assert.Equal(t, 4, c.Count())
	requireTotal(t, c, "109.60")

	l, ok := c.Line("p1")
	require.True(t, ok)
	assert.Equal(t, "Keyboard", l.Product.Title)
	assert.Equal(t, "us", l.Extra["layout"])

	assert.Equal(t, int64(1), countCarts(t, st))
}

func TestGormStore_SaveReplacesLines(t *testing.T) {
	st := newTestGormStore(t)
	owner := Owner{SessionKey: "s1"}

	saveCart(t, st, owner, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p1"}, price("1.00"), 1))
		require.NoError(t, c.Add(Product{ID: "p2"}, price("2.00"), 1))
	})
	saveCart(t, st, owner, func(c *Cart) {
		c.Remove("p1")
		require.NoError(t, c.SetQuantity("p2", 5))
	})

	c := loadCart(t, st, owner)
	assert.Equal(t, []string{"p2"}, c.ProductIDs())
	assert.Equal(t, 5, c.Count())

	saveCart(t, st, owner, func(c *Cart) { c.Clear() })
	assert.True(t, loadCart(t, st, owner).IsEmpty())

	var items int64
	require.NoError(t, st.db.Model(&itemRecord{}).Count(&items).Error)
	assert.Zero(t, items)
}

func TestGormStore_LoginClaimsAnonymousCart(t *testing.T) {
	st := newTestGormStore(t)

	saveCart(t, st, Owner{SessionKey: "s1"}, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p1"}, price("5"), 2))
	})

	c := loadCart(t, st, Owner{SessionKey: "s1", UserID: "u1"})
	assert.Equal(t, 2, c.Count())
	assert.Equal(t, int64(1), countCarts(t, st))

	var rec cartRecord
	require.NoError(t, st.db.Take(&rec).Error)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, "u1", *rec.UserID)
	assert.Equal(t, "s1", rec.SessionKey)
}

func TestGormStore_LoginMergesIntoUserCart(t *testing.T) {
	st := newTestGormStore(t)
	user := Owner{SessionKey: "s1", UserID: "u1"}

	saveCart(t, st, user, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p1"}, price("10.00"), 1))
	})

	// Same user later browses anonymously from another device.
	saveCart(t, st, Owner{SessionKey: "s2"}, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p1"}, price("8.00"), 2))
		require.NoError(t, c.Add(Product{ID: "p2"}, price("3.00"), 1))
	})
	assert.Equal(t, int64(2), countCarts(t, st))

	c := loadCart(t, st, Owner{SessionKey: "s2", UserID: "u1"})
	assert.Equal(t, int64(1), countCarts(t, st))

	l, ok := c.Line("p1")
	require.True(t, ok)
	assert.Equal(t, 3, l.Quantity)
	assert.True(t, l.Price.Equal(decimal.NewFromInt(10)))
	assert.True(t, c.Contains("p2"))

	var rec cartRecord
	require.NoError(t, st.db.Take(&rec).Error)
	assert.Equal(t, "s2", rec.SessionKey)

	// The anonymous session now resolves to a fresh cart.
	assert.True(t, loadCart(t, st, Owner{SessionKey: "s1"}).IsEmpty())
}

func TestGormStore_UserWithoutSession(t *testing.T) {
	st := newTestGormStore(t)
	owner := Owner{UserID: "u9"}

	saveCart(t, st, owner, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p1"}, price("1"), 1))
	})

	assert.Equal(t, 1, loadCart(t, st, owner).Count())

	var rec cartRecord
	require.NoError(t, st.db.Take(&rec).Error)
	assert.Equal(t, "user:u9", rec.SessionKey)
}

func TestGormStore_RequiresOwner(t *testing.T) {
	st := newTestGormStore(t)

	_, err := st.Load(context.Background(), Owner{})
	require.ErrorIs(t, err, ErrNoOwner)
}

func TestGormStore_TwoUsersShareBrowser(t *testing.T) {
	st := newTestGormStore(t)
	alice := Owner{SessionKey: "s1", UserID: "alice"}
	bob := Owner{SessionKey: "s1", UserID: "bob"}

	saveCart(t, st, alice, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p1"}, price("1"), 1))
	})

	assert.True(t, loadCart(t, st, bob).IsEmpty())
	saveCart(t, st, bob, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p2"}, price("2"), 1))
	})

	assert.Equal(t, []string{"p1"}, loadCart(t, st, alice).ProductIDs())
	assert.Equal(t, []string{"p2"}, loadCart(t, st, bob).ProductIDs())

	var rec cartRecord
	require.NoError(t, st.db.Where("user_id = ?", "bob").Take(&rec).Error)
	assert.Equal(t, "user:bob", rec.SessionKey)
}

func TestGormStore_LogoutGetsFreshCart(t *testing.T) {
	st := newTestGormStore(t)
	user := Owner{SessionKey: "s1", UserID: "alice"}
	visitor := Owner{SessionKey: "s1"}

	saveCart(t, st, user, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p1"}, price("1"), 1))
	})

	assert.True(t, loadCart(t, st, visitor).IsEmpty())
	saveCart(t, st, visitor, func(c *Cart) {
		require.NoError(t, c.Add(Product{ID: "p2"}, price("2"), 1))
	})
	assert.Equal(t, []string{"p2"}, loadCart(t, st, visitor).ProductIDs())
	assert.Equal(t, int64(2), countCarts(t, st))

	var held cartRecord
	require.NoError(t, st.db.Where("user_id = ?", "alice").Take(&held).Error)
	assert.Equal(t, "user:alice", held.SessionKey)

	// Logging back in merges what the visitor added.
	c := loadCart(t, st, user)
	assert.Equal(t, []string{"p1", "p2"}, c.ProductIDs())
	assert.Equal(t, int64(1), countCarts(t, st))
}
