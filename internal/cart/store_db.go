package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	pgUniqueCode = "23505"

	// Concurrent first requests of one session race to create its cart row;
	// the loser re-reads after the unique violation.
	createAttempts = 3
)

type cartRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionKey string    `gorm:"size:64;not null;uniqueIndex"`
	UserID     *string   `gorm:"size:64;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (cartRecord) TableName() string { return "carts" }

type itemRecord struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CartID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_items_cart_product,priority:1"`
	ProductID string          `gorm:"size:64;not null;uniqueIndex:idx_cart_items_cart_product,priority:2"`
	Title     string          `gorm:"size:255"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Extra     datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (itemRecord) TableName() string { return "cart_items" }

// GormStore keeps carts as rows: one carts row per session key, optionally
// owned by a user, and one cart_items row per (cart, product).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&cartRecord{}, &itemRecord{})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return sqlDB.PingContext(ctx)
	})
}

func (s *GormStore) Load(ctx context.Context, owner Owner) (Snapshot, error) {
	if err := owner.validate(); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rec, err := s.resolve(ctx, owner)
		if err != nil {
			return err
		}
		snap, err = loadSnapshot(s.db.WithContext(ctx), rec.ID)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *GormStore) Save(ctx context.Context, owner Owner, snap Snapshot) error {
	if err := owner.validate(); err != nil {
		return err
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rec, err := s.resolve(ctx, owner)
		if err != nil {
			return err
		}

		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return replaceItems(tx, rec.ID, snap)
		})
	})
}

// resolve returns the cart row for owner, creating it on first access.
// Anonymous owners are keyed by session key. For a user, the cart they
// already own wins; an anonymous cart of the current session is claimed when
// the user has none, or merged into theirs and deleted otherwise. The user's
// cart then takes the current session key unless another user's cart holds it.
func (s *GormStore) resolve(ctx context.Context, owner Owner) (cartRecord, error) {
	var (
		rec cartRecord
		err error
	)
	for attempt := 0; attempt < createAttempts; attempt++ {
		if owner.UserID == "" {
			rec, err = s.getOrCreateBySession(ctx, owner.SessionKey)
		} else {
			rec, err = s.getOrCreateByUser(ctx, owner)
		}
		if !isUniqueViolation(err) {
			return rec, err
		}
	}
	return rec, err
}

// getOrCreateBySession only ever returns anonymous carts. A user's cart may
// still hold the key after a logout; it moves to its user key so the visitor
// starts a cart of their own.
func (s *GormStore) getOrCreateBySession(ctx context.Context, sessionKey string) (cartRecord, error) {
	var rec cartRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		anon, found, err := findCart(tx, "session_key = ? AND user_id IS NULL", sessionKey)
		if err != nil {
			return err
		}
		if found {
			rec = anon
			return nil
		}

		holder, taken, err := findCart(tx, "session_key = ?", sessionKey)
		if err != nil {
			return err
		}
		if taken && holder.UserID != nil {
			if err := tx.Model(&holder).Update("session_key", userSessionKey(*holder.UserID)).Error; err != nil {
				return err
			}
		}

		rec = cartRecord{ID: uuid.New(), SessionKey: sessionKey}
		return tx.Create(&rec).Error
	})
	return rec, err
}

func (s *GormStore) getOrCreateByUser(ctx context.Context, owner Owner) (cartRecord, error) {
	var rec cartRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userCart, hasUserCart, err := findCart(tx, "user_id = ?", owner.UserID)
		if err != nil {
			return err
		}

		var anon cartRecord
		hasAnon := false
		if owner.SessionKey != "" {
			anon, hasAnon, err = findCart(tx, "session_key = ? AND user_id IS NULL", owner.SessionKey)
			if err != nil {
				return err
			}
		}

		switch {
		case !hasUserCart && hasAnon:
			uid := owner.UserID
			anon.UserID = &uid
			if err := tx.Model(&anon).Update("user_id", uid).Error; err != nil {
				return err
			}
			rec = anon
			return nil

		case !hasUserCart:
			// Another user's cart may hold this browser's key.
			key := userSessionKey(owner.UserID)
			if owner.SessionKey != "" {
				_, taken, err := findCart(tx, "session_key = ?", owner.SessionKey)
				if err != nil {
					return err
				}
				if !taken {
					key = owner.SessionKey
				}
			}
			uid := owner.UserID
			rec = cartRecord{ID: uuid.New(), SessionKey: key, UserID: &uid}
			return tx.Create(&rec).Error

		case hasAnon:
			if err := mergeInto(tx, userCart.ID, anon.ID); err != nil {
				return err
			}
			if err := tx.Where("cart_id = ?", anon.ID).Delete(&itemRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&anon).Error; err != nil {
				return err
			}
		}

		if owner.SessionKey != "" && userCart.SessionKey != owner.SessionKey {
			// Another user's cart may still hold this browser's session key;
			// it keeps it and this cart keeps its old key.
			_, taken, err := findCart(tx, "session_key = ?", owner.SessionKey)
			if err != nil {
				return err
			}
			if !taken {
				if err := tx.Model(&userCart).Update("session_key", owner.SessionKey).Error; err != nil {
					return err
				}
				userCart.SessionKey = owner.SessionKey
			}
		}
		rec = userCart
		return nil
	})
	return rec, err
}

// mergeInto folds the anonymous cart's lines into the user's cart with the
// same rules as Cart.Merge.
func mergeInto(tx *gorm.DB, userCartID, anonCartID uuid.UUID) error {
	into, err := loadSnapshot(tx, userCartID)
	if err != nil {
		return err
	}
	from, err := loadSnapshot(tx, anonCartID)
	if err != nil {
		return err
	}

	dst, err := Restore(Config{}, into)
	if err != nil {
		return err
	}
	src, err := Restore(Config{}, from)
	if err != nil {
		return err
	}
	dst.Merge(src)
	return replaceItems(tx, userCartID, dst.Snapshot())
}

func userSessionKey(userID string) string {
	return "user:" + userID
}

func findCart(tx *gorm.DB, query string, args ...any) (cartRecord, bool, error) {
	var rec cartRecord
	err := tx.Where(query, args...).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cartRecord{}, false, nil
	}
	if err != nil {
		return cartRecord{}, false, err
	}
	return rec, true, nil
}

func loadSnapshot(db *gorm.DB, cartID uuid.UUID) (Snapshot, error) {
	var rows []itemRecord
	if err := db.
		Where("cart_id = ?", cartID).
		Order("product_id ASC").
		Find(&rows).Error; err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{Version: SchemaVersion, Items: make([]SnapshotItem, 0, len(rows))}
	for _, r := range rows {
		si := SnapshotItem{
			ProductID: r.ProductID,
			Title:     r.Title,
			Quantity:  r.Quantity,
			Price:     r.Price,
		}
		if len(r.Extra) > 0 {
			if err := json.Unmarshal(r.Extra, &si.Extra); err != nil {
				return Snapshot{}, fmt.Errorf("%w: extra of %s: %v", ErrCorruptSnapshot, r.ProductID, err)
			}
		}
		snap.Items = append(snap.Items, si)
	}
	return snap, nil
}

// replaceItems makes the cart's item rows equal to snap: rows of products no
// longer in the snapshot are deleted, the rest are upserted on
// (cart_id, product_id).
func replaceItems(tx *gorm.DB, cartID uuid.UUID, snap Snapshot) error {
	ids := make([]string, 0, len(snap.Items))
	for _, si := range snap.Items {
		ids = append(ids, si.ProductID)
	}

	del := tx.Where("cart_id = ?", cartID)
	if len(ids) > 0 {
		del = del.Where("product_id NOT IN ?", ids)
	}
	if err := del.Delete(&itemRecord{}).Error; err != nil {
		return err
	}

	if err := tx.Model(&cartRecord{}).Where("id = ?", cartID).Update("updated_at", time.Now().UTC()).Error; err != nil {
		return err
	}

	if len(snap.Items) == 0 {
		return nil
	}

	rows := make([]itemRecord, 0, len(snap.Items))
	for _, si := range snap.Items {
		var extra datatypes.JSON
		if len(si.Extra) > 0 {
			raw, err := json.Marshal(si.Extra)
			if err != nil {
				return err
			}
			extra = datatypes.JSON(raw)
		}
		rows = append(rows, itemRecord{
			ID:        uuid.New(),
			CartID:    cartID,
			ProductID: si.ProductID,
			Title:     si.Title,
			Quantity:  si.Quantity,
			Price:     si.Price,
			Extra:     extra,
		})
	}

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title",
			"quantity",
			"price",
			"extra",
			"updated_at",
		}),
	}).Create(&rows).Error
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueCode
}
