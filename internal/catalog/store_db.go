package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

// PostgresStore reads products through database/sql; the pgx stdlib driver
// is registered by the binary.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the products table and inserts the demo products when the
// table is empty.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS products (
				id    TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				price NUMERIC(10,2) NOT NULL CHECK (price >= 0)
			)
		`); err != nil {
			return err
		}

		for _, p := range seedProducts() {
			if _, err := s.db.ExecContext(ctx, `
				INSERT INTO products (id, title, price)
				VALUES ($1, $2, $3)
				ON CONFLICT (id) DO NOTHING
			`, p.ID, p.Title, p.Price); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) ListSortedByID(ctx context.Context) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, title, price
			FROM products
			ORDER BY id ASC
		`)
		if err != nil {
			return err
		}
		out, err = scanProducts(rows)
		return err
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}

	var out []Product
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, title, price
			FROM products
			WHERE id = ANY($1)
			ORDER BY id ASC
		`, ids)
		if err != nil {
			return err
		}
		out, err = scanProducts(rows)
		return err
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Product, bool, error) {
	var p Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT id, title, price
			FROM products
			WHERE id = $1
		`, id).Scan(&p.ID, &p.Title, &p.Price)
	})

	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

func scanProducts(rows *sql.Rows) ([]Product, error) {
	defer rows.Close()

	out := make([]Product, 0, 16)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
