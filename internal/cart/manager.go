package cart

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "Carton/internal/cart"

// Manager binds the cart lifecycle to a Store: Open restores (and optionally
// reconciles) a cart at the start of a request, Commit persists it at the end
// when it changed.
type Manager struct {
	Store   Store
	Catalog Catalog
	Config  Config
	Log     *zap.Logger
	Metrics *Metrics
}

func (m *Manager) Open(ctx context.Context, owner Owner) (*Cart, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cart.open",
		trace.WithAttributes(attribute.Bool("cart.authenticated", owner.UserID != "")),
	)
	defer span.End()

	var c *Cart
	snap, err := m.Store.Load(ctx, owner)
	switch {
	case errors.Is(err, ErrCorruptSnapshot):
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load cart: %w", err)
	default:
		c, err = Restore(m.Config, snap)
	}

	if errors.Is(err, ErrUnsupportedSchema) || errors.Is(err, ErrCorruptSnapshot) {
		// Modified so the next commit overwrites the unreadable payload.
		m.logger().Warn("discarding unreadable cart", zap.Error(err))
		c = New(m.Config)
		c.modified = true
	} else if err != nil {
		return nil, err
	}

	if m.Config.RemoveStaleItems && m.Catalog != nil {
		removed, err := c.RemoveStaleItems(ctx, m.Catalog)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if removed > 0 {
			m.logger().Info("removed stale cart items", zap.Int("removed", removed))
			m.Metrics.staleRemoved(removed)
		}
	}

	span.SetAttributes(attribute.Int("cart.unique_count", c.UniqueCount()))
	return c, nil
}

// Commit saves the cart if it was modified and marks it clean.
func (m *Manager) Commit(ctx context.Context, owner Owner, c *Cart) error {
	if !c.Modified() {
		return nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "cart.commit",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("cart.unique_count", c.UniqueCount())),
	)
	defer span.End()

	if err := m.Store.Save(ctx, owner, c.Snapshot()); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("save cart: %w", err)
	}
	c.markClean()
	return nil
}

// Mutate runs one operation inside an Open/Commit pair and counts it.
func (m *Manager) Mutate(ctx context.Context, owner Owner, op string, fn func(*Cart) error) (*Cart, error) {
	c, err := m.Open(ctx, owner)
	if err != nil {
		m.Metrics.observe(op, err)
		return nil, err
	}

	if err := fn(c); err != nil {
		m.Metrics.observe(op, err)
		return nil, err
	}

	err = m.Commit(ctx, owner, c)
	m.Metrics.observe(op, err)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (m *Manager) logger() *zap.Logger {
	if m.Log == nil {
		return zap.NewNop()
	}
	return m.Log
}
