package cart

import (
	"context"
	"errors"
)

var ErrNoOwner = errors.New("cart owner has neither session key nor user id")

// Owner identifies whose cart is being accessed. Anonymous visitors only have
// a session key; authenticated users carry both.
type Owner struct {
	SessionKey string
	UserID     string
}

func (o Owner) validate() error {
	if o.SessionKey == "" && o.UserID == "" {
		return ErrNoOwner
	}
	return nil
}

// Store persists cart snapshots. Implementations never interpret cart
// semantics; the same Cart code runs on top of any of them.
type Store interface {
	Load(ctx context.Context, owner Owner) (Snapshot, error)
	Save(ctx context.Context, owner Owner, s Snapshot) error
	Ping(ctx context.Context) error
}
