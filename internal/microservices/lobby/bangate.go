package lobby

import (
	"errors"
	"log/slog"
)

var ErrBanStoreUnavailable = errors.New("ban store unavailable")

// BanStore is the slice of the account module's ban repository the gate needs
type BanStore interface {
	ActiveBanExists(username, address string) (bool, error)
}

// BanGate answers "is this identity/address currently banned?". It is
// consulted at connection-open time and again on every inbound frame, so
// moderation takes effect on already-open sockets.
type BanGate struct {
	store  BanStore
	logger *slog.Logger
}

// constructor for BanGate
func NewBanGate(store BanStore) *BanGate {
	return &BanGate{
		store:  store,
		logger: slog.Default(),
	}
}

// IsBanned checks the backing store. If the store is unreachable the gate
// fails closed: the caller sees banned=true together with the error.
func (g *BanGate) IsBanned(username, address string) (bool, error) {
	banned, err := g.store.ActiveBanExists(username, address)
	if err != nil {
		g.logger.Error("ban_store_lookup_failed",
			"username", username,
			"remote_addr", address,
			"error", err.Error(),
		)
		return true, ErrBanStoreUnavailable
	}
	return banned, nil
}
