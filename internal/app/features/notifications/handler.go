// internal/app/features/notifications/handler.go
package notifications

import (
	"github.com/dalemusser/stratachat/internal/app/chat/fanout"
	notificationstore "github.com/dalemusser/stratachat/internal/app/store/notifications"
	userstore "github.com/dalemusser/stratachat/internal/app/store/users"
	"go.uber.org/zap"
)

// Handler serves the caller's notification inbox and the notify endpoint
// other services use to reach a user.
type Handler struct {
	Store  *notificationstore.Store
	Users  *userstore.Store
	Fanout *fanout.Fanout
	Log    *zap.Logger
}

// NewHandler constructs a notifications Handler.
func NewHandler(store *notificationstore.Store, users *userstore.Store, fo *fanout.Fanout, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  store,
		Users:  users,
		Fanout: fo,
		Log:    logger,
	}
}
