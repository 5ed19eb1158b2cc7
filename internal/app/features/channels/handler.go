// internal/app/features/channels/handler.go
package channels

import (
	"github.com/dalemusser/stratachat/internal/app/chat/directory"
	"github.com/dalemusser/stratachat/internal/app/chat/messaging"
	"go.uber.org/zap"
)

// Handler is the dependency container for the channel endpoints: channel
// lifecycle and membership go through the directory, history and sends
// through the messaging service.
type Handler struct {
	Dir  *directory.Service
	Msgs *messaging.Service
	Log  *zap.Logger
}

// NewHandler constructs a channels Handler. It is called from the bootstrap
// BuildHandler once the chat services exist.
func NewHandler(dir *directory.Service, msgs *messaging.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Dir:  dir,
		Msgs: msgs,
		Log:  logger,
	}
}
