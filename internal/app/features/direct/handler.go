// internal/app/features/direct/handler.go
package direct

import (
	"net/http"

	"github.com/dalemusser/stratachat/internal/app/chat/directconv"
	"github.com/dalemusser/stratachat/internal/app/features/apiutil"
	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves direct-conversation lookups.
type Handler struct {
	Resolver *directconv.Resolver
	Log      *zap.Logger
}

// NewHandler constructs a direct Handler.
func NewHandler(resolver *directconv.Resolver, logger *zap.Logger) *Handler {
	return &Handler{Resolver: resolver, Log: logger}
}

// Routes returns the router mounted at /api/direct.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleGetOrCreate)
	return r
}

type directRequest struct {
	UserID string `json:"userId" validate:"required,mongodb"`
}

// HandleGetOrCreate handles POST /api/direct. It returns the caller's
// one-to-one channel with userId, creating it on first use. The same channel
// comes back whichever participant asks.
func (h *Handler) HandleGetOrCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	var req directRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	other, err := apiutil.ParseObjectID("userId", req.UserID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "direct conversation")
	defer cancel()

	ch, err := h.Resolver.GetOrCreate(ctx, caller.UserID, other)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, ch)
}
