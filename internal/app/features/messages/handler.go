// internal/app/features/messages/handler.go
package messages

import (
	"net/http"

	"github.com/dalemusser/stratachat/internal/app/chat/messaging"
	"github.com/dalemusser/stratachat/internal/app/features/apiutil"
	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the per-message endpoints that are addressed by message id
// rather than by channel.
type Handler struct {
	Msgs *messaging.Service
	Log  *zap.Logger
}

// NewHandler constructs a messages Handler.
func NewHandler(msgs *messaging.Service, logger *zap.Logger) *Handler {
	return &Handler{Msgs: msgs, Log: logger}
}

// Routes returns the router mounted at /api/messages.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Delete("/{id}", h.HandleDelete)
	r.Post("/{id}/ack", h.HandleAck)
	return r
}

// HandleDelete handles DELETE /api/messages/{id}. The sender or a channel
// owner/admin may delete; the message is blanked and a messageDeleted event
// goes to the channel room.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	msgID, err := apiutil.ObjectIDParam(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete message")
	defer cancel()

	if err := h.Msgs.Delete(ctx, caller.UserID, msgID); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ackRequest struct {
	Status string `json:"status" validate:"required,oneof=delivered read"`
}

// HandleAck handles POST /api/messages/{id}/ack. Status never moves back
// from read to delivered.
func (h *Handler) HandleAck(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	msgID, err := apiutil.ObjectIDParam(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	var req ackRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "ack message")
	defer cancel()

	st, err := h.Msgs.Ack(ctx, caller.UserID, msgID, req.Status)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, st)
}
