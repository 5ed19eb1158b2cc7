// internal/app/features/channels/channels.go
package channels

import (
	"net/http"

	"github.com/dalemusser/stratachat/internal/app/features/apiutil"
	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"go.uber.org/zap"
)

type createRequest struct {
	Name       string `json:"name" validate:"required"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public private"`
}

// HandleCreate handles POST /api/channels. The caller becomes the owner and
// the channel lives in the caller's agency. Visibility defaults to public.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	var req createRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	if req.Visibility == "" {
		req.Visibility = models.VisibilityPublic
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create channel")
	defer cancel()

	ch, err := h.Dir.CreateChannel(ctx, caller.UserID, req.Name, req.Visibility, caller.AgencyID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	h.Log.Info("channel created",
		zap.String("channel_id", ch.ID.Hex()),
		zap.String("owner_id", caller.UserID.Hex()),
		zap.String("visibility", ch.Visibility))
	apiutil.WriteJSON(w, http.StatusCreated, ch)
}

// ServeList handles GET /api/channels.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list channels")
	defer cancel()

	views, err := h.Dir.ListChannelsForUser(ctx, caller.UserID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]any{"channels": views})
}

// ServeDetail handles GET /api/channels/{id}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	chID, err := apiutil.ObjectIDParam(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "channel detail")
	defer cancel()

	detail, err := h.Dir.GetChannelDetail(ctx, caller.UserID, chID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, detail)
}
