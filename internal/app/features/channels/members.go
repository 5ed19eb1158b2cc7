// internal/app/features/channels/members.go
package channels

import (
	"net/http"

	"github.com/dalemusser/stratachat/internal/app/features/apiutil"
	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required,mongodb"`
}

// HandleAddMember handles POST /api/channels/{id}/members. Adding an
// existing member is a no-op that returns the current membership.
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
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
	var req addMemberRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	target, err := apiutil.ParseObjectID("userId", req.UserID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "add member")
	defer cancel()

	m, err := h.Dir.AddMember(ctx, chID, caller.UserID, target)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, m)
}

// HandleRemoveMember handles DELETE /api/channels/{id}/members/{userID}.
// Members may remove themselves; the owner can never be removed.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
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
	target, err := apiutil.ObjectIDParam(r, "userID")
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "remove member")
	defer cancel()

	if err := h.Dir.RemoveMember(ctx, chID, caller.UserID, target); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	h.Log.Info("member removed",
		zap.String("channel_id", chID.Hex()),
		zap.String("user_id", target.Hex()),
		zap.String("actor_id", caller.UserID.Hex()))
	w.WriteHeader(http.StatusNoContent)
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member"`
}

// HandleSetRole handles PATCH /api/channels/{id}/members/{userID}.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
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
	target, err := apiutil.ObjectIDParam(r, "userID")
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	var req setRoleRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "set member role")
	defer cancel()

	m, err := h.Dir.SetMemberRole(ctx, chID, caller.UserID, target, req.Role)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, m)
}

type muteRequest struct {
	Muted *bool `json:"muted" validate:"required"`
}

// HandleMute handles PUT /api/channels/{id}/mute for the caller's own
// membership.
func (h *Handler) HandleMute(w http.ResponseWriter, r *http.Request) {
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
	var req muteRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "mute channel")
	defer cancel()

	if err := h.Dir.SetMuted(ctx, chID, caller.UserID, *req.Muted); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]bool{"muted": *req.Muted})
}
