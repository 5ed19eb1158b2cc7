// internal/app/features/notifications/notify.go
package notifications

import (
	"errors"
	"net/http"

	"github.com/dalemusser/stratachat/internal/app/features/apiutil"
	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type notifyRequest struct {
	UserID  string `json:"userId" validate:"required,mongodb"`
	Title   string `json:"title" validate:"required"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

// HandleNotify handles POST /api/notifications/notify. Only an agency admin
// may notify, and only users of the same agency. Role and agency come from
// the user directory, not from the token.
func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "notify user")
	defer cancel()

	actor, err := h.Users.GetByID(ctx, caller.UserID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		apiutil.WriteError(w, r, h.Log, apperr.E(apperr.Forbidden, "caller not found"))
		return
	}
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	if actor.Role != models.RoleAgencyAdmin {
		apiutil.WriteError(w, r, h.Log, apperr.E(apperr.Forbidden, "only agency admins may send notifications"))
		return
	}

	var req notifyRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	target, err := apiutil.ParseObjectID("userId", req.UserID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	u, err := h.Users.GetByID(ctx, target)
	if errors.Is(err, mongo.ErrNoDocuments) {
		apiutil.WriteError(w, r, h.Log, apperr.E(apperr.NotFound, "user not found"))
		return
	}
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	if u.AgencyID != actor.AgencyID {
		apiutil.WriteError(w, r, h.Log, apperr.E(apperr.CrossTenant, "user belongs to another agency"))
		return
	}

	n, err := h.Fanout.NotifyUser(ctx, target, req.Title, req.Message, req.Link)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	h.Log.Info("notification sent",
		zap.String("notification_id", n.ID.Hex()),
		zap.String("user_id", target.Hex()),
		zap.String("actor_id", caller.UserID.Hex()))
	apiutil.WriteJSON(w, http.StatusCreated, n)
}
