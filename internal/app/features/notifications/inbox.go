// internal/app/features/notifications/inbox.go
package notifications

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/stratachat/internal/app/features/apiutil"
	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/paging"
	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
	NextBefore    string                `json:"nextBefore,omitempty"`
}

// ServeList handles GET /api/notifications?unread=true&limit=&before=.
// Newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	before, err := paging.ParseBefore(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, apperr.Wrap(apperr.BadRequest, err, err.Error()))
		return
	}
	limit := paging.ParseLimit(r)
	unreadOnly := query.Get(r, "unread") == "true"

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list notifications")
	defer cancel()

	rows, err := h.Store.ListForUser(ctx, caller.UserID, unreadOnly, before, limit)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	resp := listResponse{Notifications: rows}
	if len(rows) == limit {
		resp.NextBefore = rows[len(rows)-1].ID.Hex()
	}
	apiutil.WriteJSON(w, http.StatusOK, resp)
}

// ServeUnreadCount handles GET /api/notifications/unread-count.
func (h *Handler) ServeUnreadCount(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "count unread notifications")
	defer cancel()

	n, err := h.Store.CountUnread(ctx, caller.UserID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// HandleMarkRead handles POST /api/notifications/{id}/read. Another user's
// notification reads as not found.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	h.ownNotification(w, r, "mark notification read", h.Store.MarkRead, http.StatusOK)
}

// HandleDelete handles DELETE /api/notifications/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.ownNotification(w, r, "delete notification", h.Store.Delete, http.StatusNoContent)
}

type ownOp func(ctx context.Context, userID, id primitive.ObjectID) error

func (h *Handler) ownNotification(w http.ResponseWriter, r *http.Request, op string, fn ownOp, status int) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	id, err := apiutil.ObjectIDParam(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, op)
	defer cancel()

	if err := fn(ctx, caller.UserID, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = apperr.E(apperr.NotFound, "notification not found")
		}
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	apiutil.WriteJSON(w, status, map[string]bool{"ok": true})
}

// HandleMarkAllRead handles POST /api/notifications/read-all.
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	caller, err := apiutil.Caller(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "mark all notifications read")
	defer cancel()

	n, err := h.Store.MarkAllRead(ctx, caller.UserID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
