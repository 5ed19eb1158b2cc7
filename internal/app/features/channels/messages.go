// internal/app/features/channels/messages.go
package channels

import (
	"net/http"

	"github.com/dalemusser/stratachat/internal/app/features/apiutil"
	"github.com/dalemusser/stratachat/internal/app/system/apperr"
	"github.com/dalemusser/stratachat/internal/app/system/paging"
	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeMessages handles GET /api/channels/{id}/messages?limit=&before=.
// Messages come back oldest first; nextBefore pages further back.
func (h *Handler) ServeMessages(w http.ResponseWriter, r *http.Request) {
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
	before, err := paging.ParseBefore(r)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, apperr.Wrap(apperr.BadRequest, err, err.Error()))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list messages")
	defer cancel()

	page, err := h.Msgs.List(ctx, caller.UserID, chID, paging.ParseLimit(r), before)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, page)
}

type sendRequest struct {
	Content         string `json:"content" validate:"required"`
	ParentMessageID string `json:"parentMessageId" validate:"omitempty,mongodb"`
}

// HandleSend handles POST /api/channels/{id}/messages. It is the REST twin
// of the live sendMessage event and broadcasts the same way.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
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
	var req sendRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	var parent *primitive.ObjectID
	if req.ParentMessageID != "" {
		p, err := apiutil.ParseObjectID("parentMessageId", req.ParentMessageID)
		if err != nil {
			apiutil.WriteError(w, r, h.Log, err)
			return
		}
		parent = &p
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "send message")
	defer cancel()

	msg, err := h.Msgs.Send(ctx, caller.UserID, chID, req.Content, parent)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusCreated, msg)
}

type markReadRequest struct {
	MessageID string `json:"messageId" validate:"required,mongodb"`
}

// HandleMarkRead handles POST /api/channels/{id}/read. The read cursor only
// moves forward.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
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
	var req markReadRequest
	if err := apiutil.DecodeJSON(w, r, &req); err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	msgID, err := apiutil.ParseObjectID("messageId", req.MessageID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "mark channel read")
	defer cancel()

	advanced, err := h.Dir.MarkRead(ctx, chID, caller.UserID, msgID)
	if err != nil {
		apiutil.WriteError(w, r, h.Log, err)
		return
	}
	apiutil.WriteJSON(w, http.StatusOK, map[string]bool{"advanced": advanced})
}
