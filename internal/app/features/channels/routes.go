// internal/app/features/channels/routes.go
package channels

import "github.com/go-chi/chi/v5"

// Routes returns the router mounted at /api/channels. Authentication is
// applied by the parent /api group.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/{id}", h.ServeDetail)

	// MEMBERS
	r.Post("/{id}/members", h.HandleAddMember)
	r.Delete("/{id}/members/{userID}", h.HandleRemoveMember)
	r.Patch("/{id}/members/{userID}", h.HandleSetRole)
	r.Put("/{id}/mute", h.HandleMute)

	// MESSAGES
	r.Get("/{id}/messages", h.ServeMessages)
	r.Post("/{id}/messages", h.HandleSend)
	r.Post("/{id}/read", h.HandleMarkRead)

	return r
}
