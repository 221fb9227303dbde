package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/family-messenger/securecore/internal/session"
)

// RegisterSessionRoutes wires device-session lifecycle endpoints.
func RegisterSessionRoutes(r fiber.Router, h *session.Handler) {
	group := r.Group("/session")
	group.Get("", h.State)
	group.Post("/start", h.Start)
	group.Post("/activity", h.Activity)
	group.Post("/lock", h.Lock)
	group.Post("/unlock", h.Unlock)
	group.Post("/end", h.End)
	group.Put("/config", h.UpdateConfig)
	group.Post("/password", h.SetPassword)
	group.Post("/app-state", h.AppState)
}
