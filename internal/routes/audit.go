package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/family-messenger/securecore/internal/events"
)

// RegisterAuditRoutes wires the audit trail endpoint.
func RegisterAuditRoutes(r fiber.Router, h *events.Handler) {
	r.Get("/audit/events", h.Recent)
}
