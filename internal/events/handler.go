package events

import (
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the retained audit trail.
type Handler struct {
	log *AuditLog
}

// NewHandler constructs an audit HTTP handler.
func NewHandler(log *AuditLog) *Handler {
	return &Handler{log: log}
}

// Recent returns the retained audit events, oldest first.
func (h *Handler) Recent(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"events": h.log.Recent()})
}
