package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/family-messenger/securecore/internal/e2ee"
)

// RegisterMessageRoutes wires key management and message sealing endpoints.
func RegisterMessageRoutes(r fiber.Router, h *e2ee.Handler) {
	keys := r.Group("/keys")
	keys.Post("", h.GenerateKeys)
	keys.Post("/rotate", h.RotateKeys)
	keys.Post("/verify", h.VerifyIntegrity)
	keys.Post("/cleanup", h.Cleanup)
	keys.Get("/:identity", h.ListKeys)

	messages := r.Group("/messages")
	messages.Post("/encrypt", h.Encrypt)
	messages.Post("/decrypt", h.Decrypt)
}
