package e2ee

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/family-messenger/securecore/internal/secerr"
)

// Handler exposes key management and message sealing over HTTP.
type Handler struct {
	service *Service
	keyring Keyring
}

// NewHandler constructs an e2ee HTTP handler.
func NewHandler(service *Service, keyring Keyring) *Handler {
	return &Handler{service: service, keyring: keyring}
}

type identityRequest struct {
	Identity string `json:"identity"`
}

type encryptRequest struct {
	Content           string `json:"content"`
	SenderID          string `json:"sender_id"`
	SenderKeyID       string `json:"sender_key_id"`
	ReceiverPublicKey string `json:"receiver_public_key"`
	ReceiverKeyID     string `json:"receiver_key_id"`
}

type decryptRequest struct {
	Message                EncryptedMessage `json:"message"`
	ReceiverID             string           `json:"receiver_id"`
	SenderSigningPublicKey string           `json:"sender_signing_public_key"`
}

type verifyRequest struct {
	Identity string `json:"identity"`
	KeyID    string `json:"key_id"`
}

type cleanupRequest struct {
	Identity  string `json:"identity"`
	OlderThan string `json:"older_than"`
}

// GenerateKeys mints a fresh key pair for an identity.
func (h *Handler) GenerateKeys(c *fiber.Ctx) error {
	var req identityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Identity == "" {
		return fiber.NewError(http.StatusBadRequest, "identity is required")
	}
	pair, err := h.service.GenerateKeyPair(c.UserContext(), req.Identity)
	if err != nil {
		return e2eeError(err)
	}
	return c.Status(http.StatusCreated).JSON(pair)
}

// RotateKeys deprecates the active pair and mints a replacement.
func (h *Handler) RotateKeys(c *fiber.Ctx) error {
	var req identityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Identity == "" {
		return fiber.NewError(http.StatusBadRequest, "identity is required")
	}
	pair, err := h.service.RotateKeys(c.UserContext(), req.Identity)
	if err != nil {
		return e2eeError(err)
	}
	return c.Status(http.StatusCreated).JSON(pair)
}

// ListKeys returns the public key pairs registered for an identity.
func (h *Handler) ListKeys(c *fiber.Ctx) error {
	identity := c.Params("identity")
	pairs, err := h.keyring.ListByIdentity(c.UserContext(), identity)
	if err != nil {
		return e2eeError(err)
	}
	return c.JSON(pairs)
}

// Encrypt seals a plaintext for a receiver.
func (h *Handler) Encrypt(c *fiber.Ctx) error {
	var req encryptRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	msg, err := h.service.EncryptMessage(c.UserContext(), req.Content, req.SenderID, req.SenderKeyID, req.ReceiverPublicKey, req.ReceiverKeyID)
	if err != nil {
		return e2eeError(err)
	}
	return c.Status(http.StatusCreated).JSON(msg)
}

// Decrypt verifies and opens a sealed message.
func (h *Handler) Decrypt(c *fiber.Ctx) error {
	var req decryptRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	content, err := h.service.DecryptMessage(c.UserContext(), req.Message, req.ReceiverID, req.SenderSigningPublicKey)
	if err != nil {
		return e2eeError(err)
	}
	return c.JSON(fiber.Map{"content": content})
}

// VerifyIntegrity runs the self-test on a stored key pair.
func (h *Handler) VerifyIntegrity(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	valid := h.service.VerifyKeyIntegrity(c.UserContext(), req.Identity, req.KeyID)
	return c.JSON(fiber.Map{"valid": valid})
}

// Cleanup removes deprecated pairs older than the given age.
func (h *Handler) Cleanup(c *fiber.Ctx) error {
	var req cleanupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	olderThan := 30 * 24 * time.Hour
	if req.OlderThan != "" {
		d, err := time.ParseDuration(req.OlderThan)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid older_than duration")
		}
		olderThan = d
	}
	removed, err := h.service.CleanupDeprecatedKeys(c.UserContext(), req.Identity, olderThan)
	if err != nil {
		return e2eeError(err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

func e2eeError(err error) error {
	switch {
	case errors.Is(err, secerr.ErrIntegrity):
		return fiber.NewError(http.StatusUnprocessableEntity, "integrity check failed")
	case errors.Is(err, secerr.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "key not found")
	case errors.Is(err, secerr.ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, secerr.ErrStorage):
		return fiber.NewError(http.StatusInternalServerError, "storage failure")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
