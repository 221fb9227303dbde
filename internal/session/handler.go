package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/family-messenger/securecore/internal/secerr"
)

// Handler exposes the device-session lifecycle over HTTP.
type Handler struct {
	controller *Controller
}

// NewHandler constructs a session HTTP handler.
func NewHandler(controller *Controller) *Handler {
	return &Handler{controller: controller}
}

type unlockRequest struct {
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type appStateRequest struct {
	State string `json:"state"`
}

// Start begins a fresh unlocked session.
func (h *Handler) Start(c *fiber.Ctx) error {
	if err := h.controller.Start(c.UserContext()); err != nil {
		return sessionError(err)
	}
	return c.Status(http.StatusCreated).JSON(h.controller.State())
}

// Activity records user activity, resetting the inactivity window.
func (h *Handler) Activity(c *fiber.Ctx) error {
	if err := h.controller.UpdateActivity(c.UserContext()); err != nil {
		return sessionError(err)
	}
	return c.JSON(h.controller.State())
}

// Lock moves an active session into the locked phase.
func (h *Handler) Lock(c *fiber.Ctx) error {
	if err := h.controller.Lock(c.UserContext()); err != nil {
		return sessionError(err)
	}
	return c.JSON(h.controller.State())
}

// Unlock attempts to return a locked session to the unlocked phase.
func (h *Handler) Unlock(c *fiber.Ctx) error {
	var req unlockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.controller.Unlock(c.UserContext(), req.Password); err != nil {
		return sessionError(err)
	}
	return c.JSON(h.controller.State())
}

// End terminates the session.
func (h *Handler) End(c *fiber.Ctx) error {
	if err := h.controller.End(c.UserContext()); err != nil {
		return sessionError(err)
	}
	return c.JSON(h.controller.State())
}

// State reports the current session state and policy.
func (h *Handler) State(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"state":  h.controller.State(),
		"config": h.controller.Config(),
	})
}

// UpdateConfig replaces the session policy.
func (h *Handler) UpdateConfig(c *fiber.Ctx) error {
	var cfg Config
	if err := c.BodyParser(&cfg); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := h.controller.UpdateConfig(c.UserContext(), cfg); err != nil {
		return sessionError(err)
	}
	return c.JSON(h.controller.Config())
}

// SetPassword stores the fallback unlock password.
func (h *Handler) SetPassword(c *fiber.Ctx) error {
	var req passwordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "password is required")
	}
	if err := h.controller.SetPassword(c.UserContext(), req.Password); err != nil {
		return sessionError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// AppState reports a platform foreground/background transition.
func (h *Handler) AppState(c *fiber.Ctx) error {
	var req appStateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	switch AppState(req.State) {
	case AppStateForeground, AppStateBackground, AppStateInactive:
	default:
		return fiber.NewError(http.StatusBadRequest, "unknown app state")
	}
	if err := h.controller.HandleAppStateChange(c.UserContext(), AppState(req.State)); err != nil {
		return sessionError(err)
	}
	return c.JSON(h.controller.State())
}

// sessionError maps controller errors onto HTTP status codes.
func sessionError(err error) error {
	switch {
	case errors.Is(err, secerr.ErrLocked):
		if remaining, ok := secerr.RetryAfter(err, time.Now()); ok {
			return fiber.NewError(http.StatusLocked, "locked out, retry in "+remaining.Round(time.Second).String())
		}
		return fiber.NewError(http.StatusLocked, "session locked out")
	case errors.Is(err, secerr.ErrNotFound):
		return fiber.NewError(http.StatusConflict, "no active session")
	case errors.Is(err, secerr.ErrValidation):
		return fiber.NewError(http.StatusUnauthorized, "unlock rejected")
	case errors.Is(err, secerr.ErrStorage):
		return fiber.NewError(http.StatusInternalServerError, "storage failure")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
