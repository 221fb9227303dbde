package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the login endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs an auth HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginResponse struct {
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	RetryAfter int64      `json:"retry_after_seconds,omitempty"`
	Role       string     `json:"role,omitempty"`
	Tokens     *TokenPair `json:"tokens,omitempty"`
}

// Login runs the composed authentication sequence. The response status code
// mirrors the decision: 200 for success or a pending OTP round trip, 401 for
// a denied attempt, 423 while the identifier is lockout-blocked.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.FirstName == "" || req.LastName == "" || req.Email == "" {
		return fiber.NewError(http.StatusBadRequest, "first_name, last_name and email are required")
	}

	result, err := h.service.Login(c.UserContext(), req)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	resp := loginResponse{
		Status: string(result.Status),
		Reason: result.Reason,
		Role:   result.Entry.Role,
		Tokens: result.Tokens,
	}
	switch result.Status {
	case StatusOK, StatusOTPRequired:
		return c.Status(http.StatusOK).JSON(resp)
	case StatusBlocked:
		resp.RetryAfter = int64(result.RetryAfter.Seconds())
		return c.Status(http.StatusLocked).JSON(resp)
	default:
		return c.Status(http.StatusUnauthorized).JSON(resp)
	}
}
