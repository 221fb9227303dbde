package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/family-messenger/securecore/internal/auth"
)

func setupRateLimitApp(t *testing.T, maxPerMin int) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(LoginRateLimit(cache, maxPerMin))
	app.Post("/login", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, cleanup
}

func postLogin(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginRateLimitThrottlesPerEmail(t *testing.T) {
	app, cleanup := setupRateLimitApp(t, 3)
	defer cleanup()

	body := `{"email":"ana@family.com"}`
	for i := 0; i < 3; i++ {
		if code := postLogin(t, app, body); code != fiber.StatusOK {
			t.Fatalf("attempt %d: expected %d got %d", i+1, fiber.StatusOK, code)
		}
	}
	if code := postLogin(t, app, body); code != fiber.StatusTooManyRequests {
		t.Fatalf("expected %d got %d", fiber.StatusTooManyRequests, code)
	}

	// A different email keeps its own counter.
	if code := postLogin(t, app, `{"email":"omar@family.com"}`); code != fiber.StatusOK {
		t.Fatalf("unrelated email throttled: %d", code)
	}
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	issuer := auth.NewTokenIssuer([]byte("test-signing-secret"), 15*time.Minute, time.Hour)
	pair, err := issuer.Issue("ana@family.com", "admin")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	app := fiber.New()
	app.Use(JWTAuth(issuer))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"email": c.Locals("email"), "role": c.Locals("role")})
	})

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+pair.AccessToken)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}
}

func TestJWTAuthRejectsMissingOrBadToken(t *testing.T) {
	issuer := auth.NewTokenIssuer([]byte("test-signing-secret"), 15*time.Minute, time.Hour)

	app := fiber.New()
	app.Use(JWTAuth(issuer))
	app.Get("/me", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("missing token: expected %d got %d", fiber.StatusUnauthorized, resp.StatusCode)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-token")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("garbage token: expected %d got %d", fiber.StatusUnauthorized, resp.StatusCode)
	}
}

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected a generated request id header")
	}
}
