package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/family-messenger/securecore/internal/allowlist"
	"github.com/family-messenger/securecore/internal/auth"
	"github.com/family-messenger/securecore/internal/config"
	"github.com/family-messenger/securecore/internal/e2ee"
	"github.com/family-messenger/securecore/internal/events"
	"github.com/family-messenger/securecore/internal/middleware"
	"github.com/family-messenger/securecore/internal/notification"
	"github.com/family-messenger/securecore/internal/otp"
	"github.com/family-messenger/securecore/internal/session"
	"github.com/family-messenger/securecore/internal/vault"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	ctx := context.Background()

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Secure storage
	var store vault.Store
	if d.Cache != nil {
		store = vault.NewRedisStore(d.Cache)
	} else {
		store = vault.NewMemoryStore()
	}
	masterKey, err := loadMasterKey(ctx, d.Cfg, store)
	if err != nil {
		return err
	}
	v, err := vault.New(masterKey, store)
	if err != nil {
		return err
	}

	// Audit trail
	bus := events.NewBus(d.Logger)
	auditLog, err := events.NewAuditLog(ctx, bus, d.Logger)
	if err != nil {
		return err
	}

	// Allowlist gate
	var rosterRepo allowlist.Repository
	if d.DB != nil {
		rosterRepo = allowlist.NewPostgresRepository(d.DB)
	} else {
		var roster []allowlist.Entry
		if d.Cfg.AllowlistPath != "" {
			roster, err = allowlist.LoadRoster(d.Cfg.AllowlistPath)
			if err != nil {
				return fmt.Errorf("load roster: %w", err)
			}
		}
		rosterRepo = allowlist.NewMemoryRepository(roster)
	}
	gate := allowlist.NewGate(rosterRepo, d.Logger)

	// OTP challenges
	var otpStore otp.Store
	if d.Cache != nil {
		otpStore = otp.NewRedisStore(d.Cache)
	} else {
		otpStore = otp.NewMemoryStore()
	}
	notifier := notification.NewLoggerNotifier(d.Logger)
	otps := otp.NewService(v, otpStore, notifier, d.Logger)

	// Message keys
	var keyring e2ee.Keyring
	if d.DB != nil {
		keyring = e2ee.NewPostgresKeyring(d.DB)
	} else {
		keyring = e2ee.NewMemoryKeyring()
	}
	e2eeSvc := e2ee.NewService(v, keyring, d.Logger)

	// Device session
	sessionCfg := session.DefaultConfig()
	if d.Cfg.InactivityTimeout > 0 {
		sessionCfg.MaxInactivity = d.Cfg.InactivityTimeout
	}
	if d.Cfg.MaxSessionDuration > 0 {
		sessionCfg.MaxSessionDuration = d.Cfg.MaxSessionDuration
	}
	biometric := session.Unavailable()
	sessionCtl, err := session.New(ctx, sessionCfg, v, biometric, bus, d.Logger)
	if err != nil {
		return err
	}

	// Login orchestration
	tokens := auth.NewTokenIssuer([]byte(d.Cfg.JWTSecret), d.Cfg.AccessTokenTTL, d.Cfg.RefreshTokenTTL)
	authSvc := auth.NewService(gate, otps, biometric, tokens, bus, d.Logger)

	authHandler := auth.NewHandler(authSvc)
	sessionHandler := session.NewHandler(sessionCtl)
	messageHandler := e2ee.NewHandler(e2eeSvc, keyring)
	auditHandler := events.NewHandler(auditLog)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Protected routes
	jwtmw := middleware.JWTAuth(tokens)
	protected := api.Group("", jwtmw)
	RegisterSessionRoutes(protected, sessionHandler)
	RegisterMessageRoutes(protected, messageHandler)
	RegisterAuditRoutes(protected, auditHandler)

	return nil
}

// loadMasterKey resolves the vault master key: an explicit hex key wins,
// otherwise the passphrase is stretched with the per-install salt.
func loadMasterKey(ctx context.Context, cfg config.Config, store vault.Store) ([]byte, error) {
	if cfg.VaultMasterKey != "" {
		return vault.ParseKey(cfg.VaultMasterKey)
	}
	salt, err := vault.EnsureSalt(ctx, store)
	if err != nil {
		return nil, err
	}
	return vault.DeriveKey(cfg.VaultPassphrase, salt), nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
