// Package session runs the device session state machine: lock, unlock and
// end transitions, inactivity and absolute-duration timers, and account
// lockout after repeated failed unlocks.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/family-messenger/securecore/internal/events"
	"github.com/family-messenger/securecore/internal/secerr"
	"github.com/family-messenger/securecore/internal/vault"
)

const (
	stateToken    = "session_state"
	configToken   = "session_config"
	passwordToken = "unlock_password"

	unlockPrompt = "Unlock Family Messenger"
)

// Controller owns the session state machine. It holds at most one live
// inactivity timer and one absolute-duration timer; every transition cancels
// and reschedules them under the state mutex, so a stale fire can never act
// on a session that has since moved on.
type Controller struct {
	vault     *vault.Vault
	biometric Biometric
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu              sync.Mutex
	cfg             Config
	state           State
	generation      uint64
	inactivityTimer *time.Timer
	absoluteTimer   *time.Timer
}

// New builds a controller, restoring persisted config and state. A restored
// session past its inactivity or absolute budget is ended immediately.
func New(ctx context.Context, cfg Config, v *vault.Vault, biometric Biometric, publisher events.Publisher, logger *slog.Logger) (*Controller, error) {
	c := &Controller{
		vault:     v,
		biometric: biometric,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
		state:     State{Phase: PhaseEnded},
	}

	if err := c.restoreConfig(ctx); err != nil {
		return nil, err
	}
	if err := c.restoreState(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) restoreConfig(ctx context.Context) error {
	payload, err := c.vault.GetToken(ctx, configToken)
	if errors.Is(err, secerr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var saved Config
	if err := json.Unmarshal([]byte(payload), &saved); err != nil {
		c.logger.Warn("discard corrupt session config", "error", err)
		return nil
	}
	c.cfg = saved
	return nil
}

func (c *Controller) restoreState(ctx context.Context) error {
	payload, err := c.vault.GetToken(ctx, stateToken)
	if errors.Is(err, secerr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var saved State
	if err := json.Unmarshal([]byte(payload), &saved); err != nil {
		c.logger.Warn("discard corrupt session state", "error", err)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if saved.Phase != PhaseEnded {
		expired := now.Sub(saved.StartedAt) > c.cfg.MaxSessionDuration ||
			now.Sub(saved.LastActivityAt) > c.cfg.MaxInactivity
		if expired {
			saved.Phase = PhaseEnded
			c.logger.Info("restored session expired, ending")
		}
	}

	c.state = saved
	if c.state.Phase == PhaseActiveUnlocked {
		c.scheduleLocked(true)
	} else if c.state.Phase == PhaseActiveLocked {
		c.scheduleLocked(false)
	}
	return c.persistLocked(ctx, c.state)
}

// SetPassword hashes and stores the fallback unlock password.
func (c *Controller) SetPassword(ctx context.Context, password string) error {
	if password == "" {
		return fmt.Errorf("password is required: %w", secerr.ErrValidation)
	}
	hash, err := c.vault.HashPassword(password)
	if err != nil {
		return err
	}
	return c.vault.StoreToken(ctx, passwordToken, hash)
}

// Start begins a fresh unlocked session. Rejected while an account lockout
// is active.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Before(c.state.LockedUntil) {
		return &secerr.LockoutError{Until: c.state.LockedUntil}
	}

	candidate := State{
		Phase:          PhaseActiveUnlocked,
		LastActivityAt: now,
		StartedAt:      now,
	}
	if err := c.persistLocked(ctx, candidate); err != nil {
		return err
	}
	c.state = candidate
	c.scheduleLocked(true)
	c.publish(ctx, events.ActionSessionStarted, nil)
	c.logger.Info("session started")
	return nil
}

// UpdateActivity refreshes the activity timestamp and restarts the
// inactivity timer. Valid only while the session is unlocked.
func (c *Controller) UpdateActivity(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase != PhaseActiveUnlocked {
		return fmt.Errorf("session is not unlocked: %w", secerr.ErrValidation)
	}

	candidate := c.state
	candidate.LastActivityAt = c.now()
	if err := c.persistLocked(ctx, candidate); err != nil {
		return err
	}
	c.state = candidate
	c.scheduleLocked(true)
	return nil
}

// Lock moves an unlocked session to the locked phase and cancels the
// inactivity timer. The absolute-duration timer keeps running.
func (c *Controller) Lock(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lockLocked(ctx, nil)
}

func (c *Controller) lockLocked(ctx context.Context, metadata map[string]any) error {
	switch c.state.Phase {
	case PhaseEnded:
		return fmt.Errorf("no active session: %w", secerr.ErrNotFound)
	case PhaseActiveLocked:
		return nil
	}

	candidate := c.state
	candidate.Phase = PhaseActiveLocked
	if err := c.persistLocked(ctx, candidate); err != nil {
		return err
	}
	c.state = candidate
	c.scheduleLocked(false)
	c.publish(ctx, events.ActionSessionLocked, metadata)
	c.logger.Info("session locked")
	return nil
}

// Unlock attempts the biometric factor first when configured and available,
// falling back to the stored password. Both factors failing burns one
// attempt; reaching the attempt budget locks the account for the configured
// duration.
func (c *Controller) Unlock(ctx context.Context, password string) error {
	c.mu.Lock()
	if c.state.Phase == PhaseEnded {
		c.mu.Unlock()
		return fmt.Errorf("no active session: %w", secerr.ErrNotFound)
	}
	if c.state.Phase == PhaseActiveUnlocked {
		c.mu.Unlock()
		return nil
	}
	if until := c.state.LockedUntil; c.now().Before(until) {
		c.mu.Unlock()
		return &secerr.LockoutError{Until: until}
	}
	cfg := c.cfg
	c.mu.Unlock()

	// Factor evaluation happens outside the state lock: the biometric prompt
	// can block on the user.
	ok := false
	if cfg.RequireBiometricOnResume {
		ok = c.tryBiometric(ctx)
	}
	if !ok && password != "" {
		ok = c.tryPassword(ctx, password)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The session may have ended or been restarted while the user was at the
	// prompt; an unlock against anything but a locked session is a no-op.
	if c.state.Phase != PhaseActiveLocked {
		return fmt.Errorf("session state changed during unlock: %w", secerr.ErrValidation)
	}

	if ok {
		candidate := c.state
		candidate.Phase = PhaseActiveUnlocked
		candidate.FailedAttempts = 0
		candidate.LockedUntil = time.Time{}
		candidate.LastActivityAt = c.now()
		if err := c.persistLocked(ctx, candidate); err != nil {
			return err
		}
		c.state = candidate
		c.scheduleLocked(true)
		c.publish(ctx, events.ActionSessionUnlocked, nil)
		c.logger.Info("session unlocked")
		return nil
	}

	candidate := c.state
	candidate.FailedAttempts++
	lockedOut := candidate.FailedAttempts >= cfg.MaxFailedAttempts
	if lockedOut {
		candidate.LockedUntil = c.now().Add(cfg.LockoutDuration)
	}
	if err := c.persistLocked(ctx, candidate); err != nil {
		return err
	}
	c.state = candidate

	if lockedOut {
		c.publish(ctx, events.ActionAccountLocked, map[string]any{"failed_attempts": candidate.FailedAttempts})
		c.logger.Warn("account locked after repeated failed unlocks", "failed_attempts", candidate.FailedAttempts)
		return &secerr.LockoutError{Until: candidate.LockedUntil}
	}
	return fmt.Errorf("unlock failed: %w", secerr.ErrValidation)
}

func (c *Controller) tryBiometric(ctx context.Context) bool {
	hasHardware, err := c.biometric.HasHardware(ctx)
	if err != nil || !hasHardware {
		return false
	}
	enrolled, err := c.biometric.IsEnrolled(ctx)
	if err != nil || !enrolled {
		return false
	}
	ok, err := c.biometric.Authenticate(ctx, unlockPrompt)
	if err != nil {
		c.logger.Warn("biometric authentication error", "error", err)
		return false
	}
	return ok
}

func (c *Controller) tryPassword(ctx context.Context, password string) bool {
	hash, err := c.vault.GetToken(ctx, passwordToken)
	if err != nil {
		return false
	}
	return c.vault.VerifyPassword(hash, password)
}

// End terminates the session from any phase, cancels all timers and drops
// in-memory sensitive material. A stale timer firing afterwards is a no-op.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endLocked(ctx, nil)
}

func (c *Controller) endLocked(ctx context.Context, metadata map[string]any) error {
	candidate := c.state
	candidate.Phase = PhaseEnded
	if err := c.persistLocked(ctx, candidate); err != nil {
		return err
	}
	c.state = candidate
	c.stopTimersLocked()
	c.publish(ctx, events.ActionSessionEnded, metadata)
	c.logger.Info("session ended")
	return nil
}

// HandleAppStateChange applies the background/foreground policy: moving to
// the background locks the session when AutoLockOnBackground is set; a
// locked session stays locked on return until Unlock succeeds.
func (c *Controller) HandleAppStateChange(ctx context.Context, appState AppState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch appState {
	case AppStateBackground, AppStateInactive:
		if c.cfg.AutoLockOnBackground && c.state.Phase == PhaseActiveUnlocked {
			return c.lockLocked(ctx, map[string]any{"reason": "background"})
		}
	case AppStateForeground:
		// Nothing to do; a locked session requires the unlock flow.
	}
	return nil
}

// UpdateConfig persists the new policy and reschedules timers against it.
func (c *Controller) UpdateConfig(ctx context.Context, cfg Config) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode session config: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.vault.StoreToken(ctx, configToken, string(payload)); err != nil {
		return err
	}
	c.cfg = cfg
	switch c.state.Phase {
	case PhaseActiveUnlocked:
		c.scheduleLocked(true)
	case PhaseActiveLocked:
		c.scheduleLocked(false)
	}
	return nil
}

// State returns a copy of the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns a copy of the active session policy.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// persistLocked writes the candidate state; the in-memory state is only
// replaced by the caller after the write succeeds, so no partial transition
// is ever observable.
func (c *Controller) persistLocked(ctx context.Context, candidate State) error {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	if err := c.vault.StoreToken(ctx, stateToken, string(payload)); err != nil {
		return err
	}
	return nil
}

// scheduleLocked replaces the live timers. The generation bump invalidates
// any timer that already fired and is waiting on the mutex.
func (c *Controller) scheduleLocked(withInactivity bool) {
	c.stopTimersLocked()
	generation := c.generation

	if withInactivity {
		c.inactivityTimer = time.AfterFunc(c.cfg.MaxInactivity, func() {
			c.onInactivityTimeout(generation)
		})
	}

	remaining := c.state.StartedAt.Add(c.cfg.MaxSessionDuration).Sub(c.now())
	if remaining < 0 {
		remaining = 0
	}
	c.absoluteTimer = time.AfterFunc(remaining, func() {
		c.onAbsoluteTimeout(generation)
	})
}

func (c *Controller) stopTimersLocked() {
	c.generation++
	if c.inactivityTimer != nil {
		c.inactivityTimer.Stop()
		c.inactivityTimer = nil
	}
	if c.absoluteTimer != nil {
		c.absoluteTimer.Stop()
		c.absoluteTimer = nil
	}
}

func (c *Controller) onInactivityTimeout(generation uint64) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation || c.state.Phase != PhaseActiveUnlocked {
		return
	}
	if err := c.lockLocked(ctx, map[string]any{"reason": "inactivity_timeout"}); err != nil {
		c.logger.Error("inactivity lock failed", "error", err)
	}
}

func (c *Controller) onAbsoluteTimeout(generation uint64) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation || c.state.Phase == PhaseEnded {
		return
	}
	if err := c.endLocked(ctx, map[string]any{"reason": "max_session_duration"}); err != nil {
		c.logger.Error("forced session end failed", "error", err)
	}
}

func (c *Controller) publish(ctx context.Context, action string, metadata map[string]any) {
	if c.publisher == nil {
		return
	}
	err := c.publisher.Publish(ctx, events.Event{
		Action:   action,
		At:       c.now().UTC(),
		Metadata: metadata,
	})
	if err != nil {
		c.logger.Warn("publish audit event", "action", action, "error", err)
	}
}
