package session

import "time"

// Phase is the lifecycle stage of the device session. Transitions are total:
// the controller always persists a complete state, never a partial one.
type Phase string

const (
	PhaseEnded          Phase = "ended"
	PhaseActiveUnlocked Phase = "active_unlocked"
	PhaseActiveLocked   Phase = "active_locked"
)

// State is the single persisted session record for the device.
type State struct {
	Phase          Phase     `json:"phase"`
	LastActivityAt time.Time `json:"last_activity_at"`
	StartedAt      time.Time `json:"started_at"`
	FailedAttempts int       `json:"failed_attempts"`
	// LockedUntil marks an account-level lockout, independent of Phase.
	// The zero value means no lockout.
	LockedUntil time.Time `json:"locked_until,omitempty"`
}

// Config holds the operator-tunable session policy.
type Config struct {
	MaxInactivity            time.Duration `json:"max_inactivity"`
	MaxSessionDuration       time.Duration `json:"max_session_duration"`
	RequireBiometricOnResume bool          `json:"require_biometric_on_resume"`
	AutoLockOnBackground     bool          `json:"auto_lock_on_background"`
	MaxFailedAttempts        int           `json:"max_failed_attempts"`
	LockoutDuration          time.Duration `json:"lockout_duration"`
}

// DefaultConfig mirrors the policy the mobile client ships with.
func DefaultConfig() Config {
	return Config{
		MaxInactivity:            15 * time.Minute,
		MaxSessionDuration:       8 * time.Hour,
		RequireBiometricOnResume: true,
		AutoLockOnBackground:     true,
		MaxFailedAttempts:        3,
		LockoutDuration:          30 * time.Minute,
	}
}

// AppState is the host application's foreground/background status as reported
// by the platform.
type AppState string

const (
	AppStateForeground AppState = "foreground"
	AppStateBackground AppState = "background"
	AppStateInactive   AppState = "inactive"
)
