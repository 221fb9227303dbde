package allowlist

import "time"

// Roles a roster entry can hold.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Entry is one permitted identity on the invite-only roster. The roster is
// read-only to this core; provisioning happens elsewhere.
type Entry struct {
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"is_active"`
}
