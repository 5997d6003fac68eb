package models

// Role is the acting user's standing in the game.
type Role string

const (
	RoleGM     Role = "gm"
	RolePlayer Role = "player"
)

// Actor is the user on whose behalf an import runs.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsGM reports whether the actor holds the privileged role.
func (a Actor) IsGM() bool {
	return a.Role == RoleGM
}

// ParseRole maps a claim or flag value onto a Role. Unknown values yield "".
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleGM, RolePlayer:
		return Role(s)
	default:
		return ""
	}
}
