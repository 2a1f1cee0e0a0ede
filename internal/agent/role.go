package agent

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Role is the market side an agent belongs to. Proposals always cross roles.
type Role string

const (
	RoleMan   Role = "man"
	RoleWoman Role = "woman"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists both market sides in population order.
func Roles() []Role {
	return []Role{RoleMan, RoleWoman}
}

func ParseRole(s string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(s)))
	if err := role.Validate(); err != nil {
		return "", err
	}
	return role, nil
}

func (r Role) Validate() error {
	switch r {
	case RoleMan, RoleWoman:
		return nil
	default:
		return fmt.Errorf("%w: %q (want %s|%s)", ErrUnknownRole, string(r), RoleMan, RoleWoman)
	}
}

func (r Role) Opposite() Role {
	if r == RoleWoman {
		return RoleMan
	}
	return RoleWoman
}

// ID formats the identifier of the index-th agent of a role, e.g. "woman_3".
func ID(role Role, index int) (string, error) {
	if err := role.Validate(); err != nil {
		return "", err
	}
	if index < 0 {
		return "", fmt.Errorf("agent index must be >= 0, got %d", index)
	}
	return fmt.Sprintf("%s_%d", role, index), nil
}

// ParseID splits an identifier produced by ID back into role and index.
func ParseID(id string) (Role, int, error) {
	cut := strings.LastIndex(id, "_")
	if cut <= 0 || cut == len(id)-1 {
		return "", 0, fmt.Errorf("malformed agent id: %q", id)
	}
	role, err := ParseRole(id[:cut])
	if err != nil {
		return "", 0, err
	}
	index, err := strconv.Atoi(id[cut+1:])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("malformed agent index in id %q", id)
	}
	return role, index, nil
}
