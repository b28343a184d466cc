package collaboration

import (
	"fmt"
	"regexp"
	"strings"
)

// Compiled once; matches a minimal local@domain.tld shape
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// InviteManager normalizes editor identities and builds invite links
type InviteManager struct {
	scheme string
	gameID string
}

// NewInviteManager creates an invite manager for the current game
func NewInviteManager(scheme, gameID string) *InviteManager {
	if scheme == "" {
		scheme = DefaultInviteScheme
	}
	return &InviteManager{scheme: scheme, gameID: gameID}
}

// NormalizeEmail trims and lower-cases email and validates the result
func NormalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if !emailRegex.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return normalized, nil
}

// InviteLink returns <scheme>://join/<id>, using sessionID if given, else
// the current game, else FallbackGameID
func (im *InviteManager) InviteLink(sessionID string) string {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		id = im.gameID
	}
	if id == "" {
		id = FallbackGameID
	}
	return fmt.Sprintf("%s://join/%s", im.scheme, id)
}
