package indexvalue

import (
	"strings"

	"github.com/google/uuid"
)

// identifierLength is the length of a dashless hex identifier.
const identifierLength = 32

// ParseReferenceToken extracts the identifier embedded at the tail of a
// reference token such as "umb://document/0123456789abcdef0123456789abcdef".
// It reports false for tokens too short to hold one or with a non-hex tail.
func ParseReferenceToken(token string) (uuid.UUID, bool) {
	token = strings.TrimSpace(token)
	if len(token) < identifierLength {
		return uuid.Nil, false
	}

	tail := token[len(token)-identifierLength:]
	if strings.ContainsRune(tail, '-') {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(tail)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
