package core

import (
	"strings"

	"github.com/google/uuid"
)

// temporaryPrefix cannot occur in a UUID, so temporary ids never collide with
// ids assigned by the backend.
const temporaryPrefix = "optimistic:"

func NewTemporaryID() string {
	return temporaryPrefix + uuid.NewString()
}

func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, temporaryPrefix)
}
