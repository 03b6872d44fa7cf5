package generator

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SessionIDLength fills the CHAR(40) id column exactly.
const SessionIDLength = 40

// GenerateSessionID returns 160 random bits as lowercase hex.
func GenerateSessionID() (string, error) {
	b := make([]byte, SessionIDLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session id gen error: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidSessionID reports whether id looks like something GenerateSessionID made.
func ValidSessionID(id string) bool {
	if len(id) != SessionIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
