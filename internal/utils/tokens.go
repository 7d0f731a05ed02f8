package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const stateTokenBytes = 16

// NewStateToken: значение OAuth state для cookie и query (128 бит, base64url без паддинга).
func NewStateToken() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
