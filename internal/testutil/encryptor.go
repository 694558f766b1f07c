package testutil

import (
	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() claimer.Encryptor {
	return encryption.NewTestEncryptor()
}
