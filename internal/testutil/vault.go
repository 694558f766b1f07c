package testutil

import (
	"github.com/michal-palko/smart-claimer/internal/claimer"
	"github.com/michal-palko/smart-claimer/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() claimer.Vault {
	return vault.NewMemoryVault("test-vault")
}
