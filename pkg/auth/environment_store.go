package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads the API key from MOLTBOOK_API_KEY. It is read-only
// and always consulted first, so an exported key overrides any stored one.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based key store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the API key from the environment
func (e *EnvironmentStore) Retrieve() (*Credential, error) {
	apiKey := os.Getenv("MOLTBOOK_API_KEY")
	if apiKey == "" {
		return nil, ErrKeyNotFound
	}

	return &Credential{
		APIKey:       apiKey,
		LastModified: time.Now(),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete() error {
	return ErrStoreUnavailable
}

// Exists checks whether the environment carries a key
func (e *EnvironmentStore) Exists() bool {
	return os.Getenv("MOLTBOOK_API_KEY") != ""
}
