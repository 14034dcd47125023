package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Credential holds the single Moltbook API key. The key is secret material:
// it must never be logged and never written to the scrape database.
type Credential struct {
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// KeyStore is the interface for storing and retrieving the API key
type KeyStore interface {
	// Store saves the credential
	Store(cred *Credential) error

	// Retrieve gets the stored credential
	Retrieve() (*Credential, error)

	// Delete removes the stored credential
	Delete() error

	// Exists checks whether a credential is stored
	Exists() bool
}

// Errors
var (
	ErrKeyNotFound      = errors.New("api key not found")
	ErrInvalidKey       = errors.New("invalid api key")
	ErrStoreUnavailable = errors.New("key store unavailable")
)

// Manager resolves the API key through a chain of backends: environment
// variable first, then the system keychain, then an encrypted file. Writes
// go to the first writable backend.
type Manager struct {
	stores []KeyStore
}

// NewManager creates a key manager with the available storage backends
func NewManager() (*Manager, error) {
	stores := []KeyStore{NewEnvironmentStore()}

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "apikey.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	return &Manager{stores: stores}, nil
}

// newManagerWithStores is the test seam for an explicit backend chain
func newManagerWithStores(stores ...KeyStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the API key in the first backend that accepts it
func (m *Manager) Store(apiKey string) error {
	if apiKey == "" {
		return ErrInvalidKey
	}

	cred := &Credential{
		APIKey:       apiKey,
		LastModified: time.Now(),
	}

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store api key: %w", lastErr)
	}
	return errors.New("no available key stores")
}

// Retrieve gets the API key from the first backend that has one
func (m *Manager) Retrieve() (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(); err == nil && cred != nil && cred.APIKey != "" {
			return cred, nil
		}
	}
	return nil, ErrKeyNotFound
}

// ResolveAPIKey returns the API key itself, for wiring into the client
// configuration
func (m *Manager) ResolveAPIKey() (string, error) {
	cred, err := m.Retrieve()
	if err != nil {
		return "", err
	}
	return cred.APIKey, nil
}

// Delete removes the API key from every backend that holds it
func (m *Manager) Delete() error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete api key: %w", lastErr)
	}
	if !deleted {
		return ErrKeyNotFound
	}
	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "moltscraper")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "moltscraper")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "moltscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "moltscraper")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// MaskKey masks all but the first 4 and last 4 characters of the key, for
// display in the auth show command
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
