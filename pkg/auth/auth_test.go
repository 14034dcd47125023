package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStore is an in-memory KeyStore for exercising the manager chain
type mockStore struct {
	cred     *Credential
	readOnly bool
}

func (m *mockStore) Store(cred *Credential) error {
	if m.readOnly {
		return ErrStoreUnavailable
	}
	c := *cred
	m.cred = &c
	return nil
}

func (m *mockStore) Retrieve() (*Credential, error) {
	if m.cred == nil {
		return nil, ErrKeyNotFound
	}
	c := *m.cred
	return &c, nil
}

func (m *mockStore) Delete() error {
	if m.readOnly || m.cred == nil {
		return ErrKeyNotFound
	}
	m.cred = nil
	return nil
}

func (m *mockStore) Exists() bool { return m.cred != nil }

func TestManagerStoreSkipsReadOnlyBackend(t *testing.T) {
	readOnly := &mockStore{readOnly: true}
	writable := &mockStore{}
	m := newManagerWithStores(readOnly, writable)

	require.NoError(t, m.Store("moltbook-key-123"))

	assert.Nil(t, readOnly.cred)
	require.NotNil(t, writable.cred)
	assert.Equal(t, "moltbook-key-123", writable.cred.APIKey)
	assert.False(t, writable.cred.LastModified.IsZero())
}

func TestManagerRetrieveFirstBackendWins(t *testing.T) {
	first := &mockStore{cred: &Credential{APIKey: "from-first"}}
	second := &mockStore{cred: &Credential{APIKey: "from-second"}}
	m := newManagerWithStores(first, second)

	key, err := m.ResolveAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "from-first", key)
}

func TestManagerRetrieveFallsThrough(t *testing.T) {
	m := newManagerWithStores(&mockStore{}, &mockStore{cred: &Credential{APIKey: "fallback"}})

	key, err := m.ResolveAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "fallback", key)
}

func TestManagerRetrieveNotFound(t *testing.T) {
	m := newManagerWithStores(&mockStore{}, &mockStore{})

	_, err := m.ResolveAPIKey()
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestManagerRejectsEmptyKey(t *testing.T) {
	m := newManagerWithStores(&mockStore{})
	assert.ErrorIs(t, m.Store(""), ErrInvalidKey)
}

func TestManagerDeleteAllBackends(t *testing.T) {
	first := &mockStore{cred: &Credential{APIKey: "k"}}
	second := &mockStore{cred: &Credential{APIKey: "k"}}
	m := newManagerWithStores(first, second)

	require.NoError(t, m.Delete())
	assert.Nil(t, first.cred)
	assert.Nil(t, second.cred)

	assert.ErrorIs(t, m.Delete(), ErrKeyNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("MOLTBOOK_API_KEY", "env-key")

	store := NewEnvironmentStore()
	assert.True(t, store.Exists())

	cred, err := store.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, "env-key", cred.APIKey)

	assert.ErrorIs(t, store.Store(&Credential{APIKey: "x"}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(), ErrStoreUnavailable)
}

func TestEnvironmentStoreEmpty(t *testing.T) {
	t.Setenv("MOLTBOOK_API_KEY", "")

	store := NewEnvironmentStore()
	assert.False(t, store.Exists())

	_, err := store.Retrieve()
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestEncryptedFileStoreRoundTrip(t *testing.T) {
	t.Setenv("MOLTSCRAPER_PASSPHRASE", "test-passphrase")
	path := filepath.Join(t.TempDir(), "apikey.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	assert.False(t, store.Exists())
	require.NoError(t, store.Store(&Credential{APIKey: "secret-key"}))
	assert.True(t, store.Exists())

	// A fresh store with the same passphrase reads it back
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	cred, err := reopened.Retrieve()
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cred.APIKey)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apikey.enc")

	t.Setenv("MOLTSCRAPER_PASSPHRASE", "right")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{APIKey: "secret-key"}))

	t.Setenv("MOLTSCRAPER_PASSPHRASE", "wrong")
	wrong, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = wrong.Retrieve()
	assert.Error(t, err)
}

func TestEncryptedFileStoreDelete(t *testing.T) {
	t.Setenv("MOLTSCRAPER_PASSPHRASE", "test-passphrase")
	path := filepath.Join(t.TempDir(), "apikey.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	assert.ErrorIs(t, store.Delete(), ErrKeyNotFound)

	require.NoError(t, store.Store(&Credential{APIKey: "secret-key"}))
	require.NoError(t, store.Delete())
	assert.False(t, store.Exists())
}

func TestKeyFileIsNotPlaintext(t *testing.T) {
	t.Setenv("MOLTSCRAPER_PASSPHRASE", "test-passphrase")
	path := filepath.Join(t.TempDir(), "apikey.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{APIKey: "very-secret-key"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "very-secret-key")
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "********", MaskKey("short"))
	assert.Equal(t, "molt...-key", MaskKey("moltbook_secret-key"))
}
