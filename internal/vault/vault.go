// Package vault encrypts the credentials the app keeps on disk between
// sessions: the refresh token and the cached contact fields echoed to the
// payment confirmation endpoint.
package vault

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrNotFound = errors.New("vault: entry not found")

type Vault struct {
	mu      sync.Mutex
	path    string
	key     []byte
	entries map[string][]byte
}

// New opens the vault file at path, decrypting it with a 32-byte key.
func New(path string, key []byte) (*Vault, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("vault.New: key must be %d bytes", chacha20poly1305.KeySize)
	}
	v := &Vault{path: path, key: key, entries: map[string][]byte{}}
	if err := v.load(); err != nil {
		return nil, err
	}
	return v, nil
}

// Set stores a secret under name and persists the vault.
func (v *Vault) Set(name string, secret []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[name] = append([]byte(nil), secret...)
	return v.save()
}

// Get returns the secret stored under name.
func (v *Vault) Get(name string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	secret, ok := v.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), secret...), nil
}

// Delete removes a secret and persists the vault.
func (v *Vault) Delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.entries, name)
	return v.save()
}

func (v *Vault) load() error {
	blob, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("vault: read %s: %w", v.path, err)
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if len(blob) < aead.NonceSize() {
		return errors.New("vault: file too short")
	}
	nonce, box := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return fmt.Errorf("vault: open: %w", err)
	}
	if err := json.Unmarshal(plain, &v.entries); err != nil {
		return fmt.Errorf("vault: decode: %w", err)
	}
	return nil
}

func (v *Vault) save() error {
	plain, err := json.Marshal(v.entries)
	if err != nil {
		return fmt.Errorf("vault: encode: %w", err)
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("vault: nonce: %w", err)
	}
	blob := append(nonce, aead.Seal(nil, nonce, plain, nil)...)

	if err := os.WriteFile(v.path, blob, 0o600); err != nil {
		return fmt.Errorf("vault: write %s: %w", v.path, err)
	}
	return nil
}
