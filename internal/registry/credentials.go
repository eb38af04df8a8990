package registry

import (
	"context"
	"strings"
	"sync"
)

// SecretGetter reads a stored secret.
type SecretGetter interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Credentials holds the current registry token. The client reads it on every
// request, so Set takes effect for subsequent calls without rebuilding clients.
type Credentials struct {
	mu    sync.RWMutex
	token string
}

// NewCredentials creates an empty credential holder.
func NewCredentials() *Credentials {
	return &Credentials{}
}

// Set replaces the current token. Blank clears it.
func (c *Credentials) Set(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// Token returns the current token and whether one is set.
func (c *Credentials) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// Load reads key from store into the holder. Called once at startup and again
// whenever the stored credential changes.
func (c *Credentials) Load(ctx context.Context, store SecretGetter, key string) error {
	token, ok, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		token = ""
	}
	c.Set(token)
	return nil
}
