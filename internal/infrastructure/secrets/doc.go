// Package secrets stores the registry access token.
//
// FileStore seals each value with NaCl secretbox using a key derived by
// scrypt from EXTSYNC_SECRET_PASSPHRASE and a per-file salt, and writes the
// file with 0600 permissions. MemoryStore backs tests and ephemeral runs.
//
// Example Usage:
//
//	store := secrets.NewFileStore(cfg.Storage.SecretsFile, cfg.Storage.SecretPassphrase)
//	err := store.Put(ctx, secrets.RegistryTokenKey, token)
//	token, ok, err := store.Get(ctx, secrets.RegistryTokenKey)
package secrets
