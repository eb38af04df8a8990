package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var ErrDecrypt = errors.New("secret could not be decrypted with the configured passphrase")

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

type fileContents struct {
	Salt    string            `json:"salt"`
	Entries map[string]string `json:"entries"`
}

// FileStore keeps secrets in a 0600 JSON file, each value sealed with
// NaCl secretbox under a scrypt-derived key.
type FileStore struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

// NewFileStore creates a store at path. An empty passphrase falls back to one
// derived from the host and user, which only guards against casual reads.
func NewFileStore(path, passphrase string) *FileStore {
	if passphrase == "" {
		passphrase = defaultPassphrase()
	}
	return &FileStore{path: path, passphrase: []byte(passphrase)}
}

// Put seals value and writes it under key.
func (s *FileStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.load()
	if err != nil {
		return err
	}
	salt, err := base64.StdEncoding.DecodeString(contents.Salt)
	if err != nil {
		return fmt.Errorf("corrupt secrets file salt: %w", err)
	}
	box, err := s.seal(salt, []byte(value))
	if err != nil {
		return err
	}
	contents.Entries[key] = box
	return s.save(contents)
}

// Get opens the value under key.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.load()
	if err != nil {
		return "", false, err
	}
	box, ok := contents.Entries[key]
	if !ok {
		return "", false, nil
	}
	salt, err := base64.StdEncoding.DecodeString(contents.Salt)
	if err != nil {
		return "", false, fmt.Errorf("corrupt secrets file salt: %w", err)
	}
	plain, err := s.open(salt, box)
	if err != nil {
		return "", false, err
	}
	return string(plain), true, nil
}

// Delete removes key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := contents.Entries[key]; !ok {
		return nil
	}
	delete(contents.Entries, key)
	return s.save(contents)
}

func (s *FileStore) load() (*fileContents, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		return &fileContents{
			Salt:    base64.StdEncoding.EncodeToString(salt),
			Entries: make(map[string]string),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	var contents fileContents
	if err := sonic.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}
	if contents.Entries == nil {
		contents.Entries = make(map[string]string)
	}
	return &contents, nil
}

func (s *FileStore) save(contents *fileContents) error {
	data, err := sonic.Marshal(contents)
	if err != nil {
		return fmt.Errorf("failed to encode secrets file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".secrets-*")
	if err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict secrets file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) key(salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key(s.passphrase, salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}

func (s *FileStore) seal(salt, plain []byte) (string, error) {
	key, err := s.key(salt)
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *FileStore) open(salt []byte, box string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(box)
	if err != nil || len(raw) < nonceSize {
		return nil, ErrDecrypt
	}
	key, err := s.key(salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}

func defaultPassphrase() string {
	host, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	return "extsync:" + host + ":" + home
}
