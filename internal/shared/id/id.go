// Package id generates sortable identifiers for install, uninstall, preview
// and sync operations so their log lines can be correlated.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// OperationID identifies one install, uninstall or preview run.
type OperationID string

// SyncID identifies one catalog rebuild.
type SyncID string

const (
	InstallPrefix   = "inst"
	UninstallPrefix = "unin"
	PreviewPrefix   = "prev"
	SyncPrefix      = "sync"
	RequestPrefix   = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewOperationID generates an id for an install, uninstall or preview run.
func NewOperationID(prefix string) OperationID {
	return OperationID(Default().GenerateWithPrefix(prefix))
}

// NewSyncID generates an id for a catalog rebuild.
func NewSyncID() SyncID {
	return SyncID(Default().GenerateWithPrefix(SyncPrefix))
}

// NewRequestID generates an id for an API request trace or span.
func NewRequestID() string {
	return Default().GenerateWithPrefix(RequestPrefix)
}

func (id OperationID) String() string { return string(id) }
func (id SyncID) String() string      { return string(id) }

// Timestamp extracts the creation time from a prefixed or bare ULID string.
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
