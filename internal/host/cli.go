package host

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	listTTL     = 5 * time.Second
	listTimeout = 30 * time.Second
)

// runFunc runs the editor binary and returns its combined output.
type runFunc func(ctx context.Context, bin string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, bin string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, bin, args...).CombinedOutput()
}

// CodeCLI drives the editor's command line to install and remove extensions.
type CodeCLI struct {
	bin    string
	logger *zap.Logger
	run    runFunc
	now    func() time.Time

	mu       sync.Mutex
	versions map[string]string
	listedAt time.Time
}

// NewCodeCLI creates a host backed by the given editor binary.
func NewCodeCLI(bin string, logger *zap.Logger) *CodeCLI {
	if bin == "" {
		bin = "code"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CodeCLI{bin: bin, logger: logger, run: runCommand, now: time.Now}
}

// InstallFromFile runs --install-extension with the staged VSIX.
func (c *CodeCLI) InstallFromFile(ctx context.Context, path string) error {
	defer c.invalidate()
	return c.exec(ctx, "--install-extension", path, "--force")
}

// Uninstall runs --uninstall-extension.
func (c *CodeCLI) Uninstall(ctx context.Context, extensionID string) error {
	defer c.invalidate()
	return c.exec(ctx, "--uninstall-extension", extensionID)
}

// InstalledVersion looks id up in a briefly cached --list-extensions output.
func (c *CodeCLI) InstalledVersion(extensionID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.versions == nil || c.now().Sub(c.listedAt) > listTTL {
		ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
		out, err := c.run(ctx, c.bin, "--list-extensions", "--show-versions")
		cancel()
		if err != nil {
			c.logger.Warn("Failed to list extensions", zap.String("bin", c.bin), zap.Error(err))
			if c.versions == nil {
				return "", false
			}
		} else {
			c.versions = parseList(out)
			c.listedAt = c.now()
		}
	}

	v, ok := c.versions[normalizeID(extensionID)]
	return v, ok
}

// Reload drops the cached extension list so the next lookup asks the editor.
func (c *CodeCLI) Reload(context.Context) error {
	c.invalidate()
	return nil
}

func (c *CodeCLI) exec(ctx context.Context, args ...string) error {
	out, err := c.run(ctx, c.bin, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s %s: %w", c.bin, args[0], err)
		}
		return fmt.Errorf("%s %s: %w: %s", c.bin, args[0], err, msg)
	}
	c.logger.Debug("Editor CLI succeeded", zap.Strings("args", args))
	return nil
}

func (c *CodeCLI) invalidate() {
	c.mu.Lock()
	c.versions = nil
	c.mu.Unlock()
}

// parseList reads "publisher.name@version" lines.
func parseList(out []byte) map[string]string {
	versions := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		id, ver, ok := strings.Cut(line, "@")
		if !ok || id == "" || ver == "" || !strings.Contains(id, ".") {
			continue
		}
		versions[normalizeID(id)] = ver
	}
	return versions
}
