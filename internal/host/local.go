package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/extsync/internal/domain/version"
)

const (
	manifestName   = "package.json"
	archivePrefix  = "extension/"
	maxExtractSize = 512 << 20
)

type manifest struct {
	Publisher string `json:"publisher"`
	Name      string `json:"name"`
	Version   string `json:"version"`
}

func (m manifest) id() string {
	return m.Publisher + "." + m.Name
}

type installed struct {
	id      string
	version string
	dir     string
}

// LocalHost manages an extensions directory directly. Each extension lives
// in <dir>/<publisher.name>-<version> with its package.json at the top.
type LocalHost struct {
	dir    string
	logger *zap.Logger

	mu     sync.RWMutex
	index  map[string]installed
	loaded bool
}

// NewLocalHost creates a host for dir. The directory is scanned lazily.
func NewLocalHost(dir string, logger *zap.Logger) *LocalHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalHost{dir: dir, logger: logger, index: make(map[string]installed)}
}

// Dir returns the extensions directory.
func (h *LocalHost) Dir() string {
	return h.dir
}

// Reload rescans the extensions directory.
func (h *LocalHost) Reload(ctx context.Context) error {
	index := make(map[string]installed)
	var mu sync.Mutex

	root := filepath.Clean(h.dir)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		h.swapIndex(index)
		return nil
	}

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil
		}

		rel, _ := filepath.Rel(root, p)
		depth := len(strings.Split(rel, string(os.PathSeparator)))
		if d.IsDir() {
			if rel != "." && (depth > 1 || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if depth != 2 || d.Name() != manifestName {
			return nil
		}

		m, err := readManifestFile(p)
		if err != nil || m.Publisher == "" || m.Name == "" {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		key := normalizeID(m.id())
		// several versions on disk: keep the one the editor would load
		if prev, ok := index[key]; ok && version.Compare(prev.version, m.Version) >= 0 {
			return nil
		}
		index[key] = installed{id: m.id(), version: m.Version, dir: filepath.Dir(p)}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", root, err)
	}

	h.swapIndex(index)
	h.logger.Debug("Extensions indexed", zap.String("dir", root), zap.Int("count", len(index)))
	return nil
}

func (h *LocalHost) swapIndex(index map[string]installed) {
	h.mu.Lock()
	h.index = index
	h.loaded = true
	h.mu.Unlock()
}

func (h *LocalHost) ensureLoaded() {
	h.mu.RLock()
	loaded := h.loaded
	h.mu.RUnlock()
	if loaded {
		return
	}
	if err := h.Reload(context.Background()); err != nil {
		h.logger.Warn("Failed to index extensions", zap.Error(err))
	}
}

// InstalledVersion reports the version of id on disk.
func (h *LocalHost) InstalledVersion(extensionID string) (string, bool) {
	h.ensureLoaded()

	h.mu.RLock()
	defer h.mu.RUnlock()
	ext, ok := h.index[normalizeID(extensionID)]
	return ext.version, ok
}

// InstallFromFile extracts a VSIX into the extensions directory, replacing
// any other installed version of the same extension.
func (h *LocalHost) InstallFromFile(ctx context.Context, path string) error {
	h.ensureLoaded()

	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open vsix: %w", err)
	}
	defer zr.Close()

	m, err := archiveManifest(zr)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("create extensions dir: %w", err)
	}
	tmp, err := os.MkdirTemp(h.dir, ".extsync-install-*")
	if err != nil {
		return fmt.Errorf("create install dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := extract(ctx, zr, tmp); err != nil {
		return err
	}

	target := filepath.Join(h.dir, m.id()+"-"+m.Version)
	key := normalizeID(m.id())

	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.index[key]; ok && prev.dir != target {
		if err := os.RemoveAll(prev.dir); err != nil {
			h.logger.Warn("Failed to remove previous version", zap.String("dir", prev.dir), zap.Error(err))
		}
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("clear %s: %w", target, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}

	h.index[key] = installed{id: m.id(), version: m.Version, dir: target}
	h.logger.Info("Extension extracted",
		zap.String("extension", m.id()),
		zap.String("version", m.Version),
		zap.String("dir", target))
	return nil
}

// Uninstall removes an extension's directory.
func (h *LocalHost) Uninstall(_ context.Context, extensionID string) error {
	h.ensureLoaded()

	key := normalizeID(extensionID)

	h.mu.Lock()
	defer h.mu.Unlock()

	ext, ok := h.index[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInstalled, extensionID)
	}
	if err := os.RemoveAll(ext.dir); err != nil {
		return fmt.Errorf("remove %s: %w", ext.dir, err)
	}
	delete(h.index, key)
	h.logger.Info("Extension removed", zap.String("extension", ext.id), zap.String("dir", ext.dir))
	return nil
}

func archiveManifest(zr *zip.ReadCloser) (manifest, error) {
	var m manifest
	for _, f := range zr.File {
		if f.Name != archivePrefix+manifestName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return m, fmt.Errorf("open manifest: %w", err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, 8<<20))
		rc.Close()
		if err != nil {
			return m, fmt.Errorf("read manifest: %w", err)
		}
		if err := sonic.Unmarshal(data, &m); err != nil {
			return m, fmt.Errorf("decode manifest: %w", err)
		}
		if m.Publisher == "" || m.Name == "" || m.Version == "" {
			return m, errors.New("manifest lacks publisher, name or version")
		}
		if strings.ContainsAny(m.id()+m.Version, `/\`) || strings.Contains(m.id()+m.Version, "..") {
			return m, fmt.Errorf("unsafe extension id %q", m.id())
		}
		return m, nil
	}
	return m, errors.New("vsix has no " + archivePrefix + manifestName)
}

// extract writes every member under extension/ into dest.
func extract(ctx context.Context, zr *zip.ReadCloser, dest string) error {
	root := filepath.Clean(dest) + string(os.PathSeparator)
	var written int64

	for _, f := range zr.File {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !strings.HasPrefix(f.Name, archivePrefix) {
			continue
		}
		rel := strings.TrimPrefix(f.Name, archivePrefix)
		if rel == "" {
			continue
		}

		// Prevent zip-slip
		destPath := filepath.Join(dest, filepath.FromSlash(rel))
		if !strings.HasPrefix(destPath, root) {
			return fmt.Errorf("illegal path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}

		n, err := extractFile(f, destPath, maxExtractSize-written)
		written += n
		if err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, destPath string, budget int64) (int64, error) {
	src, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(dst, io.LimitReader(src, budget+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > budget {
		err = errors.New("archive exceeds extraction limit")
	}
	return n, err
}

func readManifestFile(path string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = sonic.Unmarshal(data, &m)
	return m, err
}
