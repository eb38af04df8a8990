package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/shared/faults"
)

const stagePattern = "extsync-*.vsix"

// errChecksum reports a staged file whose digest differs from the listing.
var errChecksum = errors.New("checksum mismatch")

// readTracker remembers read-side failures so they can be told apart from
// write-side failures after io.Copy returns.
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// stage streams the artifact into a fresh temp file. The returned path is set
// whenever a file was created, even on error, so the caller can remove it.
// The file is only reported staged once Sync and Close have both succeeded.
func (o *Orchestrator) stage(ctx context.Context, log *zap.Logger, ident catalog.Identity) (string, int64, error) {
	log.Debug("State transition", zap.String("state", string(StateStreaming)))

	body, err := o.fetcher.OpenArtifact(ctx, ident.ArtifactRef())
	if err != nil {
		if faults.KindOf(err) == faults.KindUnknown {
			err = faults.New(faults.KindTransport, "open artifact", err)
		}
		return "", 0, err
	}
	defer body.Close()

	f, err := os.CreateTemp(o.stagingDir, stagePattern)
	if err != nil {
		return "", 0, faults.New(faults.KindStaging, "create temp file", err)
	}
	path := f.Name()

	src := &readTracker{r: body}
	digest := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, digest), src)
	o.metrics.AddStagedBytes(n)
	if err != nil {
		_ = f.Close()
		if src.err != nil {
			return path, n, faults.New(faults.KindTransport, "read artifact", src.err)
		}
		return path, n, faults.New(faults.KindStaging, "write staged file", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return path, n, faults.New(faults.KindStaging, "sync staged file", err)
	}
	if err := f.Close(); err != nil {
		return path, n, faults.New(faults.KindStaging, "close staged file", err)
	}

	if want := strings.ToLower(strings.TrimSpace(ident.FileSHA256)); want != "" {
		if got := hex.EncodeToString(digest.Sum(nil)); got != want {
			return path, n, faults.New(faults.KindStaging, "verify staged file",
				fmt.Errorf("%w: want %s, got %s", errChecksum, want, got))
		}
	}

	log.Debug("State transition",
		zap.String("state", string(StateStaged)),
		zap.String("path", path),
		zap.Int64("bytes", n))
	return path, n, nil
}

// cleanup removes a staged file. Failure is logged only.
func (o *Orchestrator) cleanup(log *zap.Logger, path string) {
	log.Debug("State transition", zap.String("state", string(StateCleanup)), zap.String("path", path))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to remove staged file", zap.String("path", path), zap.Error(err))
	}
}
