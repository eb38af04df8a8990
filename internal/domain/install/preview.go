package install

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/zip"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/shared/faults"
	"github.com/GriffinCanCode/extsync/internal/shared/id"
)

const (
	manifestPath = "extension/package.json"
	// maxEntrySize caps how much of a single archive member is read.
	maxEntrySize = 8 << 20
)

var errNoManifest = errors.New("archive has no " + manifestPath)

type manifest struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Publisher   string            `json:"publisher"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Icon        string            `json:"icon"`
	Categories  []string          `json:"categories"`
	Engines     map[string]string `json:"engines"`
	Repository  interface{}       `json:"repository"`
}

// repositoryURL accepts both the string and the {type, url} object form.
func (m manifest) repositoryURL() string {
	switch r := m.Repository.(type) {
	case string:
		return r
	case map[string]interface{}:
		if u, ok := r["url"].(string); ok {
			return u
		}
	}
	return ""
}

var (
	markdown  = goldmark.New(goldmark.WithExtensions(extension.GFM))
	sanitizer = bluemonday.UGCPolicy()
)

// Preview stages the artifact and reads its manifest, icon and documentation
// without installing it. The staged file is removed before returning.
func (o *Orchestrator) Preview(ctx context.Context, ident catalog.Identity) (*Details, error) {
	v, err, _ := o.group.Do("preview:"+ident.ArtifactRef().String(), func() (interface{}, error) {
		return o.preview(ctx, ident)
	})
	details, _ := v.(*Details)
	return details, err
}

func (o *Orchestrator) preview(ctx context.Context, ident catalog.Identity) (*Details, error) {
	opID := id.NewOperationID(id.PreviewPrefix)
	log := o.logger.With(
		zap.String("op_id", opID.String()),
		zap.String("extension", ident.ExtensionID),
		zap.String("version", ident.Version))
	start := time.Now()

	details, err := func() (*Details, error) {
		staged, n, err := o.stage(ctx, log, ident)
		if staged != "" {
			defer o.cleanup(log, staged)
		}
		if err != nil {
			return nil, err
		}
		d, err := readDetails(staged)
		if err != nil {
			return nil, err
		}
		d.Identity = ident
		d.Size = n
		return d, nil
	}()

	dur := time.Since(start)
	if err != nil {
		o.fail(log, "preview", Attended, MsgPreviewFailed, dur, err)
		return nil, err
	}
	o.metrics.RecordOperation("preview", "success", string(Attended), dur)
	log.Debug("Preview ready", zap.Duration("duration", dur))
	return details, nil
}

// readDetails opens a staged VSIX and extracts what the details view shows.
func readDetails(file string) (*Details, error) {
	zr, err := zip.OpenReader(file)
	if err != nil {
		return nil, faults.New(faults.KindParse, "open archive", err)
	}
	defer zr.Close()

	members := make(map[string]*zip.File, len(zr.File))
	lower := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		members[f.Name] = f
		lower[strings.ToLower(f.Name)] = f
	}

	mf, ok := members[manifestPath]
	if !ok {
		return nil, faults.New(faults.KindParse, "read manifest", errNoManifest)
	}
	raw, err := readMember(mf)
	if err != nil {
		return nil, faults.New(faults.KindParse, "read manifest", err)
	}
	var m manifest
	if err := sonic.Unmarshal(raw, &m); err != nil {
		return nil, faults.New(faults.KindParse, "decode manifest", err)
	}
	if m.Name == "" || m.Publisher == "" {
		return nil, faults.Newf(faults.KindParse, "decode manifest", "manifest lacks name or publisher")
	}

	d := &Details{
		Name:        m.Name,
		DisplayName: m.DisplayName,
		Publisher:   m.Publisher,
		Version:     m.Version,
		Description: m.Description,
		Categories:  m.Categories,
		Engines:     m.Engines,
		Repository:  m.repositoryURL(),
	}
	if d.DisplayName == "" {
		d.DisplayName = m.Name
	}

	if m.Icon != "" {
		if f, ok := members[path.Join("extension", path.Clean("/" + m.Icon)[1:])]; ok {
			if data, err := readMember(f); err == nil && len(data) > 0 {
				d.Icon = dataURI(data)
			}
		}
	}
	if f, ok := lower["extension/readme.md"]; ok {
		d.Readme = renderMember(f)
	}
	if f, ok := lower["extension/changelog.md"]; ok {
		d.Changelog = renderMember(f)
	}
	return d, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("%s exceeds %d bytes", f.Name, maxEntrySize)
	}
	return data, nil
}

func renderMember(f *zip.File) string {
	data, err := readMember(f)
	if err != nil {
		return ""
	}
	html, err := RenderMarkdown(data)
	if err != nil {
		return ""
	}
	return html
}

// RenderMarkdown converts markdown to HTML and strips anything unsafe.
func RenderMarkdown(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return "", err
	}
	return string(sanitizer.SanitizeBytes(buf.Bytes())), nil
}

func dataURI(data []byte) string {
	mime := mimetype.Detect(data)
	return fmt.Sprintf("data:%s;base64,%s", mime.String(), base64.StdEncoding.EncodeToString(data))
}

