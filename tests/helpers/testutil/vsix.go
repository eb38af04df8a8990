package testutil

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zip"
)

// Manifest is the subset of extension/package.json the fakes care about.
type Manifest struct {
	Publisher   string `json:"publisher"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// BuildVSIX returns a VSIX archive containing extension/package.json built
// from m plus any extra files (paths relative to the archive root).
func BuildVSIX(t *testing.T, m Manifest, extra map[string][]byte) []byte {
	t.Helper()

	manifest, err := sonic.Marshal(m)
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}

	files := map[string][]byte{
		"[Content_Types].xml":    []byte(`<?xml version="1.0" encoding="utf-8"?><Types/>`),
		"extension.vsixmanifest": []byte(`<PackageManifest/>`),
		"extension/package.json": manifest,
	}
	for name, data := range extra {
		files[name] = data
	}
	return BuildZip(t, files)
}

// BuildZip returns a zip archive of files.
func BuildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// ReadVSIXManifest opens a VSIX on disk and decodes extension/package.json.
func ReadVSIXManifest(path string) (*Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "extension/package.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		var m Manifest
		if err := sonic.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	}
	return nil, fmt.Errorf("%s: no extension/package.json", path)
}
