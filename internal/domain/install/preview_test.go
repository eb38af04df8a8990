package install

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/shared/faults"
	"github.com/GriffinCanCode/extsync/tests/helpers/testutil"
)

var pngIcon = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

func registryConfig() config.RegistryConfig {
	return config.RegistryConfig{AuthScheme: config.AuthPrivateToken, Timeout: 5 * time.Second, PageSize: 100}
}

func previewIdentity(f *fixture, data []byte) catalog.Identity {
	ident := catalog.Identity{
		ExtensionID: "pub.a",
		URL:         "https://gitlab.example.com/api/v4/projects/1/packages",
		Version:     "1.0.0",
		FileName:    "a.vsix",
	}
	f.fetcher.put(ident, data)
	return ident
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	data := testutil.BuildVSIX(t, testutil.Manifest{
		Publisher:   "pub",
		Name:        "a",
		Version:     "1.0.0",
		DisplayName: "Extension A",
		Description: "Does things",
		Icon:        "images/icon.png",
	}, map[string][]byte{
		"extension/images/icon.png": pngIcon,
		"extension/README.md":       []byte("# Hello\n\n<script>alert(1)</script>\n\n- one\n- two\n"),
		"extension/CHANGELOG.md":    []byte("## 1.0.0\n\nFirst release"),
	})
	ident := previewIdentity(f, data)

	d, err := f.orch.Preview(context.Background(), ident)
	require.NoError(t, err)

	assert.Equal(t, "a", d.Name)
	assert.Equal(t, "Extension A", d.DisplayName)
	assert.Equal(t, "pub", d.Publisher)
	assert.Equal(t, "Does things", d.Description)
	assert.Equal(t, ident, d.Identity)
	assert.Equal(t, int64(len(data)), d.Size)

	assert.True(t, strings.HasPrefix(d.Icon, "data:image/png;base64,"), d.Icon)
	assert.Contains(t, d.Readme, "<h1")
	assert.Contains(t, d.Readme, "<li>one</li>")
	assert.NotContains(t, d.Readme, "<script")
	assert.Contains(t, d.Changelog, "First release")

	assertDirEmpty(t, f.dir)
	assert.Empty(t, f.host.Paths, "preview never installs")
	assert.Empty(t, f.recorder.List())
}

func TestPreviewWithoutOptionalParts(t *testing.T) {
	f := newFixture(t)
	data := testutil.BuildVSIX(t, testutil.Manifest{Publisher: "pub", Name: "a", Version: "1.0.0", Icon: "missing.png"}, nil)
	ident := previewIdentity(f, data)

	d, err := f.orch.Preview(context.Background(), ident)
	require.NoError(t, err)
	assert.Equal(t, "a", d.DisplayName)
	assert.Empty(t, d.Icon)
	assert.Empty(t, d.Readme)
	assert.Empty(t, d.Changelog)
}

func TestPreviewParseFailures(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{"not a zip", func(*testing.T) []byte { return []byte("definitely not a zip") }},
		{"no manifest", func(t *testing.T) []byte {
			return testutil.BuildZip(t, map[string][]byte{"extension/README.md": []byte("hi")})
		}},
		{"malformed manifest", func(t *testing.T) []byte {
			return testutil.BuildZip(t, map[string][]byte{"extension/package.json": []byte("{nope")})
		}},
		{"manifest without publisher", func(t *testing.T) []byte {
			return testutil.BuildZip(t, map[string][]byte{"extension/package.json": []byte(`{"name":"a"}`)})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ident := previewIdentity(f, tt.data(t))

			d, err := f.orch.Preview(context.Background(), ident)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.True(t, faults.Is(err, faults.KindParse), err)
			assertDirEmpty(t, f.dir)
			assert.Equal(t, []string{MsgPreviewFailed}, f.recorder.Messages())
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown([]byte("**bold** <img src=x onerror=alert(1)> [link](javascript:alert(1))"))
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.NotContains(t, html, "onerror")
	assert.NotContains(t, html, "javascript:")
}

func TestRepositoryURL(t *testing.T) {
	assert.Equal(t, "https://x", manifest{Repository: "https://x"}.repositoryURL())
	assert.Equal(t, "https://y", manifest{Repository: map[string]interface{}{"type": "git", "url": "https://y"}}.repositoryURL())
	assert.Empty(t, manifest{}.repositoryURL())
}
