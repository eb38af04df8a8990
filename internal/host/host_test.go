package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/tests/helpers/testutil"
)

func writeVSIX(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ext.vsix")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLocalHostInstallAndUninstall(t *testing.T) {
	dir := t.TempDir()
	h := NewLocalHost(dir, nil)
	ctx := context.Background()

	_, ok := h.InstalledVersion("pub.a")
	assert.False(t, ok)

	v1 := writeVSIX(t, testutil.BuildVSIX(t, testutil.Manifest{Publisher: "pub", Name: "a", Version: "1.0.0"}, map[string][]byte{
		"extension/out/main.js": []byte("exports.activate = () => {}"),
	}))
	require.NoError(t, h.InstallFromFile(ctx, v1))

	v, ok := h.InstalledVersion("pub.a")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", v)
	assert.FileExists(t, filepath.Join(dir, "pub.a-1.0.0", "package.json"))
	assert.FileExists(t, filepath.Join(dir, "pub.a-1.0.0", "out", "main.js"))
	assert.NoFileExists(t, filepath.Join(dir, "pub.a-1.0.0", "extension.vsixmanifest"))

	v2 := writeVSIX(t, testutil.BuildVSIX(t, testutil.Manifest{Publisher: "pub", Name: "a", Version: "1.2.0"}, nil))
	require.NoError(t, h.InstallFromFile(ctx, v2))

	v, _ = h.InstalledVersion("PUB.A")
	assert.Equal(t, "1.2.0", v)
	assert.NoDirExists(t, filepath.Join(dir, "pub.a-1.0.0"), "previous version is replaced")

	require.NoError(t, h.Uninstall(ctx, "pub.a"))
	_, ok = h.InstalledVersion("pub.a")
	assert.False(t, ok)
	assert.NoDirExists(t, filepath.Join(dir, "pub.a-1.2.0"))

	err := h.Uninstall(ctx, "pub.a")
	assert.ErrorIs(t, err, ErrNotInstalled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no leftover install directories")
}

func TestLocalHostIndexesExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(sub, body string) {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, sub, "package.json"), []byte(body), 0o644))
	}
	write("pub.a-1.0.0", `{"publisher":"pub","name":"a","version":"1.0.0"}`)
	write("pub.a-1.10.0", `{"publisher":"pub","name":"a","version":"1.10.0"}`)
	write("pub.b-2.0.0", `{"publisher":"pub","name":"b","version":"2.0.0"}`)
	write("pub.b-2.0.0/node_modules/dep", `{"publisher":"x","name":"dep","version":"9.9.9"}`)
	write("broken", `{not json`)

	h := NewLocalHost(dir, nil)
	require.NoError(t, h.Reload(context.Background()))

	v, ok := h.InstalledVersion("pub.a")
	assert.True(t, ok)
	assert.Equal(t, "1.10.0", v)

	v, _ = h.InstalledVersion("pub.b")
	assert.Equal(t, "2.0.0", v)

	_, ok = h.InstalledVersion("x.dep")
	assert.False(t, ok, "nested package.json files are not extensions")
}

func TestLocalHostMissingDirectory(t *testing.T) {
	h := NewLocalHost(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, h.Reload(context.Background()))
	_, ok := h.InstalledVersion("pub.a")
	assert.False(t, ok)
}

func TestLocalHostRejectsBadArchives(t *testing.T) {
	h := NewLocalHost(t.TempDir(), nil)
	ctx := context.Background()

	tests := map[string][]byte{
		"not a zip":   []byte("nope"),
		"no manifest": testutil.BuildZip(t, map[string][]byte{"extension/readme.md": []byte("x")}),
		"zip slip": testutil.BuildVSIX(t, testutil.Manifest{Publisher: "pub", Name: "a", Version: "1.0.0"}, map[string][]byte{
			"extension/../../evil.txt": []byte("x"),
		}),
		"unsafe id": testutil.BuildVSIX(t, testutil.Manifest{Publisher: "..", Name: "a", Version: "1.0.0"}, nil),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, h.InstallFromFile(ctx, writeVSIX(t, data)))
		})
	}

	entries, err := os.ReadDir(h.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type scriptedRun struct {
	calls  [][]string
	output map[string]string
	err    map[string]error
}

func (s *scriptedRun) run(_ context.Context, bin string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, append([]string{bin}, args...))
	return []byte(s.output[args[0]]), s.err[args[0]]
}

func TestCodeCLI(t *testing.T) {
	script := &scriptedRun{
		output: map[string]string{
			"--list-extensions": "Pub.A@1.0.0\npub.b@2.1.0\ngarbage\n\n",
		},
		err: map[string]error{},
	}
	now := time.Unix(0, 0)
	c := NewCodeCLI("code-insiders", nil)
	c.run = script.run
	c.now = func() time.Time { return now }

	v, ok := c.InstalledVersion("pub.a")
	assert.True(t, ok)
	assert.Equal(t, "1.0.0", v)
	_, ok = c.InstalledVersion("pub.zzz")
	assert.False(t, ok)
	assert.Len(t, script.calls, 1, "listing is cached")

	require.NoError(t, c.InstallFromFile(context.Background(), "/tmp/x.vsix"))
	assert.Equal(t, []string{"code-insiders", "--install-extension", "/tmp/x.vsix", "--force"}, script.calls[1])

	c.InstalledVersion("pub.a")
	assert.Len(t, script.calls, 3, "install invalidates the cache")

	now = now.Add(time.Minute)
	c.InstalledVersion("pub.a")
	assert.Len(t, script.calls, 4, "stale cache is refreshed")

	require.NoError(t, c.Reload(context.Background()))
	c.InstalledVersion("pub.a")
	assert.Len(t, script.calls, 5, "reload forces a fresh listing")

	script.err["--uninstall-extension"] = errors.New("exit status 1")
	script.output["--uninstall-extension"] = "Extension 'pub.q' is not installed."
	err := c.Uninstall(context.Background(), "pub.q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not installed")
}

func TestParseList(t *testing.T) {
	got := parseList([]byte("ms-python.python@2024.1.0\r\nfoo\n@1\nacme.tool@0.1.0-beta\n"))
	assert.Equal(t, map[string]string{
		"ms-python.python": "2024.1.0",
		"acme.tool":        "0.1.0-beta",
	}, got)
}

func TestNew(t *testing.T) {
	h, err := New(config.HostConfig{Kind: config.HostLocal, ExtensionsDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalHost{}, h)

	h, err = New(config.HostConfig{Kind: config.HostCode, CodeBinary: "codium"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CodeCLI{}, h)

	_, err = New(config.HostConfig{Kind: "cloud"}, nil)
	assert.Error(t, err)

	_, err = New(config.HostConfig{Kind: config.HostLocal}, nil)
	assert.Error(t, err)
}
