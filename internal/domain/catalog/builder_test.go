package catalog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/extsync/internal/domain/version"
	"github.com/GriffinCanCode/extsync/internal/host"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/registry"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
	"github.com/GriffinCanCode/extsync/internal/shared/faults"
	"github.com/GriffinCanCode/extsync/tests/helpers/testutil"
)

type staticSettings config.Settings

func (s staticSettings) Current() (config.Settings, error) {
	return config.Settings(s), nil
}

type builderFixture struct {
	fake     *testutil.FakeRegistry
	creds    *registry.Credentials
	host     *testutil.FakeHost
	recorder *advisory.Recorder
}

func newFixture(t *testing.T) *builderFixture {
	t.Helper()
	creds := registry.NewCredentials()
	creds.Set("secret")
	return &builderFixture{
		fake:     testutil.NewFakeRegistry(t),
		creds:    creds,
		host:     testutil.NewFakeHost(nil),
		recorder: advisory.NewRecorder(10),
	}
}

func (f *builderFixture) builder(settings config.Settings) *Builder {
	return f.builderWithHost(settings, f.host)
}

func (f *builderFixture) builderWithHost(settings config.Settings, h version.InstalledLookup) *Builder {
	client := registry.NewClient(config.RegistryConfig{
		AuthScheme: config.AuthPrivateToken,
		Timeout:    5 * time.Second,
		PageSize:   100,
	}, f.creds, nil, nil)

	return NewBuilder(Deps{
		Registry:    client,
		Settings:    staticSettings(settings),
		Credentials: f.creds,
		Host:        h,
		Notifier:    f.recorder,
	})
}

func vsix(name string) map[string][]byte {
	return map[string][]byte{name: []byte("zip-bytes-" + name)}
}

func TestBuildTwoEndpoints(t *testing.T) {
	f := newFixture(t)
	a := f.fake.AddProject("1", "extensions-a")
	b := f.fake.AddProject("2", "extensions-b")
	f.fake.AddPackage("1", testutil.FakePackage{ID: 10, Name: "pub.a", Version: "1.2.0", Files: vsix("a-1.2.0.vsix")})
	f.fake.AddPackage("1", testutil.FakePackage{ID: 11, Name: "pub.a", Version: "1.1.0", Files: vsix("a-1.1.0.vsix")})
	f.fake.AddPackage("2", testutil.FakePackage{ID: 20, Name: "pub.b", Version: "2.0.0", Files: vsix("b-2.0.0.vsix")})
	f.host.Set("pub.a", "1.0.0")

	entries, err := f.builder(config.Settings{PackageURLs: []string{a, b}}).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{
		Name:         "a",
		ExtensionID:  "pub.a",
		Version:      "1.2.0",
		FileName:     "a-1.2.0.vsix",
		FileSHA256:   entries[0].FileSHA256,
		Status:       version.StatusOutdated,
		URL:          a,
		RegistryName: "group / extensions-a",
	}, entries[0])
	assert.NotEmpty(t, entries[0].FileSHA256)

	assert.Equal(t, "pub.b", entries[1].ExtensionID)
	assert.Equal(t, version.StatusUndefined, entries[1].Status)
	assert.Equal(t, "2.0.0", entries[1].Version)
	assert.Empty(t, f.recorder.List())

	// the reduced-away version is never listed
	assert.Zero(t, f.fake.Count("/packages/11/package_files"))
}

func TestBuildToleratesFailingEndpoint(t *testing.T) {
	f := newFixture(t)
	a := f.fake.AddProject("1", "A")
	bad := f.fake.AddProject("2", "B")
	c := f.fake.AddProject("3", "C")
	f.fake.AddPackage("1", testutil.FakePackage{ID: 10, Name: "pub.a", Version: "1.0.0", Files: vsix("a.vsix")})
	f.fake.AddPackage("2", testutil.FakePackage{ID: 20, Name: "pub.b", Version: "1.0.0", Files: vsix("b.vsix")})
	f.fake.AddPackage("3", testutil.FakePackage{ID: 30, Name: "pub.c", Version: "1.0.0", Files: vsix("c.vsix")})
	f.fake.FailProject("2", http.StatusNotFound)

	entries, err := f.builder(config.Settings{PackageURLs: []string{a, bad, c}}).Build(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ExtensionID
	}
	assert.Equal(t, []string{"pub.a", "pub.c"}, ids)

	advs := f.recorder.List()
	require.Len(t, advs, 1)
	assert.Equal(t, advisory.LevelWarning, advs[0].Level)
	assert.Contains(t, advs[0].Message, MsgFetchFailed)
}

func TestBuildFileListingFailureDropsEndpoint(t *testing.T) {
	f := newFixture(t)
	a := f.fake.AddProject("1", "A")
	b := f.fake.AddProject("2", "B")
	f.fake.AddPackage("1", testutil.FakePackage{ID: 10, Name: "pub.a", Version: "1.0.0", Files: vsix("a.vsix")})
	f.fake.AddPackage("1", testutil.FakePackage{ID: 11, Name: "pub.z", Version: "1.0.0", Files: vsix("z.vsix")})
	f.fake.AddPackage("2", testutil.FakePackage{ID: 20, Name: "pub.b", Version: "1.0.0", Files: vsix("b.vsix")})
	f.fake.FailFiles(11)

	entries, err := f.builder(config.Settings{PackageURLs: []string{a, b}}).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pub.b", entries[0].ExtensionID)
}

func TestBuildWithoutEndpoints(t *testing.T) {
	f := newFixture(t)

	entries, err := f.builder(config.Settings{PackageURLs: []string{"  "}}).Build(context.Background())
	assert.ErrorIs(t, err, faults.ErrNoEndpoints)
	assert.True(t, faults.Is(err, faults.KindConfig))
	assert.Empty(t, entries)
	assert.Empty(t, f.fake.Requests())

	advs := f.recorder.List()
	require.Len(t, advs, 1)
	assert.Equal(t, MsgSetEndpoints, advs[0].Message)
	assert.Equal(t, []string{advisory.ActionOpenSettings}, advs[0].Actions)
}

func TestBuildWithoutCredential(t *testing.T) {
	f := newFixture(t)
	a := f.fake.AddProject("1", "A")
	f.creds.Set("")

	entries, err := f.builder(config.Settings{PackageURLs: []string{a}}).Build(context.Background())
	assert.ErrorIs(t, err, faults.ErrNoCredential)
	assert.True(t, faults.Is(err, faults.KindAuth))
	assert.Empty(t, entries)
	assert.Empty(t, f.fake.Requests())

	advs := f.recorder.List()
	require.Len(t, advs, 1)
	assert.Equal(t, MsgSetToken, advs[0].Message)
	assert.Equal(t, []string{advisory.ActionSetToken}, advs[0].Actions)
}

func TestBuildFallsBackToURLForRegistryName(t *testing.T) {
	f := newFixture(t)
	a := f.fake.AddProject("1", "A")
	f.fake.AddPackage("1", testutil.FakePackage{ID: 10, Name: "pub.a", Version: "1.0.0", Files: vsix("a.vsix")})
	f.fake.FailProjectName("1")

	entries, err := f.builder(config.Settings{PackageURLs: []string{a}}).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a, entries[0].RegistryName)
	assert.Empty(t, f.recorder.List())
}

func TestBuildUsesArtifactPattern(t *testing.T) {
	f := newFixture(t)
	a := f.fake.AddProject("1", "A")
	f.fake.AddPackage("1", testutil.FakePackage{
		ID: 10, Name: "pub.a", Version: "1.0.0",
		Files: map[string][]byte{"NOTES.txt": []byte("n"), "a-1.0.0.vsix": []byte("v")},
		Order: []string{"NOTES.txt", "a-1.0.0.vsix"},
	})
	f.fake.AddPackage("1", testutil.FakePackage{
		ID: 11, Name: "pub.docs", Version: "1.0.0",
		Files: map[string][]byte{"docs.txt": []byte("d")},
	})

	first, err := f.builder(config.Settings{PackageURLs: []string{a}}).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "NOTES.txt", first[0].FileName)

	matched, err := f.builder(config.Settings{PackageURLs: []string{a}, ArtifactPattern: "*.vsix"}).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, matched, 1, "package without a matching artifact is skipped")
	assert.Equal(t, "a-1.0.0.vsix", matched[0].FileName)
}

// slowRegistry answers endpoints after per-endpoint delays so completion order
// differs from configuration order.
type slowRegistry struct {
	delays map[string]time.Duration
	fail   map[string]bool
}

func (s slowRegistry) ListPackages(ctx context.Context, endpoint string) ([]registry.RawPackage, error) {
	select {
	case <-time.After(s.delays[endpoint]):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.fail[endpoint] {
		return nil, faults.New(faults.KindTransport, "list packages", errors.New("unreachable"))
	}
	return []registry.RawPackage{
		{ID: 1, Name: endpoint + ".one", Version: "1.0.0"},
		{ID: 2, Name: endpoint + ".two", Version: "1.0.0"},
	}, nil
}

func (s slowRegistry) ListFiles(_ context.Context, endpoint string, packageID int64) ([]registry.PackageFile, error) {
	return []registry.PackageFile{{ID: packageID, PackageID: packageID, FileName: "x.vsix"}}, nil
}

func (s slowRegistry) ResolveRegistryName(_ context.Context, endpoint string) (string, error) {
	return "reg-" + endpoint, nil
}

func TestBuildKeepsEndpointOrderRegardlessOfCompletion(t *testing.T) {
	reg := slowRegistry{
		delays: map[string]time.Duration{"e1": 60 * time.Millisecond, "e2": 0, "e3": 30 * time.Millisecond},
		fail:   map[string]bool{},
	}
	creds := registry.NewCredentials()
	creds.Set("t")

	b := NewBuilder(Deps{
		Registry:    reg,
		Settings:    staticSettings{PackageURLs: []string{"e1", "e2", "e3"}},
		Credentials: creds,
		Host:        testutil.NewFakeHost(nil),
		Concurrency: 3,
	})

	entries, err := b.Build(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ExtensionID)
	}
	assert.Equal(t, []string{"e1.one", "e1.two", "e2.one", "e2.two", "e3.one", "e3.two"}, ids)
	assert.Equal(t, "reg-e2", entries[2].RegistryName)
}

func TestBuildAllEndpointsFailing(t *testing.T) {
	reg := slowRegistry{fail: map[string]bool{"e1": true, "e2": true}}
	creds := registry.NewCredentials()
	creds.Set("t")
	rec := advisory.NewRecorder(10)

	b := NewBuilder(Deps{
		Registry:    reg,
		Settings:    staticSettings{PackageURLs: []string{"e1", "e2"}},
		Credentials: creds,
		Host:        testutil.NewFakeHost(nil),
		Notifier:    rec,
	})

	entries, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.Len(t, rec.List(), 2)
}

func TestBuildRescansHostEachTime(t *testing.T) {
	f := newFixture(t)
	a := f.fake.AddProject("1", "A")
	f.fake.AddPackage("1", testutil.FakePackage{ID: 10, Name: "pub.a", Version: "1.2.0", Files: vsix("a.vsix")})

	dir := t.TempDir()
	local := host.NewLocalHost(dir, nil)
	b := f.builderWithHost(config.Settings{PackageURLs: []string{a}}, local)

	entries, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, version.StatusUndefined, entries[0].Status)

	// installed outside the process between builds
	ext := filepath.Join(dir, "pub.a-1.0.0")
	require.NoError(t, os.MkdirAll(ext, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ext, "package.json"),
		[]byte(`{"publisher":"pub","name":"a","version":"1.0.0"}`), 0o644))

	entries, err = b.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, version.StatusOutdated, entries[0].Status)

	require.NoError(t, os.RemoveAll(ext))
	entries, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, version.StatusUndefined, entries[0].Status)
}
