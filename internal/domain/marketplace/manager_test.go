package marketplace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/domain/install"
	"github.com/GriffinCanCode/extsync/internal/domain/projection"
	"github.com/GriffinCanCode/extsync/internal/domain/sweep"
	"github.com/GriffinCanCode/extsync/internal/domain/version"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/secrets"
	"github.com/GriffinCanCode/extsync/internal/registry"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
	"github.com/GriffinCanCode/extsync/tests/helpers/testutil"
)

type stack struct {
	fake     *testutil.FakeRegistry
	host     *testutil.FakeHost
	creds    *registry.Credentials
	store    *secrets.MemoryStore
	settings *config.FileSource
	recorder *advisory.Recorder
	metrics  *monitoring.Metrics
	staging  string
	manager  *Manager
	epA      string
	epB      string
}

// newStack wires the real components against a fake registry holding the
// two-endpoint scenario: endpoint A has pub.a 1.2.0 and 1.1.0, endpoint B has
// pub.b 2.0.0. The host has pub.a 1.0.0 installed.
func newStack(t *testing.T, autoUpdate bool) *stack {
	t.Helper()

	s := &stack{
		fake:     testutil.NewFakeRegistry(t),
		host:     testutil.NewFakeHost(map[string]string{"pub.a": "1.0.0"}),
		creds:    registry.NewCredentials(),
		store:    secrets.NewMemoryStore(),
		recorder: advisory.NewRecorder(50),
		metrics:  monitoring.NewMetrics(),
		staging:  t.TempDir(),
	}

	s.epA = s.fake.AddProject("1", "team-a")
	s.epB = s.fake.AddProject("2", "team-b")
	s.addVSIX(t, "1", 10, "pub", "a", "1.2.0")
	s.addVSIX(t, "1", 11, "pub", "a", "1.1.0")
	s.addVSIX(t, "2", 20, "pub", "b", "2.0.0")
	s.fake.RequireToken("glpat-secret")

	s.settings = config.NewFileSource(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, s.settings.Save(config.Settings{PackageURLs: []string{s.epA, s.epB}, AutoUpdate: autoUpdate}))

	client := registry.NewClient(config.RegistryConfig{
		AuthScheme: config.AuthPrivateToken,
		Timeout:    5 * time.Second,
		PageSize:   100,
	}, s.creds, nil, s.metrics)

	builder := catalog.NewBuilder(catalog.Deps{
		Registry:    client,
		Settings:    s.settings,
		Credentials: s.creds,
		Host:        s.host,
		Notifier:    s.recorder,
		Metrics:     s.metrics,
	})
	tree := projection.NewTree(builder, nil, s.metrics)
	orch := install.NewOrchestrator(install.Deps{
		Fetcher:    client,
		Host:       s.host,
		Notifier:   s.recorder,
		Updater:    tree,
		Metrics:    s.metrics,
		StagingDir: s.staging,
	})

	s.manager = NewManager(Deps{
		Tree:        tree,
		Operations:  orch,
		Sweeper:     sweep.NewSweeper(orch, nil, 2),
		Settings:    s.settings,
		Credentials: s.creds,
		Secrets:     s.store,
		Notifier:    s.recorder,
	})
	return s
}

func (s *stack) addVSIX(t *testing.T, project string, id int64, publisher, name, ver string) {
	data := testutil.BuildVSIX(t, testutil.Manifest{Publisher: publisher, Name: name, Version: ver}, map[string][]byte{
		"extension/README.md": []byte("# " + name),
	})
	file := name + "-" + ver + ".vsix"
	s.fake.AddPackage(project, testutil.FakePackage{
		ID: id, Name: publisher + "." + name, Version: ver,
		Files: map[string][]byte{file: data},
	})
}

func listingCount(f *testutil.FakeRegistry) int {
	n := 0
	for _, p := range f.Requests() {
		if strings.HasSuffix(p, "/packages") {
			n++
		}
	}
	return n
}

func (s *stack) login(t *testing.T) {
	t.Helper()
	require.NoError(t, s.manager.SetToken(context.Background(), "glpat-secret"))
}

func TestEndToEndScenario(t *testing.T) {
	s := newStack(t, false)
	s.login(t)
	ctx := context.Background()

	report, err := s.manager.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, report.Ran)
	assert.Equal(t, 2, report.Entries)
	assert.Equal(t, 1, report.Sweep.Outdated)
	assert.Empty(t, report.Sweep.Applied)
	assert.Equal(t, projection.Badge{Value: 1, Tooltip: "1 update available"}, report.Badge)

	entries := s.manager.Tree().Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "1.2.0", entries[0].Version)
	assert.Equal(t, version.StatusOutdated, entries[0].Status)
	assert.Equal(t, "b", entries[1].Name)
	assert.Equal(t, "2.0.0", entries[1].Version)
	assert.Equal(t, version.StatusUndefined, entries[1].Status)
	assert.Equal(t, 1, sweep.Count(entries))

	roots := s.manager.Tree().Roots(ctx)
	require.Len(t, roots, 2)
	assert.Equal(t, "group / team-a", roots[0].Label)
	leaves := s.manager.Tree().Children(roots[0])
	require.Len(t, leaves, 1)
	assert.Equal(t, "1.2.0 - Outdated", leaves[0].Description)

	assert.Equal(t, int64(1), s.metrics.Snapshot().Outdated)
}

func TestInstallPatchesProjectionWithoutRefetch(t *testing.T) {
	s := newStack(t, false)
	s.login(t)
	ctx := context.Background()
	_, err := s.manager.Refresh(ctx)
	require.NoError(t, err)
	listings := listingCount(s.fake)

	res, err := s.manager.Install(ctx, "pub.a")
	require.NoError(t, err)
	assert.True(t, res.Updated)

	v, _ := s.host.InstalledVersion("pub.a")
	assert.Equal(t, "1.2.0", v)
	assert.Equal(t, projection.Badge{}, s.manager.Tree().Badge())
	leaf, ok := s.manager.Tree().Leaf("pub.a")
	require.True(t, ok)
	assert.Equal(t, "1.2.0 - Installed", leaf.Description)

	assert.Equal(t, listings, listingCount(s.fake), "no catalog refetch after a targeted update")
	assert.Contains(t, s.recorder.Messages(), "Extension pub.a updated successfully.")

	entries, err := os.ReadDir(s.staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUninstall(t *testing.T) {
	s := newStack(t, false)
	s.login(t)
	ctx := context.Background()
	_, err := s.manager.Refresh(ctx)
	require.NoError(t, err)

	_, err = s.manager.Install(ctx, "pub.b")
	require.NoError(t, err)
	leaf, _ := s.manager.Tree().Leaf("pub.b")
	assert.Equal(t, "2.0.0 - Installed", leaf.Description)

	_, err = s.manager.Uninstall(ctx, "pub.b")
	require.NoError(t, err)
	leaf, _ = s.manager.Tree().Leaf("pub.b")
	assert.Equal(t, "2.0.0", leaf.Description)
	assert.True(t, leaf.CanInstall())
	_, installed := s.host.InstalledVersion("pub.b")
	assert.False(t, installed)
}

func TestAutoUpdateOnRefresh(t *testing.T) {
	s := newStack(t, true)
	s.login(t)

	var events []projection.Event
	s.manager.Tree().Subscribe(func(ev projection.Event) { events = append(events, ev) })

	report, err := s.manager.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sweep.Outdated)
	require.Len(t, report.Sweep.Applied, 1)
	assert.Equal(t, "pub.a", report.Sweep.Applied[0].ExtensionID)
	assert.Equal(t, projection.Badge{}, report.Badge)

	v, _ := s.host.InstalledVersion("pub.a")
	assert.Equal(t, "1.2.0", v)

	// one rebuild event plus one consolidated batch event
	require.Len(t, events, 2)
	assert.Equal(t, projection.ReasonRefresh, events[0].Reason)
	assert.Equal(t, 1, events[0].Badge.Value)
	assert.Equal(t, 0, events[1].Badge.Value)

	for _, msg := range s.recorder.Messages() {
		assert.NotContains(t, msg, "successfully.", "unattended installs are silent")
	}
}

func TestUpdateAppliesRegardlessOfSetting(t *testing.T) {
	s := newStack(t, false)
	s.login(t)
	ctx := context.Background()
	_, err := s.manager.Refresh(ctx)
	require.NoError(t, err)

	res := s.manager.Update(ctx)
	assert.Equal(t, 1, res.Outdated)
	assert.Len(t, res.Applied, 1)
	assert.Equal(t, 0, s.manager.LastReport().Badge.Value)
}

func TestRefreshWithoutToken(t *testing.T) {
	s := newStack(t, false)

	report, err := s.manager.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Ran)
	assert.Equal(t, catalog.MsgSetToken, report.Advisory)
	assert.Equal(t, 0, report.Entries)
	assert.Empty(t, s.fake.Requests())

	advs := s.recorder.List()
	require.Len(t, advs, 1)
	assert.Equal(t, []string{advisory.ActionSetToken}, advs[0].Actions)
}

func TestRefreshWithoutEndpoints(t *testing.T) {
	s := newStack(t, false)
	s.login(t)
	require.NoError(t, s.settings.Save(config.Settings{}))

	report, err := s.manager.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.MsgSetEndpoints, report.Advisory)
	assert.Contains(t, s.recorder.Messages(), catalog.MsgSetEndpoints)
}

func TestOneEndpointDown(t *testing.T) {
	s := newStack(t, false)
	s.login(t)
	s.fake.FailProject("2", 503)

	report, err := s.manager.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Entries)
	entries := s.manager.Tree().Snapshot()
	assert.Equal(t, "pub.a", entries[0].ExtensionID)
}

func TestLookupsUseProjection(t *testing.T) {
	s := newStack(t, false)
	s.login(t)

	_, err := s.manager.Install(context.Background(), "pub.a")
	assert.ErrorIs(t, err, ErrNotInCatalog, "nothing is fetched for an empty projection")
	assert.Empty(t, s.fake.Requests())

	_, err = s.manager.Details(context.Background(), "pub.zzz")
	assert.ErrorIs(t, err, ErrNotInCatalog)
}

func TestDetails(t *testing.T) {
	s := newStack(t, false)
	s.login(t)
	ctx := context.Background()
	_, err := s.manager.Refresh(ctx)
	require.NoError(t, err)

	d, err := s.manager.Details(ctx, "pub.b")
	require.NoError(t, err)
	assert.Equal(t, "b", d.Name)
	assert.Equal(t, "pub", d.Publisher)
	assert.Contains(t, d.Readme, "<h1")
	_, installed := s.host.InstalledVersion("pub.b")
	assert.False(t, installed)
}

func TestTokenLifecycle(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()

	assert.ErrorIs(t, s.manager.SetToken(ctx, "   "), ErrEmptyToken)
	assert.Equal(t, []string{MsgTokenNotSet}, s.recorder.Messages())

	require.NoError(t, s.manager.SetToken(ctx, " glpat-secret "))
	stored, ok, err := s.store.Get(ctx, secrets.RegistryTokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "glpat-secret", stored)
	token, _ := s.creds.Token()
	assert.Equal(t, "glpat-secret", token)

	require.NoError(t, s.manager.ClearToken(ctx))
	_, ok = s.creds.Token()
	assert.False(t, ok)

	require.NoError(t, s.store.Put(ctx, secrets.RegistryTokenKey, "from-store"))
	require.NoError(t, s.manager.LoadToken(ctx))
	token, _ = s.creds.Token()
	assert.Equal(t, "from-store", token)
}

func TestTokenChangeAppliesToNextRefresh(t *testing.T) {
	s := newStack(t, false)
	ctx := context.Background()
	require.NoError(t, s.manager.SetToken(ctx, "wrong"))

	report, err := s.manager.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Entries)

	s.login(t)
	report, err = s.manager.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Entries)
}
