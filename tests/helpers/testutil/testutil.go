// Package testutil provides fakes and mocks shared by package tests.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
)

// MockHost is a testify mock of the host install surface.
type MockHost struct {
	mock.Mock
}

// InstallFromFile mocks the InstallFromFile method.
func (m *MockHost) InstallFromFile(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

// Uninstall mocks the Uninstall method.
func (m *MockHost) Uninstall(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// InstalledVersion mocks the InstalledVersion method.
func (m *MockHost) InstalledVersion(id string) (string, bool) {
	args := m.Called(id)
	return args.String(0), args.Bool(1)
}

// NewMockHost creates a mock host where nothing is installed and every
// operation succeeds unless overridden.
func NewMockHost(t *testing.T) *MockHost {
	t.Helper()
	m := new(MockHost)

	m.On("InstalledVersion", mock.Anything).Return("", false).Maybe()
	m.On("InstallFromFile", mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("Uninstall", mock.Anything, mock.Anything).Return(nil).Maybe()

	return m
}

// MockNotifier is a testify mock of advisory.Notifier.
type MockNotifier struct {
	mock.Mock
}

// Notify mocks the Notify method.
func (m *MockNotifier) Notify(a advisory.Advisory) {
	m.Called(a)
}

// FakeHost is a stateful host keyed by extension id. InstallFromFile reads
// the VSIX manifest to learn what was installed.
type FakeHost struct {
	mu        sync.Mutex
	installed map[string]string

	// InstallErr and UninstallErr, when set, reject the operation.
	InstallErr   error
	UninstallErr error

	// Paths records every staged path handed to InstallFromFile, and
	// Existed whether that file was present at call time.
	Paths   []string
	Existed []bool
}

// NewFakeHost creates a host with the given id → version pairs installed.
func NewFakeHost(installed map[string]string) *FakeHost {
	h := &FakeHost{installed: make(map[string]string)}
	for id, v := range installed {
		h.installed[id] = v
	}
	return h
}

// InstallFromFile records path and installs the manifest it contains.
func (h *FakeHost) InstallFromFile(_ context.Context, path string) error {
	_, statErr := os.Stat(path)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.Paths = append(h.Paths, path)
	h.Existed = append(h.Existed, statErr == nil)
	if h.InstallErr != nil {
		return h.InstallErr
	}

	if manifest, err := ReadVSIXManifest(path); err == nil {
		h.installed[manifest.Publisher+"."+manifest.Name] = manifest.Version
	}
	return nil
}

// Uninstall removes id.
func (h *FakeHost) Uninstall(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.UninstallErr != nil {
		return h.UninstallErr
	}
	delete(h.installed, id)
	return nil
}

// InstalledVersion reports the installed version of id.
func (h *FakeHost) InstalledVersion(id string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, ok := h.installed[id]
	return v, ok
}

// Set marks id as installed at version.
func (h *FakeHost) Set(id, version string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.installed[id] = version
}
