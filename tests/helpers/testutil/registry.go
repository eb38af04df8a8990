package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
)

// FakePackage is one package version served by FakeRegistry.
type FakePackage struct {
	ID      int64
	Name    string
	Version string
	Type    string
	// Files maps file name to content, served in Order (or map order if
	// Order is empty).
	Files map[string][]byte
	Order []string
}

type fakeProject struct {
	id       string
	name     string
	packages []FakePackage
	status   int
}

// FakeRegistry is an httptest server speaking the subset of the GitLab
// package API used by the registry client.
type FakeRegistry struct {
	Server *httptest.Server

	mu       sync.Mutex
	projects map[string]*fakeProject
	token    string
	pageSize int
	requests []string
	headers  []http.Header
	nameFail map[string]bool
	fileFail map[string]bool
	corrupt  map[string]bool
	gate     chan struct{}
}

// NewFakeRegistry starts a fake registry that is closed at test cleanup.
func NewFakeRegistry(t *testing.T) *FakeRegistry {
	t.Helper()

	f := &FakeRegistry{
		projects: make(map[string]*fakeProject),
		nameFail: make(map[string]bool),
		fileFail: make(map[string]bool),
		corrupt:  make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v4/projects/{id}", f.handleProject)
	mux.HandleFunc("GET /api/v4/projects/{id}/packages", f.handlePackages)
	mux.HandleFunc("GET /api/v4/projects/{id}/packages/{pkg}/package_files", f.handleFiles)
	mux.HandleFunc("GET /api/v4/projects/{id}/packages/generic/{name}/{version}/{file}", f.handleArtifact)

	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Server.Close)
	return f
}

// AddProject registers a project and returns its package endpoint URL.
func (f *FakeRegistry) AddProject(id, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.projects[id] = &fakeProject{id: id, name: name}
	return f.Endpoint(id)
}

// Endpoint returns the package endpoint URL for a project id.
func (f *FakeRegistry) Endpoint(id string) string {
	return fmt.Sprintf("%s/api/v4/projects/%s/packages", f.Server.URL, id)
}

// AddPackage adds a package version to a project.
func (f *FakeRegistry) AddPackage(projectID string, pkg FakePackage) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.projects[projectID]
	if pkg.Type == "" {
		pkg.Type = "generic"
	}
	if len(pkg.Order) == 0 {
		for name := range pkg.Files {
			pkg.Order = append(pkg.Order, name)
		}
	}
	p.packages = append(p.packages, pkg)
}

// FailProject makes every package request for a project return status.
func (f *FakeRegistry) FailProject(projectID string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[projectID].status = status
}

// FailProjectName makes the project metadata lookup fail.
func (f *FakeRegistry) FailProjectName(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameFail[projectID] = true
}

// FailFiles makes the file listing for one package id fail.
func (f *FakeRegistry) FailFiles(packageID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileFail[strconv.FormatInt(packageID, 10)] = true
}

// CorruptChecksums reports a wrong sha256 for a project's files.
func (f *FakeRegistry) CorruptChecksums(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrupt[projectID] = true
}

// RequireToken rejects requests that do not carry token.
func (f *FakeRegistry) RequireToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// SetPageSize caps list responses, forcing pagination.
func (f *FakeRegistry) SetPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

// Gate blocks package listings until the returned function is called.
func (f *FakeRegistry) Gate() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Requests returns the request paths seen so far.
func (f *FakeRegistry) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Count returns how many requests had a path containing substr.
func (f *FakeRegistry) Count(substr string) int {
	n := 0
	for _, r := range f.Requests() {
		if strings.Contains(r, substr) {
			n++
		}
	}
	return n
}

// LastHeader returns the headers of the most recent request.
func (f *FakeRegistry) LastHeader() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.headers) == 0 {
		return nil
	}
	return f.headers[len(f.headers)-1]
}

func (f *FakeRegistry) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.Path)
		f.headers = append(f.headers, r.Header.Clone())
		token := f.token
		f.mu.Unlock()

		if token != "" {
			got := r.Header.Get("PRIVATE-TOKEN")
			if got == "" {
				got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if got != token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "401 Unauthorized"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeRegistry) project(w http.ResponseWriter, r *http.Request) (*fakeProject, bool) {
	f.mu.Lock()
	p, ok := f.projects[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "404 Project Not Found"})
		return nil, false
	}
	if p.status != 0 {
		writeJSON(w, p.status, map[string]string{"message": http.StatusText(p.status)})
		return nil, false
	}
	return p, true
}

func (f *FakeRegistry) handleProject(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	fail := f.nameFail[r.PathValue("id")]
	f.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
		return
	}

	p, ok := f.project(w, r)
	if !ok {
		return
	}
	projectID, _ := strconv.ParseInt(p.id, 10, 64)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":                  projectID,
		"name":                p.name,
		"name_with_namespace": "group / " + p.name,
	})
}

func (f *FakeRegistry) handlePackages(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	p, ok := f.project(w, r)
	if !ok {
		return
	}

	items := make([]map[string]interface{}, 0, len(p.packages))
	for _, pkg := range p.packages {
		items = append(items, map[string]interface{}{
			"id":           pkg.ID,
			"name":         pkg.Name,
			"version":      pkg.Version,
			"package_type": pkg.Type,
		})
	}
	f.writePage(w, r, items)
}

func (f *FakeRegistry) handleFiles(w http.ResponseWriter, r *http.Request) {
	p, ok := f.project(w, r)
	if !ok {
		return
	}

	f.mu.Lock()
	fail := f.fileFail[r.PathValue("pkg")]
	corrupt := f.corrupt[p.id]
	f.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
		return
	}

	for _, pkg := range p.packages {
		if strconv.FormatInt(pkg.ID, 10) != r.PathValue("pkg") {
			continue
		}
		items := make([]map[string]interface{}, 0, len(pkg.Order))
		for i, name := range pkg.Order {
			sum := sha256.Sum256(pkg.Files[name])
			digest := hex.EncodeToString(sum[:])
			if corrupt {
				digest = strings.Repeat("0", 64)
			}
			items = append(items, map[string]interface{}{
				"id":          pkg.ID*100 + int64(i),
				"package_id":  pkg.ID,
				"file_name":   name,
				"size":        len(pkg.Files[name]),
				"file_sha256": digest,
			})
		}
		f.writePage(w, r, items)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "404 Package Not Found"})
}

func (f *FakeRegistry) handleArtifact(w http.ResponseWriter, r *http.Request) {
	p, ok := f.project(w, r)
	if !ok {
		return
	}
	for _, pkg := range p.packages {
		if pkg.Name != r.PathValue("name") || pkg.Version != r.PathValue("version") {
			continue
		}
		if data, ok := pkg.Files[r.PathValue("file")]; ok {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "404 Not Found"})
}

func (f *FakeRegistry) writePage(w http.ResponseWriter, r *http.Request, items []map[string]interface{}) {
	f.mu.Lock()
	size := f.pageSize
	f.mu.Unlock()

	if size <= 0 {
		if perPage, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && perPage > 0 {
			size = perPage
		} else {
			size = 20
		}
	}
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	if end < len(items) {
		w.Header().Set("X-Next-Page", strconv.Itoa(page+1))
	} else {
		w.Header().Set("X-Next-Page", "")
	}
	w.Header().Set("X-Total", strconv.Itoa(len(items)))
	writeJSON(w, http.StatusOK, items[start:end])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
