package projection

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/extsync/internal/domain/catalog"
	"github.com/GriffinCanCode/extsync/internal/domain/sweep"
	"github.com/GriffinCanCode/extsync/internal/domain/version"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/monitoring"
)

// Builder produces a full catalog.
type Builder interface {
	Build(ctx context.Context) ([]catalog.Entry, error)
}

// Reason says which write path produced a change event.
type Reason string

const (
	ReasonRefresh  Reason = "refresh"
	ReasonTargeted Reason = "targeted"
	ReasonBatch    Reason = "batch"
)

// Event is emitted after every change to the projection.
type Event struct {
	Reason  Reason `json:"reason"`
	Badge   Badge  `json:"badge"`
	Entries int    `json:"entries"`
}

// Update is one targeted status change.
type Update struct {
	Action      catalog.Action `json:"action"`
	ExtensionID string         `json:"extension_id"`
	Version     string         `json:"version"`
}

// AfterRebuildFunc runs after a successful rebuild, still inside the refresh
// guard, with a copy of the new catalog.
type AfterRebuildFunc func(ctx context.Context, entries []catalog.Entry)

// Tree is the catalog store behind the tree view and badge. It has two write
// paths, full rebuild and targeted patch; both end in the same change event.
type Tree struct {
	builder Builder
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	entries []catalog.Entry
	badge   Badge

	refreshing int32 // Atomic flag, at most one full refresh in flight

	subsMu  sync.RWMutex
	subs    map[int]func(Event)
	nextSub int

	afterRebuild AfterRebuildFunc
}

// NewTree creates an empty projection.
func NewTree(builder Builder, logger *zap.Logger, metrics *monitoring.Metrics) *Tree {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tree{
		builder: builder,
		logger:  logger,
		metrics: metrics,
		subs:    make(map[int]func(Event)),
	}
}

// SetAfterRebuild installs a hook run after each full rebuild.
func (t *Tree) SetAfterRebuild(fn AfterRebuildFunc) {
	t.mu.Lock()
	t.afterRebuild = fn
	t.mu.Unlock()
}

// Refresh clears the catalog, rebuilds it, recomputes the badge and notifies
// subscribers, in that order. If a refresh is already running the call is
// dropped and reports false; callers should observe the resulting state
// rather than assume their request ran. The build error, if any, is returned
// after the (empty) catalog has been published.
func (t *Tree) Refresh(ctx context.Context) (bool, error) {
	if !atomic.CompareAndSwapInt32(&t.refreshing, 0, 1) {
		t.metrics.IncRefreshDropped()
		t.logger.Debug("Refresh already in flight, dropping request")
		return false, nil
	}
	defer atomic.StoreInt32(&t.refreshing, 0)

	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()

	entries, err := t.builder.Build(ctx)
	if err != nil && entries == nil {
		entries = []catalog.Entry{}
	}

	t.mu.Lock()
	t.entries = entries
	t.badge = BadgeFor(sweep.Count(entries))
	hook := t.afterRebuild
	t.mu.Unlock()

	t.notify(ReasonRefresh)

	if err == nil && hook != nil {
		hook(ctx, t.Snapshot())
	}
	return true, err
}

// Refreshing reports whether a full refresh is in flight.
func (t *Tree) Refreshing() bool {
	return atomic.LoadInt32(&t.refreshing) == 1
}

// Roots returns one branch per registry in first-seen order. An empty catalog
// triggers a full refresh first.
func (t *Tree) Roots(ctx context.Context) []Node {
	if t.Len() == 0 {
		if _, err := t.Refresh(ctx); err != nil {
			t.logger.Debug("Lazy refresh failed", zap.Error(err))
		}
	}
	return t.Branches()
}

// Branches returns the branches of the current catalog without refreshing,
// for callers that have just refreshed explicitly.
func (t *Tree) Branches() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]bool)
	var roots []Node
	for _, e := range t.entries {
		if seen[e.RegistryName] {
			continue
		}
		seen[e.RegistryName] = true
		roots = append(roots, Branch(e.RegistryName, e.URL))
	}
	return roots
}

// Children returns the leaves under a branch in catalog order. Leaves have no
// children.
func (t *Tree) Children(branch Node) []Node {
	if branch.Kind != KindBranch {
		return nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var leaves []Node
	for _, e := range t.entries {
		if e.RegistryName == branch.RegistryName {
			leaves = append(leaves, Leaf(e))
		}
	}
	return leaves
}

// Leaf returns the first leaf for an extension id.
func (t *Tree) Leaf(extensionID string) (Node, bool) {
	e, ok := t.Lookup(extensionID)
	if !ok {
		return Node{}, false
	}
	return Leaf(e), true
}

// Lookup returns the first catalog entry for an extension id.
func (t *Tree) Lookup(extensionID string) (catalog.Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return catalog.Find(t.entries, extensionID)
}

// ApplyTargetedUpdate patches the status of the entries for one extension
// without touching the network. Unknown ids are ignored.
func (t *Tree) ApplyTargetedUpdate(action catalog.Action, extensionID, ver string) {
	t.ApplyBatch([]Update{{Action: action, ExtensionID: extensionID, Version: ver}})
}

// ApplyBatch applies several targeted updates with a single badge
// recomputation and a single change event. It returns how many entries
// changed.
func (t *Tree) ApplyBatch(updates []Update) int {
	if len(updates) == 0 {
		return 0
	}

	t.mu.Lock()
	matched := 0
	for _, u := range updates {
		for i := range t.entries {
			e := &t.entries[i]
			if e.ExtensionID != u.ExtensionID {
				continue
			}
			matched++
			e.Status = patchedStatus(u, e.Version)
		}
	}
	if matched == 0 {
		t.mu.Unlock()
		t.logger.Debug("Targeted update matched nothing", zap.Int("updates", len(updates)))
		return 0
	}
	t.badge = BadgeFor(sweep.Count(t.entries))
	t.mu.Unlock()

	reason := ReasonTargeted
	if len(updates) > 1 {
		reason = ReasonBatch
	}
	t.notify(reason)
	return matched
}

// patchedStatus derives an entry's status after an install or uninstall.
// An install of an older version than the entry leaves it outdated.
func patchedStatus(u Update, entryVersion string) version.Status {
	if u.Action == catalog.ActionUninstall {
		return version.StatusUndefined
	}
	if u.Version != "" && version.Compare(u.Version, entryVersion) < 0 {
		return version.StatusOutdated
	}
	return version.StatusInstalled
}

// Badge returns the current badge.
func (t *Tree) Badge() Badge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.badge
}

// Snapshot returns a copy of the current catalog.
func (t *Tree) Snapshot() []catalog.Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]catalog.Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of catalog entries.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Subscribe registers fn for change events. Call the returned function to
// unsubscribe.
func (t *Tree) Subscribe(fn func(Event)) (cancel func()) {
	t.subsMu.Lock()
	key := t.nextSub
	t.nextSub++
	t.subs[key] = fn
	t.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.subsMu.Lock()
			delete(t.subs, key)
			t.subsMu.Unlock()
		})
	}
}

func (t *Tree) notify(reason Reason) {
	t.mu.RLock()
	ev := Event{Reason: reason, Badge: t.badge, Entries: len(t.entries)}
	t.mu.RUnlock()

	t.metrics.SetOutdated(ev.Badge.Value)

	t.subsMu.RLock()
	subs := make([]func(Event), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.subsMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
