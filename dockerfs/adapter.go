package dockerfs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dendrascience/dockerfs/internal/logging"
	"github.com/dendrascience/dockerfs/internal/metrics"
	"github.com/dendrascience/dockerfs/namespace"
	"github.com/dendrascience/dockerfs/util"
	"go.uber.org/zap"
)

// Options tune an Adapter.
type Options struct {
	// Started is the process start time, used for directory timestamps and
	// the README's creation time. Defaults to time.Now().
	Started time.Time
	// RefreshInterval is the minimum time between listing polls. Zero polls
	// on every call.
	RefreshInterval time.Duration
}

// Adapter answers getattr, readdir and read against the current namespace.
// Every call first lets each gate check its listing, so the tree follows the
// runtime's inventory. Calls are serialized.
type Adapter struct {
	mu       sync.Mutex
	gates    []*namespace.Gate
	synth    namespace.Synthesizer
	started  time.Time
	interval time.Duration
	lastPoll time.Time
	lastErr  error
	version  uint64

	current atomic.Pointer[namespace.Namespace]

	now func() time.Time
}

// NewAdapter creates an adapter over the given gates. Partitions are merged
// in gate order, so earlier gates win name collisions.
func NewAdapter(opts Options, gates ...*namespace.Gate) *Adapter {
	started := opts.Started
	if started.IsZero() {
		started = time.Now()
	}
	return &Adapter{
		gates:    gates,
		synth:    namespace.NewSynthesizer(started),
		started:  started,
		interval: opts.RefreshInterval,
		now:      time.Now,
	}
}

// Namespace returns the current snapshot, or nil before the first refresh.
func (a *Adapter) Namespace() *namespace.Namespace {
	return a.current.Load()
}

// Refresh polls every gate and swaps in a new snapshot when any partition
// changed.
func (a *Adapter) Refresh(ctx context.Context) (*namespace.Namespace, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshLocked(ctx)
}

func (a *Adapter) refreshLocked(ctx context.Context) (*namespace.Namespace, error) {
	ns := a.current.Load()
	now := a.now()
	// Within the interval the last poll's outcome stands, including an
	// unavailable runtime.
	if ns != nil && a.interval > 0 && now.Sub(a.lastPoll) < a.interval {
		return ns, a.lastErr
	}
	a.lastPoll = now

	var (
		changed bool
		errs    []error
	)
	for _, g := range a.gates {
		c, err := g.Poll(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		changed = changed || c
	}

	if changed || ns == nil {
		parts := make([]*namespace.Partition, 0, len(a.gates))
		for _, g := range a.gates {
			parts = append(parts, g.Partition())
		}
		a.version++
		ns = namespace.Merge(a.version, a.started, parts...)
		a.current.Store(ns)

		metrics.SetNamespace(ns.Len(), ns.Version)
		if err := metrics.Flush(); err != nil {
			logging.Warn("failed to write metrics textfile", zap.Error(err))
		}
		logging.Info("namespace rebuilt",
			zap.Uint64("version", ns.Version),
			zap.String("generation", ns.Generation.String()),
			zap.Int("files", ns.Len()),
			zap.Int("subdirs", ns.NumSubdirs()),
			zap.Int("skipped", ns.Skipped))
	}

	a.lastErr = errors.Join(errs...)
	return ns, a.lastErr
}

// Getattr returns the synthesized attributes of path.
func (a *Adapter) Getattr(ctx context.Context, path string) (attr namespace.Attr, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.observe("getattr", path, &err)

	ns, err := a.refreshLocked(ctx)
	if err != nil {
		return namespace.Attr{}, err
	}
	return a.synth.Attr(ns, ns.Resolve(path))
}

// Readdir returns the names in the directory at path: "." and ".." first,
// then subdirectories, then files. Leaves that cannot be a single path
// component are left out; they stay reachable by path.
func (a *Adapter) Readdir(ctx context.Context, path string) ([]string, error) {
	entries, err := a.ReadDirEntries(ctx, path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

// ReadDirEntries is Readdir with inode numbers and entry types.
func (a *Adapter) ReadDirEntries(ctx context.Context, path string) (entries []namespace.DirEntry, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.observe("readdir", path, &err)

	ns, err := a.refreshLocked(ctx)
	if err != nil {
		return nil, err
	}
	return ns.ReadDir(path)
}

// Read returns up to size bytes of the file at path starting at offset.
func (a *Adapter) Read(ctx context.Context, path string, size int, offset int64) (data []byte, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer a.observe("read", path, &err)

	ns, err := a.refreshLocked(ctx)
	if err != nil {
		return nil, err
	}
	node := ns.Resolve(path)
	if node.IsDir() {
		return nil, util.ErrUnsupported
	}
	if node.Kind == namespace.NotFound {
		return nil, util.ErrNotFound
	}
	return namespace.ReadAt(node.Entry, size, offset)
}

func (a *Adapter) observe(op, path string, errp *error) {
	result := resultOf(*errp)
	metrics.RecordOperation(op, result)
	logging.Debug(op, zap.String("path", path), zap.String("result", result))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, util.ErrNotFound):
		return "not_found"
	case errors.Is(err, util.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, util.ErrUnavailable):
		return "unavailable"
	}
	return "error"
}
