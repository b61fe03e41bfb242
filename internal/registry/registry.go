// Package registry shares one coordinator between every sink of a host
// pipeline. Coordinators are keyed by the identity of the pipeline's
// oldest parent container and reference counted across sinks; the first
// sink to attach becomes the controller.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zsiec/rialtosink/internal/coordinator"
	"github.com/zsiec/rialtosink/renderer"
)

// Hint carries the creation parameters of a new renderer session.
type Hint struct {
	MaxVideoWidth  uint32
	MaxVideoHeight uint32
}

type entry struct {
	key       any
	coord     *coordinator.Coordinator
	handles   []*Handle
	createdAt time.Time
}

// Handle is one sink's reference to a shared coordinator.
type Handle struct {
	Coordinator *coordinator.Coordinator

	reg *Registry
	key any

	mu         sync.Mutex
	controller bool
	released   bool
}

// IsController reports whether this sink may change backend-wide settings.
func (h *Handle) IsController() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.controller
}

// Release drops the reference. The last release destroys the coordinator.
// Releasing twice is a no-op.
func (h *Handle) Release(ctx context.Context) {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.mu.Unlock()
	h.reg.release(ctx, h)
}

// Info describes one registered coordinator.
type Info struct {
	Key       any
	Session   string
	Refs      int
	CreatedAt time.Time
}

// Registry maps pipeline parents to shared coordinators.
type Registry struct {
	log        *slog.Logger
	newBackend renderer.Factory

	mu      sync.Mutex
	entries map[any]*entry
}

// New creates a registry whose coordinators use backends from newBackend.
// If log is nil, slog.Default() is used.
func New(newBackend renderer.Factory, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:        log.With("component", "registry"),
		newBackend: newBackend,
		entries:    make(map[any]*entry),
	}
}

// Attach returns a handle on the coordinator for parent, creating it and
// its renderer session on first use. Creation and destruction are
// serialised so at most one coordinator exists per parent.
func (r *Registry) Attach(ctx context.Context, parent any, hint Hint) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[parent]
	if !ok {
		coord := coordinator.New(r.newBackend(), r.log)
		if err := coord.CreateBackend(ctx, hint.MaxVideoWidth, hint.MaxVideoHeight); err != nil {
			coord.Destroy(ctx)
			r.log.Error("failed to create renderer session", "error", err)
			return nil, err
		}
		e = &entry{key: parent, coord: coord, createdAt: time.Now()}
		r.entries[parent] = e
		r.log.Info("coordinator created", "session", coord.Session())
	}

	h := &Handle{Coordinator: e.coord, reg: r, key: parent}
	h.controller = len(e.handles) == 0
	e.handles = append(e.handles, h)
	r.log.Debug("coordinator attached", "session", e.coord.Session(), "refs", len(e.handles), "controller", h.controller)
	return h, nil
}

func (r *Registry) release(ctx context.Context, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[h.key]
	if !ok {
		return
	}
	for i, other := range e.handles {
		if other == h {
			e.handles = append(e.handles[:i], e.handles[i+1:]...)
			break
		}
	}

	h.mu.Lock()
	wasController := h.controller
	h.controller = false
	h.mu.Unlock()

	if len(e.handles) > 0 {
		if wasController {
			next := e.handles[0]
			next.mu.Lock()
			next.controller = true
			next.mu.Unlock()
		}
		r.log.Debug("coordinator released", "session", e.coord.Session(), "refs", len(e.handles))
		return
	}

	delete(r.entries, h.key)
	e.coord.Destroy(ctx)
	r.log.Info("coordinator removed", "session", e.coord.Session())
}

// List returns all registered coordinators.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, Info{
			Key:       e.key,
			Session:   e.coord.Session(),
			Refs:      len(e.handles),
			CreatedAt: e.createdAt,
		})
	}
	return infos
}

// Snapshots returns the state of every registered coordinator that is
// still running.
func (r *Registry) Snapshots(ctx context.Context) []coordinator.Snapshot {
	r.mu.Lock()
	coords := make([]*coordinator.Coordinator, 0, len(r.entries))
	for _, e := range r.entries {
		coords = append(coords, e.coord)
	}
	r.mu.Unlock()

	snaps := make([]coordinator.Snapshot, 0, len(coords))
	for _, c := range coords {
		if snap, ok := c.Snapshot(ctx); ok {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default returns the process-wide registry, or nil when none was set.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

// SetDefault installs the process-wide registry used by sinks created
// without an explicit one.
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = r
}
