package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/zsiec/rialtosink/renderer"
	"github.com/zsiec/rialtosink/renderer/renderertest"
)

func newTestRegistry() (*Registry, *[]*renderertest.Backend) {
	var backends []*renderertest.Backend
	r := New(func() renderer.Backend {
		b := renderertest.New()
		backends = append(backends, b)
		return b
	}, nil)
	return r, &backends
}

func TestRegistryAttachCreatesAndShares(t *testing.T) {
	t.Parallel()
	r, backends := newTestRegistry()
	ctx := context.Background()

	h1, err := r.Attach(ctx, "pipeline-a", Hint{MaxVideoWidth: 1920, MaxVideoHeight: 1080})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	h2, err := r.Attach(ctx, "pipeline-a", Hint{})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if h1.Coordinator != h2.Coordinator {
		t.Error("sinks of one pipeline should share a coordinator")
	}
	if !h1.IsController() {
		t.Error("first attacher should be the controller")
	}
	if h2.IsController() {
		t.Error("second attacher should not be the controller")
	}
	if len(*backends) != 1 {
		t.Fatalf("backends: got %d, want 1", len(*backends))
	}
	call, ok := (*backends)[0].Last("Create")
	if !ok || call.Args[0] != uint32(1920) || call.Args[1] != uint32(1080) {
		t.Errorf("Create args: got %v", call.Args)
	}

	infos := r.List()
	if len(infos) != 1 || infos[0].Refs != 2 {
		t.Errorf("List: got %+v, want one entry with 2 refs", infos)
	}
}

func TestRegistrySeparatesParents(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry()
	ctx := context.Background()

	a, _ := r.Attach(ctx, "a", Hint{})
	b, _ := r.Attach(ctx, "b", Hint{})
	if a.Coordinator == b.Coordinator {
		t.Error("different parents should not share a coordinator")
	}
	if !a.IsController() || !b.IsController() {
		t.Error("each parent has its own controller")
	}
	if len(r.List()) != 2 {
		t.Errorf("count: got %d, want 2", len(r.List()))
	}
}

func TestRegistryReleaseDestroysAtZero(t *testing.T) {
	t.Parallel()
	r, backends := newTestRegistry()
	ctx := context.Background()

	h1, _ := r.Attach(ctx, "p", Hint{})
	h2, _ := r.Attach(ctx, "p", Hint{})

	h1.Release(ctx)
	if (*backends)[0].Destroyed() {
		t.Fatal("backend destroyed while still referenced")
	}
	if !h2.IsController() {
		t.Error("controller should pass to the remaining sink")
	}

	h1.Release(ctx)
	if len(r.List()) != 1 {
		t.Fatal("double release must not drop another reference")
	}

	h2.Release(ctx)
	if !(*backends)[0].Destroyed() {
		t.Error("backend should be destroyed when the last sink releases")
	}
	if len(r.List()) != 0 {
		t.Errorf("count after release: got %d, want 0", len(r.List()))
	}

	h3, _ := r.Attach(ctx, "p", Hint{})
	if h3.Coordinator == h1.Coordinator {
		t.Error("a new coordinator should be created after teardown")
	}
	if len(*backends) != 2 {
		t.Errorf("backends: got %d, want 2", len(*backends))
	}
}

func TestRegistryCreateFailure(t *testing.T) {
	t.Parallel()
	r := New(func() renderer.Backend {
		b := renderertest.New()
		b.CreateErr = errors.New("no renderer")
		return b
	}, nil)

	h, err := r.Attach(context.Background(), "p", Hint{})
	if err == nil {
		t.Fatal("expected error")
	}
	if h != nil {
		t.Error("handle should be nil on failure")
	}
	if len(r.List()) != 0 {
		t.Error("failed creation must not register a coordinator")
	}
}

func TestRegistryDefault(t *testing.T) {
	r, _ := newTestRegistry()
	prev := Default()
	SetDefault(r)
	defer SetDefault(prev)

	if Default() != r {
		t.Error("Default should return the installed registry")
	}
}

func TestRegistrySnapshots(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry()
	ctx := context.Background()

	a, err := r.Attach(ctx, "pipeline-a", Hint{})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	b, err := r.Attach(ctx, "pipeline-b", Hint{})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	snaps := r.Snapshots(ctx)
	if len(snaps) != 2 {
		t.Fatalf("snapshots: got %d, want 2", len(snaps))
	}
	if snaps[0].Session == snaps[1].Session {
		t.Error("coordinators should have distinct sessions")
	}

	a.Release(ctx)
	snaps = r.Snapshots(ctx)
	if len(snaps) != 1 || snaps[0].Session != b.Coordinator.Session() {
		t.Errorf("after release: got %+v", snaps)
	}
	b.Release(ctx)
}
