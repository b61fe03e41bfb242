package coordinator

import (
	"context"
	"sort"

	"github.com/zsiec/rialtosink/internal/puller"
	"github.com/zsiec/rialtosink/media"
)

// SourceSnapshot describes one attached source.
type SourceSnapshot struct {
	ID       int32
	Type     media.MediaType
	Sink     string
	State    ClientState
	Position int64
	Flushing bool
	Pulling  bool
	Puller   puller.Stats
}

// Snapshot is a point-in-time view of the coordinator for logs and tests.
type Snapshot struct {
	Session            string
	PipelineState      ClientState
	ServerState        media.PlaybackState
	Counts             StreamCounts
	CountsKnown        bool
	AllSourcesAttached bool
	Position           int64
	Duration           int64
	Sources            []SourceSnapshot
}

// Snapshot returns the coordinator's current state. ok is false after
// Destroy.
func (c *Coordinator) Snapshot(ctx context.Context) (snap Snapshot, ok bool) {
	ok = c.queue.CallInLoop(ctx, func(context.Context) {
		snap = Snapshot{
			Session:            c.session,
			PipelineState:      c.pipelineState,
			ServerState:        c.serverState,
			Counts:             c.counts,
			CountsKnown:        c.countsKnown,
			AllSourcesAttached: c.allAttached,
			Position:           c.position,
			Duration:           c.duration,
		}
		for _, s := range c.sources {
			snap.Sources = append(snap.Sources, SourceSnapshot{
				ID:       s.ID,
				Type:     s.Type,
				Sink:     s.sink.Name(),
				State:    s.state,
				Position: s.position,
				Flushing: s.flushing,
				Pulling:  s.puller.Running(),
				Puller:   s.puller.Stats(),
			})
		}
		sort.Slice(snap.Sources, func(i, j int) bool { return snap.Sources[i].ID < snap.Sources[j].ID })
	})
	return snap, ok
}
