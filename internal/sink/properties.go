package sink

import (
	"context"
	"fmt"
	"strconv"

	"github.com/zsiec/rialtosink/internal/coordinator"
	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/internal/registry"
	"github.com/zsiec/rialtosink/media"
)

// applyFunc pushes a property value to the coordinator for source id.
type applyFunc func(ctx context.Context, c *coordinator.Coordinator, id int32) error

// propChange is the outcome of a variant property write.
type propChange struct {
	apply applyFunc
	// transient changes are dropped instead of queued while detached.
	transient bool
}

type pendingChange struct {
	name  string
	apply applyFunc
}

// variant is the stream-type specific part of a delegate.
type variant interface {
	defaultAsync() bool
	hint() registry.Hint
	// set validates and caches value. A nil apply means nothing reaches
	// the coordinator.
	set(name string, value any, state host.State) (propChange, error)
	// get reads a property; c is nil while detached.
	get(ctx context.Context, c *coordinator.Coordinator, id int32, name string) (any, error)
	handleCustom(ctx context.Context, d *Delegate, st *media.Structure) bool
}

// SetProperty writes a sink property. Writes made before the source is
// attached are queued and applied once it is.
func (d *Delegate) SetProperty(ctx context.Context, name string, value any) error {
	if handled, err := d.setCommon(name, value); handled {
		if err != nil {
			return &PropertyError{Name: name, Err: err}
		}
		return nil
	}

	ch, err := d.variant.set(name, value, d.State())
	if err != nil {
		return &PropertyError{Name: name, Err: err}
	}
	if ch.apply == nil {
		return nil
	}

	d.mu.Lock()
	c, id, attached := d.sessionLocked()
	if !attached {
		if !ch.transient {
			d.queueLocked(name, ch.apply)
		}
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if err := ch.apply(ctx, c, id); err != nil {
		perr := &PropertyError{Name: name, Err: err}
		d.HandleWarning(perr)
		return perr
	}
	return nil
}

func (d *Delegate) sessionLocked() (*coordinator.Coordinator, int32, bool) {
	if d.handle == nil {
		return nil, 0, false
	}
	return d.handle.Coordinator, d.sourceID, d.attached
}

// queueLocked records a change for replay on attach. A later write of the
// same property replaces the earlier one.
func (d *Delegate) queueLocked(name string, apply applyFunc) {
	for i, p := range d.pending {
		if p.name == name {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			break
		}
	}
	d.pending = append(d.pending, pendingChange{name: name, apply: apply})
}

// Property reads a sink property.
func (d *Delegate) Property(ctx context.Context, name string) (any, error) {
	if v, handled, err := d.getCommon(ctx, name); handled {
		if err != nil {
			return nil, &PropertyError{Name: name, Err: err}
		}
		return v, nil
	}

	c, id, attached := d.session()
	if !attached {
		c = nil
	}
	v, err := d.variant.get(ctx, c, id, name)
	if err != nil {
		return nil, &PropertyError{Name: name, Err: err}
	}
	return v, nil
}

func (d *Delegate) setCommon(name string, value any) (bool, error) {
	switch name {
	case "async", "single-path-stream", "has-drm":
		b, ok := value.(bool)
		if !ok {
			return true, invalidValue(value)
		}
		d.mu.Lock()
		switch name {
		case "async":
			d.async = b
		case "single-path-stream":
			d.singlePath = b
		case "has-drm":
			d.hasDrm = b
		}
		d.mu.Unlock()
		return true, nil
	case "stats":
		return true, ErrReadOnly
	}
	return false, nil
}

func (d *Delegate) getCommon(ctx context.Context, name string) (any, bool, error) {
	d.mu.Lock()
	switch name {
	case "async":
		defer d.mu.Unlock()
		return d.async, true, nil
	case "single-path-stream":
		defer d.mu.Unlock()
		return d.singlePath, true, nil
	case "has-drm":
		defer d.mu.Unlock()
		return d.hasDrm, true, nil
	}
	d.mu.Unlock()

	if name != "stats" {
		return nil, false, nil
	}
	c, id, attached := d.session()
	if !attached {
		return nil, true, coordinator.ErrNotAttached
	}
	rendered, dropped, err := c.Stats(ctx, id)
	if err != nil {
		return nil, true, err
	}
	return media.NewStructure("stats").
		Set("rendered-frames", rendered).
		Set("dropped-frames", dropped), true, nil
}

func boolValue(value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, invalidValue(value)
	}
	return b, nil
}

func uint32Value(value any) (uint32, error) {
	switch n := value.(type) {
	case uint32:
		return n, nil
	case uint:
		if uint64(n) <= uint64(^uint32(0)) {
			return uint32(n), nil
		}
	case int:
		if n >= 0 && uint64(n) <= uint64(^uint32(0)) {
			return uint32(n), nil
		}
	case string:
		v, err := strconv.ParseUint(n, 10, 32)
		if err == nil {
			return uint32(v), nil
		}
	}
	return 0, invalidValue(value)
}

func int32Value(value any) (int32, error) {
	switch n := value.(type) {
	case int32:
		return n, nil
	case int:
		if n >= -1<<31 && n < 1<<31 {
			return int32(n), nil
		}
	case uint32:
		if n < 1<<31 {
			return int32(n), nil
		}
	}
	return 0, invalidValue(value)
}

func stringValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}
	return "", invalidValue(value)
}
