package coordinator

import (
	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/media"
)

// Parent play-flags bits enabling each stream type.
const (
	flagVideo = 1 << 0
	flagAudio = 1 << 1
	flagText  = 1 << 2
)

// StreamCounts is the number of sources of each type expected before the
// renderer is told that all sources are attached.
type StreamCounts struct {
	Audio int
	Video int
	Text  int
}

// For returns the expected count for t.
func (s StreamCounts) For(t media.MediaType) int {
	switch t {
	case media.MediaTypeAudio:
		return s.Audio
	case media.MediaTypeVideo:
		return s.Video
	case media.MediaTypeSubtitle:
		return s.Text
	}
	return 0
}

// ContextProvider is the part of host.Element stream-count resolution uses.
type ContextProvider interface {
	QueryContext(contextType string) (*media.Structure, bool)
	ParentProperty(name string) (any, bool)
}

// ResolveStreamCounts determines the expected stream counts for a sink of
// type own: from the streams-info context, then from the parent
// container's n-video/n-audio/n-text properties filtered by its flags, and
// finally from defaults.
func ResolveStreamCounts(p ContextProvider, own media.MediaType, singlePath bool) StreamCounts {
	if st, ok := p.QueryContext(host.ContextStreamsInfo); ok {
		v, hasV := st.Int("video-streams")
		a, hasA := st.Int("audio-streams")
		t, hasT := st.Int("text-streams")
		if hasV || hasA || hasT {
			return StreamCounts{Audio: a, Video: v, Text: t}
		}
	}

	nv, hasV := intProperty(p, "n-video")
	na, hasA := intProperty(p, "n-audio")
	nt, hasT := intProperty(p, "n-text")
	if hasV || hasA || hasT {
		if flags, ok := intProperty(p, "flags"); ok {
			if flags&flagVideo == 0 {
				nv = 0
			}
			if flags&flagAudio == 0 {
				na = 0
			}
			if flags&flagText == 0 {
				nt = 0
			}
		}
		return StreamCounts{Audio: na, Video: nv, Text: nt}
	}

	counts := StreamCounts{Audio: 1, Video: 1}
	if singlePath {
		counts = StreamCounts{}
	}
	switch own {
	case media.MediaTypeAudio:
		counts.Audio = 1
	case media.MediaTypeVideo:
		counts.Video = 1
	case media.MediaTypeSubtitle:
		counts.Text = 1
	}
	return counts
}

func intProperty(p ContextProvider, name string) (int, bool) {
	v, ok := p.ParentProperty(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}
