package coordinator

import (
	"testing"

	"github.com/zsiec/rialtosink/internal/host"
	"github.com/zsiec/rialtosink/internal/host/hosttest"
	"github.com/zsiec/rialtosink/media"
)

func TestResolveStreamCountsFromContext(t *testing.T) {
	t.Parallel()
	el := hosttest.NewElement("sink", "pipeline")
	el.Contexts[host.ContextStreamsInfo] = media.NewStructure(host.ContextStreamsInfo).
		Set("video-streams", uint(1)).
		Set("audio-streams", uint(2)).
		Set("text-streams", uint(0))
	el.Properties["n-audio"] = 5

	got := ResolveStreamCounts(el, media.MediaTypeAudio, false)
	want := StreamCounts{Audio: 2, Video: 1, Text: 0}
	if got != want {
		t.Errorf("counts: got %+v, want %+v", got, want)
	}
}

func TestResolveStreamCountsFromParentProperties(t *testing.T) {
	t.Parallel()
	el := hosttest.NewElement("sink", "pipeline")
	el.Properties["n-video"] = 1
	el.Properties["n-audio"] = 2
	el.Properties["n-text"] = 1
	el.Properties["flags"] = uint(flagVideo | flagAudio)

	got := ResolveStreamCounts(el, media.MediaTypeVideo, false)
	want := StreamCounts{Audio: 2, Video: 1, Text: 0}
	if got != want {
		t.Errorf("counts: got %+v, want %+v", got, want)
	}
}

func TestResolveStreamCountsTextOnlyParent(t *testing.T) {
	t.Parallel()
	el := hosttest.NewElement("sink", "pipeline")
	el.Properties["n-text"] = 2

	got := ResolveStreamCounts(el, media.MediaTypeSubtitle, false)
	want := StreamCounts{Text: 2}
	if got != want {
		t.Errorf("counts: got %+v, want %+v", got, want)
	}
}

func TestResolveStreamCountsDefaults(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		own        media.MediaType
		singlePath bool
		want       StreamCounts
	}{
		{"audio", media.MediaTypeAudio, false, StreamCounts{Audio: 1, Video: 1}},
		{"audio single path", media.MediaTypeAudio, true, StreamCounts{Audio: 1}},
		{"video single path", media.MediaTypeVideo, true, StreamCounts{Video: 1}},
		{"subtitle", media.MediaTypeSubtitle, false, StreamCounts{Audio: 1, Video: 1, Text: 1}},
		{"subtitle single path", media.MediaTypeSubtitle, true, StreamCounts{Text: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			el := hosttest.NewElement("sink", "pipeline")
			got := ResolveStreamCounts(el, tt.own, tt.singlePath)
			if got != tt.want {
				t.Errorf("counts: got %+v, want %+v", got, tt.want)
			}
			if got.For(tt.own) != 1 {
				t.Errorf("own count: got %d, want 1", got.For(tt.own))
			}
		})
	}
}
