package host

import (
	"fmt"

	"github.com/zsiec/rialtosink/media"
)

// EventType identifies an upstream event.
type EventType int

const (
	EventCaps EventType = iota
	EventSegment
	EventEOS
	EventFlushStart
	EventFlushStop
	EventStreamCollection
	EventInstantRateChange
	EventInstantRateSyncTime
	EventCustomDownstream
)

var eventNames = [...]string{
	"CAPS", "SEGMENT", "EOS", "FLUSH_START", "FLUSH_STOP", "STREAM_COLLECTION",
	"INSTANT_RATE_CHANGE", "INSTANT_RATE_SYNC_TIME", "CUSTOM_DOWNSTREAM",
}

func (t EventType) String() string {
	if t >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Custom downstream event structure names.
const (
	CustomInstantRateChange = "custom-instant-rate-change"
	CustomSwitchSource      = "switch-source"
	CustomSetPtsOffset      = "set-pts-offset"
)

// StreamCollection lists the media types of the streams upstream will
// produce.
type StreamCollection struct {
	Streams []media.MediaType
}

// Counts returns the number of audio, video and text streams.
func (c *StreamCollection) Counts() (audio, video, text int) {
	if c == nil {
		return 0, 0, 0
	}
	for _, t := range c.Streams {
		switch t {
		case media.MediaTypeAudio:
			audio++
		case media.MediaTypeVideo:
			video++
		case media.MediaTypeSubtitle:
			text++
		}
	}
	return audio, video, text
}

// Event is an upstream event delivered to a sink pad. Only the fields
// relevant to Type are set.
type Event struct {
	Type EventType

	Caps       *media.Caps
	Segment    *media.Segment
	ResetTime  bool
	Collection *StreamCollection
	Structure  *media.Structure

	// Instant rate change and sync time.
	Rate                float64
	RunningTime         int64
	UpstreamRunningTime int64
}

// NewCapsEvent builds a CAPS event.
func NewCapsEvent(caps *media.Caps) *Event { return &Event{Type: EventCaps, Caps: caps} }

// NewSegmentEvent builds a SEGMENT event.
func NewSegmentEvent(seg *media.Segment) *Event { return &Event{Type: EventSegment, Segment: seg} }

// NewEOSEvent builds an EOS event.
func NewEOSEvent() *Event { return &Event{Type: EventEOS} }

// NewFlushStartEvent builds a FLUSH_START event.
func NewFlushStartEvent() *Event { return &Event{Type: EventFlushStart} }

// NewFlushStopEvent builds a FLUSH_STOP event.
func NewFlushStopEvent(resetTime bool) *Event {
	return &Event{Type: EventFlushStop, ResetTime: resetTime}
}

// NewStreamCollectionEvent builds a STREAM_COLLECTION event.
func NewStreamCollectionEvent(types ...media.MediaType) *Event {
	return &Event{Type: EventStreamCollection, Collection: &StreamCollection{Streams: types}}
}

// NewInstantRateChangeEvent builds an INSTANT_RATE_CHANGE event.
func NewInstantRateChangeEvent(rate float64) *Event {
	return &Event{Type: EventInstantRateChange, Rate: rate}
}

// NewInstantRateSyncTimeEvent builds an INSTANT_RATE_SYNC_TIME event.
func NewInstantRateSyncTimeEvent(rate float64, runningTime, upstreamRunningTime int64) *Event {
	return &Event{
		Type:                EventInstantRateSyncTime,
		Rate:                rate,
		RunningTime:         runningTime,
		UpstreamRunningTime: upstreamRunningTime,
	}
}

// NewCustomDownstreamEvent builds a custom downstream event carrying st.
func NewCustomDownstreamEvent(st *media.Structure) *Event {
	return &Event{Type: EventCustomDownstream, Structure: st}
}
