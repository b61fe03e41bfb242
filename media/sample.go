package media

// ClockTimeNone marks an unset timestamp or duration.
const ClockTimeNone int64 = -1

// Format is the unit of a host segment.
type Format int

const (
	FormatUndefined Format = iota
	FormatTime
	FormatBytes
	FormatBuffers
)

// Segment is the host time-base window over which sample timestamps are
// interpreted.
type Segment struct {
	Format      Format
	Rate        float64
	AppliedRate float64
	Start       int64
	Stop        int64
	Time        int64
	Position    int64
	Duration    int64
}

// DefaultSegment returns an open-ended time segment at rate 1.0.
func DefaultSegment() Segment {
	return Segment{
		Format:      FormatTime,
		Rate:        1.0,
		AppliedRate: 1.0,
		Stop:        ClockTimeNone,
		Duration:    ClockTimeNone,
	}
}

// Sample is one compressed access unit delivered by the host pipeline,
// together with the caps and segment it was produced under.
type Sample struct {
	Data     []byte
	PTS      int64
	Duration int64
	Caps     *Caps
	Segment  *Segment

	// Protection holds decryption metadata attached to the buffer, if any.
	Protection *Structure
}
