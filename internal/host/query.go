package host

import "github.com/zsiec/rialtosink/media"

// QueryType identifies a query handled by a sink.
type QueryType int

const (
	QuerySeeking QueryType = iota
	QueryPosition
	QuerySegment
)

// Query is a query addressed to a sink. The sink fills the reply fields and
// the handler reports whether it answered.
type Query struct {
	Type   QueryType
	Format media.Format

	// Seeking reply.
	Seekable     bool
	SegmentStart int64
	SegmentEnd   int64

	// Position reply.
	Position int64

	// Segment reply.
	Rate  float64
	Start int64
	Stop  int64
}

// NewSeekingQuery builds a SEEKING query in time format.
func NewSeekingQuery() *Query { return &Query{Type: QuerySeeking, Format: media.FormatTime} }

// NewPositionQuery builds a POSITION query in time format.
func NewPositionQuery() *Query { return &Query{Type: QueryPosition, Format: media.FormatTime} }

// NewSegmentQuery builds a SEGMENT query in time format.
func NewSegmentQuery() *Query { return &Query{Type: QuerySegment, Format: media.FormatTime} }
