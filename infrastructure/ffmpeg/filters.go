package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FilterChainBuilder constructs a comma-separated ffmpeg audio filter chain
type FilterChainBuilder struct {
	filters []string
}

func NewFilterChainBuilder() *FilterChainBuilder {
	return &FilterChainBuilder{}
}

// AddTrim keeps [start,end). A non-positive end keeps everything after start.
func (b *FilterChainBuilder) AddTrim(start, end time.Duration) *FilterChainBuilder {
	if start <= 0 && end <= 0 {
		return b
	}
	f := "atrim=start=" + Seconds(max(start, 0))
	if end > 0 {
		f += ":end=" + Seconds(end)
	}
	b.filters = append(b.filters, f)
	return b
}

// AddResetTimestamps rebases timestamps to zero, required after atrim so
// concat sees contiguous segments.
func (b *FilterChainBuilder) AddResetTimestamps() *FilterChainBuilder {
	b.filters = append(b.filters, "asetpts=PTS-STARTPTS")
	return b
}

// AddFormat forces sample rate and channel layout so segments from different
// inputs can be concatenated.
func (b *FilterChainBuilder) AddFormat(sampleRate, channels int) *FilterChainBuilder {
	var parts []string
	if sampleRate > 0 {
		parts = append(parts, fmt.Sprintf("sample_rates=%d", sampleRate))
	}
	if layout := channelLayout(channels); layout != "" {
		parts = append(parts, "channel_layouts="+layout)
	}
	if len(parts) > 0 {
		b.filters = append(b.filters, "aformat="+strings.Join(parts, ":"))
	}
	return b
}

func (b *FilterChainBuilder) AddResample(hz int) *FilterChainBuilder {
	b.filters = append(b.filters, fmt.Sprintf("aresample=%d", hz))
	return b
}

// AddTempo changes playback speed without changing pitch. atempo accepts
// 0.5 to 100 per instance.
func (b *FilterChainBuilder) AddTempo(rate float64) *FilterChainBuilder {
	if rate <= 0 || rate == 1 {
		return b
	}
	b.filters = append(b.filters, "atempo="+strconv.FormatFloat(rate, 'f', 2, 64))
	return b
}

func (b *FilterChainBuilder) Build() string {
	return strings.Join(b.filters, ",")
}

func (b *FilterChainBuilder) IsEmpty() bool {
	return len(b.filters) == 0
}

// Segment is a span of one input. End <= 0 runs to the end of the input.
type Segment struct {
	Input int
	Start time.Duration
	End   time.Duration
}

// GraphOutput is the label of the final pad produced by BuildConcatGraph.
const GraphOutput = "[out]"

// BuildConcatGraph returns a -filter_complex graph that trims each segment,
// normalises its format and joins them in order into GraphOutput.
func BuildConcatGraph(segments []Segment, sampleRate, channels int) string {
	if len(segments) == 0 {
		return ""
	}

	chains := make([]string, 0, len(segments)+1)
	labels := make([]string, 0, len(segments))
	for i, seg := range segments {
		chain := NewFilterChainBuilder().
			AddTrim(seg.Start, seg.End).
			AddResetTimestamps().
			AddFormat(sampleRate, channels).
			Build()

		label := fmt.Sprintf("[s%d]", i)
		if len(segments) == 1 {
			label = GraphOutput
		}
		chains = append(chains, fmt.Sprintf("[%d:a]%s%s", seg.Input, chain, label))
		labels = append(labels, label)
	}

	if len(segments) > 1 {
		chains = append(chains, fmt.Sprintf("%sconcat=n=%d:v=0:a=1%s",
			strings.Join(labels, ""), len(segments), GraphOutput))
	}
	return strings.Join(chains, ";")
}

// Seconds formats d the way ffmpeg time options expect, with millisecond
// precision.
func Seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func channelLayout(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	}
	return ""
}
