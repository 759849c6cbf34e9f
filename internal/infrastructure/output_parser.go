package infrastructure

import (
	"regexp"
	"strconv"
	"strings"
)

// LineEventKind identifies which pattern a console line matched
type LineEventKind int

const (
	// EventPlaylistItem updates the "item N of M" counters
	EventPlaylistItem LineEventKind = iota
	// EventConvertDest carries the authoritative post-conversion file path
	EventConvertDest
	// EventConvertStart marks the transition into the convert stage
	EventConvertStart
	// EventDownloadDest carries the provisional pre-conversion file path
	EventDownloadDest
	// EventDeleteOriginal signals the tool's own post-conversion cleanup
	EventDeleteOriginal
	// EventDownloadProgress carries a 0-100 download percentage
	EventDownloadProgress
)

// LineEvent is a structured event parsed from one line of extractor output
type LineEvent struct {
	Kind    LineEventKind
	Path    string
	Percent float64
	Index   int
	Total   int
}

type matcher struct {
	kind LineEventKind
	re   *regexp.Regexp
}

// OutputParser incrementally matches known text patterns in the extractor's
// console output. The tool's output format is not a stable contract, so the
// matcher list is ordered: more specific patterns are tried first and
// unmatched lines are silently ignored rather than treated as fatal.
// Adapting to a changed output format means adding or reordering matchers.
type OutputParser struct {
	matchers []matcher
}

// NewOutputParser creates a parser with the default matcher priority
func NewOutputParser() *OutputParser {
	return &OutputParser{
		matchers: []matcher{
			{EventPlaylistItem, regexp.MustCompile(`^\[download\] Downloading item (\d+) of (\d+)$`)},
			{EventConvertDest, regexp.MustCompile(`^\[(?:ExtractAudio|ffmpeg)\] Destination: (.+)$`)},
			{EventConvertStart, regexp.MustCompile(`^\[ExtractAudio\]|Extracting audio`)},
			{EventDownloadDest, regexp.MustCompile(`^\[download\] Destination: (.+)$`)},
			{EventDeleteOriginal, regexp.MustCompile(`^Deleting original file (.+?) \(pass -k to keep\)$`)},
			{EventDownloadProgress, regexp.MustCompile(`^\[download\]\s+(\d{1,3}(?:\.\d+)?)%`)},
		},
	}
}

// ParseLine consumes one line of output and returns at most one event.
// The boolean is false for lines that match no known pattern.
func (p *OutputParser) ParseLine(line string) (LineEvent, bool) {
	// Progress lines may arrive with carriage-return overdraw; keep the
	// final segment only
	if idx := strings.LastIndexByte(line, '\r'); idx >= 0 {
		line = line[idx+1:]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return LineEvent{}, false
	}

	for _, m := range p.matchers {
		groups := m.re.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		return buildEvent(m.kind, groups), true
	}
	return LineEvent{}, false
}

func buildEvent(kind LineEventKind, groups []string) LineEvent {
	ev := LineEvent{Kind: kind}
	switch kind {
	case EventPlaylistItem:
		ev.Index, _ = strconv.Atoi(groups[1])
		ev.Total, _ = strconv.Atoi(groups[2])
	case EventConvertDest, EventDownloadDest, EventDeleteOriginal:
		ev.Path = strings.TrimSpace(groups[1])
	case EventDownloadProgress:
		pct, err := strconv.ParseFloat(groups[1], 64)
		if err == nil && pct >= 0 && pct <= 100 {
			ev.Percent = pct
		}
	}
	return ev
}
