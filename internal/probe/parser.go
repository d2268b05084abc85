// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ManuGH/streamnorm/internal/metadata"
)

// OutputMarker opens the output section of the inspector's diagnostic stream.
// Input stream descriptions are complete once it appears.
const OutputMarker = "Output #"

var (
	durationRe  = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	bitrateRe   = regexp.MustCompile(`bitrate:\s*(\d+(?:\.\d+)?)\s*kb/s`)
	videoRe     = regexp.MustCompile(`Stream #\d+:\d+.*?: Video:\s*([A-Za-z0-9_]+)`)
	dimensionRe = regexp.MustCompile(`\b(\d{2,5})x(\d{2,5})\b`)
	frameRateRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*fps`)
)

// Parser extracts stream facts from the line-oriented diagnostic output of
// an ffmpeg-style inspection run.
type Parser struct {
	result    metadata.Stream
	sawVideo  bool
	sawOutput bool
}

// Feed consumes one diagnostic line. Lines after the output marker are ignored.
func (p *Parser) Feed(line string) {
	if p.sawOutput {
		return
	}
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, OutputMarker):
		p.sawOutput = true
	case strings.HasPrefix(line, "Duration:"):
		p.parseDurationLine(line)
	case !p.sawVideo && videoRe.MatchString(line):
		p.parseVideoLine(line)
	}
}

func (p *Parser) parseDurationLine(line string) {
	if m := durationRe.FindStringSubmatch(line); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		secs, _ := strconv.ParseFloat(m[3], 64)
		p.result.DurationSec = metadata.Float(float64(h*3600+mins*60) + secs)
	}
	if m := bitrateRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			p.result.BitrateKbps = metadata.Float(v)
		}
	}
}

func (p *Parser) parseVideoLine(line string) {
	m := videoRe.FindStringSubmatchIndex(line)
	if m == nil {
		return
	}
	p.sawVideo = true
	p.result.Codec = metadata.String(line[m[2]:m[3]])

	desc := line[m[1]:]
	if d := dimensionRe.FindStringSubmatch(desc); d != nil {
		w, _ := strconv.Atoi(d[1])
		h, _ := strconv.Atoi(d[2])
		p.result.WidthPx = metadata.Int(w)
		p.result.HeightPx = metadata.Int(h)
	}
	if f := frameRateRe.FindStringSubmatch(desc); f != nil {
		if v, err := strconv.ParseFloat(f[1], 64); err == nil {
			p.result.FrameRateFps = metadata.Float(v)
		}
	}
	lower := strings.ToLower(desc)
	switch {
	case strings.Contains(lower, "progressive"):
		p.result.ScanType = metadata.ParseScanType("progressive")
	case strings.Contains(lower, "interlaced"),
		strings.Contains(lower, "top first"),
		strings.Contains(lower, "bottom first"):
		p.result.ScanType = metadata.ParseScanType("interlaced")
	}
}

// Complete reports whether the output marker appeared and a codec was captured.
func (p *Parser) Complete() bool {
	return p.sawOutput && p.result.Codec != nil
}

// Result returns the parsed record and whether it is complete.
func (p *Parser) Result() (metadata.Stream, bool) {
	return p.result.Clone(), p.Complete()
}
