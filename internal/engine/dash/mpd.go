// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dash

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	m "github.com/Eyevinn/dash-mpd/mpd"
)

// ErrNoVideo is returned when a manifest has no video adaptation set.
var ErrNoVideo = errors.New("manifest has no video adaptation set")

// Decode parses MPD XML.
func Decode(data []byte) (*m.MPD, error) {
	doc, err := m.ReadFromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode mpd: %w", err)
	}
	if len(doc.Periods) == 0 {
		return nil, errors.New("decode mpd: no periods")
	}
	return doc, nil
}

func seconds(d *m.Duration) float64 {
	if d == nil {
		return 0
	}
	return time.Duration(*d).Seconds()
}

// PeriodDuration returns the duration of period i in seconds, falling back to
// the presentation duration.
func PeriodDuration(doc *m.MPD, i int) float64 {
	if i >= 0 && i < len(doc.Periods) && doc.Periods[i].Duration != nil {
		return seconds(doc.Periods[i].Duration)
	}
	return seconds(doc.MediaPresentationDuration)
}

// SegmentTemplate is a number-addressed segment template.
type SegmentTemplate struct {
	Media          string
	Initialization string
	Duration       uint32
	Timescale      uint32
	StartNumber    int
}

func newSegmentTemplate(st *m.SegmentTemplateType) *SegmentTemplate {
	if st == nil {
		return nil
	}
	t := &SegmentTemplate{
		Media:          st.Media,
		Initialization: st.Initialization,
		Timescale:      1,
		StartNumber:    1,
	}
	if st.Duration != nil {
		t.Duration = *st.Duration
	}
	if st.Timescale != nil && *st.Timescale > 0 {
		t.Timescale = *st.Timescale
	}
	if st.StartNumber != nil {
		t.StartNumber = int(*st.StartNumber)
	}
	return t
}

// Rendition is one video representation with the adaptation set attributes
// it omits filled in.
type Rendition struct {
	ID        string
	Width     int
	Height    int
	Bandwidth int
	Codecs    string
	FrameRate float64
	ScanType  string
	BaseURL   string
	Template  *SegmentTemplate
}

// VideoSet is the first video adaptation set of a period.
type VideoSet struct {
	// BaseURLs are the MPD, period and adaptation set references, outermost first.
	BaseURLs   []string
	Renditions []Rendition
}

// Video returns the first video adaptation set of period i.
func Video(doc *m.MPD, i int) (*VideoSet, error) {
	if i < 0 || i >= len(doc.Periods) || doc.Periods[i] == nil {
		return nil, ErrNoVideo
	}
	period := doc.Periods[i]
	for _, as := range period.AdaptationSets {
		if as == nil || !isVideo(as) || len(as.Representations) == 0 {
			continue
		}
		set := &VideoSet{
			BaseURLs: []string{firstBaseURL(doc.BaseURL), firstBaseURL(period.BaseURLs), firstBaseURL(as.BaseURLs)},
		}
		for _, rep := range as.Representations {
			if rep == nil {
				continue
			}
			set.Renditions = append(set.Renditions, resolve(as, rep))
		}
		return set, nil
	}
	return nil, ErrNoVideo
}

func isVideo(as *m.AdaptationSetType) bool {
	if string(as.ContentType) == "video" || strings.HasPrefix(as.MimeType, "video/") {
		return true
	}
	for _, r := range as.Representations {
		if r != nil && strings.HasPrefix(r.MimeType, "video/") {
			return true
		}
	}
	return false
}

func resolve(as *m.AdaptationSetType, rep *m.RepresentationType) Rendition {
	r := Rendition{
		ID:        rep.Id,
		Width:     int(rep.Width),
		Height:    int(rep.Height),
		Bandwidth: int(rep.Bandwidth),
		Codecs:    firstNonEmpty(rep.Codecs, as.Codecs),
		FrameRate: ParseFrameRate(firstNonEmpty(string(rep.FrameRate), string(as.FrameRate))),
		ScanType:  firstNonEmpty(string(rep.ScanType), string(as.ScanType)),
		BaseURL:   firstBaseURL(rep.BaseURLs),
		Template:  newSegmentTemplate(as.SegmentTemplate),
	}
	if rep.SegmentTemplate != nil {
		r.Template = newSegmentTemplate(rep.SegmentTemplate)
	}
	return r
}

func firstBaseURL(urls []*m.BaseURLType) string {
	for _, u := range urls {
		if u != nil && u.Value != "" {
			return strings.TrimSpace(string(u.Value))
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ParseFrameRate accepts "25" or "30000/1001". Invalid input yields zero.
func ParseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	num, den, frac := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !frac {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return math.Round(n/d*1000) / 1000
}

// SegmentCount returns how many segments cover totalSec, or zero when the
// template does not say.
func (t *SegmentTemplate) SegmentCount(totalSec float64) int {
	if t == nil || t.Duration == 0 || totalSec <= 0 {
		return 0
	}
	return int(math.Ceil(totalSec / t.SegmentDuration()))
}

// SegmentDuration returns the nominal segment duration in seconds.
func (t *SegmentTemplate) SegmentDuration() float64 {
	if t == nil || t.Duration == 0 {
		return 0
	}
	scale := t.Timescale
	if scale == 0 {
		scale = 1
	}
	return float64(t.Duration) / float64(scale)
}

// FirstNumber returns startNumber, defaulting to 1.
func (t *SegmentTemplate) FirstNumber() int {
	if t == nil {
		return 1
	}
	return t.StartNumber
}

// Expand substitutes template identifiers for one segment. number < 0 leaves
// $Number$ untouched, which is what initialization templates need.
func Expand(tmpl, repID string, bandwidth, number int) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(tmpl, '$')
		if start < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		end := strings.IndexByte(tmpl[start+1:], '$')
		if end < 0 {
			b.WriteString(tmpl)
			return b.String()
		}
		end += start + 1
		b.WriteString(tmpl[:start])
		b.WriteString(substitute(tmpl[start+1:end], repID, bandwidth, number))
		tmpl = tmpl[end+1:]
	}
}

func substitute(ident, repID string, bandwidth, number int) string {
	name, format, _ := strings.Cut(ident, "%")
	switch name {
	case "":
		return "$"
	case "RepresentationID":
		return repID
	case "Bandwidth":
		return formatNumber(bandwidth, format)
	case "Number":
		if number < 0 {
			return "$" + ident + "$"
		}
		return formatNumber(number, format)
	default:
		return "$" + ident + "$"
	}
}

// formatNumber applies a printf width tag such as "05d".
func formatNumber(v int, format string) string {
	if format == "" {
		return strconv.Itoa(v)
	}
	return fmt.Sprintf("%"+format, v)
}
