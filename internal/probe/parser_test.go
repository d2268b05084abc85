// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"strings"
	"testing"

	"github.com/ManuGH/streamnorm/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tsFragmentLog = `Input #0, mpegts, from 'pipe:0':
  Duration: 00:00:04.00, start: 1.400000, bitrate: 2345 kb/s
  Program 1
    Stream #0:0[0x100]: Video: h264 (High) ([27][0][0][0] / 0x001B), yuv420p(tv, bt709, progressive), 1280x720 [SAR 1:1 DAR 16:9], 25 fps, 25 tbr, 90k tbn
    Stream #0:1[0x101]: Audio: aac (LC) ([15][0][0][0] / 0x000F), 48000 Hz, stereo, fltp, 128 kb/s
Stream mapping:
  Stream #0:0 -> #0:0 (h264 (native) -> wrapped_avframe (native))
Output #0, null, to 'pipe:':
    Stream #0:0: Video: wrapped_avframe, yuv420p(tv, bt709, progressive), 1920x1080, q=2-31, 200 kb/s, 50 fps
`

func feedAll(p *Parser, log string) {
	for _, line := range strings.Split(log, "\n") {
		p.Feed(line)
	}
}

func TestParser_TransportStreamFragment(t *testing.T) {
	var p Parser
	feedAll(&p, tsFragmentLog)

	got, complete := p.Result()
	require.True(t, complete)
	require.NotNil(t, got.Codec)
	assert.Equal(t, "h264", *got.Codec)
	assert.Equal(t, 1280, *got.WidthPx)
	assert.Equal(t, 720, *got.HeightPx)
	assert.Equal(t, 25.0, *got.FrameRateFps)
	assert.Equal(t, 2345.0, *got.BitrateKbps)
	assert.Equal(t, 4.0, *got.DurationSec)
	assert.Equal(t, metadata.ScanProgressive, *got.ScanType)
}

func TestParser_InterlacedAndFractionalRate(t *testing.T) {
	var p Parser
	feedAll(&p, `  Duration: 00:01:02.50, start: 0.000000, bitrate: N/A
    Stream #0:0(und): Video: mpeg2video (Main), yuv420p(tv, top first), 720x576 [SAR 16:15 DAR 4:3], 29.97 fps, 29.97 tbr
Output #0, null, to 'pipe:':`)

	got, complete := p.Result()
	require.True(t, complete)
	assert.Equal(t, "mpeg2video", *got.Codec)
	assert.Equal(t, 62.5, *got.DurationSec)
	assert.Nil(t, got.BitrateKbps)
	assert.Equal(t, 29.97, *got.FrameRateFps)
	assert.Equal(t, metadata.ScanInterlaced, *got.ScanType)
}

func TestParser_NoOutputMarkerIsIncomplete(t *testing.T) {
	var p Parser
	feedAll(&p, `  Duration: 00:00:04.00, start: 1.400000, bitrate: 2345 kb/s
    Stream #0:0[0x100]: Video: h264 (High), yuv420p, 1280x720, 25 fps
pipe:0: Invalid data found when processing input`)

	_, complete := p.Result()
	assert.False(t, complete)
}

func TestParser_MarkerWithoutVideoIsIncomplete(t *testing.T) {
	var p Parser
	feedAll(&p, `    Stream #0:0: Audio: aac (LC), 48000 Hz, stereo
Output #0, null, to 'pipe:':`)

	_, complete := p.Result()
	assert.False(t, complete)
}

func TestParser_IgnoresOutputSectionStreams(t *testing.T) {
	var p Parser
	feedAll(&p, tsFragmentLog)
	got, _ := p.Result()
	assert.NotEqual(t, "wrapped_avframe", *got.Codec)
	assert.Equal(t, 720, *got.HeightPx)
}
