package recorder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"reelforge/internal/services"
)

// profile describes how a container preference maps onto ffmpeg. Encoder
// lists are in preference order.
type profile struct {
	format        string
	extension     string
	videoEncoders []string
	audioEncoders []string
}

var profiles = map[string]profile{
	"video/mp4;codecs=avc1,mp4a.40.2": {
		format: "mp4", extension: ".mp4",
		videoEncoders: []string{"libx264", "libopenh264", "h264_vaapi", "h264_nvenc"},
		audioEncoders: []string{"aac", "libfdk_aac"},
	},
	"video/mp4": {
		format: "mp4", extension: ".mp4",
		videoEncoders: []string{"libx264", "libopenh264", "mpeg4"},
		audioEncoders: []string{"aac", "libfdk_aac", "libmp3lame"},
	},
	"video/webm;codecs=vp9": {
		format: "webm", extension: ".webm",
		videoEncoders: []string{"libvpx-vp9"},
		audioEncoders: []string{"libopus", "libvorbis"},
	},
	"video/webm;codecs=vp8": {
		format: "webm", extension: ".webm",
		videoEncoders: []string{"libvpx"},
		audioEncoders: []string{"libopus", "libvorbis"},
	},
	"video/webm;codecs=h264": {
		format: "matroska", extension: ".webm",
		videoEncoders: []string{"libx264", "libopenh264"},
		audioEncoders: []string{"libopus", "libvorbis", "aac"},
	},
	"video/webm": {
		format: "webm", extension: ".webm",
		videoEncoders: []string{"libvpx-vp9", "libvpx", "libaom-av1", "libsvtav1"},
		audioEncoders: []string{"libopus", "libvorbis"},
	},
}

// Container is the negotiated output format.
type Container struct {
	MIMEType     string
	Format       string
	Extension    string
	VideoEncoder string
	AudioEncoder string
}

// SelectContainer returns the first preference whose video and audio encoders
// are both available.
func SelectContainer(preferences []string, available map[string]bool) (Container, error) {
	for _, mime := range preferences {
		key := normalizeMIME(mime)
		p, ok := profiles[key]
		if !ok {
			continue
		}
		video := firstAvailable(p.videoEncoders, available)
		audio := firstAvailable(p.audioEncoders, available)
		if video == "" || audio == "" {
			continue
		}
		return Container{
			MIMEType:     key,
			Format:       p.format,
			Extension:    p.extension,
			VideoEncoder: video,
			AudioEncoder: audio,
		}, nil
	}
	return Container{}, services.Wrap(services.ErrRecording, "recording", "select container",
		fmt.Sprintf("no supported container among %v", preferences), nil)
}

// KnownContainer reports whether mime has an ffmpeg mapping.
func KnownContainer(mime string) bool {
	_, ok := profiles[normalizeMIME(mime)]
	return ok
}

func normalizeMIME(mime string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(mime), " ", ""))
}

func firstAvailable(candidates []string, available map[string]bool) string {
	for _, name := range candidates {
		if available[name] {
			return name
		}
	}
	return ""
}

// ParseEncoders extracts encoder names from `ffmpeg -encoders` output.
func ParseEncoders(output []byte) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !listing {
			listing = strings.HasPrefix(line, "---")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

// ProbeEncoders asks ffmpeg which encoders it was built with.
func ProbeEncoders(ctx context.Context, ffmpegBinary string) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, ffmpegBinary, "-hide_banner", "-encoders") //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "recording", "probe encoders", ffmpegBinary, err)
	}
	return ParseEncoders(output), nil
}
