package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os/exec"
	"strings"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// maxGOPBytes bounds the buffered group of pictures. Past it the buffer is
// dropped until the next keyframe.
const maxGOPBytes = 8 << 20

// H264Decoder turns Annex-B H264 into JPEG frames with an ffmpeg subprocess
// per call, piping through stdin and stdout.
type H264Decoder struct {
	ffmpegPath string
}

// NewH264Decoder returns a decoder that runs ffmpegPath.
func NewH264Decoder(ffmpegPath string) *H264Decoder {
	return &H264Decoder{ffmpegPath: ffmpegPath}
}

// Decode decodes annexb and returns the last picture as JPEG.
func (d *H264Decoder) Decode(ctx context.Context, annexb []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(annexb)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("video: ffmpeg: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("video: ffmpeg: %w", err)
	}

	frame := lastJPEG(stdout.Bytes())
	if frame == nil {
		return nil, ErrNoFrame
	}
	return frame, nil
}

// lastJPEG returns the last image in a concatenated MJPEG stream.
func lastJPEG(data []byte) []byte {
	i := bytes.LastIndex(data, []byte{0xff, 0xd8, 0xff})
	if i < 0 {
		return nil
	}
	return data[i:]
}

// decodeJPEG decodes a frame and rejects the gray pictures ffmpeg emits
// when references are missing.
func decodeJPEG(data []byte) (*image.RGBA, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("video: decode jpeg: %w", err)
	}
	if isGrayFrame(img) {
		return nil, ErrNoFrame
	}
	rgba := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

// isGrayFrame samples a 10x10 grid and reports frames that are black or
// flat mid-gray.
func isGrayFrame(img image.Image) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	stepX := max(b.Dx()/10, 1)
	stepY := max(b.Dy()/10, 1)

	var rSum, gSum, bSum, samples int
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			rSum += int(r >> 8)
			gSum += int(g >> 8)
			bSum += int(bl >> 8)
			samples++
		}
	}

	avgR, avgG, avgB := rSum/samples, gSum/samples, bSum/samples
	if avgR < 30 && avgG < 30 && avgB < 30 {
		return true
	}

	colorDiff := abs(avgR-avgG) + abs(avgG-avgB) + abs(avgR-avgB)
	return colorDiff < 15 && avgR > 100 && avgR < 150
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// depacketizer rebuilds Annex-B access units from H264 RTP packets.
type depacketizer struct {
	h264 codecs.H264Packet
	unit []byte
}

// push returns a complete access unit when pkt carries the marker bit.
func (d *depacketizer) push(pkt *rtp.Packet) ([]byte, error) {
	nal, err := d.h264.Unmarshal(pkt.Payload)
	if err != nil {
		d.unit = nil
		return nil, err
	}
	d.unit = append(d.unit, nal...)
	if !pkt.Marker {
		return nil, nil
	}
	unit := d.unit
	d.unit = nil
	return unit, nil
}

// gopBuffer holds the access units since the last keyframe.
type gopBuffer struct {
	data  []byte
	keyed bool
}

// add appends unit and reports whether the buffer is decodable.
func (g *gopBuffer) add(unit []byte) bool {
	if hasKeyframe(unit) {
		g.data = append(g.data[:0], unit...)
		g.keyed = true
		return true
	}
	if !g.keyed {
		return false
	}
	if len(g.data)+len(unit) > maxGOPBytes {
		g.data = g.data[:0]
		g.keyed = false
		return false
	}
	g.data = append(g.data, unit...)
	return true
}

func (g *gopBuffer) snapshot() []byte {
	return append([]byte(nil), g.data...)
}

// hasKeyframe reports whether an Annex-B buffer contains an IDR slice.
func hasKeyframe(annexb []byte) bool {
	for i := 0; i+3 < len(annexb); i++ {
		if annexb[i] == 0 && annexb[i+1] == 0 && annexb[i+2] == 1 {
			if annexb[i+3]&0x1f == 5 {
				return true
			}
			i += 2
		}
	}
	return false
}
