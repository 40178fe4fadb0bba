package capture

import (
	"context"
	"fmt"
)

// SampleFrame copies the active stream's current picture.
//
// A fresh sink is attached for every call. Its first rendered frame is
// awaited before drawing, since attaching is asynchronous to playback and
// an early draw returns stale or empty pixels. There is no timeout; bound
// the wait with ctx.
func (s *Session) SampleFrame(ctx context.Context) (Frame, error) {
	stream, err := s.liveStream()
	if err != nil {
		return Frame{}, err
	}

	sink := stream.Attach()
	defer sink.Close()

	select {
	case <-sink.Playing():
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}

	img, err := sink.Draw()
	if err != nil {
		return Frame{}, fmt.Errorf("capture: draw frame: %w", err)
	}
	return Frame{Image: img}, nil
}

// TakePhoto samples one frame and encodes it.
func (s *Session) TakePhoto(ctx context.Context) (EncodedImage, error) {
	frame, err := s.SampleFrame(ctx)
	if err != nil {
		return EncodedImage{}, err
	}
	photo, err := s.encoder.Encode(frame.Image)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("capture: encode photo: %w", err)
	}
	s.logger.Debug("photo taken",
		"width", frame.Width(),
		"height", frame.Height(),
		"mime", photo.MIMEType,
		"bytes", len(photo.Data),
	)
	return photo, nil
}

// PixelBuffer samples one frame and returns its raw RGBA pixels.
func (s *Session) PixelBuffer(ctx context.Context) (PixelBuffer, error) {
	frame, err := s.SampleFrame(ctx)
	if err != nil {
		return PixelBuffer{}, err
	}
	return frame.PixelBuffer(), nil
}
