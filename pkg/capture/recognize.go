package capture

import (
	"context"
	"fmt"
)

// DecodeOnce samples a frame and runs it through the decoder with
// inversion detection disabled.
func (s *Session) DecodeOnce(ctx context.Context) (RecognitionResult, error) {
	if !s.IsActive() {
		return RecognitionResult{}, ErrStreamNotActive
	}

	buf, err := s.PixelBuffer(ctx)
	if err != nil {
		return RecognitionResult{}, err
	}

	payload, found, err := s.decoder.Decode(buf.Data, buf.Width, buf.Height, DecodeOptions{Inversion: DontInvert})
	if err != nil {
		return RecognitionResult{}, fmt.Errorf("capture: decode: %w", err)
	}
	if !found {
		return RecognitionResult{}, nil
	}
	return RecognitionResult{Payload: payload, Found: true}, nil
}

// RunRecognitionLoop decodes one frame per clock tick until the loop ends,
// and blocks until then. Run it on its own goroutine.
//
// onMatch is called for every decoded payload; matching does not end the
// loop. onEnded is called exactly once, with the reason the loop stopped:
// the stream is no longer active, a decode attempt failed, or ctx is done.
// Stopping the stream (Teardown) is the normal way to end the loop; the
// next tick observes it.
func (s *Session) RunRecognitionLoop(ctx context.Context, onMatch func(payload string), onEnded func(reason error)) {
	ended := func(reason error) {
		s.logger.Debug("recognition loop ended", "reason", reason)
		if onEnded != nil {
			onEnded(reason)
		}
	}

	for {
		if err := s.clock.Wait(ctx); err != nil {
			ended(err)
			return
		}

		if !s.IsActive() {
			ended(fmt.Errorf("%w: recognition stopped", ErrStreamNotActive))
			return
		}

		result, err := s.DecodeOnce(ctx)
		if err != nil {
			ended(err)
			return
		}
		if result.Found {
			s.logger.Info("qr code recognised", "payload", result.Payload)
			if onMatch != nil {
				onMatch(result.Payload)
			}
		}
	}
}
