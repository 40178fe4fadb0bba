package capture

import (
	"context"
	"fmt"
)

// AcquireStream releases any current stream and then requests a new one.
// The previous stream is gone even if the new request fails.
func (s *Session) AcquireStream(ctx context.Context, c Constraints) (Stream, error) {
	s.acquireMu.Lock()
	defer s.acquireMu.Unlock()

	s.Teardown()

	if !s.SupportsCapture() {
		return nil, fmt.Errorf("%w: stream acquisition", ErrUnsupportedCapability)
	}

	stream, err := s.acquirer.Acquire(ctx, c)
	if err != nil {
		s.logger.Warn("stream acquisition failed", "constraints", c.String(), "error", err)
		return nil, &AcquisitionError{Constraints: c, Err: err}
	}

	s.mu.Lock()
	s.activeStream = stream
	s.mu.Unlock()

	s.logger.Info("stream acquired", "constraints", c.String(), "tracks", len(stream.Tracks()))
	return stream, nil
}

// AcquireDefaultStream acquires with DefaultConstraints.
func (s *Session) AcquireDefaultStream(ctx context.Context) (Stream, error) {
	return s.AcquireStream(ctx, DefaultConstraints())
}

// AcquireStreamByDeviceID acquires the given device.
func (s *Session) AcquireStreamByDeviceID(ctx context.Context, deviceID string) (Stream, error) {
	return s.AcquireStream(ctx, ExactDeviceConstraints(deviceID))
}

// Teardown stops every enabled track of a live stream and forgets the
// stream. It never fails and may be called any number of times.
func (s *Session) Teardown() {
	s.mu.Lock()
	stream := s.activeStream
	s.activeStream = nil
	s.mu.Unlock()

	if stream == nil || !stream.Active() {
		return
	}

	stopped := 0
	for _, track := range stream.Tracks() {
		if track != nil && track.Enabled() {
			track.Stop()
			stopped++
		}
	}
	s.logger.Info("stream stopped", "tracks", stopped)
}
