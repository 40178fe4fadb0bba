package capture

import (
	"context"
	"errors"
	"testing"
)

func newTestSession(t *testing.T, host *MockHost, dec *MockDecoder, clock FrameClock) *Session {
	t.Helper()
	if dec == nil {
		dec = &MockDecoder{}
	}
	cfg := Config{
		Enumerator: host,
		Acquirer:   host,
		Clock:      clock,
		Decoder:    dec,
		Encoder:    &MockEncoder{},
	}
	s, err := NewSession(cfg, nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func TestNewSession_RequiresDecoderAndEncoder(t *testing.T) {
	if _, err := NewSession(Config{Encoder: &MockEncoder{}}, nil); err == nil {
		t.Error("Expected error without decoder")
	}
	if _, err := NewSession(Config{Decoder: &MockDecoder{}}, nil); err == nil {
		t.Error("Expected error without encoder")
	}
}

func TestCapabilityChecks(t *testing.T) {
	host := NewMockHost()

	s := newTestSession(t, host, nil, nil)
	if !s.SupportsCapture() {
		t.Error("SupportsCapture should be true with an acquirer")
	}
	if !s.SupportsDeviceEnumeration() {
		t.Error("SupportsDeviceEnumeration should be true with an enumerator")
	}

	bare, err := NewSession(Config{Decoder: &MockDecoder{}, Encoder: &MockEncoder{}}, nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if bare.SupportsCapture() || bare.SupportsDeviceEnumeration() {
		t.Error("Session without host capabilities should report no support")
	}
}

func TestAcquireStream_TearsDownPrevious(t *testing.T) {
	host := NewMockHost()
	s := newTestSession(t, host, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		var err error
		if i%2 == 0 {
			_, err = s.AcquireDefaultStream(ctx)
		} else {
			_, err = s.AcquireStreamByDeviceID(ctx, "cam-1")
		}
		if err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
		if live := host.LiveStreams(); live != 1 {
			t.Fatalf("after acquire %d: %d live streams, want 1", i, live)
		}
	}

	streams := host.Streams()
	if len(streams) != 5 {
		t.Fatalf("Expected 5 acquisitions, got %d", len(streams))
	}
	for i, st := range streams[:4] {
		if st.Active() {
			t.Errorf("stream %d should have been torn down", i)
		}
	}
	if s.ActiveStream() != Stream(streams[4]) {
		t.Error("ActiveStream should be the most recent acquisition")
	}
	if !s.IsActive() {
		t.Error("IsActive should be true after acquisition")
	}
}

func TestAcquireStream_Constraints(t *testing.T) {
	host := NewMockHost()
	s := newTestSession(t, host, nil, nil)
	ctx := context.Background()

	if _, err := s.AcquireDefaultStream(ctx); err != nil {
		t.Fatalf("AcquireDefaultStream failed: %v", err)
	}
	if _, err := s.AcquireStreamByDeviceID(ctx, "cam-2"); err != nil {
		t.Fatalf("AcquireStreamByDeviceID failed: %v", err)
	}

	reqs := host.Requests()
	if len(reqs) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].Audio || reqs[0].Video.FacingMode != FacingEnvironment || reqs[0].Video.DeviceID != "" {
		t.Errorf("default request = %+v", reqs[0])
	}
	if reqs[1].Video.DeviceID != "cam-2" || reqs[1].Audio {
		t.Errorf("exact request = %+v", reqs[1])
	}

	// Building exact constraints must not leak into the default template.
	if d := DefaultConstraints(); d.Video.DeviceID != "" {
		t.Errorf("DefaultConstraints was modified: %+v", d)
	}
}

func TestAcquireStream_HostFailure(t *testing.T) {
	host := NewMockHost()
	s := newTestSession(t, host, nil, nil)
	ctx := context.Background()

	if _, err := s.AcquireDefaultStream(ctx); err != nil {
		t.Fatalf("AcquireDefaultStream failed: %v", err)
	}
	first := host.Streams()[0]

	denied := errors.New("permission denied")
	host.AcquireErr = denied

	_, err := s.AcquireDefaultStream(ctx)
	if !errors.Is(err, ErrAcquisitionFailed) {
		t.Errorf("Expected ErrAcquisitionFailed, got %v", err)
	}
	if !errors.Is(err, denied) {
		t.Errorf("Expected host error to be preserved, got %v", err)
	}
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) || acqErr.Constraints.Video.FacingMode != FacingEnvironment {
		t.Errorf("Expected *AcquisitionError with constraints, got %#v", err)
	}

	if first.Active() {
		t.Error("previous stream should be released before the failed attempt")
	}
	if s.IsActive() || s.ActiveStream() != nil {
		t.Error("session should have no stream after a failed acquisition")
	}
}

func TestAcquireStream_Unsupported(t *testing.T) {
	s, err := NewSession(Config{Decoder: &MockDecoder{}, Encoder: &MockEncoder{}}, nil)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	_, err = s.AcquireDefaultStream(context.Background())
	if !errors.Is(err, ErrUnsupportedCapability) {
		t.Errorf("Expected ErrUnsupportedCapability, got %v", err)
	}
}

func TestTeardown_Idempotent(t *testing.T) {
	host := NewMockHost()
	s := newTestSession(t, host, nil, nil)

	// No stream yet
	s.Teardown()

	if _, err := s.AcquireDefaultStream(context.Background()); err != nil {
		t.Fatalf("AcquireDefaultStream failed: %v", err)
	}
	track := host.Streams()[0].MockTracks()[0]

	s.Teardown()
	if s.IsActive() {
		t.Error("IsActive should be false after Teardown")
	}
	if track.StopCalls() != 1 {
		t.Errorf("Expected 1 stop call, got %d", track.StopCalls())
	}

	s.Teardown()
	if track.StopCalls() != 1 {
		t.Errorf("Second Teardown should not stop again, got %d calls", track.StopCalls())
	}
}

func TestTeardown_SkipsDisabledTracks(t *testing.T) {
	host := NewMockHost()
	s := newTestSession(t, host, nil, nil)

	if _, err := s.AcquireDefaultStream(context.Background()); err != nil {
		t.Fatalf("AcquireDefaultStream failed: %v", err)
	}
	stream := host.Streams()[0]
	disabled := NewMockTrack("extra")
	disabled.SetEnabled(false)
	stream.AddTrack(disabled)

	s.Teardown()

	if stream.MockTracks()[0].StopCalls() != 1 {
		t.Error("enabled track should be stopped")
	}
	if disabled.StopCalls() != 0 {
		t.Error("disabled track should not be stopped")
	}
	if s.ActiveStream() != nil {
		t.Error("ActiveStream should be cleared")
	}
}

func TestTeardown_EndedStream(t *testing.T) {
	host := NewMockHost()
	s := newTestSession(t, host, nil, nil)

	if _, err := s.AcquireDefaultStream(context.Background()); err != nil {
		t.Fatalf("AcquireDefaultStream failed: %v", err)
	}
	track := host.Streams()[0].MockTracks()[0]
	track.Stop() // stream ended on its own

	s.Teardown()
	if track.StopCalls() != 1 {
		t.Errorf("ended stream should not be stopped again, got %d calls", track.StopCalls())
	}
	if s.ActiveStream() != nil {
		t.Error("ActiveStream should be cleared")
	}
}
